package rbac

import (
	"strings"

	"github.com/xela07ax/trufleet-authz/internal/domain"
)

// Resolver нормализует произвольную строку роли (каноничный id, слаг,
// свободный текст вроде "Fleet Admin") к каноничному RoleID и применяет
// потолок привилегий относительно доверенной сохраненной роли.
//
// Разрешение никогда не «падает» — неузнанная строка деградирует к viewer
// (least privilege), а не порождает новую роль.
type Resolver struct {
	catalog *Catalog
	aliases map[string]domain.RoleID
}

func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{
		catalog: catalog,
		// Таблица алиасов: исторические свободные подписи из UI.
		// Ключи — уже слагифицированные строки.
		aliases: map[string]domain.RoleID{
			"fleet_admin": domain.RoleAdmin,
			"manager":     domain.RoleFleetManager,
			"agent":       domain.RoleInsuranceAgent,
		},
	}
}

// Normalize — чистая нормализация строки к RoleID без учета сохраненной роли.
// Порядок: точный id → слаг (нижний регистр, пробелы → "_") → алиас → viewer.
func (r *Resolver) Normalize(raw string) domain.RoleID {
	if raw == "" {
		return domain.RoleViewer
	}
	if _, ok := r.catalog.RoleOf(domain.RoleID(raw)); ok {
		return domain.RoleID(raw)
	}
	slug := slugify(raw)
	if _, ok := r.catalog.RoleOf(domain.RoleID(slug)); ok {
		return domain.RoleID(slug)
	}
	if mapped, ok := r.aliases[slug]; ok {
		return mapped
	}
	return domain.RoleViewer
}

// Resolve возвращает эффективную роль субъекта. storedRole — доверенная роль
// из таблицы users (пустая строка = неизвестна). Anti-escalation: если
// заявленная роль выше сохраненной, запрос молча понижается до сохраненной —
// не отклоняется. Потолок работает в обе стороны: берем минимум уровней.
func (r *Resolver) Resolve(claimed string, storedRole string) domain.RoleID {
	role := r.Normalize(claimed)
	if storedRole == "" {
		return role
	}

	stored := r.Normalize(storedRole)
	if r.catalog.Level(stored) < r.catalog.Level(role) {
		return stored
	}
	return role
}

func slugify(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), "_")
}
