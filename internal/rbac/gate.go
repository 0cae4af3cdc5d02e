package rbac

import (
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

// Decision — итог проверки доступа. При отказе Required содержит полный
// набор достаточных ролей, чтобы UI мог показать, чего именно не хватает.
type Decision struct {
	Allowed  bool            `json:"allowed"`
	Required []domain.RoleID `json:"required"`
}

// Gate — чистая функция над каталогом: роль входит в набор модуля или нет.
// Состояния не держит, для конкурентных запросов безопасен без локов.
type Gate struct {
	catalog *Catalog
}

func NewGate(catalog *Catalog) *Gate {
	return &Gate{catalog: catalog}
}

// Check решает, может ли роль работать с модулем.
// nil-набор = публичный модуль, всегда allowed.
// Неизвестный модуль приходит пустым набором — deny-all (fail closed).
func (g *Gate) Check(role domain.RoleID, moduleID string) Decision {
	required := g.catalog.AllowedRoles(moduleID)
	if required == nil {
		return Decision{Allowed: true, Required: nil}
	}

	return g.CheckSet(role, required)
}

// CheckSet — проверка принадлежности роли явному набору (для пресетов,
// у которых нет своего модуля в каталоге).
func (g *Gate) CheckSet(role domain.RoleID, required []domain.RoleID) Decision {
	for _, id := range required {
		if id == role {
			return Decision{Allowed: true, Required: required}
		}
	}
	return Decision{Allowed: false, Required: required}
}

// Пресеты — это не отдельные ветки логики, а заранее известные наборы
// поверх той же Check. Удержано от исходной системы (adminOnly и т.п.).

// AdminOnly — набор для служебных операций (назначение ролей, чтение аудита).
func AdminOnly() []domain.RoleID {
	return []domain.RoleID{domain.RoleSuperAdmin, domain.RoleAdmin}
}

// AllRoles — любой известный каталогу субъект.
func AllRoles() []domain.RoleID {
	return []domain.RoleID{
		domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFleetManager,
		domain.RoleDispatcher, domain.RoleInsuranceAgent, domain.RoleOwner, domain.RoleViewer,
	}
}
