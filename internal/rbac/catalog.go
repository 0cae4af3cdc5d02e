package rbac

import (
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

/*
Файл catalog.go — единственный источник правды по ролям и правам модулей.
Раньше эквивалентная матрица жила в двух местах (фронт для UI-подсказок и
сервер для реального контроля) и неизбежно расползалась. Теперь и то и другое
читает один каталог; авторитетной является только серверная проверка.
*/

// Catalog — неизменяемая таблица ролей и матрица доступа к модулям.
// Загружается один раз на старте процесса, мутаций нет, локов не требует.
type Catalog struct {
	roles   map[domain.RoleID]domain.Role
	ordered []domain.Role
	modules map[string][]domain.RoleID // nil-значение = публичный модуль
}

// Идентификаторы функциональных модулей.
const (
	ModuleDashboard       = "dashboard"
	ModuleVehicles        = "vehicles"
	ModuleInsurance       = "insurance"
	ModuleDispatch        = "dispatch"
	ModuleIdentity        = "identity"
	ModuleOwners          = "owners"
	ModuleAudits          = "audits"
	ModuleEmailRecipients = "email_recipients"
	ModuleAnalytics       = "analytics"
)

// NewCatalog собирает каталог с ролями и матрицей из исходной системы.
// Уровни иерархии уникальны: 100 > 90 > 70 > 60 > 50 > 40 > 10.
func NewCatalog() *Catalog {
	defs := []domain.Role{
		{ID: domain.RoleSuperAdmin, Label: "Super Admin", Level: 100, Color: "#0F172A", Bg: "#E2E8F0",
			Description: "Unrestricted access to all modules, settings, and user management."},
		{ID: domain.RoleAdmin, Label: "Admin", Level: 90, Color: "#1D4ED8", Bg: "#DBEAFE",
			Description: "Full access to all operational modules. Can manage email recipients and view audit logs."},
		{ID: domain.RoleFleetManager, Label: "Fleet Manager", Level: 70, Color: "#065F46", Bg: "#D1FAE5",
			Description: "Manages the vehicle registry, owner profiles, and identity verification."},
		{ID: domain.RoleDispatcher, Label: "Dispatcher", Level: 60, Color: "#92400E", Bg: "#FEF3C7",
			Description: "Operates the dispatch control system to authorise or deny vehicle movements."},
		{ID: domain.RoleInsuranceAgent, Label: "Insurance Agent", Level: 50, Color: "#6B21A8", Bg: "#F3E8FF",
			Description: "Manages insurance policies, views insurance monitor and identity records."},
		{ID: domain.RoleOwner, Label: "Owner", Level: 40, Color: "#0E7490", Bg: "#CFFAFE",
			Description: "Access to own fleet's Owner Portal and dashboard summary."},
		{ID: domain.RoleViewer, Label: "Viewer", Level: 10, Color: "#374151", Bg: "#F3F4F6",
			Description: "Read-only access to the dashboard only."},
	}

	roles := make(map[domain.RoleID]domain.Role, len(defs))
	for _, r := range defs {
		roles[r.ID] = r
	}

	// nil = публичный модуль (без гейта). Неизвестный модуль — пустой набор,
	// то есть deny-all: fail closed, а не падение.
	modules := map[string][]domain.RoleID{
		ModuleDashboard:       nil,
		ModuleVehicles:        {domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFleetManager},
		ModuleInsurance:       {domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFleetManager, domain.RoleInsuranceAgent},
		ModuleDispatch:        {domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleDispatcher},
		ModuleIdentity:        {domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFleetManager, domain.RoleInsuranceAgent},
		ModuleOwners:          {domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFleetManager, domain.RoleOwner},
		ModuleAudits:          {domain.RoleSuperAdmin, domain.RoleAdmin},
		ModuleEmailRecipients: {domain.RoleSuperAdmin, domain.RoleAdmin},
		ModuleAnalytics: {domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFleetManager,
			domain.RoleDispatcher, domain.RoleInsuranceAgent, domain.RoleOwner, domain.RoleViewer},
	}

	return &Catalog{roles: roles, ordered: defs, modules: modules}
}

// RoleOf возвращает роль по id. Второе значение — false для неизвестного id.
func (c *Catalog) RoleOf(id domain.RoleID) (domain.Role, bool) {
	r, ok := c.roles[id]
	return r, ok
}

// Level возвращает уровень иерархии. Неизвестная роль = 0, ниже любой
// известной — безопасная деградация к минимуму привилегий.
func (c *Catalog) Level(id domain.RoleID) int {
	if r, ok := c.roles[id]; ok {
		return r.Level
	}
	return 0
}

// Roles — весь каталог в порядке убывания привилегий (для GET /v1/roles).
func (c *Catalog) Roles() []domain.Role {
	out := make([]domain.Role, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// AllowedRoles возвращает набор ролей модуля. nil = публичный модуль.
// Неизвестный модуль возвращает пустой (не nil) срез — deny-all.
func (c *Catalog) AllowedRoles(moduleID string) []domain.RoleID {
	allowed, ok := c.modules[moduleID]
	if !ok {
		return []domain.RoleID{}
	}
	if allowed == nil {
		return nil
	}
	out := make([]domain.RoleID, len(allowed))
	copy(out, allowed)
	return out
}

// Modules — список id модулей для матрицы прав.
func (c *Catalog) Modules() []string {
	return []string{
		ModuleDashboard, ModuleVehicles, ModuleInsurance, ModuleDispatch,
		ModuleIdentity, ModuleOwners, ModuleAudits, ModuleEmailRecipients, ModuleAnalytics,
	}
}

// ModuleLabel — человекочитаемое имя модуля для UI.
func ModuleLabel(moduleID string) string {
	switch moduleID {
	case ModuleDashboard:
		return "Dashboard"
	case ModuleVehicles:
		return "Fleet Management"
	case ModuleInsurance:
		return "Insurance Monitor"
	case ModuleDispatch:
		return "Dispatch Control"
	case ModuleIdentity:
		return "Identity Management"
	case ModuleOwners:
		return "Owner Portal"
	case ModuleAudits:
		return "Audit Log"
	case ModuleEmailRecipients:
		return "Email Config"
	case ModuleAnalytics:
		return "Analytics"
	}
	return moduleID
}
