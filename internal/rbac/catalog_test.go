package rbac

import (
	"testing"

	"github.com/xela07ax/trufleet-authz/internal/domain"
)

func TestCatalogLevelsAreUniqueAndOrdered(t *testing.T) {
	catalog := NewCatalog()
	roles := catalog.Roles()

	if len(roles) != 7 {
		t.Fatalf("expected 7 roles, got %d", len(roles))
	}

	seen := make(map[int]domain.RoleID)
	prev := 1 << 30
	for _, r := range roles {
		if other, dup := seen[r.Level]; dup {
			t.Fatalf("level %d shared by %s and %s", r.Level, other, r.ID)
		}
		seen[r.Level] = r.ID
		if r.Level >= prev {
			t.Fatalf("catalog must be ordered by descending level, %s breaks it", r.ID)
		}
		prev = r.Level
	}

	if roles[0].ID != domain.RoleSuperAdmin || roles[len(roles)-1].ID != domain.RoleViewer {
		t.Fatalf("expected super_admin first and viewer last")
	}
}

func TestCatalogUnknownRoleLevelIsZero(t *testing.T) {
	catalog := NewCatalog()
	if lvl := catalog.Level("warlord"); lvl != 0 {
		t.Fatalf("unknown role must map to level 0, got %d", lvl)
	}
	if lvl := catalog.Level(domain.RoleViewer); lvl != 10 {
		t.Fatalf("viewer level: expected 10, got %d", lvl)
	}
}

func TestCatalogDashboardIsPublic(t *testing.T) {
	catalog := NewCatalog()
	if allowed := catalog.AllowedRoles(ModuleDashboard); allowed != nil {
		t.Fatalf("dashboard must be public (nil set), got %v", allowed)
	}
}

func TestCatalogUnknownModuleFailsClosed(t *testing.T) {
	catalog := NewCatalog()
	allowed := catalog.AllowedRoles("nuclear_launch")
	if allowed == nil {
		t.Fatalf("unknown module must not be public")
	}
	if len(allowed) != 0 {
		t.Fatalf("unknown module must be deny-all, got %v", allowed)
	}

	gate := NewGate(catalog)
	if gate.Check(domain.RoleSuperAdmin, "nuclear_launch").Allowed {
		t.Fatalf("even super_admin must be denied on unknown module")
	}
}

func TestCatalogAllowedRolesReturnsCopy(t *testing.T) {
	catalog := NewCatalog()
	first := catalog.AllowedRoles(ModuleDispatch)
	first[0] = "mutated"

	second := catalog.AllowedRoles(ModuleDispatch)
	if second[0] == "mutated" {
		t.Fatalf("caller mutation must not leak into the catalog")
	}
}
