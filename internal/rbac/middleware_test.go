package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	roles map[string]string
	err   error
}

func (f *fakeDirectory) StoredRole(ctx context.Context, email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.roles[email], nil
}

func newTestGuard(dir RoleDirectory) *Guard {
	catalog := NewCatalog()
	return NewGuard(NewResolver(catalog), NewGate(catalog), dir, zap.NewNop())
}

func runGuarded(t *testing.T, guard *Guard, moduleID string, mutate func(*http.Request)) (*httptest.ResponseRecorder, domain.RoleID) {
	t.Helper()

	var effective domain.RoleID
	h := guard.RequireModule(moduleID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		effective = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	mutate(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, effective
}

func TestGuardAllowsRoleFromHeader(t *testing.T) {
	guard := newTestGuard(&fakeDirectory{})

	rec, role := runGuarded(t, guard, ModuleDispatch, func(r *http.Request) {
		r.Header.Set(HeaderRole, "dispatcher")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if role != domain.RoleDispatcher {
		t.Fatalf("expected dispatcher in context, got %s", role)
	}
}

func TestGuardDeniesWithRequiredSet(t *testing.T) {
	guard := newTestGuard(&fakeDirectory{})

	rec, _ := runGuarded(t, guard, ModuleDispatch, func(r *http.Request) {
		r.Header.Set(HeaderRole, "owner")
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	var body struct {
		Error    string   `json:"error"`
		Required []string `json:"required"`
		Current  string   `json:"current"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("bad denial body: %v", err)
	}
	if body.Error != "Insufficient permissions" {
		t.Fatalf("unexpected error text: %s", body.Error)
	}
	if len(body.Required) == 0 || body.Current != "owner" {
		t.Fatalf("denial must name required set and current role: %+v", body)
	}
}

func TestGuardAppliesStoredRoleCeiling(t *testing.T) {
	guard := newTestGuard(&fakeDirectory{
		roles: map[string]string{"bob@trufleet.io": "viewer"},
	})

	// Claim admin, но в users записан viewer — в dispatch нельзя
	rec, _ := runGuarded(t, guard, ModuleDispatch, func(r *http.Request) {
		r.Header.Set(HeaderRole, "admin")
		r.Header.Set(HeaderEmail, "bob@trufleet.io")
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("escalation must be capped, got %d", rec.Code)
	}
}

func TestGuardDirectoryFailureFallsBackToClaim(t *testing.T) {
	guard := newTestGuard(&fakeDirectory{err: errors.New("redis and postgres down")})

	rec, role := runGuarded(t, guard, ModuleDispatch, func(r *http.Request) {
		r.Header.Set(HeaderRole, "dispatcher")
		r.Header.Set(HeaderEmail, "bob@trufleet.io")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("directory outage must not block valid claims, got %d", rec.Code)
	}
	if role != domain.RoleDispatcher {
		t.Fatalf("expected claimed role, got %s", role)
	}
}

func TestGuardQueryParamClaim(t *testing.T) {
	guard := newTestGuard(&fakeDirectory{})

	rec, role := runGuarded(t, guard, ModuleIdentity, func(r *http.Request) {
		q := r.URL.Query()
		q.Set("role", "Fleet Manager")
		r.URL.RawQuery = q.Encode()
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if role != domain.RoleFleetManager {
		t.Fatalf("expected fleet_manager from query claim, got %s", role)
	}
}

func TestGuardNoClaimDefaultsToViewer(t *testing.T) {
	guard := newTestGuard(&fakeDirectory{})

	rec, _ := runGuarded(t, guard, ModuleDispatch, func(r *http.Request) {})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous request must resolve to viewer and be denied, got %d", rec.Code)
	}
}
