package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/domain"
	"github.com/xela07ax/trufleet-authz/internal/rbac"
	"github.com/xela07ax/trufleet-authz/internal/service"
	"go.uber.org/zap"
)

type stubUsers struct {
	users map[string]*domain.StoredUser
}

func (s *stubUsers) UserByEmail(ctx context.Context, email string) (*domain.StoredUser, error) {
	return s.users[email], nil
}

func (s *stubUsers) AssignRole(ctx context.Context, userID, role string) (*domain.StoredUser, error) {
	return nil, nil
}

type nopAppender struct{}

func (nopAppender) Append(audit.Entry) {}

func newRolesFixture(users map[string]*domain.StoredUser) *RolesHandler {
	catalog := rbac.NewCatalog()
	svc := service.NewRoleService(catalog, rbac.NewResolver(catalog), rbac.NewGate(catalog),
		&stubUsers{users: users}, nopAppender{}, nil, zap.NewNop())
	return NewRolesHandler(svc, zap.NewNop())
}

func TestRolesCheckSingleModuleContract(t *testing.T) {
	h := newRolesFixture(map[string]*domain.StoredUser{
		"bob@trufleet.io": {ID: "u1", Email: "bob@trufleet.io", Role: "viewer"},
	})

	req := httptest.NewRequest(http.MethodGet,
		"/v1/roles/check?email=bob@trufleet.io&role=admin&module=dispatch", nil)
	rec := httptest.NewRecorder()
	h.Check(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Email    string   `json:"email"`
		Module   string   `json:"module"`
		Role     string   `json:"role"`
		Allowed  bool     `json:"allowed"`
		Required []string `json:"required"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Module != "dispatch" || body.Email != "bob@trufleet.io" {
		t.Fatalf("response must echo email and module: %+v", body)
	}
	if body.Role != "viewer" {
		t.Fatalf("stored viewer must cap the claimed admin, got %s", body.Role)
	}
	if body.Allowed {
		t.Fatalf("viewer must not be allowed into dispatch")
	}
	if len(body.Required) == 0 {
		t.Fatalf("denial must name the required roles")
	}
}

func TestRolesCheckMissingModuleIsBadRequest(t *testing.T) {
	h := newRolesFixture(map[string]*domain.StoredUser{
		"bob@trufleet.io": {ID: "u1", Email: "bob@trufleet.io", Role: "admin"},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/roles/check?email=bob@trufleet.io", nil)
	rec := httptest.NewRecorder()
	h.Check(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing module must be 400, got %d", rec.Code)
	}
}

func TestRolesCheckUnknownUserIsNotFound(t *testing.T) {
	h := newRolesFixture(map[string]*domain.StoredUser{})

	req := httptest.NewRequest(http.MethodGet,
		"/v1/roles/check?email=ghost@trufleet.io&module=dispatch", nil)
	rec := httptest.NewRecorder()
	h.Check(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user must be 404, got %d", rec.Code)
	}
}
