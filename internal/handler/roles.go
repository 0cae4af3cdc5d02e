package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"github.com/xela07ax/trufleet-authz/internal/rbac"
	"github.com/xela07ax/trufleet-authz/internal/service"
	"go.uber.org/zap"
)

// RolesHandler — каталог ролей, матрица прав, проверка и назначение.
type RolesHandler struct {
	svc    *service.RoleService
	logger *zap.Logger
}

func NewRolesHandler(svc *service.RoleService, logger *zap.Logger) *RolesHandler {
	return &RolesHandler{svc: svc, logger: logger.Named("roles-http")}
}

// List — GET /v1/roles
func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"roles": h.svc.Catalog()})
}

// Matrix — GET /v1/roles/matrix
func (h *RolesHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Matrix())
}

// Check — GET /v1/roles/check?email=...&role=...&module=...
func (h *RolesHandler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	check, err := h.svc.Check(r.Context(), q.Get("email"), q.Get("role"), q.Get("module"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

type assignRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Assign — POST /v1/roles/assign (только admin-набор, гейт в роутере).
func (h *RolesHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrValidation))
		return
	}

	actor := rbac.EmailFromContext(r.Context())
	user, err := h.svc.Assign(r.Context(), req.UserID, req.Role, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
