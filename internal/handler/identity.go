package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/trufleet-authz/internal/domain"
	"github.com/xela07ax/trufleet-authz/internal/rbac"
	"github.com/xela07ax/trufleet-authz/internal/service"
	"go.uber.org/zap"
)

// IdentityHandler — полная identity-цепочка, карточка ТС и статистика.
type IdentityHandler struct {
	svc    *service.IdentityService
	logger *zap.Logger
}

func NewIdentityHandler(svc *service.IdentityService, logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{svc: svc, logger: logger.Named("identity-http")}
}

type verifyRequest struct {
	VehicleID string `json:"vehicle_id"`
}

// Verify — POST /v1/identity/verify. Как и у диспетчеризации, DENIED — это
// вердикт в теле 200, HTTP-ошибки зарезервированы за валидацией и апстримом.
func (h *IdentityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrValidation))
		return
	}

	actor := rbac.EmailFromContext(r.Context())
	res, err := h.svc.Verify(r.Context(), req.VehicleID, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Card — GET /v1/identity/{vehicleID}
func (h *IdentityHandler) Card(w http.ResponseWriter, r *http.Request) {
	card, err := h.svc.Card(r.Context(), chi.URLParam(r, "vehicleID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Stats — GET /v1/identity/stats
func (h *IdentityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
