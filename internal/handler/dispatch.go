package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/domain"
	"github.com/xela07ax/trufleet-authz/internal/rbac"
	"github.com/xela07ax/trufleet-authz/internal/service"
	"go.uber.org/zap"
)

// DispatchHandler — диспетчерская авторизация и ее статистика.
type DispatchHandler struct {
	svc    *service.DispatchService
	logger *zap.Logger
}

func NewDispatchHandler(svc *service.DispatchService, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{svc: svc, logger: logger.Named("dispatch-http")}
}

type dispatchRequest struct {
	RegNumber string `json:"reg_number"`

	// Историческое имя поля, его до сих пор шлют старые клиенты
	RegistrationNumber string `json:"registration_number,omitempty"`
}

func (r dispatchRequest) regNumber() string {
	if r.RegNumber != "" {
		return r.RegNumber
	}
	return r.RegistrationNumber
}

// Authorize — POST /v1/dispatch/authorize.
// DENIED — это штатный ответ 200 с вердиктом, а не HTTP-ошибка:
// ошибками остаются только валидация входа и сбой хранилища.
func (h *DispatchHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrValidation))
		return
	}

	actor := rbac.EmailFromContext(r.Context())
	res, err := h.svc.Authorize(r.Context(), req.regNumber(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats — GET /v1/dispatch/stats
func (h *DispatchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.TodayStats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Logs — GET /v1/dispatch/logs?vehicle_id=...&limit=...
func (h *DispatchHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.svc.RecentLogs(r.Context(), r.URL.Query().Get("vehicle_id"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}
