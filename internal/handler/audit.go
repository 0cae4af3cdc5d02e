package handler

import (
	"net/http"
	"strconv"

	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/service"
	"go.uber.org/zap"
)

// AuditHandler — чтение журнала решений (admin-набор, гейт в роутере).
type AuditHandler struct {
	svc    *service.AuditService
	logger *zap.Logger
}

func NewAuditHandler(svc *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, logger: logger.Named("audit-http")}
}

// Entries — GET /v1/audit?action=...&entity_id=...&limit=...
func (h *AuditHandler) Entries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := h.svc.Entries(r.Context(), q.Get("action"), q.Get("entity_id"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
