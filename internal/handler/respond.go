package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"go.uber.org/zap"
)

// writeJSON сериализует ответ. Ошибку кодирования чинить поздно — заголовки
// уже ушли, поэтому она только логируется вызывающим через middleware.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError отображает таксономию ошибок движка в HTTP-статусы:
// валидация → 400, нет записи → 404, сбой хранилища → 500.
// Текст апстрим-ошибки наружу не уходит — клиенту незачем видеть
// детали инфраструктуры, они остаются в логах.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case domain.IsUpstream(err):
		logger.Error("upstream failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Data source unavailable"})
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
