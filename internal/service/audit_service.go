package service

import (
	"context"
	"strings"

	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

// AuditService — чтение журнала решений (только admin-набор ролей).
// Запись идет мимо него, через fire-and-forget Trail.
type AuditService struct {
	log DecisionLog
}

func NewAuditService(log DecisionLog) *AuditService {
	return &AuditService{log: log}
}

// Entries возвращает записи журнала, свежие первыми. Фильтры опциональны:
// action пустой = любые действия, entityID пустой = любые сущности.
func (s *AuditService) Entries(ctx context.Context, action, entityID string, limit int) ([]audit.Entry, error) {
	var actions []string
	if a := strings.TrimSpace(action); a != "" {
		actions = []string{a}
	}

	entries, err := s.log.FetchEntries(ctx, actions, strings.TrimSpace(entityID), limit)
	if err != nil {
		return nil, domain.Upstream("audit fetch", err)
	}
	return entries, nil
}
