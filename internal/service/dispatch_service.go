package service

/*
Файл dispatch_service.go — оркестрация диспетчерской авторизации:
прогон узкой цепочки, выдача авторизационного кода на AUTHORIZED и
fire-and-forget запись решения в журнал аудита. Сбой журнала или
генератора кодов никогда не меняет уже принятый вердикт.
*/

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/domain"
	"github.com/xela07ax/trufleet-authz/internal/infra"
	"github.com/xela07ax/trufleet-authz/internal/verify"
	"go.uber.org/zap"
)

// DecisionLog — чтение журнала решений и суточные счетчики для статистики.
type DecisionLog interface {
	CountByActionSince(ctx context.Context, action string, since time.Time) (int64, error)
	FetchEntries(ctx context.Context, actions []string, entityID string, limit int) ([]audit.Entry, error)
}

// DispatchStats — суточная сводка диспетчерских решений (UTC-сутки).
type DispatchStats struct {
	Date       string `json:"date"`
	Authorized int64  `json:"authorized"`
	Denied     int64  `json:"denied"`
	Total      int64  `json:"total"`
}

type DispatchService struct {
	chain   *verify.DispatchChain
	seq     *verify.SequenceGenerator
	trail   audit.Appender
	log     DecisionLog
	metrics *infra.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

func NewDispatchService(chain *verify.DispatchChain, seq *verify.SequenceGenerator,
	trail audit.Appender, log DecisionLog, metrics *infra.Metrics, logger *zap.Logger) *DispatchService {
	return &DispatchService{
		chain:   chain,
		seq:     seq,
		trail:   trail,
		log:     log,
		metrics: metrics,
		now:     time.Now,
		logger:  logger.Named("dispatch-svc"),
	}
}

// Authorize принимает решение по запросу на диспетчеризацию ТС.
// Ошибка наружу — только валидация входа или сбой хранилища.
func (s *DispatchService) Authorize(ctx context.Context, regNumber, actor string) (verify.DispatchResult, error) {
	reg := strings.TrimSpace(regNumber)
	if reg == "" {
		return verify.DispatchResult{}, fmt.Errorf("%w: registration number is required", domain.ErrValidation)
	}

	started := s.now()
	res, err := s.chain.Authorize(ctx, reg)
	if err != nil {
		return verify.DispatchResult{}, err
	}
	s.metrics.DecisionDuration.WithLabelValues("dispatch").Observe(time.Since(started).Seconds())

	// Код выдается только на AUTHORIZED. Если и Redis, и деградационный
	// счетчик недоступны — вердикт сохраняем, ответ уходит без кода.
	if res.Verdict == domain.VerdictAuthorized {
		code, cErr := s.seq.Next(ctx)
		if cErr != nil {
			s.logger.Error("sequence code issue failed", zap.String("vehicle", reg), zap.Error(cErr))
		} else {
			res.Code = code
		}
	}

	s.metrics.Decisions.WithLabelValues("dispatch", string(res.Verdict)).Inc()
	s.trail.Append(s.entryFor(reg, res, actor))

	s.logger.Info("dispatch decision",
		zap.String("vehicle", reg),
		zap.String("verdict", string(res.Verdict)),
		zap.String("code", res.Code),
	)
	return res, nil
}

// TodayStats — счетчики решений за текущие UTC-сутки из журнала аудита.
func (s *DispatchService) TodayStats(ctx context.Context) (DispatchStats, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	authorized, err := s.log.CountByActionSince(ctx, audit.ActionDispatchAuthorized, midnight)
	if err != nil {
		return DispatchStats{}, domain.Upstream("dispatch stats", err)
	}
	denied, err := s.log.CountByActionSince(ctx, audit.ActionDispatchDenied, midnight)
	if err != nil {
		return DispatchStats{}, domain.Upstream("dispatch stats", err)
	}

	return DispatchStats{
		Date:       now.Format("2006-01-02"),
		Authorized: authorized,
		Denied:     denied,
		Total:      authorized + denied,
	}, nil
}

// RecentLogs — последние диспетчерские решения из журнала, свежие первыми.
func (s *DispatchService) RecentLogs(ctx context.Context, vehicleID string, limit int) ([]audit.Entry, error) {
	entries, err := s.log.FetchEntries(ctx,
		[]string{audit.ActionDispatchAuthorized, audit.ActionDispatchDenied},
		strings.TrimSpace(vehicleID), limit)
	if err != nil {
		return nil, domain.Upstream("dispatch logs", err)
	}
	return entries, nil
}

func (s *DispatchService) entryFor(reg string, res verify.DispatchResult, actor string) audit.Entry {
	if actor == "" {
		actor = "Dispatch System"
	}

	e := audit.Entry{
		ID:        uuid.NewString(),
		EntityID:  reg,
		Status:    string(res.Verdict),
		Actor:     actor,
		Module:    "Dispatch",
		Timestamp: res.Timestamp,
		Details: map[string]interface{}{
			"checks": res.Checks,
		},
	}

	if res.Verdict == domain.VerdictAuthorized {
		e.Action = audit.ActionDispatchAuthorized
		e.Severity = "low"
		e.Description = fmt.Sprintf("Dispatch authorized for %s", reg)
		e.Detail = res.Code
		e.Details["code"] = res.Code
	} else {
		e.Action = audit.ActionDispatchDenied
		e.Severity = "high"
		e.Description = fmt.Sprintf("Dispatch denied for %s", reg)
		e.Detail = res.Reason
		e.Details["reason"] = res.Reason
	}
	return e
}
