package service

/*
Файл identity_service.go — оркестрация полной identity-цепочки:
прогон семи шагов, выдача кода на AUTHORIZED, запись решения в журнал,
а также сводная identity-карточка ТС и статистика для мониторинга.
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

// IdentitySource — чтение данных для карточки и статистики. Карточка ходит
// в хранилище напрямую (без цепочки): ей нужна история, а не вердикт.
type IdentitySource interface {
	verify.SnapshotSource
	OwnershipHistory(ctx context.Context, vehicleID string) ([]domain.OwnershipRecord, error)
	PolicyHistory(ctx context.Context, vehicleID string) ([]domain.InsurancePolicy, error)
	VehicleStatusCounts(ctx context.Context) (total, blocked int64, err error)
	OwnerKYCCounts(ctx context.Context) (active, verified, pendingKYC int64, err error)
	ActivePolicyExpiryCounts(ctx context.Context, now time.Time, warnWindow int) (active, expired, expiring int64, err error)
}

// IdentityCard — сводная карточка ТС: снапшот, текущее владение, полис
// с оценкой риска и полные истории. Вердикта не содержит.
type IdentityCard struct {
	Vehicle   *domain.VehicleSnapshot  `json:"vehicle"`
	Ownership *domain.OwnershipRecord  `json:"ownership,omitempty"`
	Owner     *domain.OwnerProfile     `json:"owner,omitempty"`
	Policy    *domain.InsurancePolicy  `json:"policy,omitempty"`
	RiskLevel string                   `json:"risk_level"`
	History   IdentityCardHistory      `json:"history"`
}

type IdentityCardHistory struct {
	Ownership []domain.OwnershipRecord `json:"ownership"`
	Policies  []domain.InsurancePolicy `json:"policies"`
}

// IdentityStatsReport — агрегаты для identity-мониторинга.
type IdentityStatsReport struct {
	Vehicles struct {
		Total   int64 `json:"total"`
		Blocked int64 `json:"blocked"`
	} `json:"vehicles"`
	Owners struct {
		Active     int64 `json:"active"`
		Verified   int64 `json:"verified"`
		PendingKYC int64 `json:"pending_kyc"`
	} `json:"owners"`
	Insurance struct {
		Active       int64 `json:"active"`
		Expired      int64 `json:"expired"`
		ExpiringSoon int64 `json:"expiring_soon"`
		HealthPct    int   `json:"health_pct"`
	} `json:"insurance"`
	Today struct {
		Authorized int64 `json:"authorized"`
		Denied     int64 `json:"denied"`
	} `json:"today"`
}

type IdentityService struct {
	chain    *verify.Chain
	seq      *verify.SequenceGenerator
	source   IdentitySource
	trail    audit.Appender
	log      DecisionLog
	metrics  *infra.Metrics
	warnDays int
	now      func() time.Time
	logger   *zap.Logger
}

func NewIdentityService(chain *verify.Chain, seq *verify.SequenceGenerator, source IdentitySource,
	trail audit.Appender, log DecisionLog, metrics *infra.Metrics, warnDays int, logger *zap.Logger) *IdentityService {
	if warnDays <= 0 {
		warnDays = 7
	}
	return &IdentityService{
		chain:    chain,
		seq:      seq,
		source:   source,
		trail:    trail,
		log:      log,
		metrics:  metrics,
		warnDays: warnDays,
		now:      time.Now,
		logger:   logger.Named("identity-svc"),
	}
}

// Verify прогоняет полную цепочку и фиксирует решение в журнале.
func (s *IdentityService) Verify(ctx context.Context, vehicleID, actor string) (domain.VerificationResult, error) {
	id := strings.TrimSpace(vehicleID)
	if id == "" {
		return domain.VerificationResult{}, fmt.Errorf("%w: vehicle id is required", domain.ErrValidation)
	}

	started := s.now()
	res, err := s.chain.Verify(ctx, id)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	s.metrics.DecisionDuration.WithLabelValues("identity").Observe(time.Since(started).Seconds())

	for _, step := range res.Steps {
		if step.Status == domain.StepFail {
			s.metrics.StepFailures.WithLabelValues(step.Step).Inc()
		}
	}

	if res.Verdict == domain.VerdictAuthorized {
		code, cErr := s.seq.Next(ctx)
		if cErr != nil {
			s.logger.Error("sequence code issue failed", zap.String("vehicle", id), zap.Error(cErr))
		} else {
			res.SequenceCode = code
		}
	}

	s.metrics.Decisions.WithLabelValues("identity", string(res.Verdict)).Inc()
	s.trail.Append(s.entryFor(id, res, actor))

	s.logger.Info("identity decision",
		zap.String("vehicle", id),
		zap.String("verdict", string(res.Verdict)),
		zap.String("reason", res.DenialReason),
	)
	return res, nil
}

// Card собирает identity-карточку ТС. ErrNotFound — ТС нет в реестрах.
func (s *IdentityService) Card(ctx context.Context, vehicleID string) (*IdentityCard, error) {
	id := strings.TrimSpace(vehicleID)
	if id == "" {
		return nil, fmt.Errorf("%w: vehicle id is required", domain.ErrValidation)
	}

	vehicle, err := s.source.VehicleByID(ctx, id)
	if err != nil {
		return nil, domain.Upstream("vehicle lookup", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("%w: vehicle %q", domain.ErrNotFound, id)
	}

	card := &IdentityCard{Vehicle: vehicle}

	card.Ownership, card.Owner, err = s.source.CurrentOwnership(ctx, vehicle.ID)
	if err != nil {
		return nil, domain.Upstream("ownership lookup", err)
	}

	card.Policy, err = s.source.ActivePolicy(ctx, vehicle.ID)
	if err != nil {
		return nil, domain.Upstream("policy lookup", err)
	}
	if card.Policy != nil && card.Policy.ValidUntil != nil {
		days := verify.DaysUntil(s.now(), *card.Policy.ValidUntil)
		card.Policy.DaysRemaining = &days
	}
	card.RiskLevel = s.riskLevel(vehicle, card.Policy)

	card.History.Ownership, err = s.source.OwnershipHistory(ctx, vehicle.ID)
	if err != nil {
		return nil, domain.Upstream("ownership history", err)
	}
	card.History.Policies, err = s.source.PolicyHistory(ctx, vehicle.ID)
	if err != nil {
		return nil, domain.Upstream("policy history", err)
	}

	return card, nil
}

// Stats — агрегаты по реестрам плюс решения за текущие UTC-сутки.
func (s *IdentityService) Stats(ctx context.Context) (IdentityStatsReport, error) {
	var report IdentityStatsReport
	now := s.now().UTC()

	total, blocked, err := s.source.VehicleStatusCounts(ctx)
	if err != nil {
		return report, domain.Upstream("vehicle stats", err)
	}
	report.Vehicles.Total, report.Vehicles.Blocked = total, blocked

	active, verified, pendingKYC, err := s.source.OwnerKYCCounts(ctx)
	if err != nil {
		return report, domain.Upstream("owner stats", err)
	}
	report.Owners.Active, report.Owners.Verified, report.Owners.PendingKYC = active, verified, pendingKYC

	pActive, pExpired, pExpiring, err := s.source.ActivePolicyExpiryCounts(ctx, now, s.warnDays)
	if err != nil {
		return report, domain.Upstream("policy stats", err)
	}
	report.Insurance.Active = pActive
	report.Insurance.Expired = pExpired
	report.Insurance.ExpiringSoon = pExpiring
	if pActive > 0 {
		report.Insurance.HealthPct = int((pActive - pExpired) * 100 / pActive)
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	report.Today.Authorized, err = s.log.CountByActionSince(ctx, audit.ActionIdentityAuthorized, midnight)
	if err != nil {
		return report, domain.Upstream("identity stats", err)
	}
	report.Today.Denied, err = s.log.CountByActionSince(ctx, audit.ActionIdentityDenied, midnight)
	if err != nil {
		return report, domain.Upstream("identity stats", err)
	}

	return report, nil
}

// riskLevel — грубая оценка риска для карточки: блокировка и просроченная
// страховка критичны, скорое истечение — high, отсутствие полиса — medium.
func (s *IdentityService) riskLevel(vehicle *domain.VehicleSnapshot, policy *domain.InsurancePolicy) string {
	if vehicle.NormStatus() == domain.VehicleBlocked {
		return "critical"
	}
	if policy == nil || policy.ValidUntil == nil {
		return "medium"
	}
	days := verify.DaysUntil(s.now(), *policy.ValidUntil)
	switch {
	case days < 0:
		return "critical"
	case days <= s.warnDays:
		return "high"
	}
	return "low"
}

func (s *IdentityService) entryFor(id string, res domain.VerificationResult, actor string) audit.Entry {
	if actor == "" {
		actor = "Identity Service"
	}

	e := audit.Entry{
		ID:        uuid.NewString(),
		EntityID:  id,
		Actor:     actor,
		Module:    "IDENTITY",
		Timestamp: s.now(),
		Details: map[string]interface{}{
			"checks": res.Steps,
		},
	}

	if res.Verdict == domain.VerdictAuthorized {
		e.Action = audit.ActionIdentityAuthorized
		e.Status = "SUCCESS"
		e.Severity = "low"
		e.Description = fmt.Sprintf("Identity verification passed for %s", id)
		e.Detail = "All checks passed"
		if res.SequenceCode != "" {
			e.Details["code"] = res.SequenceCode
		}
	} else {
		e.Action = audit.ActionIdentityDenied
		e.Status = "FAILURE"
		e.Severity = "high"
		e.Description = fmt.Sprintf("Identity verification failed for %s", id)
		e.Detail = res.DenialReason
		e.Details["reason"] = res.DenialReason
	}
	return e
}
