package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/domain"
	"github.com/xela07ax/trufleet-authz/internal/infra"
	"github.com/xela07ax/trufleet-authz/internal/verify"
	"go.uber.org/zap"
)

type memAppender struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memAppender) Append(e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memAppender) last(t *testing.T) audit.Entry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatalf("expected an audit entry")
	}
	return m.entries[len(m.entries)-1]
}

type memLog struct {
	counts  map[string]int64
	entries []audit.Entry
	err     error
}

func (m *memLog) CountByActionSince(ctx context.Context, action string, since time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[action], nil
}

func (m *memLog) FetchEntries(ctx context.Context, actions []string, entityID string, limit int) ([]audit.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

type stubSource struct {
	vehicle *domain.VehicleSnapshot
}

func (s *stubSource) VehicleByID(ctx context.Context, id string) (*domain.VehicleSnapshot, error) {
	return s.vehicle, nil
}

func (s *stubSource) CurrentOwnership(ctx context.Context, vehicleID string) (*domain.OwnershipRecord, *domain.OwnerProfile, error) {
	return nil, nil, nil
}

func (s *stubSource) ActivePolicy(ctx context.Context, vehicleID string) (*domain.InsurancePolicy, error) {
	return nil, nil
}

type stubReserver struct {
	seq int64
	err error
}

func (s *stubReserver) Reserve(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.seq++
	return s.seq, nil
}

func newDispatchFixture(vehicle *domain.VehicleSnapshot) (*DispatchService, *memAppender, *memLog) {
	logger := zap.NewNop()
	trail := &memAppender{}
	log := &memLog{counts: map[string]int64{}}
	chain := verify.NewDispatchChain(&stubSource{vehicle: vehicle}, logger)
	seq := verify.NewSequenceGenerator(&stubReserver{}, log, "AUTH", audit.ActionDispatchAuthorized, logger)
	metrics := infra.NewMetrics(prometheus.NewRegistry())
	return NewDispatchService(chain, seq, trail, log, metrics, logger), trail, log
}

func insuredVehicle() *domain.VehicleSnapshot {
	until := time.Now().UTC().AddDate(0, 3, 0)
	return &domain.VehicleSnapshot{
		ID: "KBX-001", Make: "Scania", Status: "active", Usage: "commercial",
		InsuranceExpiry: &until,
	}
}

func TestDispatchServiceAttachesCodeAndAudits(t *testing.T) {
	svc, trail, _ := newDispatchFixture(insuredVehicle())

	res, err := svc.Authorize(context.Background(), " KBX-001 ", "ops@trufleet.io")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s (%s)", res.Verdict, res.Reason)
	}

	wantCode := fmt.Sprintf("AUTH-%d-000001", time.Now().UTC().Year())
	if res.Code != wantCode {
		t.Fatalf("expected code %s, got %s", wantCode, res.Code)
	}

	e := trail.last(t)
	if e.Action != audit.ActionDispatchAuthorized {
		t.Fatalf("unexpected audit action: %s", e.Action)
	}
	if e.Severity != "low" || e.Actor != "ops@trufleet.io" || e.EntityID != "KBX-001" {
		t.Fatalf("unexpected audit entry: %+v", e)
	}
	if e.Details["code"] != res.Code {
		t.Fatalf("audit details must carry the issued code")
	}
}

func TestDispatchServiceDenialAuditsWithoutCode(t *testing.T) {
	svc, trail, _ := newDispatchFixture(nil) // ТС нет в реестре

	res, err := svc.Authorize(context.Background(), "GHOST-1", "")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if res.Code != "" {
		t.Fatalf("denied decision must not carry a code")
	}

	e := trail.last(t)
	if e.Action != audit.ActionDispatchDenied || e.Severity != "high" {
		t.Fatalf("unexpected audit entry: %+v", e)
	}
	if e.Actor != "Dispatch System" {
		t.Fatalf("anonymous actor must default to Dispatch System, got %s", e.Actor)
	}
	if e.Detail != res.Reason {
		t.Fatalf("audit detail must carry the denial reason")
	}
}

func TestDispatchServiceValidation(t *testing.T) {
	svc, trail, _ := newDispatchFixture(insuredVehicle())

	_, err := svc.Authorize(context.Background(), "   ", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(trail.entries) != 0 {
		t.Fatalf("validation failures must not reach the audit trail")
	}
}

func TestDispatchServiceTodayStats(t *testing.T) {
	svc, _, log := newDispatchFixture(insuredVehicle())
	log.counts[audit.ActionDispatchAuthorized] = 12
	log.counts[audit.ActionDispatchDenied] = 3

	stats, err := svc.TodayStats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Authorized != 12 || stats.Denied != 3 || stats.Total != 15 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDispatchServiceStatsUpstreamError(t *testing.T) {
	svc, _, log := newDispatchFixture(insuredVehicle())
	log.err = errors.New("connection refused")

	_, err := svc.TodayStats(context.Background())
	if !domain.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
