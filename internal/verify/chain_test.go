package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"go.uber.org/zap"
)

// fakeSource — снапшоты из памяти вместо PostgreSQL.
type fakeSource struct {
	vehicle *domain.VehicleSnapshot
	rec     *domain.OwnershipRecord
	owner   *domain.OwnerProfile
	policy  *domain.InsurancePolicy

	vehicleErr error
	policyErr  error
}

func (f *fakeSource) VehicleByID(ctx context.Context, id string) (*domain.VehicleSnapshot, error) {
	return f.vehicle, f.vehicleErr
}

func (f *fakeSource) CurrentOwnership(ctx context.Context, vehicleID string) (*domain.OwnershipRecord, *domain.OwnerProfile, error) {
	return f.rec, f.owner, nil
}

func (f *fakeSource) ActivePolicy(ctx context.Context, vehicleID string) (*domain.InsurancePolicy, error) {
	return f.policy, f.policyErr
}

var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func healthySource() *fakeSource {
	until := testNow.AddDate(0, 6, 0)
	return &fakeSource{
		vehicle: &domain.VehicleSnapshot{
			ID: "KBX-001", Make: "Volvo", Type: "Truck", Status: "active", Usage: "commercial",
		},
		rec:   &domain.OwnershipRecord{VehicleID: "KBX-001", OwnerID: "o1", OwnershipType: "company", IsCurrent: true},
		owner: &domain.OwnerProfile{ID: "o1", Name: "Acme Logistics", Active: true, KYCStatus: domain.KYCVerified},
		policy: &domain.InsurancePolicy{
			VehicleID: "KBX-001", Provider: "AXA", PolicyNumber: "P-100",
			Status: domain.PolicyActive, ValidUntil: &until,
		},
	}
}

func newTestChain(src SnapshotSource) *Chain {
	c := NewChain(src, 7, zap.NewNop())
	c.now = func() time.Time { return testNow }
	return c
}

func stepByName(t *testing.T, res domain.VerificationResult, name string) domain.VerificationStep {
	t.Helper()
	for _, s := range res.Steps {
		if s.Step == name {
			return s
		}
	}
	t.Fatalf("step %s not found in trace", name)
	return domain.VerificationStep{}
}

func TestChainAllChecksPass(t *testing.T) {
	res, err := newTestChain(healthySource()).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s (%s)", res.Verdict, res.DenialReason)
	}
	if len(res.Steps) != 7 {
		t.Fatalf("expected 7 steps, got %d", len(res.Steps))
	}
	for _, s := range res.Steps {
		if s.Status != domain.StepPass {
			t.Fatalf("step %s: expected PASS, got %s", s.Step, s.Status)
		}
	}
	if res.Policy == nil || res.Policy.DaysRemaining == nil {
		t.Fatalf("expected policy with days remaining")
	}
	if res.Policy.Source != "insurance_policies" {
		t.Fatalf("expected policy source insurance_policies, got %s", res.Policy.Source)
	}
}

func TestChainVehicleNotFoundSkipsRemaining(t *testing.T) {
	res, err := newTestChain(&fakeSource{}).Verify(context.Background(), "GHOST-1")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if !strings.Contains(res.DenialReason, "not found in registry") {
		t.Fatalf("unexpected reason: %s", res.DenialReason)
	}
	if len(res.Steps) != 7 {
		t.Fatalf("expected full 7-step trace, got %d", len(res.Steps))
	}
	for _, s := range res.Steps[1:] {
		if s.Status != domain.StepSkip {
			t.Fatalf("step %s: expected SKIP, got %s", s.Step, s.Status)
		}
	}
}

func TestChainFirstFailWins(t *testing.T) {
	// Блокировка + просроченная страховка: две FAIL-строки в трассе,
	// но причиной отказа остается первая.
	src := healthySource()
	src.vehicle.Status = "Blocked"
	expired := testNow.AddDate(0, 0, -10)
	src.policy.ValidUntil = &expired

	res, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if res.DenialReason != "Vehicle is administratively blocked" {
		t.Fatalf("first FAIL must own the reason, got %q", res.DenialReason)
	}

	fails := 0
	for _, s := range res.Steps {
		if s.Status == domain.StepFail {
			fails++
		}
	}
	if fails != 2 {
		t.Fatalf("expected 2 FAIL steps, got %d", fails)
	}
}

func TestChainKYCPendingIsWarn(t *testing.T) {
	src := healthySource()
	src.owner.KYCStatus = domain.KYCPending

	res, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictAuthorized {
		t.Fatalf("pending KYC must not deny, got %s (%s)", res.Verdict, res.DenialReason)
	}
	if s := stepByName(t, res, domain.StepOwnerKYC); s.Status != domain.StepWarn {
		t.Fatalf("expected WARN on KYC step, got %s", s.Status)
	}
}

func TestChainNoOwnershipSkipsOwnerSteps(t *testing.T) {
	src := healthySource()
	src.rec, src.owner = nil, nil

	res, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if s := stepByName(t, res, domain.StepOwnerActive); s.Status != domain.StepSkip {
		t.Fatalf("OWNER_ACTIVE: expected SKIP, got %s", s.Status)
	}
	if s := stepByName(t, res, domain.StepOwnerKYC); s.Status != domain.StepSkip {
		t.Fatalf("OWNER_KYC: expected SKIP, got %s", s.Status)
	}
	// Страховые шаги от владения не зависят и считаются дальше
	if s := stepByName(t, res, domain.StepInsuranceValidity); s.Status != domain.StepPass {
		t.Fatalf("INSURANCE_VALIDITY: expected PASS, got %s", s.Status)
	}
}

func TestChainExpiringInsuranceWarns(t *testing.T) {
	src := healthySource()
	soon := testNow.AddDate(0, 0, 5)
	src.policy.ValidUntil = &soon

	res, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictAuthorized {
		t.Fatalf("expiring soon must not deny, got %s", res.Verdict)
	}
	s := stepByName(t, res, domain.StepInsuranceValidity)
	if s.Status != domain.StepWarn {
		t.Fatalf("expected WARN, got %s", s.Status)
	}
	if s.DaysRemaining == nil || *s.DaysRemaining != 5 {
		t.Fatalf("expected 5 days remaining, got %v", s.DaysRemaining)
	}
}

func TestChainExpiredInsuranceFails(t *testing.T) {
	src := healthySource()
	expired := testNow.AddDate(0, 0, -3)
	src.policy.ValidUntil = &expired

	res, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if !strings.Contains(res.DenialReason, "expired 3 day(s) ago") {
		t.Fatalf("unexpected reason: %s", res.DenialReason)
	}
}

func TestChainPolicyFallbackToVehicleRecord(t *testing.T) {
	src := healthySource()
	src.policy = nil
	until := testNow.AddDate(1, 0, 0)
	src.vehicle.InsuranceProvider = "Jubilee"
	src.vehicle.PolicyNumber = "VR-77"
	src.vehicle.InsuranceExpiry = &until

	res, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED via vehicle record, got %s (%s)", res.Verdict, res.DenialReason)
	}
	if res.Policy == nil || res.Policy.Source != "vehicle_record" {
		t.Fatalf("expected fallback policy from vehicle record, got %+v", res.Policy)
	}
}

func TestChainNoPolicyAtAllFails(t *testing.T) {
	src := healthySource()
	src.policy = nil

	res, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if s := stepByName(t, res, domain.StepInsuranceValidity); s.Status != domain.StepSkip {
		t.Fatalf("INSURANCE_VALIDITY: expected SKIP, got %s", s.Status)
	}
	if res.Vehicle == nil {
		t.Fatalf("denial result must still carry the vehicle snapshot")
	}
}

func TestChainUpstreamErrorIsNotDenial(t *testing.T) {
	src := healthySource()
	src.policyErr = errors.New("connection refused")

	_, err := newTestChain(src).Verify(context.Background(), "KBX-001")
	if err == nil {
		t.Fatalf("expected upstream error")
	}
	if !domain.IsUpstream(err) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestDaysUntilTruncatesToUTCMidnight(t *testing.T) {
	// 23:59 и 00:01 одних суток дают одинаковый результат
	expiry := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	early := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)

	if d := DaysUntil(late, expiry); d != 5 {
		t.Fatalf("late evening: expected 5, got %d", d)
	}
	if d := DaysUntil(early, expiry); d != 5 {
		t.Fatalf("early morning: expected 5, got %d", d)
	}
	if d := DaysUntil(expiry, expiry); d != 0 {
		t.Fatalf("same day: expected 0, got %d", d)
	}
	if d := DaysUntil(expiry.AddDate(0, 0, 2), expiry); d != -2 {
		t.Fatalf("past expiry: expected -2, got %d", d)
	}
}
