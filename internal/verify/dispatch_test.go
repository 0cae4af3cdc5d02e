package verify

import (
	"context"
	"testing"
	"time"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"go.uber.org/zap"
)

func newTestDispatch(src SnapshotSource) *DispatchChain {
	d := NewDispatchChain(src, zap.NewNop())
	d.now = func() time.Time { return testNow }
	return d
}

func TestDispatchAuthorized(t *testing.T) {
	src := healthySource()
	until := testNow.AddDate(0, 2, 0)
	src.vehicle.InsuranceExpiry = &until

	res, err := newTestDispatch(src).Authorize(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s (%s)", res.Verdict, res.Reason)
	}
	if !res.Checks.Found {
		t.Fatalf("expected found check")
	}
	if res.Checks.Personal == nil || *res.Checks.Personal {
		t.Fatalf("expected personal=false")
	}
	if res.Checks.InsuranceValid == nil || !*res.Checks.InsuranceValid {
		t.Fatalf("expected insurance_valid=true")
	}
}

func TestDispatchVehicleNotFound(t *testing.T) {
	res, err := newTestDispatch(&fakeSource{}).Authorize(context.Background(), "GHOST-1")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if res.Reason != "Vehicle not found in registry" {
		t.Fatalf("unexpected reason: %s", res.Reason)
	}
	if res.Checks.Found {
		t.Fatalf("found must be false")
	}
	if res.Checks.NotBlocked != nil {
		t.Fatalf("later checks must not be evaluated after short circuit")
	}
}

func TestDispatchPersonalVehicleHardStop(t *testing.T) {
	src := healthySource()
	src.vehicle.Usage = "Personal"

	res, err := newTestDispatch(src).Authorize(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if res.Reason != "Personal vehicles are not eligible for dispatch authorization" {
		t.Fatalf("unexpected reason: %s", res.Reason)
	}
	if res.Checks.NotBlocked != nil || res.Checks.InsuranceValid != nil {
		t.Fatalf("blocked/insurance checks must be skipped after personal stop")
	}
}

func TestDispatchBlockedVehicle(t *testing.T) {
	src := healthySource()
	src.vehicle.Status = "BLOCKED" // регистр в хранилище исторически гуляет

	res, err := newTestDispatch(src).Authorize(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if res.Reason != "Vehicle is administratively blocked" {
		t.Fatalf("unexpected reason: %s", res.Reason)
	}
}

func TestDispatchExpiredInsurance(t *testing.T) {
	src := healthySource()
	expired := testNow.AddDate(0, 0, -4)
	src.vehicle.InsuranceExpiry = &expired

	res, err := newTestDispatch(src).Authorize(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if res.Reason != "Insurance expired 4 day(s) ago" {
		t.Fatalf("unexpected reason: %s", res.Reason)
	}
	if res.Checks.DaysRemaining == nil || *res.Checks.DaysRemaining != -4 {
		t.Fatalf("expected days_remaining=-4, got %v", res.Checks.DaysRemaining)
	}
}

func TestDispatchMissingExpiryDate(t *testing.T) {
	src := healthySource()
	src.vehicle.InsuranceExpiry = nil

	res, err := newTestDispatch(src).Authorize(context.Background(), "KBX-001")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if res.Verdict != domain.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", res.Verdict)
	}
	if res.Reason != "Insurance expiry date is missing" {
		t.Fatalf("unexpected reason: %s", res.Reason)
	}
}
