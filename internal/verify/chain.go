package verify

/*
Файл chain.go — полная identity-цепочка авторизации ТС:

  VEHICLE_REGISTRY → VEHICLE_STATUS → OWNERSHIP_RECORD → OWNER_ACTIVE →
  OWNER_KYC → INSURANCE_POLICY → INSURANCE_VALIDITY

Семантика шагов:
- первый FAIL фиксирует причину отказа, последующие FAIL ее не перетирают;
- шаги, чья предпосылка упала, помечаются SKIP и не вычисляются;
- WARN (KYC pending, страховка истекает в пределах окна) вердикт не меняет,
  но обязан попасть в трассу;
- «не найдено» в хранилище — это штатный FAIL шага, а ошибка хранилища —
  UpstreamError наружу: оператор не должен путать отказ политики и упавшую базу.

Вся оценка request-scoped: одно «сейчас» на весь прогон, общего мутабельного
состояния нет, при одинаковом снапшоте и времени результат идемпотентен.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"go.uber.org/zap"
)

// SnapshotSource — точка доступа к point-in-time данным ТС.
// Возврат (nil, nil) означает «записи нет» (штатный FAIL шага),
// ненулевая ошибка — сбой хранилища.
type SnapshotSource interface {
	// VehicleByID ищет ТС без учета регистра: сначала канонический реестр,
	// затем вторичный флит-реестр, приведенный к единой форме.
	VehicleByID(ctx context.Context, id string) (*domain.VehicleSnapshot, error)

	// CurrentOwnership возвращает текущую запись владения вместе с профилем
	// владельца (в хранилище не более одной is_current на ТС).
	CurrentOwnership(ctx context.Context, vehicleID string) (*domain.OwnershipRecord, *domain.OwnerProfile, error)

	// ActivePolicy — активный полис из insurance_policies (самый поздний
	// valid_until, если активных вдруг несколько).
	ActivePolicy(ctx context.Context, vehicleID string) (*domain.InsurancePolicy, error)
}

// Chain — полная identity-цепочка.
type Chain struct {
	source   SnapshotSource
	warnDays int              // окно предупреждения об истечении страховки
	now      func() time.Time // подменяется в тестах
	logger   *zap.Logger
}

func NewChain(source SnapshotSource, warnDays int, logger *zap.Logger) *Chain {
	if warnDays <= 0 {
		warnDays = 7
	}
	return &Chain{
		source:   source,
		warnDays: warnDays,
		now:      time.Now,
		logger:   logger.Named("identity-chain"),
	}
}

// Verify прогоняет полную цепочку для одного ТС и возвращает трассу
// с вердиктом. Ошибка возвращается только при сбое хранилища.
func (c *Chain) Verify(ctx context.Context, vehicleID string) (domain.VerificationResult, error) {
	// Единое «сейчас» на весь прогон — повторная оценка с тем же временем
	// и снапшотом обязана дать байт-в-байт тот же результат.
	now := c.now()
	trace := &domain.Trace{}

	// 1. Vehicle Registry
	vehicle, err := c.source.VehicleByID(ctx, vehicleID)
	if err != nil {
		return domain.VerificationResult{}, domain.Upstream("vehicle lookup", err)
	}
	if vehicle == nil {
		trace.Fail(domain.StepVehicleRegistry, fmt.Sprintf("Vehicle %q not found in registry", vehicleID))
		trace.Skip(domain.StepVehicleStatus, "Skipped — vehicle not found")
		trace.Skip(domain.StepOwnershipRecord, "Skipped — vehicle not found")
		trace.Skip(domain.StepOwnerActive, "Skipped — vehicle not found")
		trace.Skip(domain.StepOwnerKYC, "Skipped — vehicle not found")
		trace.Skip(domain.StepInsurancePolicy, "Skipped — vehicle not found")
		trace.Skip(domain.StepInsuranceValidity, "Skipped — vehicle not found")
		return trace.Result(), nil
	}
	trace.Pass(domain.StepVehicleRegistry, fmt.Sprintf("Found: %s %s", vehicle.Make, vehicle.Type))

	// 2. Vehicle Status. Блокировка роняет вердикт, но цепочку не обрывает:
	// оператору полезна полная картина по владению и страховке.
	if vehicle.NormStatus() == domain.VehicleBlocked {
		trace.Fail(domain.StepVehicleStatus, "Vehicle is administratively blocked")
	} else {
		trace.Pass(domain.StepVehicleStatus, fmt.Sprintf("Status: %s", vehicle.Status))
	}

	// 3. Ownership Record
	ownership, owner, err := c.source.CurrentOwnership(ctx, vehicle.ID)
	if err != nil {
		return domain.VerificationResult{}, domain.Upstream("ownership lookup", err)
	}
	if ownership == nil {
		trace.Fail(domain.StepOwnershipRecord, "No registered owner on file for this vehicle")
		trace.Skip(domain.StepOwnerActive, "Skipped — no ownership record")
		trace.Skip(domain.StepOwnerKYC, "Skipped — no ownership record")
	} else {
		ownerName := "Unknown"
		if owner != nil {
			ownerName = owner.Name
		}
		trace.Pass(domain.StepOwnershipRecord, fmt.Sprintf("Owner: %s (%s)", ownerName, ownership.OwnershipType))

		// 4. Owner Active
		if owner == nil || !owner.Active {
			trace.Fail(domain.StepOwnerActive, fmt.Sprintf("Owner %q account is deactivated", ownerName))
		} else {
			trace.Pass(domain.StepOwnerActive, fmt.Sprintf("%s — active", owner.Name))
		}

		// 5. Owner KYC. Pending трактуем как WARN (допуск с пометкой) —
		// решение политики, зафиксированное от исходной системы.
		switch kycOf(owner) {
		case domain.KYCVerified:
			trace.Pass(domain.StepOwnerKYC, "KYC verified")
		case domain.KYCPending:
			trace.Warn(domain.StepOwnerKYC, "KYC verification pending — interaction flagged")
		case domain.KYCRejected:
			trace.Fail(domain.StepOwnerKYC, "Owner KYC rejected — platform interaction not permitted")
		default:
			trace.Skip(domain.StepOwnerKYC, "Owner KYC status unknown")
		}
	}

	// 6. Insurance Policy. Источник правды — insurance_policies; при его
	// отсутствии откатываемся на денормализованные поля записи ТС.
	policy, err := c.source.ActivePolicy(ctx, vehicle.ID)
	if err != nil {
		return domain.VerificationResult{}, domain.Upstream("policy lookup", err)
	}
	if policy == nil {
		if vehicle.InsuranceProvider != "" && vehicle.PolicyNumber != "" && vehicle.InsuranceExpiry != nil {
			policy = &domain.InsurancePolicy{
				Provider:     vehicle.InsuranceProvider,
				PolicyNumber: vehicle.PolicyNumber,
				ValidUntil:   vehicle.InsuranceExpiry,
				Source:       "vehicle_record",
			}
			trace.Pass(domain.StepInsurancePolicy, fmt.Sprintf("Policy %s from vehicle record", vehicle.PolicyNumber))
		} else {
			trace.Fail(domain.StepInsurancePolicy, "No active insurance policy found")
			trace.Skip(domain.StepInsuranceValidity, "Skipped — no policy")
			result := trace.Result()
			result.Vehicle = vehicle
			result.Owner = owner
			return result, nil
		}
	} else {
		policy.Source = "insurance_policies"
		trace.Pass(domain.StepInsurancePolicy, fmt.Sprintf("%s — %s", policy.Provider, policy.PolicyNumber))
	}

	// 7. Insurance Validity
	c.checkValidity(trace, policy, now)

	result := trace.Result()
	result.Vehicle = vehicle
	result.Owner = owner
	result.Policy = policy
	return result, nil
}

func (c *Chain) checkValidity(trace *domain.Trace, policy *domain.InsurancePolicy, now time.Time) {
	if policy.ValidUntil == nil {
		trace.Fail(domain.StepInsuranceValidity, "Insurance expiry date is missing")
		return
	}

	days := DaysUntil(now, *policy.ValidUntil)
	policy.DaysRemaining = &days
	expires := policy.ValidUntil.Format("2006-01-02")

	switch {
	case days < 0:
		trace.Fail(domain.StepInsuranceValidity,
			fmt.Sprintf("Insurance expired %d day(s) ago (%s)", -days, expires))
	case days <= c.warnDays:
		trace.Append(domain.VerificationStep{
			Step:          domain.StepInsuranceValidity,
			Status:        domain.StepWarn,
			Note:          fmt.Sprintf("Insurance expires in %d day(s) — renewal required soon", days),
			DaysRemaining: &days,
		})
	default:
		trace.Append(domain.VerificationStep{
			Step:          domain.StepInsuranceValidity,
			Status:        domain.StepPass,
			Note:          fmt.Sprintf("Valid for %d more day(s) — expires %s", days, expires),
			DaysRemaining: &days,
		})
	}
}

func kycOf(owner *domain.OwnerProfile) domain.KYCStatus {
	if owner == nil {
		return ""
	}
	return owner.KYCStatus
}

// DaysUntil — чистая функция: целые дни от начала суток now до начала суток
// expiry, граница суток — полночь UTC. Повторный вызов с теми же аргументами
// дает тот же результат (идемпотентность трассы).
func DaysUntil(now time.Time, expiry time.Time) int {
	nowDay := truncateUTC(now)
	expDay := truncateUTC(expiry)
	return int(expDay.Sub(nowDay) / (24 * time.Hour))
}

func truncateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
