package verify

/*
Файл dispatch.go — узкая диспетчерская цепочка. Это сознательно ОТДЕЛЬНАЯ
последовательность шагов, а не параметризация identity-цепочки: у диспетчеризации
своя политика (жесткий стоп на личных ТС, короткое замыкание на блокировке),
и склеивание двух наборов бизнес-правил в один алгоритм уже приводило к
случайным изменениям чужой семантики.

Порядок: реестр → личное использование → блокировка → срок страховки.
В отличие от полной цепочки, первый же отказ обрывает прогон.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"go.uber.org/zap"
)

// DispatchChecks — плоская карта проверок для ответа диспетчерского API.
// Поля-указатели отсутствуют в JSON, если до шага дело не дошло.
type DispatchChecks struct {
	Found          bool  `json:"found"`
	Personal       *bool `json:"personal,omitempty"`
	NotBlocked     *bool `json:"not_blocked,omitempty"`
	InsuranceValid *bool `json:"insurance_valid,omitempty"`
	DaysRemaining  *int  `json:"days_remaining,omitempty"`
}

// DispatchResult — решение по запросу на диспетчеризацию.
type DispatchResult struct {
	Verdict   domain.Verdict          `json:"result"`
	Reason    string                  `json:"reason,omitempty"`
	Code      string                  `json:"code,omitempty"`
	Vehicle   *domain.VehicleSnapshot `json:"vehicle,omitempty"`
	Checks    DispatchChecks          `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// DispatchChain решает, можно ли выпустить ТС в рейс.
type DispatchChain struct {
	source SnapshotSource
	now    func() time.Time
	logger *zap.Logger
}

func NewDispatchChain(source SnapshotSource, logger *zap.Logger) *DispatchChain {
	return &DispatchChain{
		source: source,
		now:    time.Now,
		logger: logger.Named("dispatch-chain"),
	}
}

// Authorize прогоняет узкую цепочку. Ошибка — только сбой хранилища.
func (d *DispatchChain) Authorize(ctx context.Context, regNumber string) (DispatchResult, error) {
	now := d.now()
	res := DispatchResult{Timestamp: now}

	// 1. Реестр: vehicles, затем fleet_vehicles (нормализация в источнике)
	vehicle, err := d.source.VehicleByID(ctx, regNumber)
	if err != nil {
		return DispatchResult{}, domain.Upstream("vehicle lookup", err)
	}
	if vehicle == nil {
		res.Verdict = domain.VerdictDenied
		res.Reason = "Vehicle not found in registry"
		return res, nil
	}
	res.Vehicle = vehicle
	res.Checks.Found = true

	// 2. Личное использование — жесткое правило без переопределений
	personal := vehicle.IsPersonal()
	res.Checks.Personal = &personal
	if personal {
		res.Verdict = domain.VerdictDenied
		res.Reason = "Personal vehicles are not eligible for dispatch authorization"
		return res, nil
	}

	// 3. Административная блокировка
	notBlocked := vehicle.NormStatus() != domain.VehicleBlocked
	res.Checks.NotBlocked = &notBlocked
	if !notBlocked {
		res.Verdict = domain.VerdictDenied
		res.Reason = "Vehicle is administratively blocked"
		return res, nil
	}

	// 4. Страховка — единственная оставшаяся проверка этой цепочки
	if vehicle.InsuranceExpiry == nil {
		invalid := false
		res.Checks.InsuranceValid = &invalid
		res.Verdict = domain.VerdictDenied
		res.Reason = "Insurance expiry date is missing"
		return res, nil
	}

	days := DaysUntil(now, *vehicle.InsuranceExpiry)
	res.Checks.DaysRemaining = &days
	if days < 0 {
		invalid := false
		res.Checks.InsuranceValid = &invalid
		res.Verdict = domain.VerdictDenied
		res.Reason = fmt.Sprintf("Insurance expired %d day(s) ago", -days)
		return res, nil
	}

	valid := true
	res.Checks.InsuranceValid = &valid
	res.Verdict = domain.VerdictAuthorized
	return res, nil
}
