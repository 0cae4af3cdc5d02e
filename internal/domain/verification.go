package domain

// StepOutcome — результат отдельного шага цепочки проверок.
type StepOutcome string

const (
	StepPass StepOutcome = "PASS"
	StepFail StepOutcome = "FAIL"
	StepWarn StepOutcome = "WARN" // информационно, вердикт не меняет
	StepSkip StepOutcome = "SKIP" // шаг не вычислялся: упала предпосылка
)

// Имена шагов полной identity-цепочки. Порядок фиксирован.
const (
	StepVehicleRegistry   = "VEHICLE_REGISTRY"
	StepVehicleStatus     = "VEHICLE_STATUS"
	StepOwnershipRecord   = "OWNERSHIP_RECORD"
	StepOwnerActive       = "OWNER_ACTIVE"
	StepOwnerKYC          = "OWNER_KYC"
	StepInsurancePolicy   = "INSURANCE_POLICY"
	StepInsuranceValidity = "INSURANCE_VALIDITY"
)

// Verdict — терминальный исход проверки.
type Verdict string

const (
	VerdictAuthorized Verdict = "AUTHORIZED"
	VerdictDenied     Verdict = "DENIED"
)

// VerificationStep — одна строка трассы решения.
type VerificationStep struct {
	Step          string      `json:"step"`
	Status        StepOutcome `json:"status"`
	Note          string      `json:"note,omitempty"`
	DaysRemaining *int        `json:"days_remaining,omitempty"`
}

// VerificationResult — полный аудируемый результат: не просто вердикт,
// а упорядоченная трасса всех шагов плюс причина первого FAIL.
type VerificationResult struct {
	Verdict      Verdict            `json:"result"`
	DenialReason string             `json:"reason,omitempty"`
	Steps        []VerificationStep `json:"checks"`
	SequenceCode string             `json:"code,omitempty"`

	Vehicle *VehicleSnapshot `json:"vehicle,omitempty"`
	Owner   *OwnerProfile    `json:"owner,omitempty"`
	Policy  *InsurancePolicy `json:"policy,omitempty"`
}

// Denied — true, если в трассе есть хотя бы один FAIL.
func (r *VerificationResult) Denied() bool {
	return r.Verdict == VerdictDenied
}

// Trace — билдер трассы. Гарантирует инвариант «первый FAIL — авторитетная
// причина отказа»: последующие FAIL трассу пополняют, но причину не перетирают.
type Trace struct {
	steps        []VerificationStep
	denied       bool
	denialReason string
}

func (t *Trace) Pass(step, note string) {
	t.steps = append(t.steps, VerificationStep{Step: step, Status: StepPass, Note: note})
}

func (t *Trace) Fail(step, reason string) {
	t.steps = append(t.steps, VerificationStep{Step: step, Status: StepFail, Note: reason})
	if !t.denied {
		t.denied = true
		t.denialReason = reason
	}
}

func (t *Trace) Warn(step, note string) {
	t.steps = append(t.steps, VerificationStep{Step: step, Status: StepWarn, Note: note})
}

func (t *Trace) Skip(step, reason string) {
	t.steps = append(t.steps, VerificationStep{Step: step, Status: StepSkip, Note: reason})
}

// Append добавляет произвольный шаг (например, WARN с days_remaining).
func (t *Trace) Append(s VerificationStep) {
	t.steps = append(t.steps, s)
}

func (t *Trace) Denied() bool         { return t.denied }
func (t *Trace) DenialReason() string { return t.denialReason }

// Result собирает финальный VerificationResult из накопленной трассы.
func (t *Trace) Result() VerificationResult {
	verdict := VerdictAuthorized
	reason := ""
	if t.denied {
		verdict = VerdictDenied
		reason = t.denialReason
	}
	return VerificationResult{
		Verdict:      verdict,
		DenialReason: reason,
		Steps:        t.steps,
	}
}
