package audit

import "time"

// Действия журнала, которые пишет движок решений.
const (
	ActionDispatchAuthorized = "DISPATCH_AUTHORIZED"
	ActionDispatchDenied     = "DISPATCH_DENIED"
	ActionIdentityAuthorized = "IDENTITY_AUTHORIZED"
	ActionIdentityDenied     = "IDENTITY_DENIED"
	ActionRoleAssigned       = "ROLE_ASSIGNED"
)

// Entry — запись append-only журнала аудита. Формат внешний и обратно
// совместимый: его читают существующие отчеты и UI, менять поля нельзя,
// только добавлять.
type Entry struct {
	ID          string                 `json:"id"`
	Action      string                 `json:"action"`
	EntityID    string                 `json:"entity_id"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`   // SUCCESS | FAILURE | AUTHORIZED | DENIED
	Severity    string                 `json:"severity"` // low | medium | high
	Detail      string                 `json:"detail"`
	Actor       string                 `json:"actor"`
	Module      string                 `json:"module"`
	Details     map[string]interface{} `json:"details"` // произвольный JSON-контекст (трасса, код)
	Timestamp   time.Time              `json:"timestamp"`
}
