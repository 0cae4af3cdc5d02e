package domain

// RoleID — каноничный идентификатор роли. Набор ролей фиксируется на старте
// процесса и никогда не меняется в рантайме (immutable catalog).
type RoleID string

const (
	RoleSuperAdmin     RoleID = "super_admin"
	RoleAdmin          RoleID = "admin"
	RoleFleetManager   RoleID = "fleet_manager"
	RoleDispatcher     RoleID = "dispatcher"
	RoleInsuranceAgent RoleID = "insurance_agent"
	RoleOwner          RoleID = "owner"
	RoleViewer         RoleID = "viewer"
)

// Role описывает роль вместе с уровнем в иерархии и метаданными для UI.
// Уровни уникальны: роли образуют строгий линейный порядок (выше = больше прав).
type Role struct {
	ID          RoleID `json:"role"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Level       int    `json:"level"`
	Color       string `json:"color"`
	Bg          string `json:"bg"`
}

// Actor — субъект запроса. ClaimedRole — самодекларация (заголовок или тело),
// VerifiedEmail — опциональная привязка к учетке, по которой можно достать
// доверенную роль из хранилища.
type Actor struct {
	ClaimedRole   string `json:"claimed_role"`
	VerifiedEmail string `json:"verified_email,omitempty"`
}

// StoredUser — минимальная проекция пользователя из таблицы users.
// Нужна только для anti-escalation проверки и назначения ролей.
type StoredUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
