package domain

import (
	"strings"
	"time"
)

// VehicleStatus — статусы ТС в реестре. Хранилище исторически содержит
// значения в разном регистре ("Blocked", "blocked"), поэтому сравнение
// всегда делаем через NormStatus.
type VehicleStatus string

const (
	VehicleActive  VehicleStatus = "active"
	VehicleBlocked VehicleStatus = "blocked"
)

// VehicleSnapshot — read-only срез данных о ТС на момент проверки.
// Собирается из канонического реестра (vehicles) либо из вторичного
// флит-реестра (fleet_vehicles), приведенного к единой форме.
type VehicleSnapshot struct {
	ID        string `json:"id"`
	OwnerName string `json:"owner"`
	Type      string `json:"vehicle_type"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	VIN       string `json:"vin,omitempty"`
	Year      int    `json:"year,omitempty"`
	Usage     string `json:"vehicle_usage"` // "commercial" | "personal" | ...
	Status    string `json:"status"`

	// Денормализованные страховые поля прямо на записи ТС.
	// Используются как fallback, когда в insurance_policies нет активного полиса.
	InsuranceProvider string     `json:"insurance_provider,omitempty"`
	PolicyNumber      string     `json:"policy_number,omitempty"`
	InsuranceExpiry   *time.Time `json:"insurance_expiry,omitempty"`
}

// NormStatus приводит статус к нижнему регистру для сравнения.
func (v *VehicleSnapshot) NormStatus() VehicleStatus {
	return VehicleStatus(strings.ToLower(v.Status))
}

// IsPersonal — жесткое бизнес-правило: личные ТС не подлежат диспетчеризации.
func (v *VehicleSnapshot) IsPersonal() bool {
	return strings.ToLower(v.Usage) == "personal"
}

// OwnershipRecord — запись о владении. Инвариант хранилища: не более одной
// записи is_current=true на ТС в любой момент времени.
type OwnershipRecord struct {
	VehicleID     string     `json:"vehicle_id"`
	OwnerID       string     `json:"owner_id"`
	OwnershipType string     `json:"ownership_type"`
	IsCurrent     bool       `json:"is_current"`
	FromDate      *time.Time `json:"from_date,omitempty"`
}

// KYCStatus владельца.
type KYCStatus string

const (
	KYCVerified KYCStatus = "verified"
	KYCPending  KYCStatus = "pending"
	KYCRejected KYCStatus = "rejected"
)

type OwnerProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Active      bool      `json:"active"`
	KYCStatus   KYCStatus `json:"kyc_status"`
	LicenseType string    `json:"license_type,omitempty"`
}

// PolicyStatus страхового полиса. Инвариант: не более одного полиса
// со статусом active на ТС (обеспечивается на записи, движок только читает).
type PolicyStatus string

const (
	PolicyActive     PolicyStatus = "active"
	PolicyCancelled  PolicyStatus = "cancelled"
	PolicySuspended  PolicyStatus = "suspended"
	PolicyExpired    PolicyStatus = "expired"
	PolicySuperseded PolicyStatus = "superseded"
)

type InsurancePolicy struct {
	VehicleID     string       `json:"vehicle_id,omitempty"`
	Provider      string       `json:"provider"`
	PolicyNumber  string       `json:"policy_number"`
	PolicyType    string       `json:"policy_type,omitempty"`
	Status        PolicyStatus `json:"status,omitempty"`
	ValidFrom     *time.Time   `json:"valid_from,omitempty"`
	ValidUntil    *time.Time   `json:"valid_until"`
	DaysRemaining *int         `json:"days_remaining,omitempty"`

	// Откуда взят полис: таблица insurance_policies либо денормализованные
	// поля на записи ТС.
	Source string `json:"source,omitempty"`
}
