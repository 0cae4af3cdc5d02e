package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

/*
Файл vehicle_repo.go — чтение снапшота ТС. Исторически флот живет в двух
таблицах: канонический реестр vehicles и вторичный fleet_vehicles с другой
схемой. Нормализация к единой форме VehicleSnapshot происходит здесь,
движок решений про две схемы не знает.
*/

// VehicleByID ищет ТС по номеру без учета регистра.
// (nil, nil) = не найдено ни в одном реестре.
func (s *Store) VehicleByID(ctx context.Context, id string) (*domain.VehicleSnapshot, error) {
	id = strings.TrimSpace(id)

	query := `
		SELECT id, COALESCE(owner, ''), COALESCE(vehicle_type, ''), COALESCE(make, ''),
		       COALESCE(model, ''), COALESCE(vin, ''), COALESCE(year, 0),
		       COALESCE(vehicle_usage, ''), COALESCE(status, ''),
		       COALESCE(insurance_provider, ''), COALESCE(policy_number, ''), insurance_expiry
		FROM vehicles
		WHERE id ILIKE $1
		LIMIT 1`

	v := &domain.VehicleSnapshot{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.OwnerName, &v.Type, &v.Make, &v.Model, &v.VIN, &v.Year,
		&v.Usage, &v.Status, &v.InsuranceProvider, &v.PolicyNumber, &v.InsuranceExpiry,
	)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: vehicle lookup failed: %w", err)
	}

	// Fallback: вторичный флит-реестр, матчим по номеру или VIN
	return s.fleetVehicleByID(ctx, id)
}

func (s *Store) fleetVehicleByID(ctx context.Context, id string) (*domain.VehicleSnapshot, error) {
	query := `
		SELECT vehicle_number, COALESCE(owner_name, ''), COALESCE(vehicle_type, ''),
		       COALESCE(make, ''), COALESCE(model, ''), COALESCE(vin, ''),
		       COALESCE(vehicle_usage, ''), COALESCE(status, ''), insurance_expiry
		FROM fleet_vehicles
		WHERE vehicle_number ILIKE $1 OR vin ILIKE $1
		LIMIT 1`

	v := &domain.VehicleSnapshot{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.OwnerName, &v.Type, &v.Make, &v.Model, &v.VIN,
		&v.Usage, &v.Status, &v.InsuranceExpiry,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // нет ни в одном реестре
		}
		return nil, fmt.Errorf("postgres: fleet vehicle lookup failed: %w", err)
	}
	return v, nil
}

// VehicleStatusCounts — агрегаты по статусам для identity-статистики.
func (s *Store) VehicleStatusCounts(ctx context.Context) (total, blocked int64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE LOWER(status) = 'blocked')
		FROM vehicles`).Scan(&total, &blocked)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: vehicle status counts failed: %w", err)
	}
	return total, blocked, nil
}
