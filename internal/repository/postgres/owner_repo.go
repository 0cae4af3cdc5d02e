package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

// CurrentOwnership возвращает текущую запись владения вместе с профилем
// владельца. Инвариант хранилища: не более одной is_current=true на ТС.
// (nil, nil, nil) = записи о владении нет.
func (s *Store) CurrentOwnership(ctx context.Context, vehicleID string) (*domain.OwnershipRecord, *domain.OwnerProfile, error) {
	query := `
		SELECT vo.vehicle_id, vo.owner_id, COALESCE(vo.ownership_type, ''), vo.is_current, vo.from_date,
		       o.id, COALESCE(o.name, ''), COALESCE(o.email, ''), o.active,
		       COALESCE(o.kyc_status, ''), COALESCE(o.license_type, '')
		FROM vehicle_ownership vo
		JOIN owners o ON o.id = vo.owner_id
		WHERE vo.vehicle_id = $1 AND vo.is_current = true
		LIMIT 1`

	rec := &domain.OwnershipRecord{}
	owner := &domain.OwnerProfile{}
	err := s.pool.QueryRow(ctx, query, vehicleID).Scan(
		&rec.VehicleID, &rec.OwnerID, &rec.OwnershipType, &rec.IsCurrent, &rec.FromDate,
		&owner.ID, &owner.Name, &owner.Email, &owner.Active, &owner.KYCStatus, &owner.LicenseType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("postgres: ownership lookup failed: %w", err)
	}
	return rec, owner, nil
}

// OwnershipHistory — вся история владения ТС, свежие записи первыми.
// Нужна для identity-карточки, в цепочке не используется.
func (s *Store) OwnershipHistory(ctx context.Context, vehicleID string) ([]domain.OwnershipRecord, error) {
	query := `
		SELECT vehicle_id, owner_id, COALESCE(ownership_type, ''), is_current, from_date
		FROM vehicle_ownership
		WHERE vehicle_id = $1
		ORDER BY from_date DESC NULLS LAST`

	rows, err := s.pool.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: ownership history failed: %w", err)
	}
	defer rows.Close()

	var out []domain.OwnershipRecord
	for rows.Next() {
		var rec domain.OwnershipRecord
		if err := rows.Scan(&rec.VehicleID, &rec.OwnerID, &rec.OwnershipType, &rec.IsCurrent, &rec.FromDate); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// OwnerKYCCounts — агрегаты по владельцам для identity-статистики.
func (s *Store) OwnerKYCCounts(ctx context.Context) (active, verified, pendingKYC int64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE active),
		       COUNT(*) FILTER (WHERE active AND kyc_status = 'verified'),
		       COUNT(*) FILTER (WHERE kyc_status = 'pending')
		FROM owners`).Scan(&active, &verified, &pendingKYC)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("postgres: owner kyc counts failed: %w", err)
	}
	return active, verified, pendingKYC, nil
}
