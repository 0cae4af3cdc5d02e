package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

// ActivePolicy — активный полис ТС из insurance_policies.
// Если активных вдруг несколько (инвариант нарушен на записи),
// берем с самым поздним valid_until. (nil, nil) = активного полиса нет.
func (s *Store) ActivePolicy(ctx context.Context, vehicleID string) (*domain.InsurancePolicy, error) {
	query := `
		SELECT vehicle_id, COALESCE(provider, ''), COALESCE(policy_number, ''),
		       COALESCE(policy_type, ''), status, valid_from, valid_until
		FROM insurance_policies
		WHERE vehicle_id = $1 AND status = 'active'
		ORDER BY valid_until DESC
		LIMIT 1`

	p := &domain.InsurancePolicy{}
	err := s.pool.QueryRow(ctx, query, vehicleID).Scan(
		&p.VehicleID, &p.Provider, &p.PolicyNumber, &p.PolicyType,
		&p.Status, &p.ValidFrom, &p.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: active policy lookup failed: %w", err)
	}
	return p, nil
}

// PolicyHistory — все полисы ТС, свежие первыми (для identity-карточки).
func (s *Store) PolicyHistory(ctx context.Context, vehicleID string) ([]domain.InsurancePolicy, error) {
	query := `
		SELECT vehicle_id, COALESCE(provider, ''), COALESCE(policy_number, ''),
		       COALESCE(policy_type, ''), status, valid_from, valid_until
		FROM insurance_policies
		WHERE vehicle_id = $1
		ORDER BY valid_from DESC NULLS LAST`

	rows, err := s.pool.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: policy history failed: %w", err)
	}
	defer rows.Close()

	var out []domain.InsurancePolicy
	for rows.Next() {
		var p domain.InsurancePolicy
		if err := rows.Scan(&p.VehicleID, &p.Provider, &p.PolicyNumber, &p.PolicyType,
			&p.Status, &p.ValidFrom, &p.ValidUntil); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ActivePolicyExpiryCounts — сколько активных полисов всего, истекло и
// истекает в ближайшие warnWindow дней (для identity-статистики).
func (s *Store) ActivePolicyExpiryCounts(ctx context.Context, now time.Time, warnWindow int) (active, expired, expiring int64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE valid_until < $1),
		       COUNT(*) FILTER (WHERE valid_until >= $1 AND valid_until <= $2)
		FROM insurance_policies
		WHERE status = 'active'`,
		now, now.AddDate(0, 0, warnWindow)).Scan(&active, &expired, &expiring)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("postgres: policy expiry counts failed: %w", err)
	}
	return active, expired, expiring, nil
}
