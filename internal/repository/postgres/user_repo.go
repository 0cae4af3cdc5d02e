package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

// StoredRole — доверенная роль пользователя по email (источник правды для
// anti-escalation). Пустая строка = пользователя нет, это не ошибка.
func (s *Store) StoredRole(ctx context.Context, email string) (string, error) {
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(role, '') FROM users WHERE LOWER(email) = $1`,
		strings.ToLower(email)).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("postgres: stored role lookup failed: %w", err)
	}
	return role, nil
}

// UserByEmail — для /v1/roles/check. (nil, nil) = не найден.
func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.StoredUser, error) {
	u := &domain.StoredUser{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(name, ''), email, COALESCE(role, '')
		 FROM users WHERE LOWER(email) = $1`,
		strings.ToLower(email)).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: user lookup failed: %w", err)
	}
	return u, nil
}

// AssignRole обновляет сохраненную роль и возвращает обновленного
// пользователя. (nil, nil) = пользователя с таким id нет.
func (s *Store) AssignRole(ctx context.Context, userID, role string) (*domain.StoredUser, error) {
	u := &domain.StoredUser{}
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, COALESCE(name, ''), email, role`,
		role, userID).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to assign role: %w", err)
	}
	return u, nil
}
