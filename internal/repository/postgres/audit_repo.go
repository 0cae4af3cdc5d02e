package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/trufleet-authz/internal/audit"
)

/*
Файл audit_repo.go — персистентность журнала решений. Формат таблицы
audit_logs внешний: его читают существующие отчеты, поэтому набор колонок
обратно совместим с исходной системой.
*/

// WriteBatch сохраняет пачку записей журнала за один INSERT.
func (s *Store) WriteBatch(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_logs
	numFields := 11
	placeholderStr := ""
	vals := make([]interface{}, 0, len(entries)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range entries {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11)

		details, _ := json.Marshal(e.Details)

		vals = append(vals,
			e.ID, e.Action, e.EntityID, e.Description, e.Status,
			e.Severity, e.Detail, e.Actor, e.Module, details, e.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO audit_logs (id, action, entity_id, description, status, severity, detail, actor, module, details, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := s.pool.Exec(ctx, query, vals...)
	return err
}

// CountByActionSince — число записей с данным action начиная с момента since.
// Используется статистикой и деградационным путем генератора кодов.
func (s *Store) CountByActionSince(ctx context.Context, action string, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE action = $1 AND timestamp >= $2`,
		action, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: audit count failed: %w", err)
	}
	return count, nil
}

// FetchEntries возвращает записи журнала с фильтрацией, свежие первыми.
// actions пустой = любые действия; entityID пустой = любые сущности.
func (s *Store) FetchEntries(ctx context.Context, actions []string, entityID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, action, entity_id, description, status, severity,
		       COALESCE(detail, ''), COALESCE(actor, ''), COALESCE(module, ''),
		       COALESCE(details, '{}'::jsonb), timestamp
		FROM audit_logs
		WHERE ($1::text[] IS NULL OR action = ANY($1))
		  AND ($2 = '' OR entity_id = $2)
		ORDER BY timestamp DESC
		LIMIT $3`

	var actionsArg interface{}
	if len(actions) > 0 {
		actionsArg = actions
	}

	rows, err := s.pool.Query(ctx, query, actionsArg, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: audit fetch failed: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityID, &e.Description, &e.Status,
			&e.Severity, &e.Detail, &e.Actor, &e.Module, &details, &e.Timestamp); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(details, &e.Details)
		out = append(out, e)
	}
	return out, rows.Err()
}
