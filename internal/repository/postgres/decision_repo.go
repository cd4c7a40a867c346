package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/prabandh-gateway/internal/audit"
	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

// DecisionRepo — персистентность журнала решений в PostgreSQL.
type DecisionRepo struct {
	db *sql.DB
}

func NewDecisionRepo(connString string) (*DecisionRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &DecisionRepo{db: db}, nil
}

func (r *DecisionRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *DecisionRepo) Close() error {
	return r.db.Close()
}

// WriteBatch вставляет пачку решений одним запросом.
func (r *DecisionRepo) WriteBatch(ctx context.Context, decisions []audit.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	// Количество колонок в таблице decision_log
	numFields := 12
	placeholderStr := ""
	vals := make([]interface{}, 0, len(decisions)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, d := range decisions {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12)

		vals = append(vals,
			d.ID, d.ActorID, string(d.Role), d.View, d.RequestID,
			d.Action, string(d.FromStatus), string(d.ToStatus),
			d.Remarks, d.Outcome, d.Error, d.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO decision_log (id, actor_id, role, view, request_id, action, from_status, to_status, remarks, outcome, error, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// ListRecent возвращает последние решения, новые первыми.
func (r *DecisionRepo) ListRecent(ctx context.Context, limit int) ([]audit.Decision, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, role, view, request_id, action,
		       from_status, to_status, remarks, outcome, error, timestamp
		FROM decision_log
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decision_log: %w", err)
	}
	defer rows.Close()

	var out []audit.Decision
	for rows.Next() {
		var d audit.Decision
		var role, fromStatus, toStatus string
		if err := rows.Scan(&d.ID, &d.ActorID, &role, &d.View, &d.RequestID, &d.Action,
			&fromStatus, &toStatus, &d.Remarks, &d.Outcome, &d.Error, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		d.Role = domain.Role(role)
		d.FromStatus = domain.Status(fromStatus)
		d.ToStatus = domain.Status(toStatus)
		out = append(out, d)
	}
	return out, rows.Err()
}
