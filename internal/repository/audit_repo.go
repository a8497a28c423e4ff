package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"waterdash/internal/model"
)

// AuditRepository is an append-only store for security events. There is
// deliberately no update or delete path.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, e model.AuditEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, occurred_at, actor_id, action, outcome, target, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OccurredAt, nullIfEmpty(e.ActorID), e.Action, e.Outcome, nullIfEmpty(e.Target), details)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, q model.AuditQuery) ([]model.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	addFilter("action", q.Action)
	addFilter("actor_id", q.ActorID)
	addFilter("outcome", q.Outcome)

	query := `SELECT id, occurred_at, actor_id, action, outcome, target, details FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]model.AuditEvent, 0, limit)
	for rows.Next() {
		var (
			e       model.AuditEvent
			actor   sql.NullString
			target  sql.NullString
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &actor, &e.Action, &e.Outcome, &target, &details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ActorID = actor.String
		e.Target = target.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
