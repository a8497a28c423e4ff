package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"waterdash/internal/model"
)

// AttemptRepository tracks consecutive failed logins per identity.
// Identities are normalized to lowercase so "Alice" and "alice" share
// one counter.
type AttemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func (r *AttemptRepository) Find(ctx context.Context, identity string) (model.LoginAttempt, error) {
	a := model.LoginAttempt{Identity: normalizeIdentity(identity)}
	var lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT failures, locked_until, updated_at FROM login_attempts WHERE identity = $1`,
		a.Identity).Scan(&a.Failures, &lockedUntil, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return model.LoginAttempt{}, fmt.Errorf("find login attempts: %w", err)
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	return a, nil
}

// RecordFailure increments the failure counter and, when the counter
// reaches threshold, stamps the lock expiry in the same statement. The
// upsert keeps concurrent failed logins from losing increments.
func (r *AttemptRepository) RecordFailure(ctx context.Context, identity string, threshold int, lockUntil, now time.Time) (model.LoginAttempt, error) {
	a := model.LoginAttempt{Identity: normalizeIdentity(identity)}
	var lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO login_attempts (identity, failures, locked_until, updated_at)
		 VALUES ($1, 1, NULL, $4)
		 ON CONFLICT (identity) DO UPDATE SET
		   failures = login_attempts.failures + 1,
		   locked_until = CASE WHEN login_attempts.failures + 1 >= $2 THEN $3 ELSE login_attempts.locked_until END,
		   updated_at = $4
		 RETURNING failures, locked_until, updated_at`,
		a.Identity, threshold, lockUntil, now).
		Scan(&a.Failures, &lockedUntil, &a.UpdatedAt)
	if err != nil {
		return model.LoginAttempt{}, fmt.Errorf("record failed login: %w", err)
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	return a, nil
}

func (r *AttemptRepository) Reset(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE identity = $1`, normalizeIdentity(identity))
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}
