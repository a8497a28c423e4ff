package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"waterdash/internal/model"
)

// SessionRepository persists opaque session tokens in Postgres. Only a
// SHA-256 digest of the token hits the database, so a leaked dump cannot
// be replayed against the API.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *SessionRepository) Create(ctx context.Context, s model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at, last_activity_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		hashToken(s.Token), s.UserID, s.CreatedAt, s.LastActivityAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Find(ctx context.Context, token string) (model.Session, error) {
	var s model.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, created_at, last_activity_at, expires_at
		 FROM sessions WHERE token_hash = $1`, hashToken(token)).
		Scan(&s.UserID, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, model.ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("find session: %w", err)
	}
	s.Token = token
	return s, nil
}

// Touch slides the idle deadline forward. GREATEST keeps concurrent
// validations from ever shrinking a session's lifetime.
func (r *SessionRepository) Touch(ctx context.Context, token string, activityAt, expiresAt time.Time) error {
	tag, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET last_activity_at = GREATEST(last_activity_at, $2),
		     expires_at = GREATEST(expires_at, $3)
		 WHERE token_hash = $1`,
		hashToken(token), activityAt, expiresAt)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := tag.RowsAffected(); n == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token_hash = $1`, hashToken(token))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}
