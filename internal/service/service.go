package service

import (
	"context"
	"time"

	"waterdash/internal/model"
)

// Store interfaces are declared here, on the consumer side; the
// repository package provides Postgres and in-memory implementations.

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetActive(ctx context.Context, userID string, active bool) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

type SessionStore interface {
	Create(ctx context.Context, s model.Session) error
	Find(ctx context.Context, token string) (model.Session, error)
	Touch(ctx context.Context, token string, activityAt, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID string) error
}

type AttemptStore interface {
	Find(ctx context.Context, identity string) (model.LoginAttempt, error)
	RecordFailure(ctx context.Context, identity string, threshold int, lockUntil, now time.Time) (model.LoginAttempt, error)
	Reset(ctx context.Context, identity string) error
}

type AuditStore interface {
	Append(ctx context.Context, e model.AuditEvent) error
	Query(ctx context.Context, q model.AuditQuery) ([]model.AuditEvent, error)
}
