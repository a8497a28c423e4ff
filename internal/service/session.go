package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"waterdash/internal/model"
)

const tokenBytes = 32

// SessionService issues and validates opaque session tokens. Tokens are
// 256 bits from crypto/rand and carry no claims; all session state lives
// server-side. Expiry slides with activity up to an optional absolute
// cap measured from creation.
type SessionService struct {
	sessions SessionStore
	idleTTL  time.Duration
	maxAge   time.Duration // zero disables the absolute cap
	now      func() time.Time
}

type SessionOption func(*SessionService)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

// WithMaxAge bounds a session's total lifetime regardless of activity.
func WithMaxAge(maxAge time.Duration) SessionOption {
	return func(s *SessionService) { s.maxAge = maxAge }
}

func NewSessionService(sessions SessionStore, idleTTL time.Duration, opts ...SessionOption) *SessionService {
	s := &SessionService{
		sessions: sessions,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
	if s.idleTTL <= 0 {
		s.idleTTL = 30 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *SessionService) Create(ctx context.Context, userID string) (model.Session, error) {
	token, err := newToken()
	if err != nil {
		return model.Session{}, err
	}

	now := s.now().UTC()
	session := model.Session{
		Token:          token,
		UserID:         userID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      s.deadline(now, now),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return model.Session{}, err
	}
	return session, nil
}

// Validate checks a token and slides its idle deadline. An expired
// session is removed and reported as ErrSessionExpired; an unknown token
// as ErrSessionNotFound.
func (s *SessionService) Validate(ctx context.Context, token string) (model.Session, error) {
	session, err := s.sessions.Find(ctx, token)
	if err != nil {
		return model.Session{}, err
	}

	now := s.now().UTC()
	if session.ExpiredAt(now) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			return model.Session{}, err
		}
		return model.Session{}, model.ErrSessionExpired
	}

	deadline := s.deadline(now, session.CreatedAt)
	if err := s.sessions.Touch(ctx, token, now, deadline); err != nil {
		return model.Session{}, err
	}
	session.LastActivityAt = now
	if deadline.After(session.ExpiresAt) {
		session.ExpiresAt = deadline
	}
	return session, nil
}

func (s *SessionService) Revoke(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

func (s *SessionService) RevokeForUser(ctx context.Context, userID string) error {
	return s.sessions.DeleteForUser(ctx, userID)
}

// deadline is now+idleTTL, capped at createdAt+maxAge when a cap is set.
func (s *SessionService) deadline(now, createdAt time.Time) time.Time {
	d := now.Add(s.idleTTL)
	if s.maxAge > 0 {
		if limit := createdAt.Add(s.maxAge); d.After(limit) {
			return limit
		}
	}
	return d
}
