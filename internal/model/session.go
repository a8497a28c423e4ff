package model

import "time"

// Session is a server-side login session keyed by an opaque token. The
// token is the only field ever shared with callers; all other state is
// owned by the session service.
type Session struct {
	Token          string    `json:"-"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// ExpiredAt reports whether the session is past its idle deadline at the
// given instant.
func (s Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// LoginAttempt tracks consecutive failures for one login identity.
// Records are created lazily on the first failure and reset on success;
// an expired lockout is cleared on the next check, never by a timer.
type LoginAttempt struct {
	Identity    string     `json:"identity"`
	Failures    int        `json:"failures"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LockedAt reports whether the identity is locked out at the given instant.
func (a LoginAttempt) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
