package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Authentication errors. ErrInvalidCredentials covers unknown user,
	// deactivated user and wrong password identically so login responses
	// never disclose account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Administrative errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrValidation        = errors.New("validation failed")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// LockedError reports a login attempt against a locked-out identity and
// carries the instant the lockout lifts so callers can surface a
// retry-after hint.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// RetryAfter returns the remaining lockout duration at the given instant,
// never negative.
func (e *LockedError) RetryAfter(now time.Time) time.Duration {
	d := e.Until.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
