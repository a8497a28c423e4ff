package service

import (
	"context"
	"time"

	"waterdash/internal/model"
)

// LockoutService throttles credential guessing per login identity. It
// counts consecutive failures regardless of whether the username exists,
// so enumeration through the limiter is impossible. Expired lockouts are
// cleared lazily on the next check; there are no background timers.
type LockoutService struct {
	attempts     AttemptStore
	threshold    int
	lockDuration time.Duration
	now          func() time.Time
}

type LockoutOption func(*LockoutService)

func WithLockoutClock(now func() time.Time) LockoutOption {
	return func(s *LockoutService) { s.now = now }
}

func NewLockoutService(attempts AttemptStore, threshold int, lockDuration time.Duration, opts ...LockoutOption) *LockoutService {
	s := &LockoutService{
		attempts:     attempts,
		threshold:    threshold,
		lockDuration: lockDuration,
		now:          time.Now,
	}
	if s.threshold <= 0 {
		s.threshold = 5
	}
	if s.lockDuration <= 0 {
		s.lockDuration = 15 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check returns a LockedError while the identity is locked out. A lock
// that has expired is reset so the identity gets a fresh failure budget.
func (s *LockoutService) Check(ctx context.Context, identity string) error {
	a, err := s.attempts.Find(ctx, identity)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if a.LockedAt(now) {
		return &model.LockedError{Until: *a.LockedUntil}
	}
	if a.LockedUntil != nil {
		// Lock expired since the last attempt.
		if err := s.attempts.Reset(ctx, identity); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFailure counts one failed attempt and reports whether it
// tripped the lockout.
func (s *LockoutService) RegisterFailure(ctx context.Context, identity string) (model.LoginAttempt, error) {
	now := s.now().UTC()
	return s.attempts.RecordFailure(ctx, identity, s.threshold, now.Add(s.lockDuration), now)
}

// Reset clears the failure counter after a successful login.
func (s *LockoutService) Reset(ctx context.Context, identity string) error {
	return s.attempts.Reset(ctx, identity)
}

func (s *LockoutService) Threshold() int { return s.threshold }
