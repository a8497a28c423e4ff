package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waterdash/internal/hash"
	"waterdash/internal/model"
	"waterdash/internal/repository"
)

// testClock is a hand-cranked clock shared by every service in a fixture.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock    *testClock
	users    *repository.MemoryUserRepository
	sessions *SessionService
	lockout  *LockoutService
	auditLog *repository.MemoryAuditRepository
	audit    *AuditService
	rbac     *RBACService
	auth     *AuthService
}

func newFixture(t *testing.T, sessionOpts ...SessionOption) *fixture {
	t.Helper()

	clock := newTestClock()
	users := repository.NewMemoryUserRepository()
	auditLog := repository.NewMemoryAuditRepository()
	audit := NewAuditService(auditLog, nil, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithAuditClock(clock.Now))
	rbac := NewRBACService(audit)
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 30*time.Minute,
		append([]SessionOption{WithSessionClock(clock.Now)}, sessionOpts...)...)
	lockout := NewLockoutService(repository.NewMemoryAttemptRepository(), 5, 15*time.Minute,
		WithLockoutClock(clock.Now))

	auth, err := NewAuthService(users, sessions, lockout, audit, rbac,
		hash.NewChain(hash.LegacySHA256{}), WithAuthClock(clock.Now))
	require.NoError(t, err)

	return &fixture{
		clock:    clock,
		users:    users,
		sessions: sessions,
		lockout:  lockout,
		auditLog: auditLog,
		audit:    audit,
		rbac:     rbac,
		auth:     auth,
	}
}

func (f *fixture) addUser(t *testing.T, username, password string, role model.Role, country string) model.User {
	t.Helper()
	hasher := hash.NewChain(hash.LegacySHA256{})
	passwordHash, err := hasher.Hash(password)
	require.NoError(t, err)

	u := model.User{
		ID:              "id-" + username,
		Username:        username,
		PasswordHash:    passwordHash,
		Role:            role,
		AssignedCountry: country,
		Active:          true,
		CreatedAt:       f.clock.Now(),
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()
	events, err := f.auditLog.Query(context.Background(), model.AuditQuery{Limit: 500})
	require.NoError(t, err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}
