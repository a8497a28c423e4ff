package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterdash/internal/model"
)

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "assigned_country",
		"full_name", "email", "active", "created_at", "last_login"}).
		AddRow("u-1", "analyst_uganda", "bcrypt$x", "analyst", "Uganda",
			"Uganda Analyst", "a@example.com", true, created, nil)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE lower\(username\) = lower\(\$1\)`).
		WithArgs("Analyst_Uganda").
		WillReturnRows(rows)

	u, err := repo.FindByUsername(context.Background(), " Analyst_Uganda ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, model.RoleAnalyst, u.Role)
	assert.Equal(t, "Uganda", u.AssignedCountry)
	assert.Nil(t, u.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryTouchMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Touch(context.Background(), "gone", now, now.Add(30*time.Minute))
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryTouchIsForwardOnly(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepository(db)

	// Concurrent validations race on Touch; GREATEST keeps a stale
	// deadline from ever overwriting a fresher one.
	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE sessions\s+SET last_activity_at = GREATEST\(last_activity_at, \$2\),\s+expires_at = GREATEST\(expires_at, \$3\)`).
		WithArgs(sqlmock.AnyArg(), now, now.Add(30*time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Touch(context.Background(), "tok", now, now.Add(30*time.Minute))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemorySessionTouchNeverShrinksDeadlines(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, model.Session{
		Token:          "tok",
		UserID:         "u-1",
		CreatedAt:      created,
		LastActivityAt: created.Add(10 * time.Minute),
		ExpiresAt:      created.Add(40 * time.Minute),
	}))

	// A touch carrying older timestamps loses the race and changes nothing.
	require.NoError(t, repo.Touch(ctx, "tok", created.Add(5*time.Minute), created.Add(35*time.Minute)))
	s, err := repo.Find(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, created.Add(10*time.Minute), s.LastActivityAt)
	assert.Equal(t, created.Add(40*time.Minute), s.ExpiresAt)

	// A fresher touch still advances both.
	require.NoError(t, repo.Touch(ctx, "tok", created.Add(20*time.Minute), created.Add(50*time.Minute)))
	s, err = repo.Find(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, created.Add(20*time.Minute), s.LastActivityAt)
	assert.Equal(t, created.Add(50*time.Minute), s.ExpiresAt)
}

func TestSessionRepositoryStoresDigestNotToken(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	s := model.Session{
		Token:          "opaque-token",
		UserID:         "u-1",
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(30 * time.Minute),
	}
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(hashToken(s.Token), s.UserID, s.CreatedAt, s.LastActivityAt, s.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	assert.NotEqual(t, s.Token, hashToken(s.Token))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryRecordFailureLocks(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewAttemptRepository(db)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	lockUntil := now.Add(15 * time.Minute)
	mock.ExpectQuery(`INSERT INTO login_attempts`).
		WithArgs("alice", 5, lockUntil, now).
		WillReturnRows(sqlmock.NewRows([]string{"failures", "locked_until", "updated_at"}).
			AddRow(5, lockUntil, now))

	a, err := repo.RecordFailure(context.Background(), "Alice", 5, lockUntil, now)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Failures)
	require.NotNil(t, a.LockedUntil)
	assert.True(t, a.LockedUntil.Equal(lockUntil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryQueryFilters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewAuditRepository(db)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM audit_events WHERE action = \$1 ORDER BY occurred_at DESC`).
		WithArgs(model.AuditLoginFailure, 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "actor_id", "action", "outcome", "target", "details"}).
			AddRow("evt-1", at, nil, model.AuditLoginFailure, model.OutcomeDenied, "alice", []byte(`{"reason":"bad password"}`)))

	events, err := repo.Query(context.Background(), model.AuditQuery{Action: model.AuditLoginFailure})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Target)
	assert.Equal(t, "bad password", events[0].Details["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
