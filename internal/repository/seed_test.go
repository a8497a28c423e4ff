package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterdash/internal/hash"
	"waterdash/internal/model"
)

func TestLoadUsersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"username": "root", "password": "secret", "role": "MASTER_USER", "full_name": "Root", "email": "root@example.com"},
		{"username": "viewer_malawi", "password": "hunter2", "role": "VIEWER", "assigned_country": "Malawi", "full_name": "Viewer", "email": "v@example.com", "inactive": true}
	]`), 0o600))

	hasher := hash.LegacySHA256{}
	users, err := LoadUsersFile(path, hasher, time.Now())
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, model.RoleMasterUser, users[0].Role)
	assert.Empty(t, users[0].AssignedCountry)
	assert.True(t, users[0].Active)
	assert.NoError(t, hasher.Verify("secret", users[0].PasswordHash))

	assert.False(t, users[1].Active)
	assert.Equal(t, "Malawi", users[1].AssignedCountry)
}

func TestLoadUsersFileRejectsScopedMaster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"username": "bad", "password": "x", "role": "MASTER_USER", "assigned_country": "Uganda", "full_name": "Bad", "email": "b@example.com"}
	]`), 0o600))

	_, err := LoadUsersFile(path, hash.LegacySHA256{}, time.Now())
	assert.Error(t, err)
}

func TestSeedOnlyEmptyStore(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	users, err := DemoUsers(hash.LegacySHA256{}, time.Now())
	require.NoError(t, err)

	n, err := Seed(ctx, repo, users)
	require.NoError(t, err)
	assert.Equal(t, len(users), n)

	// A second seed run is a no-op.
	n, err = Seed(ctx, repo, users)
	require.NoError(t, err)
	assert.Zero(t, n)

	u, err := repo.FindByUsername(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMasterUser, u.Role)
}

func TestMemoryAttemptRepositoryLockThreshold(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAttemptRepository()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	lockUntil := now.Add(15 * time.Minute)

	for i := 1; i <= 4; i++ {
		a, err := repo.RecordFailure(ctx, "alice", 5, lockUntil, now)
		require.NoError(t, err)
		assert.Equal(t, i, a.Failures)
		assert.Nil(t, a.LockedUntil)
	}

	a, err := repo.RecordFailure(ctx, "ALICE", 5, lockUntil, now)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Failures)
	require.NotNil(t, a.LockedUntil)

	require.NoError(t, repo.Reset(ctx, "alice"))
	a, err = repo.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, a.Failures)
}
