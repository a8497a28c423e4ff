package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterdash/internal/model"
)

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "analyst_uganda", "correct horse", model.RoleAnalyst, "Uganda")

	session, got, err := f.auth.Login(context.Background(), "analyst_uganda", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, u.ID, session.UserID)
	require.NotNil(t, got.LastLogin)
	assert.Contains(t, f.auditActions(t), model.AuditLoginSuccess)
}

func TestLoginFailureModesAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "right", model.RoleViewer, "Malawi")
	inactive := f.addUser(t, "bob", "right", model.RoleViewer, "Malawi")
	require.NoError(t, f.users.SetActive(context.Background(), inactive.ID, false))

	for _, tc := range []struct {
		name, username, password string
	}{
		{"wrong password", "alice", "wrong"},
		{"unknown user", "nobody", "whatever"},
		{"inactive account", "bob", "right"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.auth.Login(context.Background(), tc.username, tc.password)
			assert.ErrorIs(t, err, model.ErrInvalidCredentials)
		})
	}
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "right", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := f.auth.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	// Even the correct password is refused while locked.
	_, _, err := f.auth.Login(ctx, "alice", "right")
	var locked *model.LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 15*time.Minute, locked.RetryAfter(f.clock.Now()))
	assert.Contains(t, f.auditActions(t), model.AuditLoginBlocked)

	// The lock lifts on its own once the window passes.
	f.clock.Advance(15*time.Minute + time.Second)
	_, _, err = f.auth.Login(ctx, "alice", "right")
	assert.NoError(t, err)
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "right", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, _ = f.auth.Login(ctx, "alice", "wrong")
	}
	_, _, err := f.auth.Login(ctx, "alice", "right")
	require.NoError(t, err)

	// The budget is full again; four more failures must not lock.
	for i := 0; i < 4; i++ {
		_, _, err = f.auth.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	}
	_, _, err = f.auth.Login(ctx, "alice", "right")
	assert.NoError(t, err)
}

func TestUnknownUsernamesShareTheLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := f.auth.Login(ctx, "ghost", "guess")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	var locked *model.LockedError
	_, _, err := f.auth.Login(ctx, "ghost", "guess")
	assert.ErrorAs(t, err, &locked)
}

func TestCurrentUserSlidesAndExpires(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "right", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	session, _, err := f.auth.Login(ctx, "alice", "right")
	require.NoError(t, err)

	// Activity inside the idle window keeps the session alive well past
	// the original deadline.
	for i := 0; i < 3; i++ {
		f.clock.Advance(20 * time.Minute)
		_, _, err = f.auth.CurrentUser(ctx, session.Token)
		require.NoError(t, err)
	}

	f.clock.Advance(31 * time.Minute)
	_, _, err = f.auth.CurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrSessionExpired)
	assert.Contains(t, f.auditActions(t), model.AuditSessionExpired)

	// The expired token is gone, not just expired.
	_, _, err = f.auth.CurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionAbsoluteMaxAge(t *testing.T) {
	f := newFixture(t, WithMaxAge(time.Hour))
	f.addUser(t, "alice", "right", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	session, _, err := f.auth.Login(ctx, "alice", "right")
	require.NoError(t, err)

	// Constant activity cannot outlive the cap.
	for i := 0; i < 4; i++ {
		f.clock.Advance(14 * time.Minute)
		_, _, err = f.auth.CurrentUser(ctx, session.Token)
		require.NoError(t, err)
	}

	f.clock.Advance(10 * time.Minute)
	_, _, err = f.auth.CurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "right", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	session, _, err := f.auth.Login(ctx, "alice", "right")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, session.Token))
	_, _, err = f.auth.CurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.Contains(t, f.auditActions(t), model.AuditLogout)

	// Logging out twice is a no-op.
	assert.NoError(t, f.auth.Logout(ctx, session.Token))
}

func TestSetPasswordSelfRequiresCurrent(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", "old", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	err := f.auth.SetPassword(ctx, alice, alice.ID, "not the password", "brand-new")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	require.NoError(t, f.auth.SetPassword(ctx, alice, alice.ID, "old", "brand-new"))
	_, _, err = f.auth.Login(ctx, "alice", "brand-new")
	assert.NoError(t, err)
	assert.Contains(t, f.auditActions(t), model.AuditPasswordChanged)
}

func TestSetPasswordRevokesSessions(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "admin_uganda", "adminpw", model.RoleCountryAdmin, "Uganda")
	alice := f.addUser(t, "alice", "old", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	session, _, err := f.auth.Login(ctx, "alice", "old")
	require.NoError(t, err)

	// A manager reset needs no current password.
	require.NoError(t, f.auth.SetPassword(ctx, admin, alice.ID, "", "reset-by-admin"))

	_, _, err = f.auth.CurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSetPasswordDeniedOutsideScope(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "admin_uganda", "adminpw", model.RoleCountryAdmin, "Uganda")
	target := f.addUser(t, "analyst_lesotho", "pw", model.RoleAnalyst, "Lesotho")

	err := f.auth.SetPassword(context.Background(), admin, target.ID, "", "reset-by-admin")
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.Contains(t, f.auditActions(t), model.AuditPermissionDenied)
}

func TestDeactivateRevokesAndAudits(t *testing.T) {
	f := newFixture(t)
	master := f.addUser(t, "master", "masterpw", model.RoleMasterUser, "")
	alice := f.addUser(t, "alice", "pw", model.RoleAnalyst, "Uganda")
	ctx := context.Background()

	session, _, err := f.auth.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	require.NoError(t, f.auth.Deactivate(ctx, master, alice.ID))

	_, _, err = f.auth.CurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	_, _, err = f.auth.Login(ctx, "alice", "pw")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	assert.Contains(t, f.auditActions(t), model.AuditUserDeactivated)
}

func TestNobodyDeactivatesAMaster(t *testing.T) {
	f := newFixture(t)
	master := f.addUser(t, "master", "pw", model.RoleMasterUser, "")
	other := f.addUser(t, "master2", "pw", model.RoleMasterUser, "")

	err := f.auth.Deactivate(context.Background(), master, other.ID)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestCreateUserWithinScope(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "admin_uganda", "pw", model.RoleCountryAdmin, "Uganda")
	ctx := context.Background()

	created, err := f.auth.CreateUser(ctx, admin, "new_analyst", "secret-2024", model.RoleAnalyst, "Uganda", "New Analyst", "n@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAnalyst, created.Role)

	_, _, err = f.auth.Login(ctx, "new_analyst", "secret-2024")
	assert.NoError(t, err)

	// Same level or another country is out of reach for a scoped admin.
	_, err = f.auth.CreateUser(ctx, admin, "peer", "password1", model.RoleCountryAdmin, "Uganda", "", "")
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	_, err = f.auth.CreateUser(ctx, admin, "abroad", "password1", model.RoleAnalyst, "Lesotho", "", "")
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestCreateUserScopeInvariant(t *testing.T) {
	f := newFixture(t)
	master := f.addUser(t, "master", "pw", model.RoleMasterUser, "")
	ctx := context.Background()

	_, err := f.auth.CreateUser(ctx, master, "floating", "password1", model.RoleAnalyst, "", "", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPasswordPolicyRejectsShortPasswords(t *testing.T) {
	f := newFixture(t)
	master := f.addUser(t, "master", "pw", model.RoleMasterUser, "")
	ctx := context.Background()

	_, err := f.auth.CreateUser(ctx, master, "weak", "short", model.RoleViewer, "Uganda", "", "")
	assert.ErrorIs(t, err, model.ErrValidation)

	err = f.auth.SetPassword(ctx, master, master.ID, "pw", "short")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestManagedUsersListing(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "admin_uganda", "pw", model.RoleCountryAdmin, "Uganda")
	f.addUser(t, "analyst_uganda", "pw", model.RoleAnalyst, "Uganda")
	f.addUser(t, "viewer_uganda", "pw", model.RoleViewer, "Uganda")
	f.addUser(t, "analyst_lesotho", "pw", model.RoleAnalyst, "Lesotho")
	f.addUser(t, "master", "pw", model.RoleMasterUser, "")
	viewer := f.addUser(t, "viewer_malawi", "pw", model.RoleViewer, "Malawi")

	users, err := f.auth.ManagedUsers(context.Background(), admin)
	require.NoError(t, err)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"analyst_uganda", "viewer_uganda"}, names)

	_, err = f.auth.ManagedUsers(context.Background(), viewer)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}
