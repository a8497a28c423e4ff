package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"waterdash/internal/hash"
	"waterdash/internal/model"
)

// AuthService owns the credential checks and the account lifecycle. All
// login failure modes surface as the same ErrInvalidCredentials so the
// API never discloses whether an account exists or is deactivated.
const defaultMinPasswordLen = 8

type AuthService struct {
	users          UserStore
	sessions       *SessionService
	lockout        *LockoutService
	audit          *AuditService
	rbac           *RBACService
	hasher         hash.Hasher
	dummyHash      string
	minPasswordLen int
	now            func() time.Time
}

type AuthOption func(*AuthService)

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func WithMinPasswordLength(n int) AuthOption {
	return func(s *AuthService) {
		if n > 0 {
			s.minPasswordLen = n
		}
	}
}

func NewAuthService(users UserStore, sessions *SessionService, lockout *LockoutService, audit *AuditService, rbac *RBACService, hasher hash.Hasher, opts ...AuthOption) (*AuthService, error) {
	// Hashed once at startup and verified against whenever the username
	// is unknown, so the miss path costs the same as a real compare.
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}

	s := &AuthService{
		users:          users,
		sessions:       sessions,
		lockout:        lockout,
		audit:          audit,
		rbac:           rbac,
		hasher:         hasher,
		dummyHash:      dummy,
		minPasswordLen: defaultMinPasswordLen,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login verifies credentials and opens a session. The lockout check runs
// before any credential work so a locked identity cannot burn CPU or
// probe passwords.
func (s *AuthService) Login(ctx context.Context, username, password string) (model.Session, model.User, error) {
	identity := strings.TrimSpace(username)
	if identity == "" || password == "" {
		return model.Session{}, model.User{}, model.ErrInvalidCredentials
	}

	if err := s.lockout.Check(ctx, identity); err != nil {
		var locked *model.LockedError
		if errors.As(err, &locked) {
			s.audit.Record(ctx, model.AuditLoginBlocked, model.OutcomeDenied, "", identity,
				map[string]string{"locked_until": locked.Until.UTC().Format(time.RFC3339)})
		}
		return model.Session{}, model.User{}, err
	}

	user, findErr := s.users.FindByUsername(ctx, identity)
	switch {
	case errors.Is(findErr, model.ErrUserNotFound):
		// Burn a compare anyway to keep unknown and known usernames
		// indistinguishable by timing.
		_ = s.hasher.Verify(password, s.dummyHash)
		return model.Session{}, model.User{}, s.registerFailure(ctx, identity, "unknown user")
	case findErr != nil:
		return model.Session{}, model.User{}, findErr
	}

	verifyErr := s.hasher.Verify(password, user.PasswordHash)
	if verifyErr != nil {
		return model.Session{}, model.User{}, s.registerFailure(ctx, identity, "bad password")
	}
	if !user.Active {
		return model.Session{}, model.User{}, s.registerFailure(ctx, identity, "inactive account")
	}

	if err := s.lockout.Reset(ctx, identity); err != nil {
		return model.Session{}, model.User{}, err
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return model.Session{}, model.User{}, err
	}

	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return model.Session{}, model.User{}, err
	}
	user.LastLogin = &now

	s.audit.Record(ctx, model.AuditLoginSuccess, model.OutcomeOK, user.ID, user.Username, nil)
	return session, user, nil
}

func (s *AuthService) registerFailure(ctx context.Context, identity, reason string) error {
	a, err := s.lockout.RegisterFailure(ctx, identity)
	if err != nil {
		return err
	}
	details := map[string]string{
		"reason":   reason,
		"failures": strconv.Itoa(a.Failures),
	}
	if a.LockedUntil != nil {
		details["locked_until"] = a.LockedUntil.UTC().Format(time.RFC3339)
	}
	s.audit.Record(ctx, model.AuditLoginFailure, model.OutcomeDenied, "", identity, details)
	return model.ErrInvalidCredentials
}

// CurrentUser resolves a session token to its account, sliding the
// session's idle deadline. Sessions of deactivated accounts are revoked
// on sight.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (model.User, model.Session, error) {
	session, err := s.sessions.Validate(ctx, token)
	if errors.Is(err, model.ErrSessionExpired) {
		s.audit.Record(ctx, model.AuditSessionExpired, model.OutcomeOK, "", "", nil)
		return model.User{}, model.Session{}, err
	}
	if err != nil {
		return model.User{}, model.Session{}, err
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return model.User{}, model.Session{}, model.ErrSessionNotFound
	}
	if !user.Active {
		_ = s.sessions.Revoke(ctx, token)
		return model.User{}, model.Session{}, model.ErrSessionNotFound
	}
	return user, session, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	user, _, err := s.CurrentUser(ctx, token)
	if err != nil {
		// Logging out a dead session is not an error.
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	s.audit.Record(ctx, model.AuditLogout, model.OutcomeOK, user.ID, user.Username, nil)
	return nil
}

// SetPassword changes a password. Users change their own with the
// current password; managers reset their managed users' without it. Any
// change revokes every session of the target account.
func (s *AuthService) SetPassword(ctx context.Context, actor model.User, targetID, currentPassword, newPassword string) error {
	if err := s.checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return err
	}

	if actor.ID == target.ID {
		if err := s.hasher.Verify(currentPassword, target.PasswordHash); err != nil {
			return model.ErrInvalidCredentials
		}
	} else if err := s.rbac.RequireManage(ctx, actor, target); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, target.ID, newHash); err != nil {
		return err
	}
	if err := s.sessions.RevokeForUser(ctx, target.ID); err != nil {
		return err
	}

	s.audit.Record(ctx, model.AuditPasswordChanged, model.OutcomeOK, actor.ID, target.ID,
		map[string]string{"target_username": target.Username, "self": strconv.FormatBool(actor.ID == target.ID)})
	return nil
}

// Deactivate disables an account and revokes its sessions. Accounts are
// never deleted so audit actor IDs keep resolving.
func (s *AuthService) Deactivate(ctx context.Context, actor model.User, targetID string) error {
	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.rbac.RequireManage(ctx, actor, target); err != nil {
		return err
	}

	if err := s.users.SetActive(ctx, target.ID, false); err != nil {
		return err
	}
	if err := s.sessions.RevokeForUser(ctx, target.ID); err != nil {
		return err
	}

	s.audit.Record(ctx, model.AuditUserDeactivated, model.OutcomeOK, actor.ID, target.ID,
		map[string]string{"target_username": target.Username})
	return nil
}

// CreateUser registers a new account the actor is allowed to manage.
func (s *AuthService) CreateUser(ctx context.Context, actor model.User, username, password string, role model.Role, country, fullName, email string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || !role.Valid() {
		return model.User{}, model.ErrInvalidInput
	}
	if err := s.checkPasswordPolicy(password); err != nil {
		return model.User{}, err
	}

	user := model.User{
		ID:              uuid.NewString(),
		Username:        username,
		Role:            role,
		AssignedCountry: strings.TrimSpace(country),
		FullName:        strings.TrimSpace(fullName),
		Email:           strings.TrimSpace(email),
		Active:          true,
		CreatedAt:       s.now().UTC(),
	}
	if err := user.ValidateScope(); err != nil {
		return model.User{}, err
	}
	if err := s.rbac.RequireManage(ctx, actor, user); err != nil {
		return model.User{}, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, err
	}
	user.PasswordHash = passwordHash

	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}

	s.audit.Record(ctx, model.AuditUserCreated, model.OutcomeOK, actor.ID, user.ID,
		map[string]string{"username": user.Username, "role": string(user.Role)})
	return user, nil
}

func (s *AuthService) checkPasswordPolicy(password string) error {
	if len(password) < s.minPasswordLen {
		return fmt.Errorf("password must be at least %d characters: %w", s.minPasswordLen, model.ErrValidation)
	}
	return nil
}

// ManagedUsers lists the accounts the actor may administer.
func (s *AuthService) ManagedUsers(ctx context.Context, actor model.User) ([]model.User, error) {
	if err := s.rbac.Require(ctx, actor, PermManageUsers); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	return ManagedUsers(actor, users), nil
}
