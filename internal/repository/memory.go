package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"waterdash/internal/model"
)

// In-memory implementations backing tests and DSN-less deployments. All
// methods are safe for concurrent use.

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]model.User)}
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(username))
	for _, u := range r.users {
		if strings.ToLower(u.Username) == needle {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return model.ErrUserAlreadyExists
	}
	needle := strings.ToLower(u.Username)
	for _, existing := range r.users {
		if strings.ToLower(existing.Username) == needle {
			return model.ErrUserAlreadyExists
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) SetActive(_ context.Context, userID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.Active = active
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) RecordLogin(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	t := at
	u.LastLogin = &t
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]model.Session)}
}

func (r *MemorySessionRepository) Create(_ context.Context, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
	return nil
}

func (r *MemorySessionRepository) Find(_ context.Context, token string) (model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	if !ok {
		return model.Session{}, model.ErrSessionNotFound
	}
	return s, nil
}

func (r *MemorySessionRepository) Touch(_ context.Context, token string, activityAt, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return model.ErrSessionNotFound
	}
	if activityAt.After(s.LastActivityAt) {
		s.LastActivityAt = activityAt
	}
	if expiresAt.After(s.ExpiresAt) {
		s.ExpiresAt = expiresAt
	}
	r.sessions[token] = s
	return nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func (r *MemorySessionRepository) DeleteForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, token)
		}
	}
	return nil
}

type MemoryAttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]model.LoginAttempt
}

func NewMemoryAttemptRepository() *MemoryAttemptRepository {
	return &MemoryAttemptRepository{attempts: make(map[string]model.LoginAttempt)}
}

func (r *MemoryAttemptRepository) Find(_ context.Context, identity string) (model.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeIdentity(identity)
	a, ok := r.attempts[key]
	if !ok {
		return model.LoginAttempt{Identity: key}, nil
	}
	return a, nil
}

func (r *MemoryAttemptRepository) RecordFailure(_ context.Context, identity string, threshold int, lockUntil, now time.Time) (model.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeIdentity(identity)
	a, ok := r.attempts[key]
	if !ok {
		a = model.LoginAttempt{Identity: key}
	}
	a.Failures++
	a.UpdatedAt = now
	if a.Failures >= threshold && a.LockedUntil == nil {
		t := lockUntil
		a.LockedUntil = &t
	}
	r.attempts[key] = a
	return a, nil
}

func (r *MemoryAttemptRepository) Reset(_ context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, normalizeIdentity(identity))
	return nil
}

type MemoryAuditRepository struct {
	mu     sync.RWMutex
	events []model.AuditEvent
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Append(_ context.Context, e model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryAuditRepository) Query(_ context.Context, q model.AuditQuery) ([]model.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]model.AuditEvent, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.ActorID != "" && e.ActorID != q.ActorID {
			continue
		}
		if q.Outcome != "" && e.Outcome != q.Outcome {
			continue
		}
		matched = append(matched, e)
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.AuditEvent{}, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}
