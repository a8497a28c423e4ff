package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"waterdash/internal/hash"
	"waterdash/internal/model"
)

// userFileEntry is the on-disk shape of a bootstrap users file. Either a
// pre-computed hash or a plaintext password may be given; plaintext is
// hashed on load and never stored.
type userFileEntry struct {
	Username        string `json:"username"`
	Password        string `json:"password,omitempty"`
	PasswordHash    string `json:"password_hash,omitempty"`
	Role            string `json:"role"`
	AssignedCountry string `json:"assigned_country,omitempty"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Inactive        bool   `json:"inactive,omitempty"`
}

type UserCreator interface {
	Create(ctx context.Context, u model.User) error
	Count(ctx context.Context) (int, error)
}

// LoadUsersFile reads bootstrap accounts from a JSON file.
func LoadUsersFile(path string, hasher hash.Hasher, now time.Time) ([]model.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var entries []userFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}

	users := make([]model.User, 0, len(entries))
	for i, entry := range entries {
		role, ok := model.ParseRole(entry.Role)
		if !ok {
			return nil, fmt.Errorf("users file entry %d (%s): unknown role %q", i, entry.Username, entry.Role)
		}
		passwordHash := entry.PasswordHash
		var err error
		if passwordHash == "" {
			if entry.Password == "" {
				return nil, fmt.Errorf("users file entry %d (%s): password or password_hash required", i, entry.Username)
			}
			passwordHash, err = hasher.Hash(entry.Password)
			if err != nil {
				return nil, fmt.Errorf("users file entry %d (%s): %w", i, entry.Username, err)
			}
		}
		u := model.User{
			ID:              uuid.NewString(),
			Username:        entry.Username,
			PasswordHash:    passwordHash,
			Role:            role,
			AssignedCountry: entry.AssignedCountry,
			FullName:        entry.FullName,
			Email:           entry.Email,
			Active:          !entry.Inactive,
			CreatedAt:       now,
		}
		if err := u.ValidateScope(); err != nil {
			return nil, fmt.Errorf("users file entry %d (%s): %w", i, entry.Username, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// DemoUsers returns the built-in demo accounts used when no database and
// no users file is configured. Passwords are hashed at startup.
func DemoUsers(hasher hash.Hasher, now time.Time) ([]model.User, error) {
	seed := []struct {
		username, password, fullName, country string
		role                                  model.Role
	}{
		{"master", "master2024", "System Administrator", "", model.RoleMasterUser},
		{"admin_uganda", "uganda2024", "Uganda Administrator", "Uganda", model.RoleCountryAdmin},
		{"admin_cameroon", "cameroon2024", "Cameroon Administrator", "Cameroon", model.RoleCountryAdmin},
		{"analyst_uganda", "analyst2024", "Uganda Analyst", "Uganda", model.RoleAnalyst},
		{"analyst_lesotho", "analyst2024", "Lesotho Analyst", "Lesotho", model.RoleAnalyst},
		{"viewer_malawi", "viewer2024", "Malawi Viewer", "Malawi", model.RoleViewer},
	}

	users := make([]model.User, 0, len(seed))
	for _, s := range seed {
		passwordHash, err := hasher.Hash(s.password)
		if err != nil {
			return nil, fmt.Errorf("hash demo password for %s: %w", s.username, err)
		}
		users = append(users, model.User{
			ID:              uuid.NewString(),
			Username:        s.username,
			PasswordHash:    passwordHash,
			Role:            s.role,
			AssignedCountry: s.country,
			FullName:        s.fullName,
			Email:           s.username + "@waterdash.example",
			Active:          true,
			CreatedAt:       now,
		})
	}
	return users, nil
}

// Seed inserts users into an empty store. A store that already holds
// accounts is left untouched so restarts never duplicate or revert users.
func Seed(ctx context.Context, repo UserCreator, users []model.User) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	for _, u := range users {
		if err := repo.Create(ctx, u); err != nil {
			return 0, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	return len(users), nil
}
