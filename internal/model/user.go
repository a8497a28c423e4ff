package model

import (
	"strings"
	"time"
)

// Role is the ordered privilege level of a dashboard account.
// Comparison goes through Level(); the string values match the stored
// representation in the user store.
type Role string

const (
	RoleViewer       Role = "viewer"
	RoleAnalyst      Role = "analyst"
	RoleCountryAdmin Role = "country_admin"
	RoleMasterUser   Role = "master_user"
)

var roleLevels = map[Role]int{
	RoleViewer:       25,
	RoleAnalyst:      50,
	RoleCountryAdmin: 75,
	RoleMasterUser:   100,
}

// Level returns the numeric privilege rank. Unknown roles rank below
// every valid role.
func (r Role) Level() int {
	return roleLevels[r]
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

func (r Role) DisplayName() string {
	switch r {
	case RoleMasterUser:
		return "Master User"
	case RoleCountryAdmin:
		return "Country Administrator"
	case RoleAnalyst:
		return "Data Analyst"
	case RoleViewer:
		return "Viewer"
	default:
		return string(r)
	}
}

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// User is a dashboard account. AssignedCountry is empty exactly when the
// role is RoleMasterUser; every other role is pinned to one country.
// Accounts are never deleted, only deactivated, so the audit trail keeps
// resolving actor IDs.
type User struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	Role            Role       `json:"role"`
	AssignedCountry string     `json:"assigned_country,omitempty"`
	FullName        string     `json:"full_name,omitempty"`
	Email           string     `json:"email,omitempty"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
}

// Unscoped reports whether the user sees data from every country.
func (u User) Unscoped() bool {
	return u.Role == RoleMasterUser
}

// ValidateScope enforces the country-assignment invariant: master users
// carry no country, everyone else carries exactly one.
func (u User) ValidateScope() error {
	assigned := strings.TrimSpace(u.AssignedCountry) != ""
	if u.Role == RoleMasterUser && assigned {
		return ErrValidation
	}
	if u.Role != RoleMasterUser && !assigned {
		return ErrValidation
	}
	return nil
}

// PublicUser is the shape handed to presentation code; it never carries
// the password hash.
type PublicUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Role            Role   `json:"role"`
	RoleDisplay     string `json:"role_display"`
	AssignedCountry string `json:"assigned_country,omitempty"`
	FullName        string `json:"full_name,omitempty"`
	Active          bool   `json:"active"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		Role:            u.Role,
		RoleDisplay:     u.Role.DisplayName(),
		AssignedCountry: u.AssignedCountry,
		FullName:        u.FullName,
		Active:          u.Active,
	}
}
