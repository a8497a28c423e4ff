package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	SessionToken string     `json:"session_token"`
	ExpiresAt    string     `json:"expires_at"`
	User         PublicUser `json:"user"`
	Permissions  []string   `json:"permissions"`
}

type SetPasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

type CreateUserRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	AssignedCountry string `json:"assigned_country,omitempty"`
	FullName        string `json:"full_name,omitempty"`
	Email           string `json:"email,omitempty"`
}

type ExportTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	URL       string `json:"url"`
}
