package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"waterdash/internal/model"
	"waterdash/internal/service"
)

type sessionResolver interface {
	CurrentUser(ctx context.Context, token string) (model.User, model.Session, error)
}

type contextKey string

const currentUserContextKey contextKey = "current_user"

type AuthMiddleware struct {
	auth sessionResolver
}

func NewAuthMiddleware(auth sessionResolver) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth resolves the opaque bearer token to an account and slides
// the session's idle deadline. Expired sessions get their own error code
// so clients can distinguish "log in again" from "bad token".
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeDenied(w, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		token := strings.TrimSpace(header[7:])
		user, _, err := m.auth.CurrentUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, model.ErrSessionExpired) {
				writeDenied(w, "SESSION_EXPIRED", "session expired, log in again")
				return
			}
			writeDenied(w, "UNAUTHORIZED", "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), currentUserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on a named permission. It runs after
// RequireAuth.
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeDenied(w, "UNAUTHORIZED", "authentication required")
				return
			}

			if !service.HasPermission(user, permission) {
				writeDenied(w, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(currentUserContextKey).(model.User)
	return user, ok
}

func writeDenied(w http.ResponseWriter, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	if code == "FORBIDDEN" {
		w.WriteHeader(http.StatusForbidden)
	} else {
		w.WriteHeader(http.StatusUnauthorized)
	}

	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
