package handler

import (
	"context"
	"net/http"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports liveness. With a database configured it pings
// it; in memory mode there is nothing to check.
type HealthHandler struct {
	db healthChecker
}

func NewHealthHandler(db healthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	store := "memory"
	if h.db != nil {
		store = "postgres"
		if err := h.db.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
	}

	w.Header().Set("X-Store", store)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
