//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"waterdash/internal/config"
	"waterdash/internal/dataset"
	"waterdash/internal/event"
	"waterdash/internal/handler"
	"waterdash/internal/hash"
	"waterdash/internal/middleware"
	"waterdash/internal/model"
	"waterdash/internal/repository"
	"waterdash/internal/router"
	"waterdash/internal/service"
)

// testEnv is a full API stack on in-memory stores with demo accounts
// and a small KPI data directory.
type testEnv struct {
	server *httptest.Server
	users  *repository.MemoryUserRepository
	audit  *repository.MemoryAuditRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	writeCSV(t, dataDir, "water_coverage.csv",
		"country,year,value\n"+
			"Uganda,2023,71\n"+
			"Cameroon,2023,64\n"+
			"Lesotho,2023,80\n"+
			"Malawi,2023,55\n")
	writeCSV(t, dataDir, "global_summary.csv",
		"region,value\nAfrica,67\n")

	cfg := &config.Config{
		ServerPort:       "8080",
		RequestTimeout:   30 * time.Second,
		DataDir:          dataDir,
		Countries:        []string{"Uganda", "Cameroon", "Lesotho", "Malawi"},
		CountryColumn:    "country",
		SessionIdleTTL:   30 * time.Minute,
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
		ExportSecret:     "integration-secret",
		ExportTTL:        5 * time.Minute,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
	}

	users := repository.NewMemoryUserRepository()
	auditRepo := repository.NewMemoryAuditRepository()
	hasher := hash.NewChain(hash.LegacySHA256{})

	demo, err := repository.DemoUsers(hasher, time.Now().UTC())
	require.NoError(t, err)
	_, err = repository.Seed(context.Background(), users, demo)
	require.NoError(t, err)

	bus := event.NewBus()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditService := service.NewAuditService(auditRepo, bus, log)
	rbacService := service.NewRBACService(auditService)
	sessionService := service.NewSessionService(repository.NewMemorySessionRepository(), cfg.SessionIdleTTL)
	lockoutService := service.NewLockoutService(repository.NewMemoryAttemptRepository(), cfg.LockoutThreshold, cfg.LockoutDuration)

	authService, err := service.NewAuthService(users, sessionService, lockoutService, auditService, rbacService, hasher)
	require.NoError(t, err)

	accessService := service.NewAccessService(auditService)
	exportService := service.NewExportService(cfg.ExportSecret, cfg.ExportTTL, auditService, rbacService)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	server := httptest.NewServer(router.New(cfg, prometheus.NewRegistry(), authMiddleware,
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(authService),
		handler.NewDataHandler(dataset.NewStore(cfg.DataDir), accessService, exportService, cfg.Countries, cfg.CountryColumn),
		handler.NewAuditHandler(auditService),
		handler.NewHealthHandler(nil),
		handler.NewDocsHandler(""),
	))
	t.Cleanup(server.Close)

	return &testEnv{server: server, users: users, audit: auditRepo}
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

// login returns the session token for a demo account.
func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	resp := e.postJSON(t, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Success bool                `json:"success"`
		Data    model.LoginResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.True(t, parsed.Success)
	require.NotEmpty(t, parsed.Data.SessionToken)
	return parsed.Data.SessionToken
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) postJSON(t *testing.T, path, token string, payload any) *http.Response {
	t.Helper()
	return e.sendJSON(t, http.MethodPost, path, token, payload)
}

func (e *testEnv) sendJSON(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func auditQueryFor(action string) model.AuditQuery {
	return model.AuditQuery{Action: action, Limit: 100}
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var parsed struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed.Data
}
