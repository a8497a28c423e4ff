package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"waterdash/internal/config"
	"waterdash/internal/database"
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

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

type stores struct {
	users    service.UserStore
	sessions service.SessionStore
	attempts service.AttemptStore
	audit    service.AuditStore
	seedable repository.UserCreator
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cleanupFuncs []func()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
		cleanupFuncs = append(cleanupFuncs, func() {
			sentry.Flush(2 * time.Second)
		})
	}

	var db *database.DB
	var st stores
	if cfg.DatabaseURL != "" {
		slog.Info("connecting to PostgreSQL")
		db, err = database.New(context.Background(), cfg.DatabaseURL, cfg.DatabaseMaxConn, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		users := repository.NewUserRepository(db.SQL)
		st = stores{
			users:    users,
			sessions: repository.NewSessionRepository(db.SQL),
			attempts: repository.NewAttemptRepository(db.SQL),
			audit:    repository.NewAuditRepository(db.SQL),
			seedable: users,
		}
		slog.Info("database ready")
	} else {
		slog.Warn("no DATABASE_URL configured, running on in-memory stores")
		users := repository.NewMemoryUserRepository()
		st = stores{
			users:    users,
			sessions: repository.NewMemorySessionRepository(),
			attempts: repository.NewMemoryAttemptRepository(),
			audit:    repository.NewMemoryAuditRepository(),
			seedable: users,
		}
	}

	hasher := hash.Default(cfg.PasswordAlgorithm, cfg.BcryptCost)

	if err := seedUsers(cfg, hasher, st.seedable); err != nil {
		for _, cleanup := range cleanupFuncs {
			cleanup()
		}
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := event.NewBus()
	metricsSub := event.NewMetricsSubscriber(registry, bus)
	cleanupFuncs = append(cleanupFuncs, metricsSub.Stop)

	auditService := service.NewAuditService(st.audit, bus, slog.Default())
	rbacService := service.NewRBACService(auditService)
	sessionService := service.NewSessionService(st.sessions, cfg.SessionIdleTTL,
		service.WithMaxAge(cfg.SessionMaxAge))
	lockoutService := service.NewLockoutService(st.attempts, cfg.LockoutThreshold, cfg.LockoutDuration)

	authService, err := service.NewAuthService(st.users, sessionService, lockoutService, auditService, rbacService, hasher,
		service.WithMinPasswordLength(cfg.MinPasswordLength))
	if err != nil {
		for _, cleanup := range cleanupFuncs {
			cleanup()
		}
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	accessService := service.NewAccessService(auditService)
	exportService := service.NewExportService(cfg.ExportSecret, cfg.ExportTTL, auditService, rbacService)
	dataStore := dataset.NewStore(cfg.DataDir)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(authService)
	dataHandler := handler.NewDataHandler(dataStore, accessService, exportService, cfg.Countries, cfg.CountryColumn)
	auditHandler := handler.NewAuditHandler(auditService)
	docsHandler := handler.NewDocsHandler("./docs/openapi.yaml")

	var healthHandler *handler.HealthHandler
	if db != nil {
		healthHandler = handler.NewHealthHandler(db)
	} else {
		healthHandler = handler.NewHealthHandler(nil)
	}

	appRouter := router.New(cfg, registry, authMiddleware,
		authHandler, userHandler, dataHandler, auditHandler, healthHandler, docsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		db:           db,
		cleanupFuncs: cleanupFuncs,
	}, nil
}

// seedUsers bootstraps an empty user store, preferring the configured
// users file over the built-in demo accounts. Non-empty stores are left
// alone.
func seedUsers(cfg *config.Config, hasher hash.Hasher, repo repository.UserCreator) error {
	now := time.Now().UTC()

	var users []model.User
	var err error
	if cfg.UsersFile != "" {
		users, err = repository.LoadUsersFile(cfg.UsersFile, hasher, now)
		if err != nil {
			return fmt.Errorf("failed to load users file: %w", err)
		}
	} else {
		users, err = repository.DemoUsers(hasher, now)
		if err != nil {
			return fmt.Errorf("failed to build demo users: %w", err)
		}
	}

	seeded, err := repository.Seed(context.Background(), repo, users)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if seeded > 0 {
		slog.Info("seeded user store", "users", seeded, "source", seedSource(cfg))
	}
	return nil
}

func seedSource(cfg *config.Config) string {
	if cfg.UsersFile != "" {
		return cfg.UsersFile
	}
	return "builtin demo accounts"
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
