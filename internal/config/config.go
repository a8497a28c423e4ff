package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration

	// DatabaseURL empty means in-memory stores seeded from UsersFile or
	// the demo accounts.
	DatabaseURL     string
	DatabaseMaxConn int
	UsersFile       string

	DataDir       string
	Countries     []string
	CountryColumn string

	SessionIdleTTL    time.Duration
	SessionMaxAge     time.Duration // zero disables the absolute cap
	LockoutThreshold  int
	LockoutDuration   time.Duration
	PasswordAlgorithm string
	BcryptCost        int
	MinPasswordLength int

	ExportSecret string
	ExportTTL    time.Duration

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	SentryDSN   string
	Environment string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseMaxConn:    getInt("DATABASE_MAX_CONNS", 10),
		UsersFile:          strings.TrimSpace(os.Getenv("USERS_FILE")),
		DataDir:            getEnv("DATA_DIR", "./data"),
		Countries:          splitCSV(getEnv("COUNTRIES", "Uganda,Cameroon,Lesotho,Malawi")),
		CountryColumn:      getEnv("COUNTRY_COLUMN", "country"),
		SessionIdleTTL:     getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionMaxAge:      getDuration("SESSION_MAX_AGE", 0),
		LockoutThreshold:   getInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:    getDuration("LOCKOUT_DURATION", 15*time.Minute),
		PasswordAlgorithm:  getEnv("PASSWORD_ALGORITHM", "bcrypt"),
		BcryptCost:         getInt("BCRYPT_COST", 12),
		MinPasswordLength:  getInt("MIN_PASSWORD_LENGTH", 8),
		ExportSecret:       strings.TrimSpace(os.Getenv("EXPORT_SECRET")),
		ExportTTL:          getDuration("EXPORT_TTL", 5*time.Minute),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 10),
		SentryDSN:          strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		Environment:        getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.ExportSecret) == "" {
		return fmt.Errorf("EXPORT_SECRET is required")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}

	if c.SessionMaxAge < 0 {
		return fmt.Errorf("SESSION_MAX_AGE cannot be negative")
	}

	if c.LockoutThreshold <= 0 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive")
	}

	if c.LockoutDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive")
	}

	if len(c.Countries) == 0 {
		return fmt.Errorf("COUNTRIES cannot be empty")
	}

	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DATA_DIR cannot be empty")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
