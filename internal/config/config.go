// Package config centralises configuration parsing for the workout tracker.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend selectors.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	CredentialsLocal  = "local"
	CredentialsHosted = "hosted"
)

// Config captures runtime configuration values.
type Config struct {
	HTTPAddress string

	StoreBackend string
	PostgresURL  string
	SQLitePath   string

	CredentialsBackend string
	HostedAuthURL      string
	HostedAuthKey      string

	JWTSecret            string
	JWTIssuer            string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	RequireConfirmation  bool
	MinPasswordLength    int
	RefreshPruneInterval time.Duration

	CookieSecret string
	CookiePrefix string
	CookieSecure bool
	CookieMaxAge time.Duration

	OperationTimeout time.Duration
}

// Load reads environment variables into Config. Secrets have no defaults: a
// missing secret is a startup error, never a baked-in fallback.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddress:          getEnv("HTTP_ADDRESS", ":8080"),
		StoreBackend:         getEnv("STORE_BACKEND", StoreSQLite),
		PostgresURL:          getEnv("POSTGRES_URL", ""),
		SQLitePath:           getEnv("SQLITE_PATH", "workouts.db"),
		CredentialsBackend:   getEnv("CREDENTIALS_BACKEND", CredentialsLocal),
		HostedAuthURL:        getEnv("HOSTED_AUTH_URL", ""),
		HostedAuthKey:        getEnv("HOSTED_AUTH_KEY", ""),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTIssuer:            getEnv("JWT_ISSUER", "workouts"),
		AccessTokenTTL:       getDurationEnv("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:      getDurationEnv("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RequireConfirmation:  getBoolEnv("REQUIRE_CONFIRMATION", false),
		MinPasswordLength:    getIntEnv("MIN_PASSWORD_LENGTH", 6),
		RefreshPruneInterval: getDurationEnv("REFRESH_PRUNE_INTERVAL", time.Hour),
		CookieSecret:         os.Getenv("COOKIE_SECRET"),
		CookiePrefix:         getEnv("COOKIE_PREFIX", "wt_"),
		CookieSecure:         getBoolEnv("COOKIE_SECURE", true),
		CookieMaxAge:         getDurationEnv("COOKIE_MAX_AGE", 30*24*time.Hour),
		OperationTimeout:     getDurationEnv("OPERATION_TIMEOUT", 15*time.Second),
	}

	if cfg.CookieSecret == "" {
		return cfg, fmt.Errorf("COOKIE_SECRET is required")
	}

	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.PostgresURL == "" {
			return cfg, fmt.Errorf("POSTGRES_URL is required when STORE_BACKEND=%s", StorePostgres)
		}
	case StoreSQLite:
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.CredentialsBackend {
	case CredentialsLocal:
		if cfg.JWTSecret == "" {
			return cfg, fmt.Errorf("JWT_SECRET is required when CREDENTIALS_BACKEND=%s", CredentialsLocal)
		}
	case CredentialsHosted:
		if cfg.HostedAuthURL == "" || cfg.HostedAuthKey == "" {
			return cfg, fmt.Errorf("HOSTED_AUTH_URL and HOSTED_AUTH_KEY are required when CREDENTIALS_BACKEND=%s", CredentialsHosted)
		}
	default:
		return cfg, fmt.Errorf("unknown CREDENTIALS_BACKEND %q", cfg.CredentialsBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
