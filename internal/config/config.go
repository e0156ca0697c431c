// Package config loads application settings from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	Port    string // API server port
	GinMode string // gin mode (debug, release, test)

	// Upstream API
	APIBaseURL        string // base URL of the condominium REST API
	APITimeoutSeconds int    // timeout for upstream calls

	// Session settings
	SessionSecret     string // signing key for the session cookie
	SessionStore      string // session backend: "cookie" or "redis"
	SessionRedisURL   string // Redis connection URL for the redis backend
	SessionTTLMinutes int    // session lifetime for the redis backend

	// CORS settings
	CORSAllowedOrigins string // allowed origins, comma separated
}

const (
	// SessionStoreCookie keeps the Principal inside the signed session cookie.
	SessionStoreCookie = "cookie"
	// SessionStoreRedis keeps the Principal server-side in Redis.
	SessionStoreRedis = "redis"
)

// Load reads settings from environment variables.
// A .env.local file is read first when present.
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8000"),
		APITimeoutSeconds: getEnvAsInt("API_TIMEOUT_SECONDS", 15),

		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionStore:      getEnv("SESSION_STORE", SessionStoreCookie),
		SessionRedisURL:   getEnv("SESSION_REDIS_URL", "redis://127.0.0.1:6379/0"),
		SessionTTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 720),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.SessionStore {
	case SessionStoreCookie, SessionStoreRedis:
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q",
			SessionStoreCookie, SessionStoreRedis, c.SessionStore)
	}

	if c.SessionStore == SessionStoreRedis && c.SessionRedisURL == "" {
		return fmt.Errorf("SESSION_REDIS_URL is required when SESSION_STORE=redis")
	}

	// Local development may run without these; release mode is strict.
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.APIBaseURL == "" {
			return fmt.Errorf("API_BASE_URL is required in release mode")
		}
	}

	return nil
}

// getEnv returns an environment variable or the default when unset.
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt returns an environment variable parsed as an integer.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
