package main

import (
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/condo-portal/internal/auth"
	"github.com/yourusername/condo-portal/internal/config"
)

// selectSessionStore picks the Principal persistence backend.
func selectSessionStore(cfg *config.Config) (auth.Store, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		opt, err := redis.ParseURL(cfg.SessionRedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session redis url: %w", err)
		}

		ttlMinutes := cfg.SessionTTLMinutes
		if ttlMinutes <= 0 {
			ttlMinutes = 720
		}
		return auth.NewRedisStore(redis.NewClient(opt), time.Duration(ttlMinutes)*time.Minute), nil
	default:
		return auth.NewCookieStore(), nil
	}
}
