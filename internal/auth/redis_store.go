package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "sesion:"

	// sessionKeySID holds the random session id inside the cookie when
	// the Principal itself lives server-side.
	sessionKeySID = "sid"
)

// redisCommander is the slice of the Redis client the store needs.
type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the Principal JSON in Redis with a TTL; the cookie
// only carries a random session id.
type RedisStore struct {
	rdb redisCommander
	ttl time.Duration
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Save serializes the Principal and persists it under the session id,
// minting a new id when the cookie does not carry one yet.
func (s *RedisStore) Save(c *gin.Context, p *Principal) error {
	session := sessions.Default(c)
	sid, ok := session.Get(sessionKeySID).(string)
	if !ok || sid == "" {
		sid = uuid.NewString()
		session.Set(sessionKeySID, sid)
		if err := session.Save(); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.rdb.Set(c.Request.Context(), sessionKey(sid), payload, s.ttl).Err()
}

// Load fetches the persisted Principal, or returns nil when the id or
// the record is missing or unreadable.
func (s *RedisStore) Load(c *gin.Context) *Principal {
	session := sessions.Default(c)
	sid, ok := session.Get(sessionKeySID).(string)
	if !ok || sid == "" {
		return nil
	}

	data, err := s.rdb.Get(c.Request.Context(), sessionKey(sid)).Bytes()
	if err != nil {
		return nil
	}
	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	if p.Access == "" {
		return nil
	}
	return &p
}

// Clear removes the server-side record and drops the session id.
func (s *RedisStore) Clear(c *gin.Context) error {
	session := sessions.Default(c)
	sid, ok := session.Get(sessionKeySID).(string)
	session.Clear()
	if err := session.Save(); err != nil {
		return err
	}
	if !ok || sid == "" {
		return nil
	}
	return s.rdb.Del(c.Request.Context(), sessionKey(sid)).Err()
}

func sessionKey(sid string) string {
	return sessionKeyPrefix + sid
}
