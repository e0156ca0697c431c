package auth

import (
	"encoding/json"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	// SessionCookieName is the name of the browser session cookie.
	SessionCookieName = "cm_sesion"

	// sessionKeyPrincipal is the single well-known key the serialized
	// Principal lives under.
	sessionKeyPrincipal = "principal"
)

// Store persists at most one Principal per browser session.
//
// Load fails soft: a missing or malformed record is returned as nil,
// never as an error, because an unreadable session is equivalent to an
// absent one and must simply force a re-login.
type Store interface {
	Save(c *gin.Context, p *Principal) error
	Load(c *gin.Context) *Principal
	Clear(c *gin.Context) error
}

// CookieStore keeps the Principal JSON inside the signed session
// cookie itself, so the record travels with the browser.
type CookieStore struct{}

// NewCookieStore creates a CookieStore.
func NewCookieStore() *CookieStore {
	return &CookieStore{}
}

// Save serializes the Principal into the session. Total overwrite.
func (s *CookieStore) Save(c *gin.Context, p *Principal) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	session := sessions.Default(c)
	session.Set(sessionKeyPrincipal, string(payload))
	return session.Save()
}

// Load deserializes the persisted Principal, or returns nil.
func (s *CookieStore) Load(c *gin.Context) *Principal {
	session := sessions.Default(c)
	raw, ok := session.Get(sessionKeyPrincipal).(string)
	if !ok || raw == "" {
		return nil
	}
	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}
	if p.Access == "" {
		return nil
	}
	return &p
}

// Clear removes any persisted Principal.
func (s *CookieStore) Clear(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}
