package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

// contextStateKey parks the hydrated session state in the gin context.
const contextStateKey = "auth.state"

// MinPasswordLength is the local policy checked before any network call.
const MinPasswordLength = 8

// State is the per-request view of the session. Loading is true only
// when hydration has not run for the request; the route guard must
// treat that as "decide nothing yet", not as "unauthenticated".
type State struct {
	Loading   bool
	Principal *Principal
}

// IsAuthenticated reports whether a Principal is present.
func (s State) IsAuthenticated() bool {
	return s.Principal != nil
}

// IsAdmin reports whether the session holds the administrator role.
func (s State) IsAdmin() bool {
	return s.Principal.IsAdmin()
}

// IsFirstLogin reports whether the mandatory password change is pending.
func (s State) IsFirstLogin() bool {
	return s.Principal != nil && s.Principal.FirstLogin
}

// Token returns the bearer credential for outgoing requests, or "".
func (s State) Token() string {
	if s.Principal == nil {
		return ""
	}
	return s.Principal.Access
}

// Manager owns the session lifecycle. All mutation funnels through its
// four operations, so the persisted Principal and the per-request state
// can never diverge for longer than the request that changed them.
type Manager struct {
	gateway Gateway
	store   Store
	logger  *log.Logger

	// flight collapses duplicate concurrent submissions of the same
	// operation (double-click) into a single upstream call.
	flight singleflight.Group

	// seq orders session writes; see Principal.Seq.
	seq atomic.Int64
}

// NewManager creates a session manager.
func NewManager(gateway Gateway, store Store, logger *log.Logger) *Manager {
	return &Manager{
		gateway: gateway,
		store:   store,
		logger:  logger,
	}
}

// Hydrate loads the Principal from the Store once per request and
// publishes the derived state. Handlers running before this middleware
// observe State{Loading: true}.
func (m *Manager) Hydrate() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.publish(c, m.store.Load(c))
		c.Next()
	}
}

// CurrentState returns the session state for the request.
func CurrentState(c *gin.Context) State {
	if v, ok := c.Get(contextStateKey); ok {
		if state, ok := v.(State); ok {
			return state
		}
	}
	return State{Loading: true}
}

// Login exchanges credentials for a Principal, persists it and
// republishes the state. Gateway errors propagate unchanged; a failed
// login leaves the prior session untouched.
func (m *Manager) Login(c *gin.Context, username, password string) (*Principal, error) {
	key := flightKey("login", c.ClientIP(), username, password)
	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.gateway.Login(c.Request.Context(), username, password)
	})
	if err != nil {
		return nil, err
	}

	// The result may be shared between collapsed callers; each request
	// persists its own copy.
	principal := *(v.(*Principal))
	principal.Seq = m.seq.Add(1)

	if err := m.store.Save(c, &principal); err != nil {
		m.logf("failed to persist session for %s: %v", username, err)
		return nil, &Error{Code: CodeServer, Message: "No se pudo guardar la sesión"}
	}
	m.publish(c, &principal)
	return &principal, nil
}

// Logout clears the store and the state. Calling it twice yields the
// same end state as calling it once.
func (m *Manager) Logout(c *gin.Context) error {
	err := m.store.Clear(c)
	m.publish(c, nil)
	return err
}

// ChangePasswordFirstLogin performs the mandatory first-login password
// change with the current credential, then persists the Principal with
// the flag cleared. The credential is assumed unchanged.
func (m *Manager) ChangePasswordFirstLogin(c *gin.Context, oldPassword, newPassword string) error {
	state := CurrentState(c)
	if !state.IsAuthenticated() {
		return &Error{Code: CodeInvalidCredentials, Message: "Sesión no iniciada"}
	}
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	principal := state.Principal
	key := flightKey("pwd", principal.Username, oldPassword, newPassword)
	_, err, _ := m.flight.Do(key, func() (any, error) {
		return nil, m.gateway.ChangePasswordFirstLogin(c.Request.Context(), principal.Access, oldPassword, newPassword)
	})
	if err != nil {
		return err
	}

	// Discard the local update when a newer login or logout already
	// replaced the stored session while this call was in flight.
	if current := m.store.Load(c); current == nil || current.Seq != principal.Seq {
		return nil
	}

	updated := principal.WithFirstLoginCleared()
	if err := m.store.Save(c, updated); err != nil {
		m.logf("failed to persist first-login change for %s: %v", principal.Username, err)
		return &Error{Code: CodeServer, Message: "No se pudo guardar la sesión"}
	}
	m.publish(c, updated)
	return nil
}

// ChangePassword performs a standard password change. No local state
// changes; the flag is already clear.
func (m *Manager) ChangePassword(c *gin.Context, oldPassword, newPassword string) error {
	state := CurrentState(c)
	if !state.IsAuthenticated() {
		return &Error{Code: CodeInvalidCredentials, Message: "Sesión no iniciada"}
	}
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	key := flightKey("pwd", state.Principal.Username, oldPassword, newPassword)
	_, err, _ := m.flight.Do(key, func() (any, error) {
		return nil, m.gateway.ChangePassword(c.Request.Context(), state.Principal.Access, oldPassword, newPassword)
	})
	return err
}

// flightKey builds the dedup key for one operation. The submitted
// credentials enter as a digest, so only byte-identical submissions
// share a flight.
func flightKey(op string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return op + "|" + hex.EncodeToString(sum[:])
}

// ValidateNewPassword applies the local password policy.
func ValidateNewPassword(newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return &Error{
			Code:    CodeValidation,
			Message: "La nueva contraseña debe tener al menos 8 caracteres",
		}
	}
	return nil
}

func (m *Manager) publish(c *gin.Context, p *Principal) {
	c.Set(contextStateKey, State{Principal: p})
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
