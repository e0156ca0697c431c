package auth

// Roles the upstream API assigns to accounts.
const (
	RolAdmin     = "admin"
	RolResidente = "residente"
)

// Principal is the authenticated user record: identity, role, the
// first-login flag and the bearer credential. It is replaced wholesale
// on login, password change and logout, never mutated field by field.
type Principal struct {
	UserID     int    `json:"user_id,omitempty"`
	Username   string `json:"username"`
	Nombre     string `json:"nombre_completo,omitempty"`
	Rol        string `json:"rol"`
	FirstLogin bool   `json:"first_login"`

	// Access is the opaque bearer credential attached to upstream calls.
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`

	// Seq orders session writes so a stale completion can detect that a
	// newer login or logout superseded it.
	Seq int64 `json:"seq,omitempty"`
}

// IsAdmin reports whether the Principal holds the administrator role.
// Every other role is treated as a resident.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Rol == RolAdmin
}

// WithFirstLoginCleared returns a copy with the first-login flag off.
// The credential is assumed unchanged by the upstream.
func (p *Principal) WithFirstLoginCleared() *Principal {
	clone := *p
	clone.FirstLogin = false
	return &clone
}
