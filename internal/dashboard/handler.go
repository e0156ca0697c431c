// Package dashboard serves the role-dependent landing page and the
// screens that are still placeholders.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/condo-portal/internal/auth"
)

// DataSource provides the upstream data the dashboard screens show.
type DataSource interface {
	AdminDashboard(ctx context.Context, token string) (json.RawMessage, error)
	ResidenteDashboard(ctx context.Context, token string) (json.RawMessage, error)
	ListResidents(ctx context.Context, token string) ([]auth.Usuario, error)
}

// SessionEnder terminates the session on an expired credential.
type SessionEnder interface {
	Logout(c *gin.Context) error
}

// Handler serves the dashboard routes.
type Handler struct {
	source   DataSource
	sessions SessionEnder
}

// NewHandler creates a dashboard handler.
func NewHandler(source DataSource, sessions SessionEnder) *Handler {
	return &Handler{source: source, sessions: sessions}
}

// DashboardHandler is the GET /dashboard handler. The payload depends
// on the session's role, mirroring one landing page per role.
func (h *Handler) DashboardHandler(c *gin.Context) {
	state := auth.CurrentState(c)

	var (
		data json.RawMessage
		err  error
	)
	if state.IsAdmin() {
		data, err = h.source.AdminDashboard(c.Request.Context(), state.Token())
	} else {
		data, err = h.source.ResidenteDashboard(c.Request.Context(), state.Token())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rol":  state.Principal.Rol,
		"data": data,
	})
}

// UsuariosHandler is the GET /usuarios handler: the resident accounts
// the admin fines screen assigns fines to.
func (h *Handler) UsuariosHandler(c *gin.Context) {
	usuarios, err := h.source.ListResidents(c.Request.Context(), auth.CurrentState(c).Token())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usuarios)
}

// Placeholder answers for screens that exist in the navigation but are
// not built yet.
func Placeholder(titulo string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"titulo": titulo,
			"estado": "en construcción",
		})
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if auth.IsCode(err, auth.CodeInvalidCredentials) {
		_ = h.sessions.Logout(c)
		c.Redirect(http.StatusFound, auth.LoginPath)
		c.Abort()
		return
	}
	if apiErr, ok := err.(*auth.Error); ok {
		c.JSON(auth.HTTPStatus(apiErr), gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    auth.CodeServer,
		"message": "Error inesperado",
	})
}
