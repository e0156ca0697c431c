package multas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/condo-portal/internal/auth"
)

// Service is what the handlers need from the fines proxy.
type Service interface {
	List(ctx context.Context, token string, query url.Values) (json.RawMessage, error)
	Create(ctx context.Context, token string, form Form) (json.RawMessage, error)
	Update(ctx context.Context, token string, id int, form Form) (json.RawMessage, error)
	Delete(ctx context.Context, token string, id int) error
	MarkPaid(ctx context.Context, token string, id int) (json.RawMessage, error)
	Stats(ctx context.Context, token string) (*Estadisticas, error)
}

// SessionEnder terminates the session when the upstream reports the
// credential expired.
type SessionEnder interface {
	Logout(c *gin.Context) error
}

// Handler serves the fines screens. Role gating happens in the route
// guard; the upstream enforces it again with the credential.
type Handler struct {
	svc      Service
	sessions SessionEnder
}

// NewHandler creates a fines handler.
func NewHandler(svc Service, sessions SessionEnder) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

// ListHandler is the GET handler for both the admin list (/multas) and
// the resident list (/mis-multas); the upstream scopes by role.
func (h *Handler) ListHandler(c *gin.Context) {
	raw, err := h.svc.List(c.Request.Context(), token(c), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// CreateHandler is the POST /multas handler.
func (h *Handler) CreateHandler(c *gin.Context) {
	form, ok := bindForm(c)
	if !ok {
		return
	}
	raw, err := h.svc.Create(c.Request.Context(), token(c), *form)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusCreated, "application/json", raw)
}

// UpdateHandler is the PUT /multas/:id handler.
func (h *Handler) UpdateHandler(c *gin.Context) {
	id, ok := fineID(c)
	if !ok {
		return
	}
	form, ok := bindForm(c)
	if !ok {
		return
	}
	raw, err := h.svc.Update(c.Request.Context(), token(c), id, *form)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// DeleteHandler is the DELETE /multas/:id handler.
func (h *Handler) DeleteHandler(c *gin.Context) {
	id, ok := fineID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), token(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkPaidHandler is the POST :id/pagar handler for both roles; the
// upstream rejects residents paying someone else's fine.
func (h *Handler) MarkPaidHandler(c *gin.Context) {
	id, ok := fineID(c)
	if !ok {
		return
	}
	raw, err := h.svc.MarkPaid(c.Request.Context(), token(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// StatsHandler is the GET /multas/estadisticas handler.
func (h *Handler) StatsHandler(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), token(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func token(c *gin.Context) string {
	return auth.CurrentState(c).Token()
}

func bindForm(c *gin.Context) (*Form, bool) {
	var form Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    auth.CodeValidation,
			"message": "Debe indicar residente, motivo y monto",
		})
		return nil, false
	}
	return &form, true
}

func fineID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    auth.CodeValidation,
			"message": "Identificador de multa inválido",
		})
		return 0, false
	}
	return id, true
}

// respondError answers an upstream failure. A rejected credential
// means the token expired: the session is cleared and the browser sent
// back to the login page.
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
