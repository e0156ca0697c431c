package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Entry points the guard redirects to and the handlers answer with.
const (
	LoginPath          = "/login"
	FirstLoginPath     = "/cambio-password-primer-login"
	DashboardPath      = "/dashboard"
	ChangePasswordPath = "/cambio-password"
)

// LoginPage is the GET /login handler, the public entry point the
// guard redirects unauthenticated visitors to.
func LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"titulo": "Iniciar Sesión"})
}

// FirstLoginPage is the GET handler for the mandatory password change
// page the guard redirects half-activated sessions to.
func FirstLoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"titulo": "Cambio de Contraseña Obligatorio"})
}

type loginForm struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin is the POST /login handler.
func (m *Manager) HandleLogin(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeValidation,
			"message": "Debe indicar usuario y contraseña",
		})
		return
	}

	principal, err := m.Login(c, form.Username, form.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	redirect := DashboardPath
	if principal.FirstLogin {
		redirect = FirstLoginPath
	}
	c.JSON(http.StatusOK, gin.H{
		"redirect": redirect,
		"user": gin.H{
			"username":    principal.Username,
			"rol":         principal.Rol,
			"first_login": principal.FirstLogin,
		},
	})
}

// HandleLogout is the POST /logout handler.
func (m *Manager) HandleLogout(c *gin.Context) {
	if err := m.Logout(c); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    CodeServer,
			"message": "No se pudo cerrar la sesión",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

type changePasswordForm struct {
	OldPassword     string `json:"old_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// HandleChangePasswordFirstLogin is the POST handler for the mandatory
// first-login password change.
func (m *Manager) HandleChangePasswordFirstLogin(c *gin.Context) {
	form, ok := bindChangePassword(c)
	if !ok {
		return
	}

	if err := m.ChangePasswordFirstLogin(c, form.OldPassword, form.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redirect": DashboardPath,
		"message":  "Contraseña cambiada correctamente",
	})
}

// HandleChangePassword is the POST handler for the standard password
// change.
func (m *Manager) HandleChangePassword(c *gin.Context) {
	form, ok := bindChangePassword(c)
	if !ok {
		return
	}

	if err := m.ChangePassword(c, form.OldPassword, form.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Contraseña cambiada correctamente",
	})
}

// bindChangePassword validates the shared password-change form. The
// confirmation check happens here, before any network call.
func bindChangePassword(c *gin.Context) (*changePasswordForm, bool) {
	var form changePasswordForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeValidation,
			"message": "Debe indicar la contraseña actual, la nueva y su confirmación",
		})
		return nil, false
	}
	if form.NewPassword != form.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeValidation,
			"message": "Las contraseñas no coinciden",
		})
		return nil, false
	}
	return &form, true
}

// respondError translates a session/gateway error into a response.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := err.(*Error); ok {
		c.JSON(HTTPStatus(apiErr), gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    CodeServer,
		"message": "Error inesperado",
	})
}
