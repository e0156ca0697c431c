// Package main is the entry point of the condominium portal server.
package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/condo-portal/internal/auth"
	"github.com/yourusername/condo-portal/internal/config"
	"github.com/yourusername/condo-portal/internal/dashboard"
	"github.com/yourusername/condo-portal/internal/guard"
	"github.com/yourusername/condo-portal/internal/multas"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(cfg.GinMode)

	router, err := newRouter(cfg, log.Default())
	if err != nil {
		log.Fatalf("Failed to set up router: %v", err)
	}

	addr := ":" + cfg.Port
	log.Printf("Starting portal on %s (mode: %s, sessions: %s)", addr, cfg.GinMode, cfg.SessionStore)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newRouter wires the session layer, the guard and the screens.
func newRouter(cfg *config.Config, logger *log.Logger) (*gin.Engine, error) {
	router := gin.Default()

	secret := cfg.SessionSecret
	if secret == "" {
		// Validate rejects this in release mode.
		logger.Printf("SESSION_SECRET not set, using a development key")
		secret = "desarrollo-no-usar-en-produccion"
	}
	cookieStore := cookie.NewStore([]byte(secret))
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionTTLMinutes * 60,
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, cookieStore))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	store, err := selectSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.APITimeoutSeconds) * time.Second
	gateway := auth.NewClient(cfg.APIBaseURL, timeout, logger)
	manager := auth.NewManager(gateway, store, logger)
	router.Use(manager.Hydrate())

	multasHandler := multas.NewHandler(multas.NewClient(cfg.APIBaseURL, timeout, logger), manager)
	dashboardHandler := dashboard.NewHandler(gateway, manager)

	setupRoutes(router, manager, multasHandler, dashboardHandler)
	return router, nil
}

// handleHealth is the health check endpoint.
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "condo-portal",
		"version": "0.1.0",
	})
}

// setupRoutes registers the route surface behind its guard regions.
func setupRoutes(
	router *gin.Engine,
	manager *auth.Manager,
	multasHandler *multas.Handler,
	dashboardHandler *dashboard.Handler,
) {
	router.GET("/health", handleHealth)

	// Public entry points. The first-login change carries its own
	// credential check, since the guard sends half-activated sessions
	// here instead of into the protected regions.
	router.GET(auth.LoginPath, auth.LoginPage)
	router.POST(auth.LoginPath, manager.HandleLogin)
	router.POST("/logout", manager.HandleLogout)
	router.GET(auth.FirstLoginPath, auth.FirstLoginPage)
	router.POST(auth.FirstLoginPath, manager.HandleChangePasswordFirstLogin)

	protected := router.Group("", guard.Require(guard.RegionProtected))
	{
		protected.GET(auth.DashboardPath, dashboardHandler.DashboardHandler)
		protected.POST(auth.ChangePasswordPath, manager.HandleChangePassword)

		protected.GET("/mis-multas", multasHandler.ListHandler)
		protected.POST("/mis-multas/:id/pagar", multasHandler.MarkPaidHandler)

		protected.GET("/mis-gastos", dashboard.Placeholder("Mis Gastos"))
		protected.GET("/mis-notificaciones", dashboard.Placeholder("Mis Notificaciones"))
		protected.GET("/perfil", dashboard.Placeholder("Mi Perfil"))
		protected.GET(auth.ChangePasswordPath, dashboard.Placeholder("Cambio de Contraseña"))
	}

	admin := router.Group("", guard.Require(guard.RegionAdmin))
	{
		admin.GET("/multas", multasHandler.ListHandler)
		admin.POST("/multas", multasHandler.CreateHandler)
		admin.GET("/multas/estadisticas", multasHandler.StatsHandler)
		admin.PUT("/multas/:id", multasHandler.UpdateHandler)
		admin.DELETE("/multas/:id", multasHandler.DeleteHandler)
		admin.POST("/multas/:id/pagar", multasHandler.MarkPaidHandler)

		admin.GET("/usuarios", dashboardHandler.UsuariosHandler)
		admin.GET("/gastos", dashboard.Placeholder("Gestión de Gastos"))
		admin.GET("/notificaciones", dashboard.Placeholder("Gestión de Notificaciones"))
		admin.GET("/reportes", dashboard.Placeholder("Reportes"))
	}

	// Unknown destinations land on the login page. The login path itself
	// must never bounce back to itself.
	router.NoRoute(func(c *gin.Context) {
		if c.Request.URL.Path == auth.LoginPath {
			c.Status(http.StatusNotFound)
			return
		}
		c.Redirect(http.StatusFound, auth.LoginPath)
	})
}
