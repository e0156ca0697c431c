// Package guard gates navigation on the session state: unauthenticated
// visitors go to the login page, accounts with a pending first-login
// password change go to the change page, and admin regions reject
// resident sessions.
package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/condo-portal/internal/auth"
)

// Region classifies what a route requires.
type Region int

const (
	// RegionPublic routes render for everyone.
	RegionPublic Region = iota
	// RegionProtected routes require an authenticated session.
	RegionProtected
	// RegionAdmin routes additionally require the administrator role.
	RegionAdmin
)

// State is the session snapshot the decision is derived from.
type State struct {
	Loading       bool
	Authenticated bool
	Admin         bool
	FirstLogin    bool
}

// Decision is the outcome of evaluating one navigation attempt.
type Decision int

const (
	// DecisionAllow renders the requested region.
	DecisionAllow Decision = iota
	// DecisionLoading renders a neutral placeholder, no redirect.
	DecisionLoading
	// DecisionRedirectLogin sends the visitor to the login entry point.
	DecisionRedirectLogin
	// DecisionRedirectPasswordChange overrides any destination while the
	// first-login password change is pending.
	DecisionRedirectPasswordChange
	// DecisionRedirectDashboard sends non-admins to the default landing
	// page.
	DecisionRedirectDashboard
)

// StateFrom derives the guard state from the hydrated session.
func StateFrom(s auth.State) State {
	return State{
		Loading:       s.Loading,
		Authenticated: s.IsAuthenticated(),
		Admin:         s.IsAdmin(),
		FirstLogin:    s.IsFirstLogin(),
	}
}

// Decide evaluates one navigation attempt. Pure; called on every
// request so session changes (logout, password change) take effect on
// the next navigation.
func Decide(s State, region Region) Decision {
	if region == RegionPublic {
		return DecisionAllow
	}
	switch {
	case s.Loading:
		return DecisionLoading
	case !s.Authenticated:
		return DecisionRedirectLogin
	case s.FirstLogin:
		return DecisionRedirectPasswordChange
	case region == RegionAdmin && !s.Admin:
		return DecisionRedirectDashboard
	default:
		return DecisionAllow
	}
}

// Require returns a middleware enforcing the region's decision.
func Require(region Region) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch Decide(StateFrom(auth.CurrentState(c)), region) {
		case DecisionAllow:
			c.Next()
		case DecisionLoading:
			// Session state is not available yet: render nothing
			// protected and do not redirect.
			c.AbortWithStatus(http.StatusNoContent)
		case DecisionRedirectLogin:
			redirect(c, auth.LoginPath)
		case DecisionRedirectPasswordChange:
			redirect(c, auth.FirstLoginPath)
		case DecisionRedirectDashboard:
			redirect(c, auth.DashboardPath)
		}
	}
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
	c.Abort()
}
