// Package router wires handlers onto the Echo instance, one file per
// route audience.  Middleware is attached at group construction time:
// JWT first, then role gating, then any rate limiting or caching.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/handler"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/middleware"
)

// RegisterRoutes registers the routes that require no authentication.
// Currently that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Signup, login
// and refresh are public; logout validates its own credentials inside
// the handler; userinfo requires a valid access token.  The limiter
// guards the credential endpoints against brute force.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/v1/auth", limiter)
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/api/v1/auth", middleware.JWTAuth(jwtSecret))
	auth.GET("/userinfo", a.UserInfo)
}
