// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/handler"
	"github.com/communitypulse/server/internal/middleware"
)

// RegisterRoutes registers routes that carry neither authentication
// nor rate limiting: the health check and the static uploads directory
// serving event images.
func RegisterRoutes(e *echo.Echo, uploadDir string) {
	e.GET("/healthz", handler.Health)
	e.Static("/uploads", uploadDir)
}

// RegisterAuth registers the auth endpoints. Register, login and
// refresh live under /v1/auth without a session; logout and the
// profile endpoint require a valid access token. The limiter keys the
// public endpoints by client IP and the authenticated ones by user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1/auth", middleware.JWTAuth(jwtSecret), limit)
	auth.POST("/logout", a.Logout)
	auth.GET("/me", a.Me)
}
