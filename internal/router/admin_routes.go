package router

import (
	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/handler"
	"github.com/communitypulse/server/internal/middleware"
)

// RegisterAdmin registers the moderation surface under /v1/admin.
// Every route requires a valid token carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
		limit,
	)

	g.GET("/events/pending", h.PendingEvents)
	g.PUT("/events/:id/approve", h.ApproveEvent)
	g.DELETE("/events/:id/reject", h.RejectEvent)

	g.GET("/users", h.ListUsers)
	g.PUT("/users/:id", h.UpdateUser)
	g.GET("/users/:id/events", h.UserEvents)
}
