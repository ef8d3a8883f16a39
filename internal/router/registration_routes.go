package router

import (
	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/handler"
	"github.com/communitypulse/server/internal/middleware"
)

// RegisterRegistrations registers the registration lifecycle endpoints
// and the notification feed. Everything here requires a valid access
// token; event-roster access is further checked in the handler.
func RegisterRegistrations(e *echo.Echo, h *handler.RegistrationHandler, n *handler.NotificationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)

	g.POST("/events/:id/interest", h.Interest)
	g.POST("/events/:id/confirm", h.Confirm)
	g.POST("/events/:id/register", h.Register)
	g.DELETE("/events/:id/registration", h.Cancel)
	g.GET("/my-registrations", h.Mine)
	g.GET("/events/:id/registrations", h.ByEvent)

	g.GET("/notifications", n.List)
	g.PUT("/notifications/:id/read", n.MarkRead)
}
