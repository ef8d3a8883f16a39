package router

import (
	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/handler"
	"github.com/communitypulse/server/internal/middleware"
)

// RegisterEvents registers event discovery and CRUD. Discovery is
// public and sits behind the response cache; mutations and the
// organizer's own listing require a valid access token.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, jwtSecret string, cache, limit echo.MiddlewareFunc) {
	pub := e.Group("/v1", limit)
	if cache != nil {
		pub.Use(cache)
	}
	pub.GET("/events", h.List)
	pub.GET("/events/search", h.Search)

	// Detail lookups stay uncached: the cache key is built from the
	// route template, which would fold every :id onto one entry.
	e.GET("/v1/events/:id", h.Get, limit)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)
	auth.POST("/events", h.Create)
	auth.GET("/my-events", h.Mine)
	auth.PUT("/events/:id", h.Update)
	auth.DELETE("/events/:id", h.Delete)
}
