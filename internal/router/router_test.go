package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/server/internal/handler"
)

// The health check must answer even when every API route is throttled,
// so the limiter hangs off the route groups instead of the root chain.
func TestLimiterSkipsHealthCheck(t *testing.T) {
	e := echo.New()
	limited := 0
	limit := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limited++
			return c.NoContent(http.StatusTooManyRequests)
		}
	}

	RegisterRoutes(e, t.TempDir())
	RegisterEvents(e, &handler.EventHandler{}, "secret", nil, limit)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, limited)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, 1, limited)
}
