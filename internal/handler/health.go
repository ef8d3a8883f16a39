package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness. It is registered outside the auth and
// rate-limit chains so probes always succeed while the process is up.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
