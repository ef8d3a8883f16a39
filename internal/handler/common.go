package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/registration"
)

// getUserID extracts the user_id set by the JWT middleware. Claims come
// back from jwt.MapClaims as float64, so several numeric shapes are accepted.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// writeLifecycleErr maps registration lifecycle errors onto HTTP responses.
// Categories decide the status; the wrapped message carries the detail.
func writeLifecycleErr(c echo.Context, err error) error {
	var verr *registration.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
	case errors.Is(err, registration.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, registration.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, registration.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
}
