package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/server/internal/registration"
)

func TestWriteLifecycleErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing event", registration.ErrEventNotFound, http.StatusNotFound},
		{"no active registration", registration.ErrNoActiveRegistration, http.StatusNotFound},
		{"duplicate active", registration.ErrAlreadyActive, http.StatusConflict},
		{"repeat confirm", registration.ErrAlreadyRegistered, http.StatusConflict},
		{"unapproved event", registration.ErrEventNotApproved, http.StatusBadRequest},
		{"closed window", registration.ErrWindowClosed, http.StatusBadRequest},
		{"validation", &registration.ValidationError{Reason: "attendees required"}, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

			require.NoError(t, writeLifecycleErr(c, tc.err))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetUserID(t *testing.T) {
	e := echo.New()
	newCtx := func(v any) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if v != nil {
			c.Set("user_id", v)
		}
		return c
	}

	// jwt.MapClaims hands numbers back as float64.
	id, err := getUserID(newCtx(float64(9)))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), id)

	id, err = getUserID(newCtx("12"))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)

	_, err = getUserID(newCtx(nil))
	assert.Error(t, err)

	_, err = getUserID(newCtx("not-a-number"))
	assert.Error(t, err)
}
