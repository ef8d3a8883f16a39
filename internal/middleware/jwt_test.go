package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/server/internal/utils"
)

const testSecret = "unit-test-secret"

func doRequest(t *testing.T, mw []echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, *string) {
	t.Helper()
	e := echo.New()
	var seenRole *string
	h := func(c echo.Context) error {
		if r, ok := c.Get("role").(string); ok {
			seenRole = &r
		}
		return c.NoContent(http.StatusOK)
	}
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec, seenRole
}

func TestJWTAuthValidToken(t *testing.T) {
	at, err := utils.NewAccessToken(testSecret, 7, "USER", 5)
	require.NoError(t, err)

	rec, role := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer "+at.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, role)
	assert.Equal(t, "USER", *role)
}

func TestJWTAuthRejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestJWTAuthWrongSecret(t *testing.T) {
	at, err := utils.NewAccessToken("other-secret", 7, "USER", 5)
	require.NoError(t, err)

	rec, _ := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer "+at.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	adminTok, err := utils.NewAccessToken(testSecret, 1, "ADMIN", 5)
	require.NoError(t, err)
	userTok, err := utils.NewAccessToken(testSecret, 2, "USER", 5)
	require.NoError(t, err)

	chain := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("ADMIN")}

	rec, _ := doRequest(t, chain, "Bearer "+adminTok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, chain, "Bearer "+userTok.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
