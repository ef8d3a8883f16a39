package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/server/internal/model"
)

type stubUsers struct {
	user model.User
	err  error
}

func (s stubUsers) GetByID(_ context.Context, _ uint64) (model.User, error) {
	return s.user, s.err
}

func newRegContext(t *testing.T, method, body string, uid any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if uid != nil {
		c.Set("user_id", uid)
	}
	return c, rec
}

// A ban must block every lifecycle mutation immediately, even while a
// previously issued access token is still valid.
func TestLifecycleRejectsBannedUser(t *testing.T) {
	h := &RegistrationHandler{Users: stubUsers{user: model.User{ID: 7, IsBanned: true}}}

	cases := []struct {
		name string
		call func(echo.Context) error
		body string
	}{
		{"interest", h.Interest, ""},
		{"confirm", h.Confirm, `{"attendees":["Ada"],"number_of_attendees":1}`},
		{"register", h.Register, `{"attendees":["Ada"],"number_of_attendees":1}`},
		{"cancel", h.Cancel, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newRegContext(t, http.MethodPost, tc.body, uint64(7))
			require.NoError(t, tc.call(c))
			require.Equal(t, http.StatusForbidden, rec.Code)
			require.Contains(t, rec.Body.String(), "banned")
		})
	}
}

func TestConfirmRequiresAuth(t *testing.T) {
	h := &RegistrationHandler{Users: stubUsers{}}

	c, rec := newRegContext(t, http.MethodPost, "", nil)
	require.NoError(t, h.Confirm(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
