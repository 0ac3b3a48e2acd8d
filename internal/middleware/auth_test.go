package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"krafink/internal/models"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

type fakeAuth map[string]*models.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if token == "expired" {
		return nil, services.ErrTokenExpired
	}
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, services.ErrUnauthorized
}

func newTestRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthRequired(auth), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})
	r.GET("/admin", AuthRequired(auth), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/optional", LoadUser(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "viewer="+CurrentUserID(c))
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	auth := fakeAuth{
		"good":  {ID: "u1", Role: models.RoleUser},
		"admin": {ID: "u2", Role: models.RoleAdmin},
	}
	r := newTestRouter(auth)

	cases := []struct {
		path, header string
		want         int
		body         string
	}{
		{"/me", "", http.StatusUnauthorized, `{"detail":"Not authenticated"}`},
		{"/me", "Bearer nope", http.StatusUnauthorized, `{"detail":"Invalid token"}`},
		{"/me", "Bearer expired", http.StatusUnauthorized, `{"detail":"Token expired"}`},
		{"/me", "bearer good", http.StatusOK, "u1"},
		{"/admin", "Bearer good", http.StatusForbidden, ""},
		{"/admin", "Bearer admin", http.StatusNoContent, ""},
		{"/optional", "", http.StatusOK, "viewer="},
		{"/optional", "Bearer nope", http.StatusOK, "viewer="},
		{"/optional", "Bearer good", http.StatusOK, "viewer=u1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s %q: expected %d, got %d", tc.path, tc.header, tc.want, w.Code)
		}
		if tc.body != "" && w.Body.String() != tc.body {
			t.Errorf("%s %q: unexpected body %s", tc.path, tc.header, w.Body.String())
		}
	}
}

func TestBearerTokenQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)

	if got := BearerToken(c, false); got != "" {
		t.Errorf("query token must be ignored, got %q", got)
	}
	if got := BearerToken(c, true); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}
