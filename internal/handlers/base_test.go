package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err    error
		status int
		detail string
	}{
		{services.ErrUsernameTaken, http.StatusConflict, services.ErrUsernameTaken.Error()},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, services.ErrInvalidCredentials.Error()},
		{services.ErrBlocked, http.StatusForbidden, services.ErrBlocked.Error()},
		{fmt.Errorf("load: %w", services.ErrPostNotFound), http.StatusNotFound, "load: Post not found"},
		{services.ErrSelfFollow, http.StatusBadRequest, services.ErrSelfFollow.Error()},
		{services.ErrTooManyAttempts, http.StatusTooManyRequests, services.ErrTooManyAttempts.Error()},
		{errors.New("connection refused"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
		RespondError(c, tt.err)

		if w.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.status)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["detail"] != tt.detail {
			t.Errorf("%v: detail = %q, want %q", tt.err, body["detail"], tt.detail)
		}
	}
}

func TestPageFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x?limit=500&skip=-3", nil)

	page := pageFromQuery(c)
	if page.Limit != 100 || page.Skip != 0 {
		t.Errorf("page = %+v", page)
	}
}
