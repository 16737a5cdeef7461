package mw

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers map[int64]*model.User

func (f fakeUsers) GetUser(_ context.Context, id int64) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("User")
}

func TestRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 2, time.Minute)
	r := gin.New()
	r.Use(RateLimiter(limiter))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")
	assert.Equal(t, 2, limiter.Len())
}

func TestIPRateLimiter_SameLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 1, time.Minute)
	assert.Same(t, limiter.GetLimiter("a"), limiter.GetLimiter("a"))
	assert.NotSame(t, limiter.GetLimiter("a"), limiter.GetLimiter("b"))
}

func TestAuthenticate(t *testing.T) {
	tokens := NewTokenIssuer("secret", "makequeue")
	users := fakeUsers{7: {ID: 7, Username: "alice"}}
	now := time.Now()

	valid, err := tokens.Issue(7, time.Hour, now)
	require.NoError(t, err)
	expired, err := tokens.Issue(7, time.Hour, now.Add(-2*time.Hour))
	require.NoError(t, err)
	unknown, err := tokens.Issue(8, time.Hour, now)
	require.NoError(t, err)
	foreign, err := NewTokenIssuer("other", "makequeue").Issue(7, time.Hour, now)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Authenticate(tokens, users))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID})
	})

	testCases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, `{"id":0}`},
		{"valid token", "Bearer " + valid, http.StatusOK, `{"id":7}`},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, `{"detail":"Invalid token."}`},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, `{"detail":"Invalid token."}`},
		{"unknown user", "Bearer " + unknown, http.StatusUnauthorized, `{"detail":"User not found."}`},
		{"not bearer", "Basic abc", http.StatusUnauthorized, `{"detail":"Invalid authorization header."}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
		})
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	r := gin.New()
	r.Use(AccessLog(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Empty(t, buf.String(), "successful requests log at debug")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"path":"/bad"`)
	assert.Contains(t, buf.String(), `"status":400`)
}
