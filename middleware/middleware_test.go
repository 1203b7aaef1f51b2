package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/agroadvisor/community/config"
	"github.com/agroadvisor/community/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	config.Override(config.AppConfig{JWTSecret: "middleware-secret"})
	r := newEngine(AuthRequired())

	valid, err := utils.GenerateToken(42, "grower", time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateToken(42, "grower", -time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, get(r, tc.header).Code)
		})
	}

	w := get(r, "bearer "+valid)
	assert.JSONEq(t, `{"user_id":42}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(4))

	// Burst is half the per-minute budget.
	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "").Code)
}

func TestIPLimitersSweepIdleClients(t *testing.T) {
	start := time.Now()
	l := &ipLimiters{every: rate.Every(time.Second), burst: 1, clients: map[string]*clientLimiter{}, lastSweep: start}

	require.True(t, l.allow("10.0.0.1", start))
	require.True(t, l.allow("10.0.0.2", start.Add(time.Minute)))
	assert.Len(t, l.clients, 2, "no sweep before the TTL has passed")

	require.True(t, l.allow("10.0.0.3", start.Add(limiterIdleTTL+30*time.Second)))
	assert.NotContains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.2")
	assert.Contains(t, l.clients, "10.0.0.3")
}

func TestRateLimitDisabled(t *testing.T) {
	r := newEngine(RateLimit(0))
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, get(r, "").Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := get(newEngine(SecurityHeaders()), "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
}
