package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"MoodCapture/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver map[string]uint

func (m mapResolver) Resolve(_ context.Context, token string) (uint, error) {
	if id, ok := m[token]; ok {
		return id, nil
	}
	return 0, errors.ErrUnauthorized
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	reached := false
	r.GET("/me", AuthRequired(mapResolver{"good": 42}), func(c *gin.Context) {
		reached = true
		c.JSON(http.StatusOK, gin.H{"id": CurrentUserID(c)})
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.status == http.StatusOK, reached)
		})
	}
}

func TestRateLimiterDeniesAfterLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: "2-M", Identifier: "user", AddHeaders: true}, nil)
	r := gin.New()
	r.POST("/api/mood", AuthRequired(mapResolver{"a": 1, "b": 2}), rl.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/mood", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusCreated, send("a"))
	require.Equal(t, http.StatusCreated, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	// 按用户计数，其他用户不受影响
	assert.Equal(t, http.StatusCreated, send("b"))
}

func TestRateLimiterRouteOverrideAndIPFallback(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:       "100-M",
		Routes:     map[string]string{"/api/auth/login": "1-M"},
		Identifier: "user",
	}, nil)
	r := gin.New()
	r.POST("/api/auth/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	denied := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.NotEmpty(t, denied.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
}

func TestLanguageMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(LanguageMiddleware("en"))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, Lang(c)) })

	get := func(query, accept string) string {
		req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
		if accept != "" {
			req.Header.Set("Accept-Language", accept)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Body.String()
	}

	assert.Equal(t, "en", get("", ""))
	assert.Equal(t, "zh", get("?lang=zh", ""))
	assert.Equal(t, "zh", get("", "zh-CN,zh;q=0.9"))
	assert.Equal(t, "en", get("?lang=fr", ""))
}
