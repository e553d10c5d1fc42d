package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocktest/engine/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireUserJWT(t *testing.T) {
	auth := service.NewAuthService("test-secret", time.Hour)
	token, err := auth.GenerateToken(5, "Grace", nil)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireUserJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK},
		{"query fallback", "", "?token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "5", w.Body.String())
			}
		})
	}
}

func TestRequireWSAuthIgnoresHeader(t *testing.T) {
	auth := service.NewAuthService("test-secret", time.Hour)
	token, err := auth.GenerateToken(5, "", nil)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", RequireWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiterPerCaller(t *testing.T) {
	rl := &RateLimiter{visitors: map[string]*visitor{}, rate: 2, interval: time.Minute, now: time.Now}

	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &RateLimiter{visitors: map[string]*visitor{}, rate: 1, interval: time.Minute, now: func() time.Time { return now }}

	ok, _ := rl.allow("k")
	assert.True(t, ok)
	ok, retry := rl.allow("k")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	now = now.Add(time.Minute)
	ok, _ = rl.allow("k")
	assert.True(t, ok)
}

func TestRateLimiterDoesNotRefillWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &RateLimiter{visitors: map[string]*visitor{}, rate: 2, interval: time.Minute, now: func() time.Time { return now }}

	for range 2 {
		ok, _ := rl.allow("k")
		require.True(t, ok)
	}

	now = now.Add(59 * time.Second)
	ok, retry := rl.allow("k")
	assert.False(t, ok, "no partial refill inside the window")
	assert.Equal(t, time.Second, retry)

	now = now.Add(time.Second)
	for range 2 {
		ok, _ = rl.allow("k")
		assert.True(t, ok, "full budget in the next window")
	}
}

func brotliGet(r http.Handler, path, acceptEncoding string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	r.ServeHTTP(w, req)
	return w
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("question ", 500)

	r := gin.New()
	r.Use(Brotli(BrotliOptions{MinBytes: 512, ExemptRoutes: []string{"/tests/:test_id/draft"}}))
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/tests/:test_id/draft", func(c *gin.Context) { c.String(http.StatusOK, body) })

	w := brotliGet(r, "/big", "gzip, br;q=0.9")
	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))

	w = brotliGet(r, "/small", "br")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())

	w = brotliGet(r, "/tests/abc/draft", "br")
	assert.Empty(t, w.Header().Get("Content-Encoding"), "exempt route")
	assert.Equal(t, body, w.Body.String())

	w = brotliGet(r, "/big", "gzip")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())
}

func TestBrotliFlushSendsPlainBody(t *testing.T) {
	r := gin.New()
	r.Use(Brotli(BrotliOptions{MinBytes: 1 << 20}))
	r.GET("/stream", func(c *gin.Context) {
		c.String(http.StatusOK, "event one\n")
		c.Writer.Flush()
		c.String(http.StatusOK, "event two\n")
	})

	w := brotliGet(r, "/stream", "br")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "event one\nevent two\n", w.Body.String())
}

func TestBrotliKeepsHandlerEncoding(t *testing.T) {
	body := strings.Repeat("x", 4096)

	r := gin.New()
	r.Use(Brotli(BrotliOptions{}))
	r.GET("/raw", func(c *gin.Context) {
		c.Header("Content-Encoding", "identity")
		c.String(http.StatusOK, body)
	})

	w := brotliGet(r, "/raw", "br")
	assert.Equal(t, "identity", w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
