package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"schoolattend/internal/metrics"
)

func init() { gin.SetMode(gin.TestMode) }

func get(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenBucket_LimitsAndRefills(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	r := gin.New()
	r.GET("/a", l.Limit("a"), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", l.Limit("b"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/a").Code)
	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/a").Code)
	w := get(r, http.MethodGet, "/a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/b").Code, "scopes are independent")

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/a").Code)
	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/a").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, http.MethodGet, "/a").Code, "refill is capped")
}

func TestTokenBucket_ZeroRateDisables(t *testing.T) {
	l := NewTokenBucket(0, 0)
	for i := 0; i < 5; i++ {
		assert.True(t, l.allow("k"))
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(CORS(), SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://school.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://school.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, http.MethodGet, "/x")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(RequestLogger(zap.New(core), m, "/healthz"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/things/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	get(r, http.MethodGet, "/healthz")
	get(r, http.MethodGet, "/v1/things/7")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "/v1/things/:id", entries[0].ContextMap()["route"])
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/v1/things/:id", "404")))
}
