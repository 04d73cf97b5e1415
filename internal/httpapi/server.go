// Package httpapi exposes the attendance workflow as a JSON API over gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/httpmiddleware"
	"schoolattend/internal/metrics"
	"schoolattend/internal/store"
)

// Deps is everything the router needs.
type Deps struct {
	KV         store.KV
	Auth       *auth.Service
	Attendance *attendance.Service
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Log        *zap.Logger

	Issuer     string
	SigningKey string
	AccessTTL  time.Duration

	RateLimitPerMin     int
	LoginAttemptsPerMin int
}

type server struct {
	Deps
	now func() time.Time
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	s := &server{Deps: d, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Log, d.Metrics, "/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())

	limiter := httpmiddleware.NewTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin)
	loginLimiter := httpmiddleware.NewTokenBucket(d.LoginAttemptsPerMin, d.LoginAttemptsPerMin)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", s.health)

	v1 := r.Group("/v1", limiter.Limit("api"))

	public := v1.Group("/auth", loginLimiter.Limit("auth"))
	public.POST("/register", s.register)
	public.POST("/login", s.login)

	authed := v1.Group("", auth.RequireSession(d.KV, d.SigningKey, d.Issuer))
	authed.POST("/auth/logout", s.logout)
	authed.GET("/auth/me", s.me)

	authed.GET("/records", s.listRecords)
	teacher := authed.Group("/records", auth.RequireRole(attendance.RoleTeacher))
	teacher.POST("/sessions", s.markSession)
	teacher.PATCH("/:id", s.updateRecord)
	teacher.DELETE("/:id", s.deleteRecord)

	hod := authed.Group("/approvals", auth.RequireRole(attendance.RoleHOD))
	hod.GET("", s.listApprovals)
	hod.POST("/:id/approve", s.approve)
	hod.POST("/:id/reject", s.reject)

	authed.GET("/reports/summary", s.summary)
	authed.GET("/reports/export", s.export)

	return r
}

func (s *server) health(c *gin.Context) {
	_, _, err := s.KV.Get(c.Request.Context(), store.KeyUsers)
	if err != nil {
		s.Log.Error("health check", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}
