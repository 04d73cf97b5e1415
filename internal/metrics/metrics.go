// Package metrics defines the Prometheus collectors the API exports.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/store"
)

// Metrics groups the application collectors.
type Metrics struct {
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	Logins       *prometheus.CounterVec
	Registration *prometheus.CounterVec
	Marked       *prometheus.CounterVec
	Decisions    *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolattend_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schoolattend_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolattend_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		Registration: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolattend_registrations_total",
			Help: "Registrations by role and outcome.",
		}, []string{"role", "outcome"}),
		Marked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolattend_attendance_marked_total",
			Help: "Attendance records created by status.",
		}, []string{"status"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolattend_approval_decisions_total",
			Help: "Teacher approval decisions.",
		}, []string{"decision"}),
	}
}

// Outcome names an operation result for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrPendingApproval):
		return "pending_approval"
	case errors.Is(err, auth.ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, attendance.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, attendance.ErrForbidden):
		return "forbidden"
	case errors.Is(err, store.ErrStorage):
		return "storage_failure"
	default:
		return "error"
	}
}

// ObserveMarked counts the records of a marking session.
func (m *Metrics) ObserveMarked(recs []attendance.AttendanceRecord) {
	for _, r := range recs {
		m.Marked.WithLabelValues(string(r.Status)).Inc()
	}
}
