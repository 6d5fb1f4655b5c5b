// Package metrics exposes the service counters and request latencies to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

type Metrics struct {
	reg *prometheus.Registry

	// LoginAttempts counts logins by role and outcome.
	LoginAttempts *prometheus.CounterVec
	// PasswordResets counts reset code requests ("request") and confirmations ("confirm") by outcome.
	PasswordResets *prometheus.CounterVec
	// ActivityRecords counts recorded quiz attempts, game scores, tracks and bookmarks by outcome.
	ActivityRecords *prometheus.CounterVec
	// RequestDuration measures HTTP request latencies by method, route and status.
	RequestDuration *prometheus.HistogramVec
}

// New registers every collector on a dedicated registry, along with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jifunze_login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"role", "outcome"},
		),
		PasswordResets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jifunze_password_resets_total",
				Help: "Total number of password reset operations",
			},
			[]string{"step", "outcome"},
		),
		ActivityRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jifunze_activity_records_total",
				Help: "Total number of recorded learning activities",
			},
			[]string{"kind", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jifunze_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Outcome maps an operation error to an outcome label. Wrapped errors are unwrapped first.
func Outcome(err error, failures ...error) string {
	if err == nil {
		return OutcomeSuccess
	}
	cause := errors.Cause(err)
	for _, f := range failures {
		if cause == f {
			return OutcomeFailure
		}
	}
	return OutcomeError
}
