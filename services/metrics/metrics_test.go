package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.LoginAttempts.WithLabelValues("student", OutcomeSuccess).Inc()
	m.LoginAttempts.WithLabelValues("student", OutcomeSuccess).Inc()
	m.LoginAttempts.WithLabelValues("parent", OutcomeFailure).Inc()
	m.ObserveRequest(http.MethodPost, "/login", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("student", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("parent", OutcomeFailure)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "jifunze_login_attempts_total"))
	assert.True(t, strings.Contains(body, `jifunze_http_request_duration_seconds_count{method="POST",route="/login",status="200"} 1`))
}

func TestOutcome(t *testing.T) {
	errKnown := errors.New("known")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", want: OutcomeSuccess},
		{name: "known failure", err: errKnown, want: OutcomeFailure},
		{name: "other", err: errors.New("boom"), want: OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err, errKnown))
		})
	}
}
