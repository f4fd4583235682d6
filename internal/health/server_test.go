package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
)

func static(st Status) Check {
	return func(context.Context) (Status, string) { return st, string(st) }
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReport(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		code     int
		ready    int
	}{
		{name: "no checks", want: StatusHealthy, code: http.StatusOK, ready: http.StatusOK},
		{name: "all healthy", statuses: []Status{StatusHealthy, StatusHealthy}, want: StatusHealthy, code: http.StatusOK, ready: http.StatusOK},
		{name: "degraded", statuses: []Status{StatusHealthy, StatusDegraded}, want: StatusDegraded, code: http.StatusOK, ready: http.StatusOK},
		{name: "unhealthy wins", statuses: []Status{StatusUnhealthy, StatusDegraded}, want: StatusUnhealthy, code: http.StatusServiceUnavailable, ready: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(sl.Discard(), ":0", nil)
			for i, st := range tt.statuses {
				s.Register(string(rune('a'+i)), static(st))
			}
			h := s.Handler()

			rec := get(h, "/health")
			assert.Equal(t, tt.code, rec.Code)
			var report Report
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Checks, len(tt.statuses))

			assert.Equal(t, tt.ready, get(h, "/ready").Code)
			assert.Equal(t, http.StatusOK, get(h, "/live").Code)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "route_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := get(NewServer(sl.Discard(), ":0", reg).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "route_test_total 1")

	rec = get(NewServer(sl.Discard(), ":0", nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSinkCheck(t *testing.T) {
	st, _ := SinkCheck(func(context.Context) error { return nil })(context.Background())
	assert.Equal(t, StatusHealthy, st)

	st, msg := SinkCheck(func(context.Context) error { return errors.New("unreachable") })(context.Background())
	assert.Equal(t, StatusDegraded, st)
	assert.Equal(t, "unreachable", msg)
}

func TestBufferCheck(t *testing.T) {
	count := func(n int64, err error) func(context.Context) (int64, error) {
		return func(context.Context) (int64, error) { return n, err }
	}

	st, _ := BufferCheck(count(10, nil), 100)(context.Background())
	assert.Equal(t, StatusHealthy, st)

	st, msg := BufferCheck(count(101, nil), 100)(context.Background())
	assert.Equal(t, StatusDegraded, st)
	assert.Equal(t, "101 envelopes pending resend", msg)

	st, msg = BufferCheck(count(0, errors.New("db closed")), 100)(context.Background())
	assert.Equal(t, StatusUnhealthy, st)
	assert.Equal(t, "db closed", msg)
}

func TestMonitorCheck(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	check := func(last time.Time) (Status, string) {
		return MonitorCheck(func() time.Time { return last }, func() time.Time { return now }, time.Minute)(context.Background())
	}

	st, msg := check(time.Time{})
	assert.Equal(t, StatusDegraded, st)
	assert.Equal(t, "no config fetched yet", msg)

	st, _ = check(now.Add(-30 * time.Second))
	assert.Equal(t, StatusHealthy, st)

	st, msg = check(now.Add(-5 * time.Minute))
	assert.Equal(t, StatusDegraded, st)
	assert.Equal(t, "last config fetch 5m0s ago", msg)
}

func TestComponentsCheck(t *testing.T) {
	st, _ := ComponentsCheck(nil)(context.Background())
	assert.Equal(t, StatusHealthy, st)

	failures := map[string]error{
		"m2": errors.New("unresolved dependency"),
		"b1": errors.New("duplicate resource"),
	}
	st, msg := ComponentsCheck(failures)(context.Background())
	assert.Equal(t, StatusDegraded, st)
	assert.Equal(t, "skipped: b1, m2", msg)
}
