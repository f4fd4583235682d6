// Package health serves the agent's probes and its Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check reports the state of one part of the agent and an optional reason.
type Check func(ctx context.Context) (Status, string)

type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type Report struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
}

type namedCheck struct {
	name  string
	check Check
}

type Server struct {
	log      *slog.Logger
	address  string
	gatherer prometheus.Gatherer
	server   *http.Server

	mu     sync.RWMutex
	checks []namedCheck
}

// NewServer creates the probe server. When gatherer is non-nil its metrics
// are exposed on /metrics.
func NewServer(log *slog.Logger, address string, gatherer prometheus.Gatherer) *Server {
	return &Server{log: log, address: address, gatherer: gatherer}
}

func (s *Server) Register(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, namedCheck{name: name, check: check})
}

// Evaluate runs every registered check. The overall status is the worst of
// them.
func (s *Server) Evaluate(ctx context.Context) Report {
	s.mu.RLock()
	checks := append([]namedCheck(nil), s.checks...)
	s.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make([]CheckResult, 0, len(checks)),
		Timestamp: time.Now().UTC(),
	}
	for _, c := range checks {
		status, msg := c.check(ctx)
		report.Checks = append(report.Checks, CheckResult{Name: c.name, Status: status, Message: msg})
		if severity(status) > severity(report.Status) {
			report.Status = status
		}
	}
	return report
}

func severity(s Status) int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting health server", slog.String("address", s.address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := s.Evaluate(ctx)

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.log.Debug("failed to write health report", sl.Err(err))
	}
}

// handleReady fails while any check is unhealthy; degraded is still ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.Evaluate(ctx).Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// SinkCheck is degraded while the telemetry sink is unreachable; records are
// buffered meanwhile.
func SinkCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) (Status, string) {
		if err := ping(ctx); err != nil {
			return StatusDegraded, err.Error()
		}
		return StatusHealthy, ""
	}
}

// BufferCheck is unhealthy when the buffer cannot be read and degraded once
// more than highWater envelopes wait for a resend.
func BufferCheck(count func(ctx context.Context) (int64, error), highWater int64) Check {
	return func(ctx context.Context) (Status, string) {
		n, err := count(ctx)
		if err != nil {
			return StatusUnhealthy, err.Error()
		}
		if n > highWater {
			return StatusDegraded, fmt.Sprintf("%d envelopes pending resend", n)
		}
		return StatusHealthy, ""
	}
}

// MonitorCheck is degraded when the config monitor has not completed a fetch
// within maxAge.
func MonitorCheck(lastSuccess, now func() time.Time, maxAge time.Duration) Check {
	return func(context.Context) (Status, string) {
		last := lastSuccess()
		if last.IsZero() {
			return StatusDegraded, "no config fetched yet"
		}
		if age := now().Sub(last); age > maxAge {
			return StatusDegraded, fmt.Sprintf("last config fetch %s ago", age.Truncate(time.Second))
		}
		return StatusHealthy, ""
	}
}

// ComponentsCheck is degraded when the robot was built with components or
// collectors skipped.
func ComponentsCheck(failures map[string]error) Check {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(context.Context) (Status, string) {
		if len(names) == 0 {
			return StatusHealthy, ""
		}
		return StatusDegraded, "skipped: " + strings.Join(names, ", ")
	}
}
