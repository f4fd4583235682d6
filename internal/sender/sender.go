package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/mattjperez/micro-rdk/internal/config"
	"github.com/mattjperez/micro-rdk/internal/lib/backoff"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/model"
)

// Sender is the telemetry sink.
type Sender interface {
	Send(ctx context.Context, envelope *model.Envelope) error
	SendBatch(ctx context.Context, envelopes []*model.Envelope) error
	Health(ctx context.Context) error
}

type HTTPSender struct {
	log         *slog.Logger
	url         string
	token       string
	client      *http.Client
	limiter     *rate.Limiter
	backoff     *backoff.Exponential
	maxAttempts int
}

func NewHTTPSender(log *slog.Logger, cfg *config.SenderConfig) *HTTPSender {
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	}
	return &HTTPSender{
		log:   log,
		url:   cfg.URL,
		token: cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:     rate.NewLimiter(limit, burst),
		backoff:     backoff.NewExponential(cfg.Retry.InitialDelay, cfg.Retry.MaxDelay),
		maxAttempts: max(1, cfg.Retry.MaxAttempts),
	}
}

func (s *HTTPSender) Send(ctx context.Context, envelope *model.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope")
	}

	return s.sendWithRetry(ctx, data)
}

func (s *HTTPSender) SendBatch(ctx context.Context, envelopes []*model.Envelope) error {
	data, err := json.Marshal(envelopes)
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelopes")
	}

	return s.sendWithRetry(ctx, data)
}

func (s *HTTPSender) sendWithRetry(ctx context.Context, data []byte) error {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}

		err := s.doSend(ctx, data)
		if err == nil {
			return nil
		}

		lastErr = err
		s.log.Warn("send attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.maxAttempts),
			sl.Err(err),
		)

		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff.NextDelay(attempt - 1)):
			}
		}
	}

	return errors.Wrapf(lastErr, "all %d attempts failed", s.maxAttempts)
}

func (s *HTTPSender) doSend(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return errors.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

func (s *HTTPSender) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create health request")
	}

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "health check failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errors.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// LogSender logs envelopes instead of sending them (for testing)
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, envelope *model.Envelope) error {
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope")
	}

	s.log.Info("SEND",
		slog.String("component_name", envelope.ComponentName),
		slog.String("component_type", envelope.ComponentType),
		slog.String("method", envelope.Method),
		slog.Int("records", len(envelope.Data)),
		slog.String("payload", string(data)),
	)

	return nil
}

func (s *LogSender) SendBatch(ctx context.Context, envelopes []*model.Envelope) error {
	for _, envelope := range envelopes {
		if err := s.Send(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}

func (s *LogSender) Health(ctx context.Context) error {
	return nil
}
