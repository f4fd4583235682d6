package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjperez/micro-rdk/internal/buffer"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/metrics"
	"github.com/mattjperez/micro-rdk/internal/model"
	"github.com/mattjperez/micro-rdk/internal/sender"
)

const (
	defaultRetryInterval = 30 * time.Second
	retryBatchSize       = 100
	// Frequencies above 1kHz floor to a zero interval.
	minInterval = time.Millisecond
)

type ManagerConfig struct {
	RobotID string
	// RobotStart is the reference instant capture times are measured from.
	RobotStart    time.Time
	BufferMaxAge  time.Duration
	RetryInterval time.Duration
}

// Manager schedules every collector on its own interval and forwards the
// records to the sink. A collector that fails only loses its own tick.
type Manager struct {
	log        *slog.Logger
	cfg        ManagerConfig
	collectors []*DataCollector
	sender     sender.Sender
	buffer     buffer.Buffer
	metrics    *metrics.Metrics
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewManager builds a manager. buf and m may be nil.
func NewManager(
	log *slog.Logger,
	cfg ManagerConfig,
	collectors []*DataCollector,
	sender sender.Sender,
	buf buffer.Buffer,
	m *metrics.Metrics,
) *Manager {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.RobotStart.IsZero() {
		cfg.RobotStart = time.Now()
	}
	return &Manager{
		log:        log,
		cfg:        cfg,
		collectors: collectors,
		sender:     sender,
		buffer:     buf,
		metrics:    m,
		stopCh:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.log.Info("starting collector manager", slog.Int("collectors", len(m.collectors)))

	for _, c := range m.collectors {
		m.wg.Add(1)
		go m.run(ctx, c)
	}

	m.wg.Add(1)
	go m.retryBufferedData(ctx)

	select {
	case <-ctx.Done():
		m.log.Info("context cancelled, stopping manager")
	case <-m.stopCh:
		m.log.Info("stop signal received, stopping manager")
	}
	m.wg.Wait()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, c *DataCollector) {
	defer m.wg.Done()

	log := m.log.With(
		slog.String("component", c.Name()),
		slog.String("component_type", c.ComponentType()),
		slog.String("method", c.MethodString()),
	)

	interval := c.TimeInterval()
	if interval < minInterval {
		interval = minInterval
	}
	log.Debug("collector scheduled", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.collectAndSend(ctx, log, c)
		}
	}
}

func (m *Manager) collectAndSend(ctx context.Context, log *slog.Logger, c *DataCollector) {
	start := time.Now()
	data, err := c.CallMethod(m.cfg.RobotStart)
	m.metrics.ObserveCapture(c.Name(), c.MethodString(), time.Since(start), err)
	if err != nil {
		log.Error("failed to collect data", sl.Err(err))
		return
	}
	if len(data) == 0 {
		return
	}

	envelope := model.NewEnvelope(m.cfg.RobotID, c.Name(), c.ComponentType(), c.MethodString(), data)

	if err := m.sender.Send(ctx, envelope); err != nil {
		m.metrics.SendFailed(c.Name())
		log.Error("failed to send data", sl.Err(err))
		m.store(ctx, log, c, envelope)
		return
	}
	log.Debug("data sent successfully")
}

func (m *Manager) store(ctx context.Context, log *slog.Logger, c *DataCollector, envelope *model.Envelope) {
	if m.buffer == nil {
		m.metrics.BufferDropped(c.Name())
		return
	}
	if err := m.buffer.Store(ctx, envelope, c.ResourceMethodKey().Stream(), c.Capacity()); err != nil {
		m.metrics.BufferDropped(c.Name())
		log.Error("failed to buffer data", sl.Err(err))
		return
	}
	m.metrics.BufferStored(c.Name())
	log.Info("data buffered for later retry")
}

func (m *Manager) retryBufferedData(ctx context.Context) {
	defer m.wg.Done()

	if m.buffer == nil {
		return
	}

	ticker := time.NewTicker(m.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.processBufferedData(ctx)
		}
	}
}

func (m *Manager) processBufferedData(ctx context.Context) {
	pending, err := m.buffer.GetPending(ctx, retryBatchSize)
	if err != nil {
		m.log.Error("failed to get pending data from buffer", sl.Err(err))
		return
	}

	if len(pending) > 0 {
		m.log.Info("processing buffered data", slog.Int("count", len(pending)))

		var sentIDs []string
		for _, envelope := range pending {
			if err := m.sender.Send(ctx, envelope); err != nil {
				m.log.Debug("failed to send buffered data",
					slog.String("id", envelope.ID),
					sl.Err(err),
				)
				break
			}
			sentIDs = append(sentIDs, envelope.ID)
		}

		if len(sentIDs) > 0 {
			if err := m.buffer.MarkSent(ctx, sentIDs); err != nil {
				m.log.Error("failed to mark buffered data as sent", sl.Err(err))
			} else {
				m.log.Info("buffered data sent successfully", slog.Int("count", len(sentIDs)))
			}
		}
	}

	if m.cfg.BufferMaxAge > 0 {
		if err := m.buffer.Cleanup(ctx, m.cfg.BufferMaxAge); err != nil {
			m.log.Error("failed to cleanup old buffer data", sl.Err(err))
		}
	}
}
