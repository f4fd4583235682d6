// Package monitor keeps a running robot in line with the configuration the
// control plane declares for it.
//
// Each invocation fetches the remote config and then, in order, applies a
// pending firmware update, checks the config revision, and checks the WiFi
// network settings. Any of these can require a restart, which is requested
// once at the end. Only the fetch can fail an invocation; everything after it
// is logged and absorbed so that monitoring keeps running.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/appclient"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/lib/race"
	"github.com/mattjperez/micro-rdk/internal/metrics"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

const (
	Name                = "ConfigMonitor"
	DefaultPeriod       = 10 * time.Second
	DefaultFetchTimeout = 60 * time.Second
)

// OTAModel is the service model that carries firmware update instructions.
var OTAModel = robotconfig.NewBuiltinModel("ota_service")

// Storage is the local state the monitor reconciles against.
type Storage interface {
	ResetRobotConfiguration(ctx context.Context) error
	GetNetworkSettings(ctx context.Context) ([]robotconfig.NetworkSetting, error)
	StoreNetworkSettings(ctx context.Context, settings []robotconfig.NetworkSetting) error
}

// Restarter signals the process owner to restart.
type Restarter interface {
	Restart() error
}

// Updater applies a firmware update and reports whether a reboot is needed.
type Updater interface {
	Update(ctx context.Context) (bool, error)
}

// UpdaterFactory builds an updater from the OTA service config.
type UpdaterFactory func(svc robotconfig.ServiceConfig) (Updater, error)

type Option func(*ConfigMonitor)

func WithLogger(log *slog.Logger) Option {
	return func(m *ConfigMonitor) { m.log = log }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(m *ConfigMonitor) { m.fetchTimeout = d }
}

func WithPeriod(d time.Duration) Option {
	return func(m *ConfigMonitor) { m.period = d }
}

func WithUpdaterFactory(f UpdaterFactory) Option {
	return func(m *ConfigMonitor) { m.newUpdater = f }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *ConfigMonitor) { m.metrics = mt }
}

func WithClock(now func() time.Time) Option {
	return func(m *ConfigMonitor) { m.now = now }
}

type ConfigMonitor struct {
	// Revision of the config the process is running. A change is applied by
	// restarting, never by updating this field.
	revision string

	storage      Storage
	restarter    Restarter
	newUpdater   UpdaterFactory
	log          *slog.Logger
	metrics      *metrics.Metrics
	period       time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	lastSuccess time.Time
}

func New(current *robotconfig.RobotConfig, storage Storage, restarter Restarter, opts ...Option) *ConfigMonitor {
	m := &ConfigMonitor{
		storage:      storage,
		restarter:    restarter,
		log:          slog.Default(),
		period:       DefaultPeriod,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	if current != nil {
		m.revision = current.Revision
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With(slog.String("task", Name))
	return m
}

func (m *ConfigMonitor) Name() string { return Name }

func (m *ConfigMonitor) DefaultPeriod() time.Duration { return m.period }

func (m *ConfigMonitor) Revision() string { return m.revision }

// LastSuccess returns the time of the last invocation that fetched a config.
func (m *ConfigMonitor) LastSuccess() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSuccess
}

// Invoke runs one reconciliation pass. It fails only when the config fetch
// fails or times out.
func (m *ConfigMonitor) Invoke(ctx context.Context, client appclient.Client) (time.Duration, error) {
	resp, err := m.fetch(ctx, client)
	if err != nil {
		m.metrics.MonitorRun("fetch_failed")
		return 0, err
	}

	reboot := false
	if resp != nil && resp.Config != nil {
		cfg := resp.Config
		if needsReboot, ok := m.update(ctx, cfg); ok {
			reboot = needsReboot
		}
		if m.revisionChanged(ctx, cfg) {
			reboot = true
		}
	}

	if m.networksChanged(ctx, client) {
		reboot = true
	}

	if reboot {
		m.log.Info("rebooting from config monitor")
		m.restart()
	}

	m.mu.Lock()
	m.lastSuccess = m.now()
	m.mu.Unlock()
	m.metrics.MonitorRun("ok")

	return m.period, nil
}

// fetch races the config request against the fetch timeout. A request that
// loses the race is left to finish on its own.
func (m *ConfigMonitor) fetch(ctx context.Context, client appclient.Client) (*robotconfig.ConfigResponse, error) {
	timer := time.NewTimer(m.fetchTimeout)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)

	resp, err := race.First(
		func() (*robotconfig.ConfigResponse, error) {
			resp, _, err := client.GetAppConfig(ctx, "")
			return resp, err
		},
		func() (*robotconfig.ConfigResponse, error) {
			select {
			case <-timer.C:
			case <-done:
			}
			return nil, appclient.ErrRequestTimeout
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot fetch robot config")
	}
	return resp, nil
}

// update runs the OTA service when the config declares one. ok is false when
// no update ran to completion.
func (m *ConfigMonitor) update(ctx context.Context, cfg *robotconfig.RobotConfig) (needsReboot, ok bool) {
	if m.newUpdater == nil {
		return false, false
	}
	for _, svc := range cfg.Services {
		if svc.ModelTriplet() != OTAModel {
			continue
		}
		u, err := m.newUpdater(svc)
		if err != nil {
			m.log.Error("failed to create ota service from config",
				slog.String("service", svc.Name),
				sl.Err(err),
			)
			return false, false
		}
		needsReboot, err := u.Update(ctx)
		if err != nil {
			m.log.Error("failed to complete ota update", sl.Err(err))
			return false, false
		}
		return needsReboot, true
	}
	return false, false
}

func (m *ConfigMonitor) revisionChanged(ctx context.Context, cfg *robotconfig.RobotConfig) bool {
	if cfg.Revision == m.revision {
		return false
	}
	if err := m.storage.ResetRobotConfiguration(ctx); err != nil {
		m.log.Warn("failed to reset machine config after new config detected",
			slog.String("running", m.revision),
			slog.String("declared", cfg.Revision),
			sl.Err(err),
		)
		return false
	}
	m.log.Info("new machine config revision detected",
		slog.String("running", m.revision),
		slog.String("declared", cfg.Revision),
	)
	return true
}

// networksChanged stores the declared network settings when they differ from
// the stored ones. A failure to store is logged and does not ask for a
// restart, so the difference is found again on the next pass.
func (m *ConfigMonitor) networksChanged(ctx context.Context, client appclient.Client) bool {
	device, err := client.GetAgentConfig(ctx)
	if err != nil {
		m.log.Debug("agent config unavailable", sl.Err(err))
		return false
	}
	agent, err := robotconfig.AgentConfigFromDevice(device)
	if err != nil {
		m.log.Debug("cannot read agent config", sl.Err(err))
		return false
	}

	stored, err := m.storage.GetNetworkSettings(ctx)
	if err != nil {
		m.log.Warn("failed to get stored network settings", sl.Err(err))
		stored = nil
	}

	if robotconfig.SameNetworkSettings(agent.NetworkSettings, stored) {
		return false
	}

	m.log.Info("new network settings found in config")
	if err := m.storage.StoreNetworkSettings(ctx, agent.NetworkSettings); err != nil {
		m.log.Error("failed to store network settings", sl.Err(err))
		return false
	}
	m.log.Info("successfully stored network settings")
	return true
}

func (m *ConfigMonitor) restart() {
	if err := m.restarter.Restart(); err != nil {
		m.log.Warn("skipping restart action from monitor", sl.Err(err))
		return
	}
	m.metrics.RestartSignaled()
	m.log.Warn("machine configuration change detected, restarting")
}
