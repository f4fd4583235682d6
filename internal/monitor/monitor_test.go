package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjperez/micro-rdk/internal/appclient"
	"github.com/mattjperez/micro-rdk/internal/attr"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/metrics"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

type fakeClient struct {
	config   *robotconfig.RobotConfig
	agent    *robotconfig.DeviceAgentConfig
	fetchErr error
	agentErr error
	// block, when set, holds GetAppConfig until closed.
	block chan struct{}
}

func (c *fakeClient) GetAppConfig(context.Context, string) (*robotconfig.ConfigResponse, time.Time, error) {
	if c.block != nil {
		<-c.block
	}
	if c.fetchErr != nil {
		return nil, time.Time{}, c.fetchErr
	}
	return &robotconfig.ConfigResponse{Config: c.config}, time.Now(), nil
}

func (c *fakeClient) GetAgentConfig(context.Context) (*robotconfig.DeviceAgentConfig, error) {
	if c.agentErr != nil {
		return nil, c.agentErr
	}
	if c.agent == nil {
		return nil, errors.New("no agent config")
	}
	return c.agent, nil
}

type fakeStorage struct {
	mu       sync.Mutex
	networks []robotconfig.NetworkSetting
	resets   int
	stores   int
	resetErr error
	getErr   error
	storeErr error
}

func (s *fakeStorage) ResetRobotConfiguration(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetErr != nil {
		return s.resetErr
	}
	s.resets++
	return nil
}

func (s *fakeStorage) GetNetworkSettings(context.Context) ([]robotconfig.NetworkSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return append([]robotconfig.NetworkSetting(nil), s.networks...), nil
}

func (s *fakeStorage) StoreNetworkSettings(_ context.Context, n []robotconfig.NetworkSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return s.storeErr
	}
	s.stores++
	s.networks = append([]robotconfig.NetworkSetting(nil), n...)
	return nil
}

type fakeRestarter struct {
	calls int
	err   error
}

func (r *fakeRestarter) Restart() error {
	r.calls++
	return r.err
}

type fakeUpdater struct {
	reboot bool
	err    error
	runs   *int
}

func (u fakeUpdater) Update(context.Context) (bool, error) {
	*u.runs++
	return u.reboot, u.err
}

func agentConfig(networks ...map[string]any) *robotconfig.DeviceAgentConfig {
	list := make([]any, 0, len(networks))
	for _, n := range networks {
		list = append(list, n)
	}
	return &robotconfig.DeviceAgentConfig{AdditionalFeatures: attr.Attributes{"networks": list}}
}

func running(rev string) *robotconfig.RobotConfig {
	return &robotconfig.RobotConfig{Revision: rev}
}

func newMonitor(current *robotconfig.RobotConfig, st Storage, r Restarter, opts ...Option) *ConfigMonitor {
	return New(current, st, r, append([]Option{WithLogger(sl.Discard())}, opts...)...)
}

func TestDefaults(t *testing.T) {
	m := newMonitor(running("a"), &fakeStorage{}, &fakeRestarter{})
	assert.Equal(t, "ConfigMonitor", m.Name())
	assert.Equal(t, 10*time.Second, m.DefaultPeriod())
	assert.Equal(t, "a", m.Revision())
	assert.True(t, m.LastSuccess().IsZero())
}

func TestNoChangeDoesNotRestart(t *testing.T) {
	st := &fakeStorage{}
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), st, r)

	period, err := m.Invoke(context.Background(), &fakeClient{config: running("rev-1"), agent: agentConfig()})
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriod, period)
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, 0, st.resets)
}

func TestRevisionDriftRestartsOnce(t *testing.T) {
	st := &fakeStorage{}
	r := &fakeRestarter{}
	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newMonitor(running("rev-1"), st, r, WithMetrics(mt), WithClock(func() time.Time { return fixed }))

	period, err := m.Invoke(context.Background(), &fakeClient{config: running("rev-2")})
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriod, period)
	assert.Equal(t, 1, st.resets)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, fixed, m.LastSuccess())
	assert.Equal(t, "rev-1", m.Revision())
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.RestartsSignaled))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.MonitorRuns.WithLabelValues("ok")))
}

func TestRevisionDriftResetFailure(t *testing.T) {
	st := &fakeStorage{resetErr: errors.New("flash busy")}
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), st, r)

	period, err := m.Invoke(context.Background(), &fakeClient{config: running("rev-2")})
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriod, period)
	assert.Equal(t, 0, r.calls)
}

func TestReorderedNetworksDoNotRestart(t *testing.T) {
	st := &fakeStorage{networks: []robotconfig.NetworkSetting{
		{SSID: "b", Password: "2"},
		{SSID: "a", Password: "1", Priority: 1},
	}}
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), st, r)

	client := &fakeClient{
		config: running("rev-1"),
		agent: agentConfig(
			map[string]any{"ssid": "a", "password": "1", "priority": 1},
			map[string]any{"ssid": "b", "password": "2"},
		),
	}
	_, err := m.Invoke(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, 0, st.stores)
}

func TestChangedNetworksAreStoredAndRestart(t *testing.T) {
	st := &fakeStorage{networks: []robotconfig.NetworkSetting{{SSID: "old", Password: "x"}}}
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), st, r)

	client := &fakeClient{
		config: running("rev-1"),
		agent:  agentConfig(map[string]any{"ssid": "new", "password": "y"}),
	}
	_, err := m.Invoke(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, []robotconfig.NetworkSetting{{SSID: "new", Password: "y"}}, st.networks)
}

func TestNetworkReadFailureTreatedAsEmpty(t *testing.T) {
	st := &fakeStorage{getErr: errors.New("nvs corrupt")}
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), st, r)

	client := &fakeClient{
		config: running("rev-1"),
		agent:  agentConfig(map[string]any{"ssid": "home", "password": "y"}),
	}
	_, err := m.Invoke(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, 1, st.stores)
	assert.Equal(t, 1, r.calls)
}

// A failure to persist new network settings is only logged: no restart is
// requested, and the change is picked up again on the next pass.
func TestNetworkStoreFailureDoesNotRestart(t *testing.T) {
	st := &fakeStorage{storeErr: errors.New("nvs full")}
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), st, r)

	client := &fakeClient{
		config: running("rev-1"),
		agent:  agentConfig(map[string]any{"ssid": "home", "password": "y"}),
	}
	period, err := m.Invoke(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriod, period)
	assert.Equal(t, 0, r.calls)
	assert.Empty(t, st.networks)
}

func TestAgentConfigUnavailable(t *testing.T) {
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), &fakeStorage{}, r)

	_, err := m.Invoke(context.Background(), &fakeClient{config: running("rev-1"), agentErr: errors.New("offline")})
	require.NoError(t, err)
	assert.Equal(t, 0, r.calls)
}

func TestFetchTimeout(t *testing.T) {
	st := &fakeStorage{}
	r := &fakeRestarter{}
	mt := metrics.New(prometheus.NewRegistry())
	m := newMonitor(running("rev-1"), st, r, WithFetchTimeout(20*time.Millisecond), WithMetrics(mt))

	client := &fakeClient{config: running("rev-2"), block: make(chan struct{})}
	defer close(client.block)

	start := time.Now()
	_, err := m.Invoke(context.Background(), client)
	require.Error(t, err)
	assert.ErrorIs(t, err, appclient.ErrRequestTimeout)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 0, r.calls)
	assert.Equal(t, 0, st.resets)
	assert.True(t, m.LastSuccess().IsZero())
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.MonitorRuns.WithLabelValues("fetch_failed")))
}

func TestFetchError(t *testing.T) {
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), &fakeStorage{}, r)

	_, err := m.Invoke(context.Background(), &fakeClient{fetchErr: errors.New("unauthenticated")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, appclient.ErrRequestTimeout)
	assert.Equal(t, 0, r.calls)
}

func TestEmptyConfigResponseSkipsConfigSteps(t *testing.T) {
	st := &fakeStorage{}
	r := &fakeRestarter{}
	m := newMonitor(running("rev-1"), st, r)

	_, err := m.Invoke(context.Background(), &fakeClient{})
	require.NoError(t, err)
	assert.Equal(t, 0, st.resets)
	assert.Equal(t, 0, r.calls)
}

func otaConfig(rev string) *robotconfig.RobotConfig {
	cfg := running(rev)
	cfg.Services = []robotconfig.ServiceConfig{
		{Name: "other", API: "rdk:service:generic", Model: "rdk:builtin:navigation"},
		{Name: "ota", API: "rdk:service:generic", Model: "rdk:builtin:ota_service", Attributes: attr.Attributes{"version": "2"}},
	}
	return cfg
}

func TestOTAUpdate(t *testing.T) {
	cases := map[string]struct {
		updater    fakeUpdater
		factoryErr error
		wantRuns   int
		wantReboot bool
	}{
		"needs reboot":  {updater: fakeUpdater{reboot: true}, wantRuns: 1, wantReboot: true},
		"up to date":    {updater: fakeUpdater{}, wantRuns: 1},
		"update fails":  {updater: fakeUpdater{err: errors.New("bad image")}, wantRuns: 1},
		"factory fails": {factoryErr: errors.New("missing url"), wantRuns: 0},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			runs := 0
			tc.updater.runs = &runs
			var seen robotconfig.ServiceConfig
			factory := func(svc robotconfig.ServiceConfig) (Updater, error) {
				seen = svc
				if tc.factoryErr != nil {
					return nil, tc.factoryErr
				}
				return tc.updater, nil
			}

			r := &fakeRestarter{}
			m := newMonitor(running("rev-1"), &fakeStorage{}, r, WithUpdaterFactory(factory))

			_, err := m.Invoke(context.Background(), &fakeClient{config: otaConfig("rev-1")})
			require.NoError(t, err)
			assert.Equal(t, "ota", seen.Name)
			assert.Equal(t, tc.wantRuns, runs)
			if tc.wantReboot {
				assert.Equal(t, 1, r.calls)
			} else {
				assert.Equal(t, 0, r.calls)
			}
		})
	}
}

func TestRestartFailureIsAbsorbed(t *testing.T) {
	r := &fakeRestarter{err: errors.New("event already pending")}
	m := newMonitor(running("rev-1"), &fakeStorage{}, r)

	period, err := m.Invoke(context.Background(), &fakeClient{config: running("rev-2")})
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriod, period)
	assert.Equal(t, 1, r.calls)
}

func TestWithPeriod(t *testing.T) {
	m := newMonitor(running("rev-1"), &fakeStorage{}, &fakeRestarter{}, WithPeriod(time.Minute))
	period, err := m.Invoke(context.Background(), &fakeClient{config: running("rev-1")})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, period)
}
