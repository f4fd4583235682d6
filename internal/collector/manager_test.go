package collector

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

	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/metrics"
	"github.com/mattjperez/micro-rdk/internal/model"
)

type recordingSender struct {
	mu   sync.Mutex
	fail bool
	sent []*model.Envelope
}

func (s *recordingSender) Send(_ context.Context, e *model.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.sent = append(s.sent, e)
	return nil
}

func (s *recordingSender) SendBatch(ctx context.Context, es []*model.Envelope) error {
	for _, e := range es {
		if err := s.Send(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *recordingSender) Health(context.Context) error { return nil }

func (s *recordingSender) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *recordingSender) components() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.sent {
		out = append(out, e.ComponentName)
	}
	return out
}

type memBuffer struct {
	mu         sync.Mutex
	envelopes  []*model.Envelope
	streams    []string
	capacities []int
}

func (b *memBuffer) Store(_ context.Context, e *model.Envelope, stream string, capacity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes = append(b.envelopes, e)
	b.streams = append(b.streams, stream)
	b.capacities = append(b.capacities, capacity)
	return nil
}

func (b *memBuffer) GetPending(_ context.Context, limit int) ([]*model.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.envelopes) < limit {
		limit = len(b.envelopes)
	}
	return append([]*model.Envelope(nil), b.envelopes[:limit]...), nil
}

func (b *memBuffer) MarkSent(_ context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sent := make(map[string]bool, len(ids))
	for _, id := range ids {
		sent[id] = true
	}
	kept := b.envelopes[:0]
	for _, e := range b.envelopes {
		if !sent[e.ID] {
			kept = append(kept, e)
		}
	}
	b.envelopes = kept
	return nil
}

func (b *memBuffer) Cleanup(context.Context, time.Duration) error { return nil }

func (b *memBuffer) Count(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.envelopes)), nil
}

func (b *memBuffer) Close() error { return nil }

func (b *memBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.envelopes)
}

func TestManagerSendsFromEveryCollector(t *testing.T) {
	good, err := New("s1", component.NewSensorResource(&stubSensor{readings: component.Readings{"v": 1.0}}), Method(Readings), 100, 8000)
	require.NoError(t, err)
	broken, err := New("m1", component.NewMotorResource(&stubMotor{err: errors.New("stalled")}), Method(Position), 100, 8000)
	require.NoError(t, err)
	servo, err := New("sv", component.NewServoResource(&stubServo{deg: 90}), Method(Position), 100, 8000)
	require.NoError(t, err)

	snd := &recordingSender{}
	m := metrics.New(prometheus.NewRegistry())
	mgr := NewManager(sl.Discard(), ManagerConfig{RobotID: "robot-1"}, []*DataCollector{good, broken, servo}, snd, nil, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		seen := map[string]bool{}
		for _, c := range snd.components() {
			seen[c] = true
		}
		return seen["s1"] && seen["sv"]
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.NotContains(t, snd.components(), "m1")
	assert.Greater(t, testutil.ToFloat64(m.CaptureErrors.WithLabelValues("m1", "Position")), 0.0)
	assert.Greater(t, testutil.ToFloat64(m.CaptureTotal.WithLabelValues("s1", "Readings")), 0.0)
}

func TestManagerBuffersAndRetries(t *testing.T) {
	c, err := New("s1", component.NewSensorResource(&stubSensor{readings: component.Readings{"v": 1.0}}), Method(Readings), 100, 3000)
	require.NoError(t, err)

	snd := &recordingSender{fail: true}
	buf := &memBuffer{}
	mgr := NewManager(sl.Discard(), ManagerConfig{
		RobotID:       "robot-1",
		RetryInterval: 10 * time.Millisecond,
	}, []*DataCollector{c}, snd, buf, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Start(ctx)

	require.Eventually(t, func() bool { return buf.len() > 0 }, 2*time.Second, 5*time.Millisecond)
	buf.mu.Lock()
	assert.Equal(t, 3000, buf.capacities[0])
	assert.Equal(t, "sensor:s1/Readings", buf.streams[0])
	buf.mu.Unlock()

	mgr.Stop()
	snd.setFail(false)

	// Drain directly, the way the retry loop does on its ticker.
	mgr.processBufferedData(context.Background())
	assert.Equal(t, 0, buf.len())
	assert.NotEmpty(t, snd.components())
}

func TestManagerStopIsIdempotent(t *testing.T) {
	mgr := NewManager(sl.Discard(), ManagerConfig{}, nil, &recordingSender{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mgr.Start(ctx)

	assert.NotPanics(t, func() {
		mgr.Stop()
		mgr.Stop()
	})
}
