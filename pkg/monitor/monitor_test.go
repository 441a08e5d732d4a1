package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/srodi/netpulse-bpf/pkg/metrics"
	"github.com/srodi/netpulse-bpf/pkg/types"
)

// fakeSampler grows eth0 by step bytes per successful acquisition. When gate
// is set, the next acquisition signals entered and blocks until gate closes.
type fakeSampler struct {
	mu      sync.Mutex
	sent    uint64
	step    uint64
	calls   int
	fail    map[int]bool
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSampler) Acquire(context.Context) (map[string]types.InterfaceCounters, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.gate, f.entered = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[f.calls] {
		return nil, errors.New("netlink unavailable")
	}
	f.sent += f.step
	return map[string]types.InterfaceCounters{
		"eth0": {Name: "eth0", BytesSent: f.sent, BytesRecv: f.sent / 2},
	}, nil
}

func (f *fakeSampler) Interfaces(context.Context) ([]string, error) {
	return []string{"eth0"}, nil
}

func (f *fakeSampler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// hold makes the next acquisition block; it returns channels to observe
// entry and to release it.
func (f *fakeSampler) hold() (entered <-chan struct{}, release chan<- struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	return f.entered, f.gate
}

func (f *fakeSampler) bump(n uint64) {
	f.mu.Lock()
	f.sent += n
	f.mu.Unlock()
}

type memRates struct {
	mu      sync.Mutex
	samples []types.RateSample
	err     error
}

func (m *memRates) WriteSample(s types.RateSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.samples = append(m.samples, s)
	return nil
}

func (m *memRates) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

func (m *memRates) all() []types.RateSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.RateSample(nil), m.samples...)
}

type harness struct {
	mon     *Monitor
	clock   *clock.Mock
	sampler *fakeSampler
	rates   *memRates
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, cfg types.Config) *harness {
	t.Helper()
	h := &harness{
		clock:   clock.NewMock(),
		sampler: &fakeSampler{step: 1024},
		rates:   &memRates{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	mon, err := New(Options{Config: cfg, Sampler: h.sampler, Rates: h.rates, Clock: h.clock, Metrics: h.metrics})
	require.NoError(t, err)
	h.mon = mon
	t.Cleanup(mon.Close)
	return h
}

// advanceUntil moves the mock clock one interval at a time until cond holds.
func (h *harness) advanceUntil(t *testing.T, cond func() bool) {
	t.Helper()
	interval := h.mon.Interval()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		h.clock.Add(interval)
		return cond()
	}, 2*time.Second, time.Millisecond)
}

func TestNewRequiresSamplerAndValidConfig(t *testing.T) {
	_, err := New(Options{Config: types.DefaultConfig()})
	require.Error(t, err)

	_, err = New(Options{Config: types.Config{Interval: 0, WindowSize: 5}, Sampler: &fakeSampler{}})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestMonitorProducesSamplesAfterSeed(t *testing.T) {
	h := newHarness(t, types.Config{Interval: 1, WindowSize: 3})
	require.Equal(t, StateIdle, h.mon.State())

	h.mon.Start()
	require.Eventually(t, func() bool { return h.sampler.callCount() >= 1 }, time.Second, time.Millisecond)
	require.Zero(t, h.rates.len(), "first tick only seeds counters")

	h.advanceUntil(t, func() bool { return h.rates.len() >= 5 })

	for _, s := range h.rates.all() {
		require.InDelta(t, 1.0, s.UploadKBs, 1e-9)
		require.InDelta(t, 0.5, s.DownloadKBs, 1e-9)
	}
	snap := h.mon.Snapshot()
	require.Len(t, snap.Samples, 3)
	require.Equal(t, 1.0, snap.CurrentUpload)
	require.GreaterOrEqual(t, testutil.ToFloat64(h.metrics.Ticks), 5.0)
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, types.DefaultConfig())
	h.mon.Start()
	h.mon.Start()
	require.Eventually(t, func() bool { return h.sampler.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, h.sampler.callCount())
	require.True(t, h.mon.Running())
}

func TestStopThenStartDoesNotDuplicate(t *testing.T) {
	h := newHarness(t, types.Config{Interval: 1, WindowSize: 100})
	h.mon.Start()
	h.advanceUntil(t, func() bool { return h.rates.len() >= 3 })

	h.mon.Stop()
	require.Equal(t, StateStopped, h.mon.State())
	stoppedAt := h.rates.len()
	for i := 0; i < 5; i++ {
		h.clock.Add(time.Second)
	}
	time.Sleep(20 * time.Millisecond)
	require.LessOrEqual(t, h.rates.len(), stoppedAt+1, "at most one tick after stop")

	// Traffic while stopped must not surface as a spike after restart.
	h.sampler.bump(1 << 30)
	before := h.rates.len()
	h.mon.Start()
	h.advanceUntil(t, func() bool { return h.rates.len() >= before+3 })

	samples := h.rates.all()
	snap := h.mon.Snapshot()
	require.Len(t, snap.Samples, len(samples))
	for i, s := range samples {
		require.InDelta(t, 1.0, s.UploadKBs, 1e-9)
		if i > 0 {
			require.True(t, s.Timestamp.After(samples[i-1].Timestamp), "sample %d repeats a timestamp", i)
		}
		require.Equal(t, s.Timestamp, snap.Samples[i].Timestamp)
	}
}

func TestRestartWaitsForInFlightTick(t *testing.T) {
	h := newHarness(t, types.Config{Interval: 1, WindowSize: 100})
	h.mon.Start()
	h.advanceUntil(t, func() bool { return h.rates.len() >= 2 })

	entered, release := h.sampler.hold()
	h.advanceUntil(t, func() bool {
		select {
		case <-entered:
			return true
		default:
			return false
		}
	})
	h.mon.Stop()
	written, calls := h.rates.len(), h.sampler.callCount()

	started := make(chan struct{})
	go func() {
		h.mon.Start()
		close(started)
	}()
	require.Never(t, func() bool {
		select {
		case <-started:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond, "restart must wait for the in-flight tick")

	close(release)
	require.Eventually(t, func() bool {
		select {
		case <-started:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	require.True(t, h.mon.Running())

	// The in-flight tick completed in the old run; the new run only seeds.
	afterRestart := h.rates.len()
	require.Equal(t, written+1, afterRestart)
	require.Eventually(t, func() bool { return h.sampler.callCount() == calls+1 }, time.Second, time.Millisecond)
	require.Equal(t, afterRestart, h.rates.len())
	h.advanceUntil(t, func() bool { return h.rates.len() >= afterRestart+2 })

	samples := h.rates.all()
	for i, s := range samples {
		require.InDelta(t, 1.0, s.UploadKBs, 1e-9, "sample %d", i)
		if i > 0 {
			require.True(t, s.Timestamp.After(samples[i-1].Timestamp), "sample %d repeats a timestamp", i)
		}
	}
}

func TestSamplingErrorsDoNotStopLoop(t *testing.T) {
	h := newHarness(t, types.DefaultConfig())
	h.sampler.fail = map[int]bool{2: true, 3: true}
	h.mon.Start()
	h.advanceUntil(t, func() bool { return h.rates.len() >= 3 })

	require.Equal(t, 2.0, testutil.ToFloat64(h.metrics.SampleErrors))
	for _, s := range h.rates.all() {
		require.GreaterOrEqual(t, s.UploadKBs, 0.0)
	}
}

func TestPersistenceFailureKeepsWindow(t *testing.T) {
	h := newHarness(t, types.DefaultConfig())
	h.rates.err = errors.New("read-only filesystem")
	h.mon.Start()
	h.advanceUntil(t, func() bool { return len(h.mon.Snapshot().Samples) >= 2 })

	require.Zero(t, h.rates.len())
	require.GreaterOrEqual(t, testutil.ToFloat64(h.metrics.WriteErrors.WithLabelValues(metrics.StreamRates)), 2.0)
}

func TestSetConfigThroughMonitor(t *testing.T) {
	h := newHarness(t, types.Config{Interval: 1, WindowSize: 10})
	h.mon.Start()
	h.advanceUntil(t, func() bool { return len(h.mon.Snapshot().Samples) >= 6 })

	zero := 0
	cfg, err := h.mon.SetConfig(types.ConfigPatch{WindowSize: &zero})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
	require.Equal(t, 10, cfg.WindowSize)

	size := 4
	cfg, err = h.mon.SetConfig(types.ConfigPatch{WindowSize: &size})
	require.NoError(t, err)
	require.Equal(t, types.Config{Interval: 1, WindowSize: 4}, cfg)
	require.LessOrEqual(t, len(h.mon.Snapshot().Samples), 4)

	interval := 2.0
	_, err = h.mon.SetConfig(types.ConfigPatch{Interval: &interval})
	require.NoError(t, err)
	status := h.mon.Status()
	require.Equal(t, types.Status{Interval: 2, WindowSize: 4, Running: true}, status)
	require.Equal(t, 2*time.Second, h.mon.Interval())
}

func TestCloseStopsForGood(t *testing.T) {
	h := newHarness(t, types.DefaultConfig())
	h.mon.Start()
	h.mon.Close()
	require.Equal(t, StateStopped, h.mon.State())

	h.mon.Start()
	require.Equal(t, StateStopped, h.mon.State())
}

func TestInterfacesDelegatesToSampler(t *testing.T) {
	h := newHarness(t, types.DefaultConfig())
	names, err := h.mon.Interfaces(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"eth0"}, names)
}
