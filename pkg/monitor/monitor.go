// Package monitor runs the periodic counter-sampling task and exposes the
// operations the serving layer calls: snapshots, configuration, start/stop
// and interface listing.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/srodi/netpulse-bpf/pkg/aggregator"
	"github.com/srodi/netpulse-bpf/pkg/metrics"
	"github.com/srodi/netpulse-bpf/pkg/types"
)

// Sampler acquires per-interface byte counters.
type Sampler interface {
	Acquire(ctx context.Context) (map[string]types.InterfaceCounters, error)
	Interfaces(ctx context.Context) ([]string, error)
}

// RateWriter persists one rate sample per tick.
type RateWriter interface {
	WriteSample(types.RateSample) error
}

// State is the lifecycle of the sampling task.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a Monitor. Sampler is required.
type Options struct {
	Config  types.Config
	Sampler Sampler
	Rates   RateWriter
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Monitor owns the aggregator and the sampling loop.
type Monitor struct {
	agg     *aggregator.Aggregator
	sampler Sampler
	rates   RateWriter
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
	control *ConfigController

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state State
	run   *run
	// last is the most recent run, kept after Stop until its loop exits.
	last *run
}

// run is one Running period; done closes on Stop, exited when its loop returns.
type run struct {
	done   chan struct{}
	exited chan struct{}
}

// New validates opts.Config and builds an idle Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Sampler == nil {
		return nil, errors.New("monitor: sampler is required")
	}
	agg, err := aggregator.New(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		agg:     agg,
		sampler: opts.Sampler,
		rates:   opts.Rates,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
	m.control = NewConfigController(agg, opts.Logger)
	return m, nil
}

// Start begins sampling. It is a no-op while already running; after Stop it
// waits for the previous loop to finish its in-flight tick, then resumes with
// a fresh counter baseline, keeping the existing window.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.state == StateRunning || m.ctx.Err() != nil {
			return
		}
		prev := m.last
		if prev == nil || prev.finished() {
			break
		}
		// the loop never takes mu, but Stop and Close do
		m.mu.Unlock()
		select {
		case <-prev.exited:
		case <-m.ctx.Done():
		}
		m.mu.Lock()
	}

	r := &run{done: make(chan struct{}), exited: make(chan struct{})}
	m.run = r
	m.last = r
	m.state = StateRunning
	m.agg.ResetBaseline()

	m.wg.Add(1)
	go m.loop(r)
	m.logger.Info("sampling started", zap.Float64("interval", m.agg.Config().Interval))
}

// Stop requests the loop to exit at its next sleep boundary. A tick already
// in progress completes, including its persistence write.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning {
		return
	}
	close(m.run.done)
	m.run = nil
	m.state = StateStopped
	m.logger.Info("sampling stopped")
}

// Close stops sampling and waits for the loop to finish.
func (m *Monitor) Close() {
	m.Stop()
	m.cancel()
	m.wg.Wait()
}

// State reports the lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether the sampling loop is active.
func (m *Monitor) Running() bool {
	return m.State() == StateRunning
}

func (r *run) finished() bool {
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}

func (r *run) stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (m *Monitor) loop(r *run) {
	defer m.wg.Done()
	defer close(r.exited)

	m.tick()
	for {
		interval := m.agg.Config().IntervalDuration()
		select {
		case <-m.clock.After(interval):
		case <-r.done:
			return
		case <-m.ctx.Done():
			return
		}
		if r.stopped() {
			return
		}
		m.tick()
	}
}

// tick acquires counters, folds them into the aggregator and persists the
// resulting sample. Counter acquisition and the write happen outside the
// aggregator lock.
func (m *Monitor) tick() {
	curr, err := m.sampler.Acquire(m.ctx)
	if err != nil {
		m.metrics.IncSampleErrors()
		m.logger.Warn("sampling interface counters", zap.Error(err))
		return
	}

	sample, ok := m.agg.Observe(curr, m.clock.Now())
	if !ok {
		return
	}
	m.metrics.IncTicks()
	m.metrics.SetWindowLength(m.agg.WindowLen())

	if m.rates == nil {
		return
	}
	if err := m.rates.WriteSample(sample); err != nil {
		m.metrics.IncWriteErrors(metrics.StreamRates)
		m.logger.Warn("persisting rate sample", zap.Time("timestamp", sample.Timestamp), zap.Error(err))
	}
}

// Snapshot returns a consistent copy of the window and current rates.
func (m *Monitor) Snapshot() types.Snapshot {
	return m.agg.Snapshot()
}

// Config returns the active configuration.
func (m *Monitor) Config() types.Config {
	return m.agg.Config()
}

// SetConfig applies a partial configuration update.
func (m *Monitor) SetConfig(p types.ConfigPatch) (types.Config, error) {
	cfg, err := m.control.Update(p)
	if err == nil {
		m.metrics.SetWindowLength(m.agg.WindowLen())
	}
	return cfg, err
}

// Status reports configuration and whether sampling is running.
func (m *Monitor) Status() types.Status {
	cfg := m.agg.Config()
	return types.Status{Interval: cfg.Interval, WindowSize: cfg.WindowSize, Running: m.Running()}
}

// Interfaces lists the interfaces currently known to the OS.
func (m *Monitor) Interfaces(ctx context.Context) ([]string, error) {
	return m.sampler.Interfaces(ctx)
}

// Interval returns the active sampling interval.
func (m *Monitor) Interval() time.Duration {
	return m.agg.Config().IntervalDuration()
}
