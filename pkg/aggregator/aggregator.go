package aggregator

import (
	"maps"
	"sync"
	"time"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

const clockFormat = "15:04:05"

// Aggregator turns successive counter acquisitions into rate samples and keeps
// the most recent ones in a bounded window. The window, the last observed
// counters and the active Config share one mutex, so snapshots never observe
// a half-applied tick or resize.
type Aggregator struct {
	mu         sync.Mutex
	cfg        types.Config
	window     *Window
	last       map[string]types.InterfaceCounters
	interfaces map[string]types.InterfaceRate
}

// New builds an aggregator for cfg.
func New(cfg types.Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		cfg:        cfg,
		window:     NewWindow(cfg.WindowSize),
		interfaces: map[string]types.InterfaceRate{},
	}, nil
}

// Observe feeds one acquisition. The first call after New or ResetBaseline only
// records the counters and returns false.
func (a *Aggregator) Observe(curr map[string]types.InterfaceCounters, at time.Time) (types.RateSample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.last == nil {
		a.last = maps.Clone(curr)
		if a.last == nil {
			a.last = map[string]types.InterfaceCounters{}
		}
		return types.RateSample{}, false
	}

	if newest, ok := a.window.Last(); ok && at.Before(newest.Timestamp) {
		at = newest.Timestamp
	}
	// The divisor is the interval active now. A change applied mid-sleep
	// therefore scales the first delta after it by the new interval even
	// though it was measured over the old one.
	sample := ComputeRates(a.last, curr, a.cfg.Interval, at)
	a.window.Push(sample)
	a.interfaces = sample.PerInterface
	a.last = maps.Clone(curr)
	if a.last == nil {
		a.last = map[string]types.InterfaceCounters{}
	}
	return sample, true
}

// ResetBaseline forgets the last counters so the next Observe seeds again.
// Window contents are untouched.
func (a *Aggregator) ResetBaseline() {
	a.mu.Lock()
	a.last = nil
	a.mu.Unlock()
}

// Config returns the active configuration.
func (a *Aggregator) Config() types.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Reconfigure computes a new configuration from the active one, validates it
// and, on success, swaps it in and resizes the window in the same critical
// section. On error the previous configuration stays in effect.
func (a *Aggregator) Reconfigure(next func(types.Config) types.Config) (types.Config, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cfg := next(a.cfg)
	if err := cfg.Validate(); err != nil {
		return a.cfg, err
	}
	if cfg.WindowSize != a.window.Cap() {
		a.window.Resize(cfg.WindowSize)
	}
	a.cfg = cfg
	return cfg, nil
}

// WindowLen reports how many samples are currently retained.
func (a *Aggregator) WindowLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.Len()
}

// Snapshot copies the aggregator state under the mutation lock.
func (a *Aggregator) Snapshot() types.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples := a.window.Items()
	snap := types.Snapshot{
		Samples:         samples,
		UploadHistory:   make([]float64, len(samples)),
		DownloadHistory: make([]float64, len(samples)),
		Timestamps:      make([]string, len(samples)),
		Interfaces:      maps.Clone(a.interfaces),
		Config:          a.cfg,
	}
	for i, s := range samples {
		snap.UploadHistory[i] = s.UploadKBs
		snap.DownloadHistory[i] = s.DownloadKBs
		snap.Timestamps[i] = s.Timestamp.Format(clockFormat)
	}
	if n := len(samples); n > 0 {
		snap.CurrentUpload = samples[n-1].UploadKBs
		snap.CurrentDownload = samples[n-1].DownloadKBs
	}
	if snap.Interfaces == nil {
		snap.Interfaces = map[string]types.InterfaceRate{}
	}
	return snap
}
