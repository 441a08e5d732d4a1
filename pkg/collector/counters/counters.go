package counters

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

// ioCounters allows tests to stub the per-NIC counter query.
var ioCounters = net.IOCountersWithContext

// Sampler reads OS per-interface byte counters.
type Sampler struct {
	now func() time.Time
}

// NewSampler returns a Sampler stamping results with the wall clock.
func NewSampler() *Sampler {
	return &Sampler{now: time.Now}
}

// Acquire performs one per-interface counter query. Interfaces appearing or
// disappearing between calls are not an error; they are simply present or absent.
func (s *Sampler) Acquire(ctx context.Context) (map[string]types.InterfaceCounters, error) {
	stats, err := ioCounters(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("reading interface counters: %w", err)
	}

	at := s.now()
	result := make(map[string]types.InterfaceCounters, len(stats))
	for _, st := range stats {
		if st.Name == "" {
			continue
		}
		result[st.Name] = types.InterfaceCounters{
			Name:      st.Name,
			BytesSent: st.BytesSent,
			BytesRecv: st.BytesRecv,
			SampledAt: at,
		}
	}
	return result, nil
}

// Interfaces lists the interface names currently reported by the OS, sorted.
func (s *Sampler) Interfaces(ctx context.Context) ([]string, error) {
	current, err := s.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
