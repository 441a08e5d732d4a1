//go:build !linux
// +build !linux

package packets

import (
	"context"
	"errors"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

var errUnsupported = errors.New("packet capture requires linux")

// Collector is a placeholder on non-Linux platforms.
type Collector struct{}

// NewCollector returns an error because eBPF is only supported on Linux.
func NewCollector(opts Options) (*Collector, error) {
	return nil, errUnsupported
}

// Run always fails on unsupported platforms.
func (c *Collector) Run(ctx context.Context) error {
	return errUnsupported
}

// Events returns nil on unsupported platforms.
func (c *Collector) Events() <-chan types.PacketEvent {
	return nil
}

// Dropped is always zero.
func (c *Collector) Dropped() uint64 {
	return 0
}

// Close is a no-op stub.
func (c *Collector) Close() error {
	return nil
}
