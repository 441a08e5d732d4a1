package packets

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/srodi/netpulse-bpf/pkg/metrics"
)

const (
	DefaultRingBufferSize = 256 << 10
	DefaultQueueSize      = 4096
	DefaultCommCacheSize  = 1024
)

// Options tunes the capture path. Zero values select the defaults.
type Options struct {
	// RingBufferSize is the kernel ring buffer size in bytes; it must be a
	// power of two and a multiple of the page size.
	RingBufferSize int
	// QueueSize bounds the channel between the drain loop and its consumer.
	QueueSize     int
	CommCacheSize int
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.RingBufferSize == 0 {
		o.RingBufferSize = DefaultRingBufferSize
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.CommCacheSize <= 0 {
		o.CommCacheSize = DefaultCommCacheSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func validateRingBufferSize(size int) error {
	page := os.Getpagesize()
	if size <= 0 || size&(size-1) != 0 || size%page != 0 {
		return fmt.Errorf("ring buffer size %d must be a power of two multiple of %d", size, page)
	}
	return nil
}
