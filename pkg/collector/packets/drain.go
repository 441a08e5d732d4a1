package packets

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/srodi/netpulse-bpf/pkg/metrics"
	"github.com/srodi/netpulse-bpf/pkg/types"
)

var errReaderClosed = errors.New("ring buffer reader closed")

// recordReader yields raw kernel records. Read blocks until a record is
// available and returns errReaderClosed once Close has been called. The
// returned slice is only valid until the next Read.
type recordReader interface {
	Read() ([]byte, error)
	Close() error
}

// drainer moves records from the ring buffer into a bounded channel. When the
// channel is full the event is dropped; the kernel side never waits on us.
type drainer struct {
	out     chan types.PacketEvent
	attr    *attributor
	logger  *zap.Logger
	metrics *metrics.Metrics
	dropped atomic.Uint64
}

func newDrainer(opts Options) (*drainer, error) {
	attr, err := newAttributor(opts.CommCacheSize)
	if err != nil {
		return nil, err
	}
	return &drainer{
		out:     make(chan types.PacketEvent, opts.QueueSize),
		attr:    attr,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// run drains r until ctx is cancelled or the reader is closed, then closes
// the output channel.
func (d *drainer) run(ctx context.Context, r recordReader) error {
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()
	defer close(d.out)

	for {
		raw, err := r.Read()
		if err != nil {
			if errors.Is(err, errReaderClosed) || ctx.Err() != nil {
				return nil
			}
			d.logger.Warn("reading ring buffer", zap.Error(err))
			continue
		}

		ev, err := decodeRecord(raw)
		if err != nil {
			d.metrics.IncInvalid()
			d.logger.Debug("skipping malformed record", zap.Error(err))
			continue
		}
		ev.Comm = d.attr.name(ev.PID, ev.Comm)
		d.metrics.IncCaptured()

		select {
		case d.out <- ev:
		default:
			d.dropped.Add(1)
			d.metrics.IncDropped()
		}
	}
}
