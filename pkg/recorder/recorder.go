// Package recorder turns captured packet events into event log rows.
package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/srodi/netpulse-bpf/pkg/metrics"
	"github.com/srodi/netpulse-bpf/pkg/types"
)

// EventWriter persists one event row.
type EventWriter interface {
	WriteEvent(types.EventRow) error
}

// Options configures a Recorder.
type Options struct {
	// ToWall converts kernel timestamps to wall-clock time. Defaults to
	// interpreting them as Unix nanoseconds.
	ToWall  func(uint64) time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Recorder forwards events to an EventWriter one by one. A failed write is
// logged and the event is lost; it is never retried.
type Recorder struct {
	w       EventWriter
	toWall  func(uint64) time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New returns a Recorder writing to w.
func New(w EventWriter, opts Options) *Recorder {
	r := &Recorder{w: w, toWall: opts.ToWall, logger: opts.Logger, metrics: opts.Metrics}
	if r.toWall == nil {
		r.toWall = func(ns uint64) time.Time { return time.Unix(0, int64(ns)) }
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Row converts ev into its persisted form.
func (r *Recorder) Row(ev types.PacketEvent) types.EventRow {
	return types.EventRow{
		Time:      r.toWall(ev.TimestampNs).Local(),
		PID:       ev.PID,
		Process:   ev.Comm,
		Direction: ev.Direction.String(),
		Bytes:     ev.Bytes,
	}
}

// Record writes a single event.
func (r *Recorder) Record(ev types.PacketEvent) error {
	if err := r.w.WriteEvent(r.Row(ev)); err != nil {
		r.metrics.IncWriteErrors(metrics.StreamEvents)
		return err
	}
	r.metrics.IncRecorded()
	return nil
}

// Run records events until in is closed or ctx is done. The write in progress
// when ctx is cancelled is completed first.
func (r *Recorder) Run(ctx context.Context, in <-chan types.PacketEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			if err := r.Record(ev); err != nil {
				r.logger.Warn("recording packet event",
					zap.Uint32("pid", ev.PID),
					zap.String("direction", ev.Direction.String()),
					zap.Error(err))
			}
		}
	}
}
