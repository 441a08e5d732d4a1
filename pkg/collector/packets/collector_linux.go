//go:build linux
// +build linux

package packets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

type tracepoint struct {
	group, name string
	progName    string
	dir         types.Direction
}

var tracepoints = []tracepoint{
	{group: "net", name: "net_dev_xmit", progName: "netpulse_tx", dir: types.DirectionTX},
	{group: "net", name: "netif_receive_skb", progName: "netpulse_rx", dir: types.DirectionRX},
}

// Collector owns the ring buffer, the packet programs and their tracepoint links.
type Collector struct {
	*drainer

	events *ebpf.Map
	progs  []*ebpf.Program
	links  []link.Link
	reader *ringReader
}

// NewCollector loads the packet programs and attaches them to net/net_dev_xmit
// and net/netif_receive_skb. Any failure releases what was already created and
// is returned as is; there is no partial capture mode.
func NewCollector(opts Options) (*Collector, error) {
	opts = opts.withDefaults()
	if err := validateRingBufferSize(opts.RingBufferSize); err != nil {
		return nil, err
	}
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("removing memlock rlimit: %w", err)
	}

	d, err := newDrainer(opts)
	if err != nil {
		return nil, err
	}
	c := &Collector{drainer: d}

	c.events, err = ebpf.NewMap(&ebpf.MapSpec{
		Name:       "netpulse_events",
		Type:       ebpf.RingBuf,
		MaxEntries: uint32(opts.RingBufferSize),
	})
	if err != nil {
		return nil, fmt.Errorf("creating ring buffer: %w", err)
	}

	for _, tp := range tracepoints {
		prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
			Name:         tp.progName,
			Type:         ebpf.TracePoint,
			License:      "GPL",
			Instructions: packetProgram(c.events.FD(), tp.dir),
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("loading %s program: %w", tp.name, err)
		}
		c.progs = append(c.progs, prog)

		l, err := link.Tracepoint(tp.group, tp.name, prog, nil)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("attaching tracepoint %s/%s: %w", tp.group, tp.name, err)
		}
		c.links = append(c.links, l)
	}

	rd, err := ringbuf.NewReader(c.events)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening ring buffer reader: %w", err)
	}
	c.reader = &ringReader{rd: rd}

	return c, nil
}

// Run drains the ring buffer until ctx is cancelled. Events are delivered on
// Events(), which is closed when Run returns. Run must be called once.
func (c *Collector) Run(ctx context.Context) error {
	if c.reader == nil {
		return errors.New("collector is closed")
	}
	return c.run(ctx, c.reader)
}

// Events returns the bounded channel fed by Run.
func (c *Collector) Events() <-chan types.PacketEvent {
	return c.out
}

// Dropped reports events discarded because the consumer fell behind.
func (c *Collector) Dropped() uint64 {
	return c.dropped.Load()
}

// Close detaches the tracepoints and releases the BPF resources.
func (c *Collector) Close() error {
	var err error
	if c.reader != nil {
		err = errors.Join(err, c.reader.Close())
	}
	for i := len(c.links) - 1; i >= 0; i-- {
		err = errors.Join(err, c.links[i].Close())
	}
	c.links = nil
	for _, p := range c.progs {
		err = errors.Join(err, p.Close())
	}
	c.progs = nil
	if c.events != nil {
		err = errors.Join(err, c.events.Close())
		c.events = nil
	}
	return err
}

type ringReader struct {
	rd   *ringbuf.Reader
	rec  ringbuf.Record
	once sync.Once
	err  error
}

func (r *ringReader) Read() ([]byte, error) {
	if err := r.rd.ReadInto(&r.rec); err != nil {
		if errors.Is(err, ringbuf.ErrClosed) {
			return nil, errReaderClosed
		}
		return nil, err
	}
	return r.rec.RawSample, nil
}

func (r *ringReader) Close() error {
	r.once.Do(func() { r.err = r.rd.Close() })
	return r.err
}
