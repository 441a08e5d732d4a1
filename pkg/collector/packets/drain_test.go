package packets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

// fakeReader replays queued records and blocks once they are exhausted until
// more arrive or Close is called.
type fakeReader struct {
	records chan []byte
	errs    chan error
	closed  chan struct{}
	once    sync.Once
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		records: make(chan []byte, 64),
		errs:    make(chan error, 4),
		closed:  make(chan struct{}),
	}
}

func (f *fakeReader) Read() ([]byte, error) {
	select {
	case <-f.closed:
		return nil, errReaderClosed
	default:
	}
	select {
	case err := <-f.errs:
		return nil, err
	case raw := <-f.records:
		return raw, nil
	case <-f.closed:
		return nil, errReaderClosed
	}
}

func (f *fakeReader) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func testDrainer(t *testing.T, queue int) *drainer {
	t.Helper()
	d, err := newDrainer(Options{QueueSize: queue}.withDefaults())
	if err != nil {
		t.Fatalf("newDrainer: %v", err)
	}
	return d
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDrainDropsWhenQueueFull(t *testing.T) {
	d := testDrainer(t, 1)
	r := newFakeReader()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx, r) }()

	r.records <- encodeRecord(1, 100, 1, uint8(types.DirectionTX), []byte("a"))
	r.records <- encodeRecord(2, 200, 2, uint8(types.DirectionTX), []byte("b"))
	r.records <- encodeRecord(3, 300, 3, uint8(types.DirectionRX), []byte("c"))
	waitFor(t, func() bool { return d.dropped.Load() == 2 })

	first := <-d.out
	if first.TimestampNs != 1 || first.Comm != "a" {
		t.Fatalf("unexpected first event %+v", first)
	}

	// The loop survived the overflow and delivers later events intact.
	r.records <- encodeRecord(4, 400, 4, uint8(types.DirectionRX), []byte("d"))
	next := <-d.out
	want := types.PacketEvent{TimestampNs: 4, Bytes: 400, PID: 4, Direction: types.DirectionRX, Comm: "d"}
	if next != want {
		t.Fatalf("expected %+v, got %+v", want, next)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
	if _, ok := <-d.out; ok {
		t.Fatalf("expected output channel to be closed")
	}
}

func TestDrainSkipsMalformedAndTransientErrors(t *testing.T) {
	stubProcessName(t, func(int32) (string, error) { return "", errors.New("gone") })
	d := testDrainer(t, 8)
	r := newFakeReader()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.run(ctx, r) }()

	r.errs <- errors.New("transient")
	r.records <- []byte{1, 2, 3}
	r.records <- encodeRecord(9, 64, 77, uint8(types.DirectionTX), nil)

	ev := <-d.out
	if ev.PID != 77 || ev.Comm != "pid-77" {
		t.Fatalf("unexpected event %+v", ev)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
}
