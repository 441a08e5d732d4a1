package main

import (
	"context"

	"github.com/srodi/netpulse-bpf/pkg/report"
	"github.com/srodi/netpulse-bpf/pkg/types"
)

// fanOut copies captured events into the live view tally and on to the
// recorder. out is closed when in closes or ctx ends.
func fanOut(ctx context.Context, in <-chan types.PacketEvent, tally *report.Tally, out chan<- types.PacketEvent) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if tally != nil {
				tally.Add(ev)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
