//go:build linux

package packets

import (
	"time"

	"golang.org/x/sys/unix"
)

// WallClock returns a converter from bpf_ktime_get_ns values (CLOCK_MONOTONIC)
// to wall-clock time, anchored at the moment of the call.
func WallClock() func(uint64) time.Time {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return func(ns uint64) time.Time { return time.Unix(0, int64(ns)) }
	}
	offset := time.Now().UnixNano() - ts.Nano()
	return func(ns uint64) time.Time { return time.Unix(0, offset+int64(ns)) }
}
