//go:build !linux

package packets

import "time"

// WallClock interprets timestamps as Unix nanoseconds on platforms without
// kernel capture.
func WallClock() func(uint64) time.Time {
	return func(ns uint64) time.Time { return time.Unix(0, int64(ns)) }
}
