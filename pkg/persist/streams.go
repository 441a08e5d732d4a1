package persist

import (
	"strconv"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

const (
	rateTimeFormat  = "2006-01-02 15:04:05"
	eventTimeFormat = "2006-01-02T15:04:05"
)

var (
	RateHeader  = []string{"timestamp", "upload_kb_s", "download_kb_s"}
	EventHeader = []string{"timestamp", "pid", "process", "direction", "bytes"}
)

// RateLog persists one row per sampling tick.
type RateLog struct {
	*Log
}

// OpenRateLog opens the rate stream at path.
func OpenRateLog(path string) (*RateLog, error) {
	l, err := Open(path, RateHeader)
	if err != nil {
		return nil, err
	}
	return &RateLog{Log: l}, nil
}

// WriteSample appends s with two-decimal rates.
func (r *RateLog) WriteSample(s types.RateSample) error {
	return r.WriteRow([]string{
		s.Timestamp.Format(rateTimeFormat),
		strconv.FormatFloat(s.UploadKBs, 'f', 2, 64),
		strconv.FormatFloat(s.DownloadKBs, 'f', 2, 64),
	})
}

// EventLog persists one row per recorded packet.
type EventLog struct {
	*Log
}

// OpenEventLog opens the packet event stream at path.
func OpenEventLog(path string) (*EventLog, error) {
	l, err := Open(path, EventHeader)
	if err != nil {
		return nil, err
	}
	return &EventLog{Log: l}, nil
}

// WriteEvent appends row, rendering the time in local civil time.
func (e *EventLog) WriteEvent(row types.EventRow) error {
	return e.WriteRow([]string{
		row.Time.Local().Format(eventTimeFormat),
		strconv.FormatUint(uint64(row.PID), 10),
		row.Process,
		row.Direction,
		strconv.FormatUint(row.Bytes, 10),
	})
}
