package types

import (
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the sampling cadence in seconds used when none is configured.
const DefaultInterval = 1.0

// DefaultWindowSize is the number of rate samples retained in memory.
const DefaultWindowSize = 60

// DefaultTopK is the number of rows shown per section of the terminal view.
const DefaultTopK = 10

// CommLen is the size of the kernel task comm buffer (TASK_COMM_LEN).
const CommLen = 16

// InterfaceCounters holds the cumulative byte counters for one interface at one tick.
type InterfaceCounters struct {
	Name      string
	BytesSent uint64
	BytesRecv uint64
	SampledAt time.Time
}

// InterfaceRate is the per-interface slice of a RateSample.
type InterfaceRate struct {
	Upload    float64 `json:"upload"`
	Download  float64 `json:"download"`
	BytesSent uint64  `json:"bytes_sent"`
	BytesRecv uint64  `json:"bytes_recv"`
}

// RateSample is the throughput computed between two consecutive ticks, in KB/s.
type RateSample struct {
	Timestamp    time.Time                `json:"timestamp"`
	UploadKBs    float64                  `json:"upload_kb_s"`
	DownloadKBs  float64                  `json:"download_kb_s"`
	PerInterface map[string]InterfaceRate `json:"per_interface"`
}

// Direction tags a packet as received or transmitted.
type Direction uint8

const (
	DirectionRX Direction = 0
	DirectionTX Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionRX:
		return "rx"
	case DirectionTX:
		return "tx"
	default:
		return "unknown"
	}
}

// PacketEvent is a single packet attributed to the task that was current when
// the kernel tracepoint fired. TimestampNs is kernel monotonic time.
type PacketEvent struct {
	TimestampNs uint64
	PID         uint32
	Comm        string
	Direction   Direction
	Bytes       uint64
}

// EventRow is a PacketEvent converted for persistence.
type EventRow struct {
	Time      time.Time
	PID       uint32
	Process   string
	Direction string
	Bytes     uint64
}

// ErrInvalidConfig is matched by every ValidationError.
var ErrInvalidConfig = errors.New("invalid config")

// ValidationError reports a rejected configuration field.
type ValidationError struct {
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s=%v", e.Field, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Config is the process-wide sampling configuration.
type Config struct {
	Interval   float64 `json:"interval"`
	WindowSize int     `json:"window_size"`
}

// DefaultConfig returns the configuration used when nothing else is supplied.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, WindowSize: DefaultWindowSize}
}

// Validate rejects non-positive intervals and windows smaller than one sample.
func (c Config) Validate() error {
	if !(c.Interval > 0) {
		return &ValidationError{Field: "interval", Value: c.Interval}
	}
	if c.WindowSize < 1 {
		return &ValidationError{Field: "window_size", Value: c.WindowSize}
	}
	return nil
}

// IntervalDuration converts the interval to a time.Duration.
func (c Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

// ConfigPatch carries a partial update; nil fields keep their current value.
type ConfigPatch struct {
	Interval   *float64 `json:"interval,omitempty"`
	WindowSize *int     `json:"window_size,omitempty"`
}

// Merge applies the patch on top of c.
func (p ConfigPatch) Merge(c Config) Config {
	if p.Interval != nil {
		c.Interval = *p.Interval
	}
	if p.WindowSize != nil {
		c.WindowSize = *p.WindowSize
	}
	return c
}

// Snapshot is a consistent copy of the aggregator state.
type Snapshot struct {
	Samples         []RateSample             `json:"-"`
	UploadHistory   []float64                `json:"upload_history"`
	DownloadHistory []float64                `json:"download_history"`
	Timestamps      []string                 `json:"timestamps"`
	Interfaces      map[string]InterfaceRate `json:"interfaces"`
	CurrentUpload   float64                  `json:"current_upload"`
	CurrentDownload float64                  `json:"current_download"`
	Config          Config                   `json:"-"`
}

// Status describes the sampling task for the serving layer.
type Status struct {
	Interval   float64 `json:"interval"`
	WindowSize int     `json:"window_size"`
	Running    bool    `json:"running"`
}
