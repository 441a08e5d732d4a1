package report

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

const bytesPerKB = 1024

// ProcTraffic condenses the packets attributed to one PID during one view window.
type ProcTraffic struct {
	PID       uint32
	Comm      string
	RxBytes   uint64
	TxBytes   uint64
	Packets   uint64
	RxKBs     float64
	TxKBs     float64
	AvgPacket float64
	Diagnosis string
}

// TotalKBs is the combined throughput of the process.
func (p ProcTraffic) TotalKBs() float64 {
	return p.RxKBs + p.TxKBs
}

// FilterConfig controls which processes appear in CLI tables.
type FilterConfig struct {
	HideKernel *bool // nil defaults to true so softirq and idle traffic stays hidden unless explicitly shown
	NameFilter string
}

func (cfg FilterConfig) hideKernelEnabled() bool {
	if cfg.HideKernel == nil {
		return true
	}
	return *cfg.HideKernel
}

// Tally accumulates captured packet events between two renders of the live view.
type Tally struct {
	mu   sync.Mutex
	rows map[uint32]*ProcTraffic
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{rows: make(map[uint32]*ProcTraffic)}
}

// Add folds one event into the per-PID totals.
func (t *Tally) Add(ev types.PacketEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[ev.PID]
	if !ok {
		row = &ProcTraffic{PID: ev.PID}
		t.rows[ev.PID] = row
	}
	// the latest comm wins, a pid can exec a new image
	if ev.Comm != "" {
		row.Comm = ev.Comm
	}
	row.Packets++
	switch ev.Direction {
	case types.DirectionRX:
		row.RxBytes += ev.Bytes
	case types.DirectionTX:
		row.TxBytes += ev.Bytes
	}
}

// Drain returns the accumulated rows with rates over interval and resets the tally.
func (t *Tally) Drain(interval time.Duration) []ProcTraffic {
	t.mu.Lock()
	rows := t.rows
	t.rows = make(map[uint32]*ProcTraffic, len(rows))
	t.mu.Unlock()

	return BuildProcTraffic(rows, interval)
}

// BuildProcTraffic derives rates and diagnoses for raw per-PID totals.
func BuildProcTraffic(rows map[uint32]*ProcTraffic, interval time.Duration) []ProcTraffic {
	seconds := interval.Seconds()
	if seconds <= 0 {
		seconds = 1
	}
	result := make([]ProcTraffic, 0, len(rows))
	for _, row := range rows {
		copy := *row
		copy.RxKBs = float64(row.RxBytes) / bytesPerKB / seconds
		copy.TxKBs = float64(row.TxBytes) / bytesPerKB / seconds
		if row.Packets > 0 {
			copy.AvgPacket = float64(row.RxBytes+row.TxBytes) / float64(row.Packets)
		}
		copy.Diagnosis = classifyTraffic(&copy, seconds)
		result = append(result, copy)
	}
	return result
}

// FilterTraffic applies HideKernel/name filters before ranking tables.
func FilterTraffic(rows []ProcTraffic, cfg FilterConfig) []ProcTraffic {
	filtered := make([]ProcTraffic, 0, len(rows))
	for _, row := range rows {
		if passesFilters(row, cfg) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// TopTalkers returns the rows with the highest combined throughput up to topK.
func TopTalkers(rows []ProcTraffic, topK int) []ProcTraffic {
	candidates := make([]ProcTraffic, 0, len(rows))
	for _, row := range rows {
		if row.Packets == 0 {
			continue
		}
		candidates = append(candidates, row)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TotalKBs() == candidates[j].TotalKBs() {
			return candidates[i].PID < candidates[j].PID
		}
		return candidates[i].TotalKBs() > candidates[j].TotalKBs()
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// SelectFocusCandidate picks the most interesting process to summarize for the operator.
func SelectFocusCandidate(rows []ProcTraffic) *ProcTraffic {
	if len(rows) == 0 {
		return nil
	}
	var best *ProcTraffic
	bestScore := -1.0
	for _, row := range rows {
		severity := diagnosisSeverity(row.Diagnosis)
		if severity == 0 && row.TotalKBs() < 1 {
			continue
		}
		score := float64(severity)*1e6 + row.TotalKBs()
		if best == nil || score > bestScore {
			copy := row
			best = &copy
			bestScore = score
		}
	}
	if best != nil {
		return best
	}
	maxIdx := 0
	for i := 1; i < len(rows); i++ {
		if rows[i].Packets > rows[maxIdx].Packets {
			maxIdx = i
		}
	}
	copy := rows[maxIdx]
	return &copy
}

// FocusSummary returns a short explanation string for the status line.
func FocusSummary(row ProcTraffic) string {
	switch row.Diagnosis {
	case "Uploader":
		return fmt.Sprintf("sending %.1f KB/s, receiving %.1f KB/s", row.TxKBs, row.RxKBs)
	case "Downloader":
		return fmt.Sprintf("receiving %.1f KB/s, sending %.1f KB/s", row.RxKBs, row.TxKBs)
	case "Chatty":
		return fmt.Sprintf("%d packets, %.0f bytes each on average", row.Packets, row.AvgPacket)
	default:
		return fmt.Sprintf("%.1f KB/s over %d packets", row.TotalKBs(), row.Packets)
	}
}

func classifyTraffic(row *ProcTraffic, seconds float64) string {
	packetRate := float64(row.Packets) / seconds

	if row.TxKBs > 1024 && row.TxKBs > 4*row.RxKBs {
		return "Uploader"
	}
	if row.RxKBs > 1024 && row.RxKBs > 4*row.TxKBs {
		return "Downloader"
	}
	// small packets at a high rate, e.g. polling or DNS storms
	if packetRate > 1000 && row.AvgPacket < 128 {
		return "Chatty"
	}
	return "OK"
}

func passesFilters(row ProcTraffic, cfg FilterConfig) bool {
	if cfg.hideKernelEnabled() && isKernelThread(row) {
		return false
	}
	if cfg.NameFilter != "" {
		if !strings.Contains(strings.ToLower(row.Comm), cfg.NameFilter) {
			return false
		}
	}
	return true
}

func isKernelThread(row ProcTraffic) bool {
	if row.PID == 0 {
		return true
	}
	name := strings.ToLower(row.Comm)
	switch {
	case strings.HasPrefix(name, "kworker"), strings.HasPrefix(name, "ksoftirqd"), strings.HasPrefix(name, "kthreadd"),
		strings.HasPrefix(name, "migration"), strings.HasPrefix(name, "rcu"), strings.HasPrefix(name, "irq/"):
		return true
	}
	return false
}

func diagnosisSeverity(label string) int {
	switch label {
	case "Chatty":
		return 3
	case "Uploader":
		return 2
	case "Downloader":
		return 1
	default:
		return 0
	}
}
