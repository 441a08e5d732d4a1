package report

import (
	"sort"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

// InterfaceRow is one interface's share of the newest rate sample.
type InterfaceRow struct {
	Name      string
	Upload    float64
	Download  float64
	BytesSent uint64
	BytesRecv uint64
}

// Total is the combined throughput in KB/s.
func (r InterfaceRow) Total() float64 {
	return r.Upload + r.Download
}

// InterfaceRows ranks the snapshot's current interfaces by combined throughput,
// breaking ties by name, and keeps at most topK rows.
func InterfaceRows(snap types.Snapshot, topK int) []InterfaceRow {
	rows := make([]InterfaceRow, 0, len(snap.Interfaces))
	for name, rate := range snap.Interfaces {
		rows = append(rows, InterfaceRow{
			Name:      name,
			Upload:    rate.Upload,
			Download:  rate.Download,
			BytesSent: rate.BytesSent,
			BytesRecv: rate.BytesRecv,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total() == rows[j].Total() {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Total() > rows[j].Total()
	})
	if topK > 0 && len(rows) > topK {
		rows = rows[:topK]
	}
	return rows
}
