package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

// View is everything one frame of the live terminal view shows.
type View struct {
	Snapshot types.Snapshot
	Running  bool
	TopK     int
	Filter   FilterConfig
	// Traffic is nil when packet capture is disabled.
	Traffic  []ProcTraffic
	Interval time.Duration
	Updated  time.Time
}

// Render writes the throughput summary, the interface table and, when capture
// is enabled, the top talkers table.
func Render(w io.Writer, v View) error {
	state := "running"
	if !v.Running {
		state = "stopped"
	}
	fmt.Fprintf(w, "Updated: %s | Interval: %v | Window: %d/%d | Sampling: %s\n\n",
		v.Updated.Format(time.RFC3339), v.Interval, len(v.Snapshot.Samples), v.Snapshot.Config.WindowSize, state)
	fmt.Fprintf(w, "Upload: %.2f KB/s  Download: %.2f KB/s\n\n", v.Snapshot.CurrentUpload, v.Snapshot.CurrentDownload)

	fmt.Fprintf(w, "[Top %d interfaces]\n", v.TopK)
	ifaces := InterfaceRows(v.Snapshot, v.TopK)
	if len(ifaces) == 0 {
		fmt.Fprintln(w, "No rate samples yet")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "IFACE\tUP(KB/s)\tDOWN(KB/s)\tSENT\tRECV")
		for _, row := range ifaces {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%d\t%d\n", row.Name, row.Upload, row.Download, row.BytesSent, row.BytesRecv)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if v.Traffic == nil {
		_, err := fmt.Fprintln(w, "\n[Packet capture disabled]")
		return err
	}

	filtered := FilterTraffic(v.Traffic, v.Filter)
	if focus := SelectFocusCandidate(filtered); focus != nil {
		fmt.Fprintf(w, "\n[!] Focus: %s (pid %d)\n", focus.Comm, focus.PID)
		fmt.Fprintf(w, "   Reason: %s - %s\n", focus.Diagnosis, FocusSummary(*focus))
	}

	fmt.Fprintf(w, "\n[Top %d processes, window %v]\n", v.TopK, v.Interval)
	talkers := TopTalkers(filtered, v.TopK)
	if len(talkers) == 0 {
		_, err := fmt.Fprintln(w, "No packets attributed in this window")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tCOMM\tTX(KB/s)\tRX(KB/s)\tPACKETS\tDiag")
	for _, row := range talkers {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%d\t%s\n", row.PID, row.Comm, row.TxKBs, row.RxKBs, row.Packets, row.Diagnosis)
	}
	return tw.Flush()
}
