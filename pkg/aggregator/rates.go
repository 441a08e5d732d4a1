package aggregator

import (
	"time"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

const bytesPerKB = 1024

// ComputeRates derives KB/s for every interface present in both prev and
// curr. Interfaces seen only once contribute nothing. A counter that went
// backwards (interface reset) yields zero rather than a negative rate.
func ComputeRates(prev, curr map[string]types.InterfaceCounters, interval float64, at time.Time) types.RateSample {
	sample := types.RateSample{
		Timestamp:    at,
		PerInterface: make(map[string]types.InterfaceRate, len(curr)),
	}
	if !(interval > 0) {
		return sample
	}

	for name, c := range curr {
		p, ok := prev[name]
		if !ok {
			continue
		}
		up := rate(p.BytesSent, c.BytesSent, interval)
		down := rate(p.BytesRecv, c.BytesRecv, interval)
		sample.UploadKBs += up
		sample.DownloadKBs += down
		sample.PerInterface[name] = types.InterfaceRate{
			Upload:    up,
			Download:  down,
			BytesSent: c.BytesSent,
			BytesRecv: c.BytesRecv,
		}
	}
	return sample
}

func rate(prev, curr uint64, interval float64) float64 {
	if curr <= prev {
		return 0
	}
	return float64(curr-prev) / interval / bytesPerKB
}
