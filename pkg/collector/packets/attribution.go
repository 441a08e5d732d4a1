package packets

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shirou/gopsutil/v3/process"
)

// processName allows tests to stub the /proc lookup used when the kernel
// reported an empty comm.
var processName = func(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return p.Name()
}

// attributor resolves the process name recorded for an event. The kernel comm
// wins whenever present; names looked up in /proc are cached and truncated to
// the same width, so collisions between long names remain possible.
type attributor struct {
	cache *lru.Cache[uint32, string]
}

func newAttributor(size int) (*attributor, error) {
	cache, err := lru.New[uint32, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating comm cache: %w", err)
	}
	return &attributor{cache: cache}, nil
}

func (a *attributor) name(pid uint32, comm string) string {
	if comm != "" {
		return comm
	}
	if pid == 0 {
		return "idle"
	}
	if name, ok := a.cache.Get(pid); ok {
		return name
	}
	name, err := processName(int32(pid))
	if err != nil || name == "" {
		name = fmt.Sprintf("pid-%d", pid)
	}
	name = truncateComm(name)
	a.cache.Add(pid, name)
	return name
}
