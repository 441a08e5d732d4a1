package packets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

// Kernel record layout shared by the BPF program and the decoder:
//
//	ts_ns u64 | bytes u64 | pid u32 | direction u8 | pad[3] | comm[16]
const (
	offTimestamp = 0
	offBytes     = 8
	offPID       = 16
	offDirection = 20
	offComm      = 24
	recordSize   = offComm + types.CommLen
)

func cStr(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n == -1 {
		return string(b)
	}
	return string(b[:n])
}

// decodeComm keeps the kernel's truncated name and replaces undecodable bytes.
func decodeComm(b []byte) string {
	return strings.ToValidUTF8(cStr(b), "\uFFFD")
}

// truncateComm cuts name to fit the kernel comm width without splitting a rune.
func truncateComm(name string) string {
	name = strings.ToValidUTF8(name, "\uFFFD")
	if len(name) < types.CommLen {
		return name
	}
	n := types.CommLen - 1
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

func decodeRecord(raw []byte) (types.PacketEvent, error) {
	if len(raw) < recordSize {
		return types.PacketEvent{}, fmt.Errorf("short record: %d bytes", len(raw))
	}
	dir := types.Direction(raw[offDirection])
	if dir != types.DirectionRX && dir != types.DirectionTX {
		return types.PacketEvent{}, fmt.Errorf("unknown direction %d", raw[offDirection])
	}
	return types.PacketEvent{
		TimestampNs: binary.NativeEndian.Uint64(raw[offTimestamp:]),
		Bytes:       binary.NativeEndian.Uint64(raw[offBytes:]),
		PID:         binary.NativeEndian.Uint32(raw[offPID:]),
		Direction:   dir,
		Comm:        decodeComm(raw[offComm : offComm+types.CommLen]),
	}, nil
}
