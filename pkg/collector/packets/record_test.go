package packets

import (
	"encoding/binary"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

func encodeRecord(ts, size uint64, pid uint32, dir uint8, comm []byte) []byte {
	raw := make([]byte, recordSize)
	binary.NativeEndian.PutUint64(raw[offTimestamp:], ts)
	binary.NativeEndian.PutUint64(raw[offBytes:], size)
	binary.NativeEndian.PutUint32(raw[offPID:], pid)
	raw[offDirection] = dir
	copy(raw[offComm:offComm+types.CommLen], comm)
	return raw
}

func TestCStr(t *testing.T) {
	cases := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"noNull", []byte{'a', 'b'}, "ab"},
		{"withNull", []byte{'a', 'b', 0, 'c'}, "ab"},
	}
	for _, tc := range cases {
		if got := cStr(tc.input); got != tc.expected {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.expected, got)
		}
	}
}

func TestDecodeRecord(t *testing.T) {
	raw := encodeRecord(123456789, 1500, 4242, uint8(types.DirectionTX), []byte("curl\x00garbage"))
	ev, err := decodeRecord(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := types.PacketEvent{TimestampNs: 123456789, Bytes: 1500, PID: 4242, Direction: types.DirectionTX, Comm: "curl"}
	if ev != want {
		t.Fatalf("expected %+v, got %+v", want, ev)
	}
}

func TestDecodeRecordReplacesInvalidBytes(t *testing.T) {
	raw := encodeRecord(1, 1, 1, uint8(types.DirectionRX), []byte{'w', 0xff, 'k'})
	ev, err := decodeRecord(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Comm != "w\uFFFDk" {
		t.Fatalf("expected replacement character, got %q", ev.Comm)
	}
}

func TestDecodeRecordFullWidthComm(t *testing.T) {
	raw := encodeRecord(1, 1, 1, uint8(types.DirectionRX), []byte("0123456789abcdef"))
	ev, err := decodeRecord(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ev.Comm) > types.CommLen {
		t.Fatalf("comm exceeds %d bytes: %q", types.CommLen, ev.Comm)
	}
}

func TestDecodeRecordRejectsMalformed(t *testing.T) {
	if _, err := decodeRecord(make([]byte, recordSize-1)); err == nil {
		t.Fatalf("expected short record error")
	}
	if _, err := decodeRecord(encodeRecord(1, 1, 1, 9, nil)); err == nil {
		t.Fatalf("expected direction error")
	}
}

func TestTruncateComm(t *testing.T) {
	if got := truncateComm("a-very-long-process-name"); got != "a-very-long-pro" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateComm("short"); got != "short" {
		t.Fatalf("short names should be kept, got %q", got)
	}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"splitEuro", strings.Repeat("a", 14) + "€-worker", strings.Repeat("a", 14)},
		{"euroFits", strings.Repeat("a", 12) + "€-worker", strings.Repeat("a", 12) + "€"},
		{"invalidBytes", "bad\xffname-that-is-long", "bad\uFFFDname-that"},
		{"allMultibyte", strings.Repeat("日", 10), strings.Repeat("日", 5)},
	}
	for _, tc := range cases {
		got := truncateComm(tc.in)
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
		if len(got) >= types.CommLen || !utf8.ValidString(got) {
			t.Fatalf("%s: %q is %d bytes or not valid UTF-8", tc.name, got, len(got))
		}
	}
}
