// Package persist implements the append-only CSV sinks for rate samples and
// packet events. Files grow without bound; rotation is left to the operator.
package persist

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
)

// Log is an append-only CSV file. The header is written exactly once, when
// the target is empty at open time. Each row is encoded on its own, so a
// failed write only loses that row.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    io.Writer
	buf  bytes.Buffer
}

// Open opens or creates path for appending and writes header if the file is empty.
func Open(path string, header []string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	l := &Log{path: path, f: f, w: f}
	if info.Size() == 0 && len(header) > 0 {
		if err := l.WriteRow(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	return l, nil
}

// Path returns the file backing the log.
func (l *Log) Path() string { return l.path }

// WriteRow appends and flushes a single row.
func (l *Log) WriteRow(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return os.ErrClosed
	}
	l.buf.Reset()
	cw := csv.NewWriter(&l.buf)
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := l.w.Write(l.buf.Bytes())
	return err
}

// Close closes the file. Rows are never buffered across calls.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
