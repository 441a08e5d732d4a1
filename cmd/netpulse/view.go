package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/srodi/netpulse-bpf/pkg/monitor"
	"github.com/srodi/netpulse-bpf/pkg/report"
	"github.com/srodi/netpulse-bpf/pkg/ui"
)

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// runView redraws the terminal every sampling interval until ctx ends.
// tally is nil when packet capture is disabled.
func runView(ctx context.Context, mon *monitor.Monitor, tally *report.Tally, cfg runConfig, logger *zap.Logger) error {
	cleanupTerminal := enableSingleView(logger)
	defer cleanupTerminal()

	filter := report.FilterConfig{HideKernel: &cfg.hideKernel, NameFilter: cfg.nameFilter}
	for {
		interval := mon.Interval()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}

		view := report.View{
			Snapshot: mon.Snapshot(),
			Running:  mon.Running(),
			TopK:     cfg.topK,
			Filter:   filter,
			Interval: interval,
			Updated:  time.Now(),
		}
		if tally != nil {
			view.Traffic = tally.Drain(interval)
		}

		var buf bytes.Buffer
		buf.WriteString(ui.Banner())
		fmt.Fprintf(&buf, "netpulse-bpf (press Ctrl+C to exit)\n")
		if err := report.Render(&buf, view); err != nil {
			logger.Warn("rendering view", zap.Error(err))
			continue
		}
		clearScreen()
		fmt.Print(buf.String())
	}
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

func enableSingleView(logger *zap.Logger) func() {
	stdinFD := int(os.Stdin.Fd())
	if !stdoutIsTerminal() {
		return func() {}
	}

	fmt.Print("\033[?1049h") // switch to alternate buffer
	fmt.Print("\033[?25l")   // hide cursor

	var restore []func()
	if term.IsTerminal(stdinFD) {
		if undoEcho, err := disableInputEcho(stdinFD); err != nil {
			logger.Warn("unable to suppress stdin echo", zap.Error(err))
		} else if undoEcho != nil {
			restore = append(restore, undoEcho)
		}
	}

	return func() {
		for i := len(restore) - 1; i >= 0; i-- {
			restore[i]()
		}
		fmt.Print("\033[?25h")   // show cursor
		fmt.Print("\033[?1049l") // restore main buffer
	}
}
