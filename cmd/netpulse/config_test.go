package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, fixedNow)
	require.NoError(t, err)
	require.Equal(t, types.DefaultConfig(), cfg.sampling)
	require.Equal(t, "network_log_20240309_140507.csv", cfg.rateLog)
	require.Equal(t, "net_usage.csv", cfg.eventLog)
	require.Equal(t, ":5000", cfg.listen)
	require.False(t, cfg.capture)
	require.True(t, cfg.hideKernel)
	require.Equal(t, types.DefaultTopK, cfg.topK)
}

func TestParseConfigFlags(t *testing.T) {
	cfg, err := parseConfig([]string{"-interval", "0.5", "-window", "10", "-capture", "-name-filter", " Curl ", "-topk", "0"}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, types.Config{Interval: 0.5, WindowSize: 10}, cfg.sampling)
	require.True(t, cfg.capture)
	require.Equal(t, "curl", cfg.nameFilter)
	require.Equal(t, 1, cfg.topK)
}

func TestParseConfigRejectsInvalidSampling(t *testing.T) {
	_, err := parseConfig([]string{"-interval", "0"}, fixedNow)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = parseConfig([]string{"-window", "0"}, fixedNow)
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestParseConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interval: 2
window_size: 30
rate_log: /tmp/rates.csv
capture: true
listen: ""
log_level: debug
`), 0o644))

	cfg, err := parseConfig([]string{"-config", path, "-window", "5"}, fixedNow)
	require.NoError(t, err)
	require.Equal(t, 2.0, cfg.sampling.Interval)
	require.Equal(t, 5, cfg.sampling.WindowSize, "explicit flags win over the file")
	require.Equal(t, "/tmp/rates.csv", cfg.rateLog)
	require.True(t, cfg.capture)
	require.Empty(t, cfg.listen)
	require.Equal(t, "debug", cfg.logLevel)
}

func TestParseConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: [oops"), 0o644))
	_, err := parseConfig([]string{"-config", path}, fixedNow)
	require.Error(t, err)

	_, err = parseConfig([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, fixedNow)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger("loud", "")
	require.Error(t, err)

	logger, err := newLogger("warn", filepath.Join(t.TempDir(), "netpulse.log"))
	require.NoError(t, err)
	logger.Warn("hello")
	require.NoError(t, logger.Sync())
}
