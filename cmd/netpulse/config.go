package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

const (
	defaultListen   = ":5000"
	defaultEventLog = "net_usage.csv"
)

// fileConfig mirrors the optional YAML file. Pointer fields distinguish
// "absent" from zero values.
type fileConfig struct {
	Interval   *float64 `yaml:"interval"`
	WindowSize *int     `yaml:"window_size"`
	RateLog    *string  `yaml:"rate_log"`
	EventLog   *string  `yaml:"event_log"`
	Capture    *bool    `yaml:"capture"`
	Listen     *string  `yaml:"listen"`
	LogLevel   *string  `yaml:"log_level"`
	TopK       *int     `yaml:"topk"`
	HideKernel *bool    `yaml:"hide_kernel"`
	NameFilter *string  `yaml:"name_filter"`
	View       *bool    `yaml:"view"`
}

type runConfig struct {
	sampling   types.Config
	rateLog    string
	eventLog   string
	capture    bool
	listen     string
	logLevel   string
	topK       int
	hideKernel bool
	nameFilter string
	view       bool
}

func defaultRateLog(now time.Time) string {
	return "network_log_" + now.Format("20060102_150405") + ".csv"
}

// parseConfig resolves defaults, then the YAML file named by -config, then
// flags set explicitly on the command line.
func parseConfig(args []string, now time.Time) (runConfig, error) {
	fs := flag.NewFlagSet("netpulse", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML configuration file")
	interval := fs.Float64("interval", types.DefaultInterval, "sampling interval in seconds (e.g. 0.5, 2)")
	window := fs.Int("window", types.DefaultWindowSize, "number of rate samples kept in memory")
	rateLog := fs.String("rate-log", defaultRateLog(now), "CSV file receiving one row per rate sample")
	eventLog := fs.String("event-log", defaultEventLog, "CSV file receiving one row per captured packet")
	capture := fs.Bool("capture", false, "attach eBPF tracepoints and record per-process packets")
	listen := fs.String("listen", defaultListen, "HTTP listen address, empty disables the API")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	topK := fs.Int("topk", types.DefaultTopK, "number of rows to display per section")
	hideKernel := fs.Bool("hide-kernel", true, "hide kernel threads and idle traffic in the process table")
	nameFilter := fs.String("name-filter", "", "only show processes whose name contains this substring (case-insensitive)")
	view := fs.Bool("view", true, "render the live terminal view when stdout is a terminal")
	if err := fs.Parse(args); err != nil {
		return runConfig{}, err
	}

	cfg := runConfig{
		sampling:   types.Config{Interval: *interval, WindowSize: *window},
		rateLog:    *rateLog,
		eventLog:   *eventLog,
		capture:    *capture,
		listen:     *listen,
		logLevel:   *logLevel,
		topK:       *topK,
		hideKernel: *hideKernel,
		nameFilter: *nameFilter,
		view:       *view,
	}

	if *configPath != "" {
		fc, err := readFileConfig(*configPath)
		if err != nil {
			return runConfig{}, err
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fc.apply(&cfg, set)
	}

	cfg.nameFilter = strings.ToLower(strings.TrimSpace(cfg.nameFilter))
	if cfg.topK <= 0 {
		cfg.topK = 1
	}
	if err := cfg.sampling.Validate(); err != nil {
		return runConfig{}, err
	}
	if cfg.rateLog == "" {
		return runConfig{}, errors.New("rate log path must not be empty")
	}
	if cfg.capture && cfg.eventLog == "" {
		return runConfig{}, errors.New("event log path must not be empty when capture is enabled")
	}
	return cfg, nil
}

func readFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return fc, nil
}

// apply overlays file values onto cfg, skipping anything given as a flag.
func (fc fileConfig) apply(cfg *runConfig, flagSet map[string]bool) {
	if fc.Interval != nil && !flagSet["interval"] {
		cfg.sampling.Interval = *fc.Interval
	}
	if fc.WindowSize != nil && !flagSet["window"] {
		cfg.sampling.WindowSize = *fc.WindowSize
	}
	if fc.RateLog != nil && !flagSet["rate-log"] {
		cfg.rateLog = *fc.RateLog
	}
	if fc.EventLog != nil && !flagSet["event-log"] {
		cfg.eventLog = *fc.EventLog
	}
	if fc.Capture != nil && !flagSet["capture"] {
		cfg.capture = *fc.Capture
	}
	if fc.Listen != nil && !flagSet["listen"] {
		cfg.listen = *fc.Listen
	}
	if fc.LogLevel != nil && !flagSet["log-level"] {
		cfg.logLevel = *fc.LogLevel
	}
	if fc.TopK != nil && !flagSet["topk"] {
		cfg.topK = *fc.TopK
	}
	if fc.HideKernel != nil && !flagSet["hide-kernel"] {
		cfg.hideKernel = *fc.HideKernel
	}
	if fc.NameFilter != nil && !flagSet["name-filter"] {
		cfg.nameFilter = *fc.NameFilter
	}
	if fc.View != nil && !flagSet["view"] {
		cfg.view = *fc.View
	}
}
