package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/srodi/netpulse-bpf/pkg/collector/counters"
	"github.com/srodi/netpulse-bpf/pkg/collector/packets"
	"github.com/srodi/netpulse-bpf/pkg/metrics"
	"github.com/srodi/netpulse-bpf/pkg/monitor"
	"github.com/srodi/netpulse-bpf/pkg/persist"
	"github.com/srodi/netpulse-bpf/pkg/recorder"
	"github.com/srodi/netpulse-bpf/pkg/report"
	"github.com/srodi/netpulse-bpf/pkg/types"
)

const viewLogFile = "netpulse.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "netpulse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := parseConfig(os.Args[1:], time.Now())
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	showView := cfg.view && stdoutIsTerminal()
	logPath := ""
	if showView {
		logPath = viewLogFile
	}
	logger, err := newLogger(cfg.logLevel, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rates, err := persist.OpenRateLog(cfg.rateLog)
	if err != nil {
		return err
	}
	defer rates.Close()

	mon, err := monitor.New(monitor.Options{
		Config:  cfg.sampling,
		Sampler: counters.NewSampler(),
		Rates:   rates,
		Logger:  logger.Named("monitor"),
		Metrics: m,
	})
	if err != nil {
		return err
	}
	defer mon.Close()

	g, gctx := errgroup.WithContext(ctx)

	var tally *report.Tally
	if cfg.capture {
		events, err := persist.OpenEventLog(cfg.eventLog)
		if err != nil {
			return err
		}
		defer events.Close()

		capture, err := packets.NewCollector(packets.Options{Logger: logger.Named("capture"), Metrics: m})
		if err != nil {
			return fmt.Errorf("initializing packet capture: %w", err)
		}
		defer capture.Close()

		if showView {
			tally = report.NewTally()
		}
		rec := recorder.New(events, recorder.Options{
			ToWall:  packets.WallClock(),
			Logger:  logger.Named("recorder"),
			Metrics: m,
		})
		recorded := make(chan types.PacketEvent, packets.DefaultQueueSize)

		g.Go(func() error { return capture.Run(gctx) })
		g.Go(func() error {
			fanOut(gctx, capture.Events(), tally, recorded)
			return nil
		})
		g.Go(func() error { return rec.Run(gctx, recorded) })
		defer func() {
			logger.Info("packet capture finished", zap.Uint64("dropped", capture.Dropped()))
		}()
	}

	mon.Start()
	logger.Info("netpulse started",
		zap.Float64("interval", cfg.sampling.Interval),
		zap.Int("window_size", cfg.sampling.WindowSize),
		zap.String("rate_log", rates.Path()),
		zap.Bool("capture", cfg.capture))

	if cfg.listen != "" {
		gin.SetMode(gin.ReleaseMode)
		router := newRouter(mon, reg, rates.Path(), logger.Named("http"))
		g.Go(func() error { return serve(gctx, cfg.listen, router, logger.Named("http")) })
	}
	if showView {
		g.Go(func() error { return runView(gctx, mon, tally, cfg, logger.Named("view")) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	logger.Info("shutting down", zap.Error(err))
	return err
}
