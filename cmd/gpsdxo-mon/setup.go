package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"gpsdxo-mon/internal/config"
	"gpsdxo-mon/internal/dashboard"
	"gpsdxo-mon/internal/gpsdxo"
	"gpsdxo-mon/internal/metrics"
	"gpsdxo-mon/internal/replay"
	"gpsdxo-mon/internal/series"
	"gpsdxo-mon/internal/telemetry"
	"gpsdxo-mon/internal/web"
)

const headlessLogEvery = 5 * time.Second

// buildConfig loads the optional config file and lays the command line over
// it. Only flags the user actually set override file values.
func buildConfig(opts *options, fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("config load failed: %w", err)
		}
		cfg = loaded
	}

	if opts.device != "" {
		cfg.Device.Path = opts.device
	}
	if fs.Changed("baud") {
		cfg.Device.Baud = opts.baud
	}
	if fs.Changed("web") {
		cfg.Web.Enable = opts.web != ""
		cfg.Web.Listen = opts.web
	}
	if fs.Changed("headless") {
		cfg.UI.Headless = opts.headless
	}
	if fs.Changed("record") {
		cfg.Record.Enable = opts.record != ""
		cfg.Record.Path = opts.record
	}
	if fs.Changed("replay") {
		cfg.Replay.Enable = opts.replay != ""
		cfg.Replay.Path = opts.replay
	}
	if fs.Changed("replay-speed") {
		cfg.Replay.Speed = opts.replaySpeed
	}
	if fs.Changed("replay-loop") {
		cfg.Replay.Loop = opts.replayLoop
	}
	if fs.Changed("log-file") {
		cfg.UI.LogFile = opts.logFile
	}

	if err := config.DefaultAndValidate(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogging routes the standard logger into the in-memory buffer, plus
// stderr in headless mode and the log file when configured. The dashboard
// owns the terminal, so logs never reach stderr while it runs.
func setupLogging(cfg config.Config, logs *web.LogBuffer) (func(), error) {
	writers := []io.Writer{logs}
	if cfg.UI.Headless {
		writers = append(writers, os.Stderr)
	}
	cleanup := func() {}
	if path := strings.TrimSpace(cfg.UI.LogFile); path != "" {
		f, err := tea.LogToFile(path, "")
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		cleanup = func() { _ = f.Close() }
	}
	log.SetPrefix("")
	log.SetOutput(io.MultiWriter(writers...))
	return cleanup, nil
}

func monitor(cfg config.Config) error {
	logs := web.NewLogBuffer(2000)
	closeLogs, err := setupLogging(cfg, logs)
	if err != nil {
		return err
	}
	defer closeLogs()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	queue := telemetry.NewQueue()
	store := series.NewStore(cfg.History.Capacity)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	coll, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("metrics init failed: %w", err)
	}
	if err := metrics.WatchQueue(reg, queue); err != nil {
		return fmt.Errorf("metrics init failed: %w", err)
	}

	svcOpts := []gpsdxo.Option{gpsdxo.WithMetrics(coll)}
	mode := "live"
	if cfg.Replay.Enable {
		records, err := replay.ReadFile(cfg.Replay.Path)
		if err != nil {
			return fmt.Errorf("replay load failed: %w", err)
		}
		src, err := replay.NewSource(records, cfg.Replay.Speed, cfg.Replay.Loop, nil)
		if err != nil {
			return fmt.Errorf("replay init failed: %w", err)
		}
		svcOpts = append(svcOpts, gpsdxo.WithSource(src))
		mode = "replay"
		log.Printf("gpsdxo-mon replay path=%s records=%d speed=%g loop=%t", cfg.Replay.Path, len(records), cfg.Replay.Speed, cfg.Replay.Loop)
	}
	if cfg.Record.Enable {
		rec, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record init failed: %w", err)
		}
		defer func() { _ = rec.Close() }()
		svcOpts = append(svcOpts, gpsdxo.WithRecorder(rec))
		log.Printf("gpsdxo-mon recording path=%s", cfg.Record.Path)
	}

	svc := gpsdxo.New(gpsdxo.Config{
		Device:     cfg.Device.Path,
		Baud:       cfg.Device.Baud,
		ReadBuffer: cfg.Device.ReadBuffer,
	}, queue, svcOpts...)
	log.Printf("gpsdxo-mon %s starting mode=%s", version, mode)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Web.Enable {
		status := web.NewStatus(svc, store)
		status.SetMode(mode)
		handler := web.Handler(status, store, web.Options{Logs: logs, Gatherer: reg, Version: version})
		go func() {
			log.Printf("web listening addr=%s", cfg.Web.Listen)
			if err := web.Serve(ctx, cfg.Web.Listen, handler); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	pump := &dashboard.Pump{Queue: queue, Store: store, Metrics: coll}
	if cfg.UI.Headless {
		err = dashboard.RunHeadless(ctx, pump, cfg.UI.Refresh, headlessLogEvery)
	} else {
		err = dashboard.Run(ctx, pump, dashboard.Options{
			Refresh: cfg.UI.Refresh,
			Window:  cfg.History.Window,
			Status:  func() string { return statusLine(svc.Snapshot()) },
		})
	}
	log.Printf("gpsdxo-mon stopping")
	return err
}

func statusLine(s gpsdxo.Snapshot) string {
	out := fmt.Sprintf("%s %s lines=%d", s.Device, s.State, s.Lines)
	if s.Baud > 0 {
		out = fmt.Sprintf("%s@%d %s lines=%d", s.Device, s.Baud, s.State, s.Lines)
	}
	if s.FramingErrors > 0 {
		out += fmt.Sprintf(" framing_errors=%d", s.FramingErrors)
	}
	return out
}
