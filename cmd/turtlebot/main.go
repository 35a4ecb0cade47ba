package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/turtlebot/config"
	"github.com/alejandrodnm/turtlebot/internal/adapters/bithumb"
	"github.com/alejandrodnm/turtlebot/internal/adapters/notify"
	"github.com/alejandrodnm/turtlebot/internal/adapters/paper"
	"github.com/alejandrodnm/turtlebot/internal/adapters/storage"
	"github.com/alejandrodnm/turtlebot/internal/application/trader"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one trading cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full table per cycle (default: compact 1-line)")
	reset := flag.String("reset", "", "clear the stored campaign of one market and exit")
	history := flag.Int("history", 0, "print executed signals of the last N days and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("turtlebot starting",
		"config", *configPath,
		"markets", cfg.Trader.Markets,
		"interval", cfg.CycleInterval(),
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	journal, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer journal.Close()

	notifier := notify.NewConsole(*table)

	if *history > 0 {
		to := time.Now()
		records, err := journal.GetSignals(ctx, "", to.AddDate(0, 0, -*history), to)
		if err != nil {
			slog.Error("failed to read journal", "err", err)
			os.Exit(1)
		}
		notifier.PrintHistory(records)
		return
	}

	broker, err := paper.NewBroker(cfg.Trader.Quote, cfg.Trader.InitialCapital, cfg.Trader.FeeRate)
	if err != nil {
		slog.Error("failed to create paper broker", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := trader.NewMetrics(reg)

	client := bithumb.NewClient(cfg.Exchange.BaseURL)

	tr, err := trader.New(ctx, trader.Config{
		Markets:  cfg.Trader.Markets,
		Quote:    cfg.Trader.Quote,
		Interval: cfg.CycleInterval(),
		Workers:  cfg.Trader.Workers,
		Params:   cfg.StrategyParams(),
	}, client, broker, broker, journal, notifier, metrics)
	if err != nil {
		slog.Error("failed to create trader", "err", err)
		os.Exit(1)
	}

	if *reset != "" {
		if err := tr.Reset(ctx, *reset); err != nil {
			slog.Error("reset failed", "err", err, "market", *reset)
			os.Exit(1)
		}
		return
	}

	// El broker de papel arranca con el capital inicial: las unidades abiertas
	// que se restauraron del journal se compran de nuevo al precio de entrada.
	for _, market := range cfg.Trader.Markets {
		snap, _ := tr.Snapshot(market)
		if err := broker.Seed(market, snap.Units); err != nil {
			slog.Error("failed to seed paper broker", "err", err, "market", market)
			os.Exit(1)
		}
	}

	if cfg.Metrics.Addr != "" {
		srv := startMetrics(cfg.Metrics.Addr, reg)
		defer srv.Shutdown(context.Background())
	}

	if *once {
		reports, err := tr.RunOnce(ctx)
		if err != nil {
			slog.Error("trade cycle failed", "err", err)
			os.Exit(1)
		}
		if err := notifier.Notify(ctx, reports); err != nil {
			slog.Warn("notifier error", "err", err)
		}
		return
	}

	if err := tr.Run(ctx); err != nil {
		slog.Error("trader exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("turtlebot stopped cleanly")
}

func startMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()
	return srv
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
