package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtwatch/internal/monitor"
	"courtwatch/internal/monitor/fetch"
	"courtwatch/internal/monitor/reconcile"
	"courtwatch/internal/monitor/sources"
	"courtwatch/internal/notify"
	pkgconfig "courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/health"
	"courtwatch/internal/pkg/logging"
	"courtwatch/internal/pkg/storage"
	"courtwatch/internal/web"

	// Register all supported source adapters via init().
	_ "courtwatch/internal/monitor/sources/all"
)

const defaultConfigPath = "configs/production.yaml"

type cliConfig struct {
	configPath string
	runFor     time.Duration
	once       bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("Monitor failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	slog.Info("Starting monitor...")

	cli := parseFlags()
	slog.Info("Loading config", "path", cli.configPath)

	cfg, err := pkgconfig.Load(cli.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.SetupLogger(&cfg.Logging, "monitor"); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}

	srcs, err := sources.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}
	if len(srcs) == 0 {
		return fmt.Errorf("no sources enabled (available: %v)", sources.AvailableNames())
	}

	healthStore := health.NewStore()
	executor := fetch.NewExecutor(&cfg.Fetch, healthStore)
	engine := reconcile.NewEngine(
		sources.Priorities(cfg),
		cfg.Monitor.MissThreshold,
		cfg.Monitor.RecencyTiebreakEnabled(),
	)
	mon := monitor.New(cfg, srcs, executor, engine, healthStore)

	ctx, cancel := createContext(cli.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	eventStore, err := setupSubscribers(ctx, cfg, mon)
	if err != nil {
		return err
	}

	if cli.once {
		matches, events, err := mon.RunOnce(ctx)
		if err != nil {
			return err
		}
		slog.Info("Single cycle complete", "matches", len(matches), "events", len(events))
		return nil
	}

	if cfg.Web.Port > 0 {
		hub := web.NewHub()
		mon.Subscribe(hub)
		srv := web.New(cfg.Web, mon, healthStore, eventStore, hub)
		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("Web server failed", "error", err)
			}
		}()
	}

	return mon.Run(ctx)
}

// setupSubscribers registers the configured sinks. Every sink is optional;
// the log sink is always on.
func setupSubscribers(ctx context.Context, cfg *pkgconfig.Config, mon *monitor.Monitor) (*storage.PostgresEventStore, error) {
	mon.Subscribe(notify.LogSink{})

	var eventStore *storage.PostgresEventStore
	if cfg.Postgres.DSN != "" {
		store, err := storage.NewPostgresEventStore(&cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres event store: %w", err)
		}
		mon.Subscribe(store)
		eventStore = store
		go func() {
			<-ctx.Done()
			store.Close()
		}()
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		alerter, err := notify.NewTelegramAlerter(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.AlertCooldown)
		if err != nil {
			return nil, fmt.Errorf("failed to init telegram alerter: %w", err)
		}
		mon.Subscribe(alerter)
		go func() {
			<-ctx.Done()
			alerter.Stop()
		}()
	}

	if cfg.AMQP.URL != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to init amqp publisher: %w", err)
		}
		mon.Subscribe(publisher)
		go func() {
			<-ctx.Done()
			publisher.Close()
		}()
	}

	return eventStore, nil
}

func parseFlags() cliConfig {
	var cli cliConfig

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&cli.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.DurationVar(&cli.runFor, "run-for", 0, "Auto-stop after duration (e.g. 10m, 2h). 0 = run until SIGINT/SIGTERM")
	flag.BoolVar(&cli.once, "once", false, "Run a single polling cycle and exit")
	flag.Parse()
	return cli
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, stopping monitor...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
		}
	}()
}
