package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icodeforyou/rdn-scraper/config"
	"github.com/icodeforyou/rdn-scraper/database"
	"github.com/icodeforyou/rdn-scraper/influx"
	"github.com/icodeforyou/rdn-scraper/ingest"
	"github.com/icodeforyou/rdn-scraper/logging"
	"github.com/icodeforyou/rdn-scraper/mqttpub"
	"github.com/icodeforyou/rdn-scraper/ping"
	"github.com/icodeforyou/rdn-scraper/task"
	"github.com/icodeforyou/rdn-scraper/tge"
	"github.com/icodeforyou/rdn-scraper/timescale"
	"github.com/icodeforyou/rdn-scraper/types"
	"github.com/icodeforyou/rdn-scraper/www"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	startedAt := time.Now()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if err := cnfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(cnfg.Logging.GetConsoleLevel())
	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("rdn scraper is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	cnfg.Watch(logger.With("module", "config"), func(next *config.AppConfig) {
		consoleLevel.Set(next.Logging.GetConsoleLevel())
		logger.Info("config reloaded, console level applied, restart for other changes",
			slog.String("consoleLevel", consoleLevel.Level().String()))
	})

	sink, err := openSinks(ctx, cnfg, db)
	if err != nil {
		panic(fmt.Sprintf("failed to open sinks: %v", err))
	}

	parser, err := tge.NewTableParser(cnfg.Scraper.RowSelector, cnfg.Scraper.CellSelector)
	if err != nil {
		panic(fmt.Sprintf("invalid selectors: %v", err))
	}

	fetcher := tge.NewClient(cnfg.Scraper.URL, tge.ClientOptions{
		UserAgent: cnfg.Scraper.UserAgent,
		Timeout:   cnfg.Scraper.Timeout,
	})

	normalizer := tge.NewNormalizer(logger.With("module", "tge"), tge.NormalizerOptions{
		LabelColumn:    cnfg.Scraper.LabelColumn,
		PriceColumn:    cnfg.Scraper.PriceColumn,
		Fallback:       cnfg.Scraper.GetDateFallback(),
		DateOffsetDays: cnfg.Scraper.DateOffsetDays,
		Now:            time.Now,
	})

	pipeline := ingest.New(logger.With("module", "ingest"), fetcher, parser, normalizer, sink, ingest.Options{
		Measurement:  cnfg.Scraper.Measurement,
		WriteTimeout: cnfg.Scraper.WriteTimeout,
	})

	var prober task.Prober
	if cnfg.Pinger.Enabled {
		prober = ping.New(ping.Options{
			Target:     cnfg.Pinger.Target,
			Count:      cnfg.Pinger.Count,
			Size:       cnfg.Pinger.Size,
			Timeout:    cnfg.Pinger.Timeout,
			Privileged: cnfg.Pinger.Privileged,
		}, sink)
	}

	tasks := task.NewTasks(ctx, pipeline, db, prober, cnfg)

	server := www.NewServer(db, pipeline, tasks.ScrapeNow, www.SysInfo{
		Version:    Version,
		StartedAt:  startedAt,
		ConfigFile: cnfg.File(),
		SinkType:   string(cnfg.Sink.GetType()),
		Url:        fetcher.URL(),
		RunAt:      cnfg.Scraper.RunAt,
	}, cnfg.Scraper.Measurement, cnfg.Api)

	pipeline.OnSummary(func(sum ingest.Summary) {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.SaveRun(saveCtx, runRow(sum)); err != nil {
			logger.Error("failed to save run history", slog.Any("error", err))
		}
		server.Publish(sum)
	})

	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else if err := tasks.Run(); err != nil {
		panic(fmt.Sprintf("failed to schedule tasks: %v", err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)

	select {
	case <-tasks.Stop().Done():
	case <-time.After(cnfg.Scraper.WriteTimeout + 5*time.Second):
		logger.Warn("tasks did not stop in time")
	}

	if err := sink.Close(); err != nil {
		logger.Error("failed to close sinks", slog.Any("error", err))
	}
}

// openSinks returns the configured primary sink, plus the MQTT publisher
// when enabled. The SQLite database is closed by main, not by the sink.
func openSinks(ctx context.Context, cnfg *config.AppConfig, db *database.Database) (*types.MultiSink, error) {
	sinks := types.NewMultiSink()

	switch cnfg.Sink.GetType() {
	case config.SinkInfluxDB:
		s := influx.New(influx.Options{
			URL:     cnfg.Influx.URL,
			Token:   cnfg.Influx.Token,
			Org:     cnfg.Influx.Org,
			Bucket:  cnfg.Influx.Bucket,
			Timeout: cnfg.Scraper.WriteTimeout,
		})
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.Ping(checkCtx); err != nil {
			slog.Warn("influxdb is not reachable yet", slog.Any("error", err))
		} else if err := s.EnsureBucket(checkCtx); err != nil {
			slog.Warn("could not ensure influxdb bucket", slog.Any("error", err))
		}
		sinks.Add("influxdb", s)

	case config.SinkTimescale:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := timescale.Connect(connectCtx, timescale.Options{
			Host:     cnfg.Timescale.Host,
			Port:     cnfg.Timescale.Port,
			User:     cnfg.Timescale.User,
			Password: cnfg.Timescale.Password,
			Name:     cnfg.Timescale.Name,
			SSLMode:  cnfg.Timescale.SSLMode,
			MaxConns: cnfg.Timescale.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect timescale: %w", err)
		}
		sinks.Add("timescale", s)

	default:
		sinks.Add("sqlite", types.NoClose(db))
	}

	if cnfg.Mqtt.Enabled {
		s := mqttpub.New(mqttpub.Options{
			Host:     cnfg.Mqtt.Host,
			Port:     cnfg.Mqtt.Port,
			Username: cnfg.Mqtt.Username,
			Password: cnfg.Mqtt.Password,
			ClientID: cnfg.Mqtt.ClientID,
			Topic:    cnfg.Mqtt.Topic,
			Qos:      cnfg.Mqtt.Qos,
		})
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.Connect(connectCtx); err != nil {
			sinks.Close()
			return nil, err
		}
		sinks.Add("mqtt", s)
	}

	return sinks, nil
}

func runRow(sum ingest.Summary) database.RunRow {
	return database.RunRow{
		ID:            sum.RunID.String(),
		StartedAt:     sum.StartedAt,
		Duration:      sum.Duration,
		State:         sum.State.String(),
		Rows:          sum.Rows,
		Written:       sum.Written,
		Skipped:       sum.Skipped,
		Fallbacks:     sum.Fallbacks,
		ErrorCategory: sum.ErrorCategory,
		Error:         sum.Error,
	}
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
