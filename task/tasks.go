package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/icodeforyou/rdn-scraper/config"
	"github.com/icodeforyou/rdn-scraper/ingest"
	"github.com/icodeforyou/rdn-scraper/logging"
	"github.com/robfig/cron/v3"
)

const defaultMaintenanceAt = "30 2 * * *"

type Tasks struct {
	cron            *cron.Cron
	cnfg            *config.AppConfig
	logger          *slog.Logger
	base            context.Context
	wg              sync.WaitGroup
	scraper         Scraper
	ScrapeTask      func()
	MaintenanceTask func()
	PingTask        func() // nil when the pinger is disabled
}

// NewTasks builds the scheduled jobs. ctx is handed to every job and should
// be cancelled on shutdown. prober may be nil.
func NewTasks(ctx context.Context, scraper Scraper, db Store, prober Prober, cnfg *config.AppConfig) *Tasks {
	logger := slog.Default().With("module", "tasks")
	cronLogger := logging.CronLogger(logger.With(slog.String("task", "cron")))

	t := &Tasks{
		cron: cron.New(
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
			cron.WithLogger(cronLogger),
		),
		cnfg:            cnfg,
		logger:          logger,
		base:            ctx,
		scraper:         scraper,
		ScrapeTask:      NewScrapeTask(ctx, logger.With(slog.String("task", "scrape")), scraper),
		MaintenanceTask: NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg),
	}
	if prober != nil && cnfg.Pinger.Enabled {
		t.PingTask = NewPingTask(ctx, logger.With(slog.String("task", "ping")), prober)
	}
	return t
}

// Run schedules the jobs and starts the scheduler. The scrape also runs once
// right away unless disabled.
func (t *Tasks) Run() error {
	if _, err := t.cron.AddFunc(t.cnfg.Scraper.RunAt, t.ScrapeTask); err != nil {
		return fmt.Errorf("scheduling scrape task at %q: %w", t.cnfg.Scraper.RunAt, err)
	}

	maintenanceAt := t.cnfg.Database.MaintenanceAt
	if maintenanceAt == "" {
		maintenanceAt = defaultMaintenanceAt
	}
	if _, err := t.cron.AddFunc(maintenanceAt, t.MaintenanceTask); err != nil {
		return fmt.Errorf("scheduling maintenance task at %q: %w", maintenanceAt, err)
	}

	if t.PingTask != nil {
		spec := fmt.Sprintf("@every %s", t.cnfg.Pinger.Interval)
		if _, err := t.cron.AddFunc(spec, t.PingTask); err != nil {
			return fmt.Errorf("scheduling ping task at %q: %w", spec, err)
		}
	}

	t.cron.Start()

	if t.cnfg.Scraper.GetRunAtStartup() {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.ScrapeTask()
		}()
	}
	return nil
}

// ScrapeNow runs the pipeline outside the schedule and waits for it. Stop
// waits for it as well.
func (t *Tasks) ScrapeNow() (ingest.Summary, error) {
	t.wg.Add(1)
	defer t.wg.Done()
	return t.scraper.Run(t.base)
}

// Stop halts the scheduler. The returned context is done once every running
// job has finished.
func (t *Tasks) Stop() context.Context {
	cronCtx := t.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		t.wg.Wait()
		cancel()
	}()
	return ctx
}

func (t *Tasks) Entries() int {
	return len(t.cron.Entries())
}
