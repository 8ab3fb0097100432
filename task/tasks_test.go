package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/icodeforyou/rdn-scraper/config"
	"github.com/icodeforyou/rdn-scraper/ingest"
)

type fakeScraper struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (s *fakeScraper) Run(ctx context.Context) (ingest.Summary, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ingest.Summary{State: ingest.StateCancelled}, ctx.Err()
		}
	}
	return ingest.Summary{State: ingest.StateDone, Written: 24}, s.err
}

type fakeStore struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (s *fakeStore) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	if s.fail {
		return errors.New(name + " failed")
	}
	return nil
}

func (s *fakeStore) Backup(context.Context) error            { return s.record("backup") }
func (s *fakeStore) PurgeBackups(context.Context, int) error { return s.record("purge_backups") }
func (s *fakeStore) PurgeLog(context.Context, int) error     { return s.record("purge_log") }
func (s *fakeStore) PurgePoints(context.Context, int) error  { return s.record("purge_points") }
func (s *fakeStore) PurgeRuns(context.Context, int) error    { return s.record("purge_runs") }

type fakeProber struct {
	calls atomic.Int32
}

func (p *fakeProber) Run(context.Context) error {
	p.calls.Add(1)
	return errors.New("unreachable")
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	c, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMaintenanceTaskRunsEverything(t *testing.T) {
	store := &fakeStore{fail: true}
	NewMaintenanceTask(slog.Default(), store, testConfig(t))()

	want := []string{"backup", "purge_backups", "purge_log", "purge_points", "purge_runs"}
	if len(store.calls) != len(want) {
		t.Fatalf("calls expected %v, got %v", want, store.calls)
	}
	for i := range want {
		if store.calls[i] != want[i] {
			t.Errorf("call %d expected %s, got %s", i, want[i], store.calls[i])
		}
	}
}

func TestScrapeTaskToleratesBusyPipeline(t *testing.T) {
	scraper := &fakeScraper{err: ingest.ErrRunInProgress}
	NewScrapeTask(context.Background(), slog.Default(), scraper)()

	if scraper.calls.Load() != 1 {
		t.Errorf("1 run expected, got %d", scraper.calls.Load())
	}
}

func TestPingTaskSwallowsErrors(t *testing.T) {
	prober := &fakeProber{}
	NewPingTask(context.Background(), slog.Default(), prober)()

	if prober.calls.Load() != 1 {
		t.Errorf("1 probe expected, got %d", prober.calls.Load())
	}
}

func TestRunSchedulesJobs(t *testing.T) {
	cnfg := testConfig(t)
	cnfg.Pinger.Enabled = true
	off := false
	cnfg.Scraper.RunAtStartup = &off

	tasks := NewTasks(context.Background(), &fakeScraper{}, &fakeStore{}, &fakeProber{}, cnfg)
	if err := tasks.Run(); err != nil {
		t.Fatalf("Run expected no error, got %v", err)
	}
	defer tasks.Stop()

	if tasks.Entries() != 3 {
		t.Errorf("3 scheduled jobs expected, got %d", tasks.Entries())
	}
}

func TestRunWithoutPinger(t *testing.T) {
	cnfg := testConfig(t)
	off := false
	cnfg.Scraper.RunAtStartup = &off

	tasks := NewTasks(context.Background(), &fakeScraper{}, &fakeStore{}, &fakeProber{}, cnfg)
	if tasks.PingTask != nil {
		t.Error("no ping task expected when the pinger is disabled")
	}
	if err := tasks.Run(); err != nil {
		t.Fatalf("Run expected no error, got %v", err)
	}
	defer tasks.Stop()

	if tasks.Entries() != 2 {
		t.Errorf("2 scheduled jobs expected, got %d", tasks.Entries())
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	cnfg := testConfig(t)
	cnfg.Scraper.RunAt = "at noon"

	tasks := NewTasks(context.Background(), &fakeScraper{}, &fakeStore{}, nil, cnfg)
	if err := tasks.Run(); err == nil {
		t.Error("error expected for an invalid cron expression")
	}
}

func TestStopWaitsForStartupRun(t *testing.T) {
	cnfg := testConfig(t)
	scraper := &fakeScraper{release: make(chan struct{})}

	tasks := NewTasks(context.Background(), scraper, &fakeStore{}, nil, cnfg)
	if err := tasks.Run(); err != nil {
		t.Fatalf("Run expected no error, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for scraper.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if scraper.calls.Load() != 1 {
		t.Fatalf("startup run expected, got %d runs", scraper.calls.Load())
	}

	stopped := tasks.Stop()
	select {
	case <-stopped.Done():
		t.Fatal("Stop expected to wait for the running scrape")
	case <-time.After(50 * time.Millisecond):
	}

	close(scraper.release)
	select {
	case <-stopped.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop expected to finish after the scrape returned")
	}
}

func TestScrapeNowUsesBaseContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &fakeScraper{release: make(chan struct{})}
	tasks := NewTasks(ctx, scraper, &fakeStore{}, nil, testConfig(t))

	cancel()
	sum, err := tasks.ScrapeNow()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("context.Canceled expected, got %v", err)
	}
	if sum.State != ingest.StateCancelled {
		t.Errorf("cancelled state expected, got %s", sum.State)
	}
}
