package ingest

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/icodeforyou/rdn-scraper/tge"
	"github.com/icodeforyou/rdn-scraper/types"
)

const DefaultMeasurement = "scraped_prices"

type RowParser interface {
	ParseString(doc string) (iter.Seq[tge.RawRow], error)
}

type RowNormalizer interface {
	Normalize(row tge.RawRow) (types.PriceRecord, bool)
}

type Options struct {
	Measurement  string
	WriteTimeout time.Duration // Bounds the batch write, which is not cancelled on shutdown
}

// Summary describes one finished run.
type Summary struct {
	RunID         uuid.UUID     `json:"runId"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	State         State         `json:"state"`
	Rows          int           `json:"rows"`
	Written       int           `json:"written"`
	Skipped       int           `json:"skipped"`
	Fallbacks     int           `json:"fallbacks"`
	ErrorCategory string        `json:"errorCategory,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func (s Summary) Message() string {
	switch {
	case s.ErrorCategory != "":
		return fmt.Sprintf("%s error: %s", s.ErrorCategory, s.Error)
	case s.Written == 0:
		return "no valid data"
	default:
		return fmt.Sprintf("%d records written", s.Written)
	}
}

// Pipeline runs fetch, parse, normalize and write as one unit. Only one run
// executes at a time.
type Pipeline struct {
	logger     *slog.Logger
	fetcher    types.Fetcher
	parser     RowParser
	normalizer RowNormalizer
	sink       types.Sink
	opts       Options

	running sync.Mutex
	state   atomic.Int32

	mu        sync.RWMutex
	last      *Summary
	onSummary []func(Summary)
}

func New(logger *slog.Logger, fetcher types.Fetcher, parser RowParser, normalizer RowNormalizer, sink types.Sink, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Measurement == "" {
		opts.Measurement = DefaultMeasurement
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	return &Pipeline{
		logger:     logger,
		fetcher:    fetcher,
		parser:     parser,
		normalizer: normalizer,
		sink:       sink,
		opts:       opts,
	}
}

// OnSummary registers fn to be called with the summary of every finished run.
func (p *Pipeline) OnSummary(fn func(Summary)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSummary = append(p.onSummary, fn)
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) LastSummary() (Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Summary{}, false
	}
	return *p.last, true
}

// Run executes one scrape. It returns ErrRunInProgress without side effects
// when another run has not finished yet.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if !p.running.TryLock() {
		p.logger.Warn("skipping scrape, previous run still in progress", slog.String("state", p.State().String()))
		return Summary{State: p.State()}, ErrRunInProgress
	}
	defer p.running.Unlock()

	sum := Summary{RunID: uuid.New(), StartedAt: time.Now().UTC()}
	logger := p.logger.With(slog.String("run", sum.RunID.String()))

	err := p.run(ctx, logger, &sum)
	sum.Duration = time.Since(sum.StartedAt)
	sum.State = p.State()
	if err != nil {
		sum.ErrorCategory = Category(err)
		sum.Error = err.Error()
	}

	p.report(logger, sum)
	return sum, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, sum *Summary) error {
	p.setState(logger, StateFetching)
	doc, err := p.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			p.setState(logger, StateCancelled)
		} else {
			p.setState(logger, StateFailed)
		}
		return &FetchError{Err: err}
	}

	p.setState(logger, StateParsing)
	rows, err := p.parser.ParseString(doc)
	if err != nil {
		p.setState(logger, StateFailed)
		return &ParseError{Err: err}
	}

	p.setState(logger, StateNormalizing)
	batch := types.Batch{Name: "scrape " + sum.RunID.String()}
	for row := range rows {
		sum.Rows++
		rec, ok := p.normalizer.Normalize(row)
		if !ok {
			sum.Skipped++
			continue
		}
		if rec.DateFallback {
			sum.Fallbacks++
		}
		logger.Debug("price record",
			slog.String("hour", rec.HourLabel),
			slog.Float64("price", rec.Price),
			slog.Time("timestamp", rec.Timestamp))
		batch.Points = append(batch.Points, rec.Point(p.opts.Measurement))
	}

	if sum.Fallbacks > 0 {
		logger.Warn("records without calendar date were stamped with the current time",
			slog.Int("count", sum.Fallbacks))
	}

	if batch.Len() == 0 {
		p.setState(logger, StateDone)
		return nil
	}

	if err := ctx.Err(); err != nil {
		p.setState(logger, StateCancelled)
		return fmt.Errorf("run cancelled before write: %w", err)
	}

	p.setState(logger, StateWriting)
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.WriteTimeout)
	defer cancel()
	if err := p.sink.Write(wctx, batch); err != nil {
		p.setState(logger, StateFailed)
		return &WriteError{Points: batch.Len(), Err: err}
	}

	sum.Written = batch.Len()
	p.setState(logger, StateDone)
	return nil
}

func (p *Pipeline) setState(logger *slog.Logger, s State) {
	prev := State(p.state.Swap(int32(s)))
	logger.Debug("run state", slog.String("from", prev.String()), slog.String("to", s.String()))
}

func (p *Pipeline) report(logger *slog.Logger, sum Summary) {
	attrs := []any{
		slog.Int("rows", sum.Rows),
		slog.Int("skipped", sum.Skipped),
		slog.Duration("duration", sum.Duration),
	}
	switch {
	case sum.ErrorCategory != "":
		logger.Error("scrape task failed", append(attrs,
			slog.String("category", sum.ErrorCategory),
			slog.String("error", sum.Error))...)
	case sum.Written == 0:
		logger.Info("no valid data found to store", attrs...)
	default:
		logger.Info("scrape task done", append(attrs, slog.Int("written", sum.Written))...)
	}

	p.mu.Lock()
	p.last = &sum
	hooks := append([]func(Summary){}, p.onSummary...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(sum)
	}
}
