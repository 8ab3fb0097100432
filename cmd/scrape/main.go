package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/icodeforyou/rdn-scraper/config"
	"github.com/icodeforyou/rdn-scraper/database"
	"github.com/icodeforyou/rdn-scraper/ingest"
	"github.com/icodeforyou/rdn-scraper/tge"
	"github.com/icodeforyou/rdn-scraper/types"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

type flags struct {
	configPath   string
	url          string
	file         string
	rowSelector  string
	cellSelector string
	fallback     string
	write        bool
	verbose      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetches the day-ahead price table once and prints the normalized records.",
		Long: "Fetches the day-ahead price table once and prints the normalized records.\n" +
			"Nothing is stored unless --write is given, which saves the records to the SQLite database.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&f.url, "url", "", "page url, overrides scraper.url")
	cmd.Flags().StringVar(&f.file, "file", "", "parse a saved html file instead of fetching")
	cmd.Flags().StringVar(&f.rowSelector, "rows", "", "row selector, overrides scraper.row_selector")
	cmd.Flags().StringVar(&f.cellSelector, "cells", "", "cell selector, overrides scraper.cell_selector")
	cmd.Flags().StringVar(&f.fallback, "fallback", "", "undefined date policy: now, reject or today")
	cmd.Flags().BoolVarP(&f.write, "write", "w", false, "store the records in the SQLite database")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log skipped rows")
	return cmd
}

func run(ctx context.Context, out io.Writer, f *flags) error {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
	slog.SetDefault(logger)

	cnfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(cnfg, f)
	if err := cnfg.Validate(); err != nil {
		return err
	}

	parser, err := tge.NewTableParser(cnfg.Scraper.RowSelector, cnfg.Scraper.CellSelector)
	if err != nil {
		return err
	}

	var fetcher types.Fetcher = tge.NewClient(cnfg.Scraper.URL, tge.ClientOptions{
		UserAgent: cnfg.Scraper.UserAgent,
		Timeout:   cnfg.Scraper.Timeout,
	})
	if f.file != "" {
		fetcher = fileFetcher(f.file)
	}

	normalizer := tge.NewNormalizer(logger.With("module", "tge"), tge.NormalizerOptions{
		LabelColumn:    cnfg.Scraper.LabelColumn,
		PriceColumn:    cnfg.Scraper.PriceColumn,
		Fallback:       cnfg.Scraper.GetDateFallback(),
		DateOffsetDays: cnfg.Scraper.DateOffsetDays,
		Now:            time.Now,
	})

	collector := &collectingSink{}
	var sink types.Sink = collector
	if f.write {
		db, err := database.New(ctx, cnfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		multi := types.NewMultiSink()
		multi.Add("print", collector)
		multi.Add("sqlite", db)
		sink = multi
	}

	pipeline := ingest.New(logger.With("module", "ingest"), fetcher, parser, normalizer, sink, ingest.Options{
		Measurement:  cnfg.Scraper.Measurement,
		WriteTimeout: cnfg.Scraper.WriteTimeout,
	})

	sum, err := pipeline.Run(ctx)
	renderPoints(out, collector.points, sum)
	return err
}

func applyFlags(cnfg *config.AppConfig, f *flags) {
	if f.url != "" {
		cnfg.Scraper.URL = f.url
	}
	if f.rowSelector != "" {
		cnfg.Scraper.RowSelector = f.rowSelector
	}
	if f.cellSelector != "" {
		cnfg.Scraper.CellSelector = f.cellSelector
	}
	if f.fallback != "" {
		cnfg.Scraper.DateFallback = f.fallback
	}
}

type fileFetcher string

func (f fileFetcher) Fetch(ctx context.Context) (string, error) {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", string(f), err)
	}
	return string(b), nil
}

type collectingSink struct {
	points []types.Point
}

func (s *collectingSink) Write(_ context.Context, batch types.Batch) error {
	s.points = append(s.points, batch.Points...)
	return nil
}

func (s *collectingSink) Close() error { return nil }

func renderPoints(out io.Writer, points []types.Point, sum ingest.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Hour", "Time (UTC)", "Price"})
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b types.Point) int { return a.Time.Compare(b.Time) })
	for _, p := range sorted {
		t.AppendRow(table.Row{p.Tags["hour"], p.Time.UTC().Format(time.DateTime), p.Fields["price"]})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%s, %d rows, %d skipped", sum.State, sum.Rows, sum.Skipped), sum.Message()})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}
