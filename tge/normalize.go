package tge

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/icodeforyou/rdn-scraper/convert"
	"github.com/icodeforyou/rdn-scraper/hours"
	"github.com/icodeforyou/rdn-scraper/types"
	"github.com/icodeforyou/rdn-scraper/types/maybe"
)

// DateFallback decides what happens to rows whose label has no calendar date.
type DateFallback string

const (
	// FallbackNow stamps the record with the wall clock at normalization time.
	FallbackNow DateFallback = "now"
	// FallbackReject drops the row.
	FallbackReject DateFallback = "reject"
	// FallbackToday uses today's UTC date shifted by DateOffsetDays.
	FallbackToday DateFallback = "today"
)

func ParseDateFallback(s string) (DateFallback, error) {
	switch f := DateFallback(strings.ToLower(strings.TrimSpace(s))); f {
	case FallbackNow, FallbackReject, FallbackToday:
		return f, nil
	case "":
		return FallbackNow, nil
	default:
		return "", fmt.Errorf("unknown date fallback %q, expected now, reject or today", s)
	}
}

type skipReason string

const (
	skipTooFewCells skipReason = "too_few_cells"
	skipNoHourToken skipReason = "no_hour_token"
	skipBadHour     skipReason = "bad_hour"
	skipBadPrice    skipReason = "bad_price"
	skipNoDate      skipReason = "no_date"
)

var (
	hourTokenRe = regexp.MustCompile(`H\d{2}`)
	dateHourRe  = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[\s_T/-]*(H\d{2})`)
)

type NormalizerOptions struct {
	LabelColumn    int
	PriceColumn    int
	Fallback       DateFallback
	DateOffsetDays int
	Now            func() time.Time
}

func DefaultNormalizerOptions() NormalizerOptions {
	return NormalizerOptions{
		LabelColumn:    0,
		PriceColumn:    13,
		Fallback:       FallbackNow,
		DateOffsetDays: 1,
		Now:            time.Now,
	}
}

// Normalizer turns raw table rows into price records.
type Normalizer struct {
	logger *slog.Logger
	opts   NormalizerOptions
}

func NewNormalizer(logger *slog.Logger, opts NormalizerOptions) Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fallback == "" {
		opts.Fallback = FallbackNow
	}
	return Normalizer{logger: logger, opts: opts}
}

// Normalize returns the record described by row. A row of the wrong shape
// yields false and is never an error.
func (n Normalizer) Normalize(row RawRow) (types.PriceRecord, bool) {
	rec, reason := n.normalize(row)
	if reason != "" {
		n.logger.Debug("row skipped", slog.String("reason", string(reason)), slog.Int("cells", len(row)))
		return types.PriceRecord{}, false
	}
	return rec, true
}

func (n Normalizer) normalize(row RawRow) (types.PriceRecord, skipReason) {
	if len(row) <= max(n.opts.LabelColumn, n.opts.PriceColumn) {
		return types.PriceRecord{}, skipTooFewCells
	}

	label := row[n.opts.LabelColumn]
	date := maybe.None[string]()
	var token string
	if m := dateHourRe.FindStringSubmatch(label); m != nil {
		token = m[2]
		if hours.IsDate(m[1]) {
			date = maybe.Some(m[1])
		}
	} else {
		token = hourTokenRe.FindString(label)
	}
	if token == "" {
		return types.PriceRecord{}, skipNoHourToken
	}

	price, err := convert.ParseCommaFloat(row[n.opts.PriceColumn])
	if err != nil {
		return types.PriceRecord{}, skipBadPrice
	}

	index, err := strconv.Atoi(strings.TrimPrefix(token, "H"))
	if err != nil || index < 1 || index > 24 {
		return types.PriceRecord{}, skipBadHour
	}

	rec := types.PriceRecord{
		HourLabel: token,
		HourIndex: index,
		Price:     price,
	}

	if !date.IsValid() {
		switch n.opts.Fallback {
		case FallbackReject:
			return types.PriceRecord{}, skipNoDate
		case FallbackToday:
			date = maybe.Some(hours.DateOf(n.opts.Now().UTC().AddDate(0, 0, n.opts.DateOffsetDays)))
		default:
			rec.Timestamp = n.opts.Now().UTC()
			rec.DateFallback = true
			return rec, ""
		}
	}

	d, _ := date.Get()
	dh, err := hours.FromIndex(d, index)
	if err != nil {
		return types.PriceRecord{}, skipBadHour
	}
	rec.CalendarDate = date
	rec.Timestamp = dh.Time()
	return rec, ""
}
