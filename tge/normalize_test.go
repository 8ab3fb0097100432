package tge

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/icodeforyou/rdn-scraper/types"
	"github.com/icodeforyou/rdn-scraper/types/maybe"
)

var fixedNow = time.Date(2025, time.November, 21, 14, 30, 0, 0, time.UTC)

func newTestNormalizer(fallback DateFallback) Normalizer {
	opts := DefaultNormalizerOptions()
	opts.Fallback = fallback
	opts.Now = func() time.Time { return fixedNow }
	return NewNormalizer(nil, opts)
}

// makeRow builds a 14 cell row with label in cell 0 and price in cell 13.
func makeRow(label, price string) RawRow {
	row := make(RawRow, 14)
	for i := range row {
		row[i] = "-"
	}
	row[0] = label
	row[13] = price
	return row
}

var recordCmp = cmp.Comparer(func(a, b maybe.Maybe[string]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	return aok == bok && av == bv
})

func TestNormalizeDatedRows(t *testing.T) {
	tests := []struct {
		name     string
		row      RawRow
		expected types.PriceRecord
	}{
		{
			name: "first hour",
			row:  makeRow("2025-11-22 H01", "123,45"),
			expected: types.PriceRecord{
				CalendarDate: maybe.Some("2025-11-22"),
				HourLabel:    "H01",
				HourIndex:    1,
				Price:        123.45,
				Timestamp:    time.Date(2025, time.November, 22, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "last hour",
			row:  makeRow("2025-11-22 H24", "123,45"),
			expected: types.PriceRecord{
				CalendarDate: maybe.Some("2025-11-22"),
				HourLabel:    "H24",
				HourIndex:    24,
				Price:        123.45,
				Timestamp:    time.Date(2025, time.November, 22, 23, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "underscore separator and negative price",
			row:  makeRow("2025-11-22_H10", "-12,5"),
			expected: types.PriceRecord{
				CalendarDate: maybe.Some("2025-11-22"),
				HourLabel:    "H10",
				HourIndex:    10,
				Price:        -12.5,
				Timestamp:    time.Date(2025, time.November, 22, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "thousands separator",
			row:  makeRow("2025-11-22 H02", "1 234,56"),
			expected: types.PriceRecord{
				CalendarDate: maybe.Some("2025-11-22"),
				HourLabel:    "H02",
				HourIndex:    2,
				Price:        1234.56,
				Timestamp:    time.Date(2025, time.November, 22, 1, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "extra cells are ignored",
			row:  append(makeRow("2025-11-22 H03", "99,00"), "extra", "cells"),
			expected: types.PriceRecord{
				CalendarDate: maybe.Some("2025-11-22"),
				HourLabel:    "H03",
				HourIndex:    3,
				Price:        99,
				Timestamp:    time.Date(2025, time.November, 22, 2, 0, 0, 0, time.UTC),
			},
		},
	}

	n := newTestNormalizer(FallbackNow)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := n.Normalize(tt.row)
			if !ok {
				t.Fatalf("Normalize(%v) expected a record", tt.row)
			}
			if diff := cmp.Diff(tt.expected, rec, recordCmp); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		row  RawRow
	}{
		{name: "empty row", row: RawRow{}},
		{name: "13 cells", row: makeRow("2025-11-22 H01", "123,45")[:13]},
		{name: "no hour token", row: makeRow("2025-11-22", "123,45")},
		{name: "lower case token", row: makeRow("2025-11-22 h01", "123,45")},
		{name: "single digit hour", row: makeRow("2025-11-22 H1", "123,45")},
		{name: "hour zero", row: makeRow("2025-11-22 H00", "123,45")},
		{name: "hour 25", row: makeRow("2025-11-22 H25", "123,45")},
		{name: "empty price", row: makeRow("2025-11-22 H01", "")},
		{name: "dash price", row: makeRow("2025-11-22 H01", "-")},
		{name: "text price", row: makeRow("2025-11-22 H01", "n/a")},
		{name: "NaN price", row: makeRow("2025-11-22 H01", "NaN")},
		{name: "infinite price", row: makeRow("2025-11-22 H01", "Inf")},
	}

	n := newTestNormalizer(FallbackNow)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec, ok := n.Normalize(tt.row); ok {
				t.Errorf("Normalize(%v) expected no record, got %+v", tt.row, rec)
			}
		})
	}
}

func TestNormalizeShortRowsNeverProduceRecords(t *testing.T) {
	n := newTestNormalizer(FallbackNow)
	full := makeRow("2025-11-22 H01", "123,45")
	for size := 0; size < 14; size++ {
		if _, ok := n.Normalize(full[:size]); ok {
			t.Errorf("Normalize() with %d cells expected no record", size)
		}
	}
}

func TestNormalizeRandomLabelsWithoutToken(t *testing.T) {
	n := newTestNormalizer(FallbackNow)
	rnd := rand.New(rand.NewSource(1))
	alphabet := "abcdefgh0123456789 -_:Gh"
	for i := 0; i < 500; i++ {
		var b strings.Builder
		for j := 0; j < rnd.Intn(20); j++ {
			b.WriteByte(alphabet[rnd.Intn(len(alphabet))])
		}
		label := b.String()
		if _, ok := n.Normalize(makeRow(label, "1,0")); ok {
			t.Fatalf("Normalize() with label %q expected no record", label)
		}
	}
}

func TestNormalizeUndefinedDate(t *testing.T) {
	t.Run("now fallback keeps the row", func(t *testing.T) {
		rec, ok := newTestNormalizer(FallbackNow).Normalize(makeRow("H05", "50,5"))
		if !ok {
			t.Fatalf("expected a record")
		}
		if rec.HourIndex != 5 || rec.HourLabel != "H05" || rec.Price != 50.5 {
			t.Errorf("unexpected record %+v", rec)
		}
		if rec.CalendarDate.IsValid() {
			t.Errorf("expected calendar date to be absent")
		}
		if !rec.DateFallback || !rec.Timestamp.Equal(fixedNow) {
			t.Errorf("expected fallback timestamp %v, got %v (fallback %v)", fixedNow, rec.Timestamp, rec.DateFallback)
		}
	})

	t.Run("invalid date counts as absent", func(t *testing.T) {
		rec, ok := newTestNormalizer(FallbackNow).Normalize(makeRow("2025-13-40 H05", "50,5"))
		if !ok {
			t.Fatalf("expected a record")
		}
		if rec.CalendarDate.IsValid() || !rec.DateFallback {
			t.Errorf("expected undefined date fallback, got %+v", rec)
		}
	})

	t.Run("reject fallback drops the row", func(t *testing.T) {
		if rec, ok := newTestNormalizer(FallbackReject).Normalize(makeRow("H05", "50,5")); ok {
			t.Errorf("expected no record, got %+v", rec)
		}
	})

	t.Run("today fallback uses the delivery day", func(t *testing.T) {
		rec, ok := newTestNormalizer(FallbackToday).Normalize(makeRow("H05", "50,5"))
		if !ok {
			t.Fatalf("expected a record")
		}
		expected := time.Date(2025, time.November, 22, 4, 0, 0, 0, time.UTC)
		if !rec.Timestamp.Equal(expected) {
			t.Errorf("expected timestamp %v, got %v", expected, rec.Timestamp)
		}
		if d, _ := rec.CalendarDate.Get(); d != "2025-11-22" || rec.DateFallback {
			t.Errorf("expected calendar date 2025-11-22 without fallback flag, got %+v", rec)
		}
	})
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := newTestNormalizer(FallbackNow)
	for i := 1; i <= 24; i++ {
		row := makeRow("2025-11-22 H"+pad(i), strconv.Itoa(i)+",25")
		a, okA := n.Normalize(row)
		b, okB := n.Normalize(row)
		if !okA || !okB {
			t.Fatalf("expected records for %v", row)
		}
		if diff := cmp.Diff(a, b, recordCmp); diff != "" {
			t.Errorf("Normalize() not idempotent (-first +second):\n%s", diff)
		}
	}
}

func TestNormalizeCustomColumns(t *testing.T) {
	opts := DefaultNormalizerOptions()
	opts.LabelColumn = 1
	opts.PriceColumn = 2
	n := NewNormalizer(nil, opts)

	rec, ok := n.Normalize(RawRow{"ignored", "2025-11-22 H07", "10,00"})
	if !ok {
		t.Fatalf("expected a record")
	}
	if rec.HourIndex != 7 || rec.Price != 10 {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestParseDateFallback(t *testing.T) {
	for in, expected := range map[string]DateFallback{"": FallbackNow, "NOW": FallbackNow, " reject ": FallbackReject, "today": FallbackToday} {
		got, err := ParseDateFallback(in)
		if err != nil || got != expected {
			t.Errorf("ParseDateFallback(%q) expected %q, got %q (%v)", in, expected, got, err)
		}
	}
	if _, err := ParseDateFallback("yesterday"); err == nil {
		t.Errorf("expected error for unknown fallback")
	}
}

func pad(i int) string {
	if i < 10 {
		return "0" + strconv.Itoa(i)
	}
	return strconv.Itoa(i)
}
