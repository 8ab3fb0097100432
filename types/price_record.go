package types

import (
	"time"

	"github.com/icodeforyou/rdn-scraper/types/maybe"
)

// PriceRecord is one normalized hourly day-ahead price.
type PriceRecord struct {
	CalendarDate maybe.Maybe[string] // YYYY-MM-DD, absent when the source row has no date
	HourLabel    string              // "H01" - "H24"
	HourIndex    int                 // 1 - 24
	Price        float64
	Timestamp    time.Time // Start of the priced hour, UTC
	DateFallback bool      // Timestamp was not derived from a calendar date
}

// Point converts the record into the time-series point stored by sinks.
func (r PriceRecord) Point(measurement string) Point {
	return Point{
		Measurement: measurement,
		Tags:        map[string]string{"hour": r.HourLabel},
		Fields:      map[string]any{"price": r.Price},
		Time:        r.Timestamp,
	}
}
