package hours

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02 15"
)

// DateHour identifies one UTC hour. Hour is 0-23.
type DateHour struct {
	Date string
	Hour uint8
}

func (dh DateHour) String() string {
	return fmt.Sprintf("%s %02d", dh.Date, dh.Hour)
}

func (dh DateHour) IsoString() string {
	return fmt.Sprintf("%sT%02d:00:00Z", dh.Date, dh.Hour)
}

// Index is the market hour number, 1-24, where 1 is the hour starting at midnight.
func (dh DateHour) Index() int {
	return int(dh.Hour) + 1
}

// Label formats the market hour as used by the exchange, e.g. "H01".
func (dh DateHour) Label() string {
	return fmt.Sprintf("H%02d", dh.Index())
}

// Time returns the instant the hour starts, or the zero time for an invalid date.
func (dh DateHour) Time() time.Time {
	t, err := time.ParseInLocation(hourLayout, dh.String(), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (dh DateHour) Add(hours int) DateHour {
	t := dh.Time()
	if t.IsZero() {
		return dh
	}
	return FromTime(t.Add(time.Duration(hours) * time.Hour))
}

func (dh DateHour) Sub(hours int) DateHour {
	return dh.Add(-hours)
}

func (dh DateHour) Compare(other DateHour) int {
	if dh == other {
		return 0
	}
	if dh.Date < other.Date {
		return -1
	}
	if dh.Date > other.Date {
		return 1
	}
	if dh.Hour < other.Hour {
		return -1
	}
	return 1
}

func (dh DateHour) IsZero() bool {
	return dh.Date == "" && dh.Hour == 0
}

// FromIndex builds the DateHour for market hour index (1-24) of date (YYYY-MM-DD).
func FromIndex(date string, index int) (DateHour, error) {
	if index < 1 || index > 24 {
		return DateHour{}, fmt.Errorf("hour index %d out of range 1-24", index)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return DateHour{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return DateHour{Date: date, Hour: uint8(index - 1)}, nil
}

func FromTime(t time.Time) DateHour {
	if t.IsZero() {
		return DateHour{}
	}
	t = t.UTC()
	return DateHour{
		Date: t.Format(dateLayout),
		Hour: uint8(t.Hour()),
	}
}

// IsDate reports whether s is a valid YYYY-MM-DD calendar date.
func IsDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// DateOf formats the UTC calendar date of t.
func DateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
