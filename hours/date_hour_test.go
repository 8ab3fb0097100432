package hours

import (
	"testing"
	"time"
)

func TestDateHourString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 5}
	expected := "2025-01-01 05"
	if s := dh.String(); s != expected {
		t.Errorf("String() expected %q, got %q", expected, s)
	}
}

func TestDateHourIsoString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 15}
	expected := "2025-01-01T15:00:00Z"
	if s := dh.IsoString(); s != expected {
		t.Errorf("IsoString() expected %q, got %q", expected, s)
	}
}

func TestDateHourLabel(t *testing.T) {
	tests := []struct {
		input    DateHour
		index    int
		expected string
	}{
		{DateHour{Date: "2025-11-22", Hour: 0}, 1, "H01"},
		{DateHour{Date: "2025-11-22", Hour: 9}, 10, "H10"},
		{DateHour{Date: "2025-11-22", Hour: 23}, 24, "H24"},
	}

	for _, tt := range tests {
		if i := tt.input.Index(); i != tt.index {
			t.Errorf("Index() expected %d, got %d", tt.index, i)
		}
		if l := tt.input.Label(); l != tt.expected {
			t.Errorf("Label() expected %q, got %q", tt.expected, l)
		}
	}
}

func TestFromIndex(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		index    int
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "first hour starts at midnight",
			date:     "2025-11-22",
			index:    1,
			expected: time.Date(2025, time.November, 22, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "last hour starts at 23",
			date:     "2025-11-22",
			index:    24,
			expected: time.Date(2025, time.November, 22, 23, 0, 0, 0, time.UTC),
		},
		{name: "index zero", date: "2025-11-22", index: 0, wantErr: true},
		{name: "index 25", date: "2025-11-22", index: 25, wantErr: true},
		{name: "invalid date", date: "2025-13-40", index: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dh, err := FromIndex(tt.date, tt.index)
			if tt.wantErr {
				if err == nil {
					t.Errorf("FromIndex(%q, %d) expected error, got %+v", tt.date, tt.index, dh)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromIndex(%q, %d) unexpected error: %v", tt.date, tt.index, err)
			}
			if got := dh.Time(); !got.Equal(tt.expected) {
				t.Errorf("Time() expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDateHourAdd(t *testing.T) {
	tests := []struct {
		name     string
		input    DateHour
		addHours int
		expected DateHour
	}{
		{
			name:     "add within same day",
			input:    DateHour{Date: "2025-01-01", Hour: 10},
			addHours: 2,
			expected: DateHour{Date: "2025-01-01", Hour: 12},
		},
		{
			name:     "add crossing midnight",
			input:    DateHour{Date: "2025-01-01", Hour: 23},
			addHours: 2,
			expected: DateHour{Date: "2025-01-02", Hour: 1},
		},
		{
			name:     "add negative hours (subtract)",
			input:    DateHour{Date: "2025-01-01", Hour: 1},
			addHours: -2,
			expected: DateHour{Date: "2024-12-31", Hour: 23},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.input.Add(tt.addHours)
			if result != tt.expected {
				t.Errorf("Add(%d) expected %+v, got %+v", tt.addHours, tt.expected, result)
			}
		})
	}
}

func TestDateHourSub(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 0}
	expected := DateHour{Date: "2024-12-31", Hour: 23}
	if result := dh.Sub(1); result != expected {
		t.Errorf("Sub(1) expected %+v, got %+v", expected, result)
	}
}

func TestDateHourCompare(t *testing.T) {
	a := DateHour{Date: "2025-01-01", Hour: 3}
	b := DateHour{Date: "2025-01-01", Hour: 4}
	c := DateHour{Date: "2025-01-02", Hour: 0}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 || c.Compare(b) != 1 {
		t.Errorf("Compare() returned unexpected ordering")
	}
}

func TestDateHourIsZero(t *testing.T) {
	var dh DateHour
	if !dh.IsZero() {
		t.Errorf("expected a zero value DateHour to be zero")
	}
	dh = DateHour{Date: "2025-01-01", Hour: 0}
	if dh.IsZero() {
		t.Errorf("expected a non-zero DateHour (non-empty Date) not to be zero")
	}
}

func TestFromTime(t *testing.T) {
	tm := time.Date(2025, time.January, 1, 15, 30, 0, 0, time.UTC)
	dh := FromTime(tm)
	expected := DateHour{Date: "2025-01-01", Hour: 15}
	if dh != expected {
		t.Errorf("FromTime() expected %+v, got %+v", expected, dh)
	}

	var zero time.Time
	if !FromTime(zero).IsZero() {
		t.Errorf("FromTime() with zero time expected a zero DateHour")
	}
}

func TestIsDate(t *testing.T) {
	if !IsDate("2024-02-29") {
		t.Errorf("expected leap day to be a date")
	}
	if IsDate("2025-02-29") || IsDate("2025-1-1") || IsDate("") {
		t.Errorf("expected invalid dates to be rejected")
	}
}
