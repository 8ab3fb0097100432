package types

import (
	"context"
	"time"
)

// Point is a single time-series observation. Field values are float64, int64, string or bool.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Batch is a named group of points written in one operation.
type Batch struct {
	Name   string
	Points []Point
}

func (b Batch) Len() int {
	return len(b.Points)
}

type Sink interface {
	Write(ctx context.Context, batch Batch) error
	Close() error
}

// Fetcher returns the raw markup of the price page.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}
