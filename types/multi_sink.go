package types

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MultiSink writes every batch to all of its sinks concurrently.
// A batch counts as written only if every sink accepted it. A failing sink
// does not abort the writes of the others.
type MultiSink struct {
	names []string
	sinks []Sink
}

func NewMultiSink() *MultiSink {
	return &MultiSink{}
}

func (m *MultiSink) Add(name string, sink Sink) {
	m.names = append(m.names, name)
	m.sinks = append(m.sinks, sink)
}

func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) Write(ctx context.Context, batch Batch) error {
	var g errgroup.Group
	for i, s := range m.sinks {
		g.Go(func() error {
			if err := s.Write(ctx, batch); err != nil {
				return fmt.Errorf("sink %s: %w", m.names[i], err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *MultiSink) Close() error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing sink %s: %w", m.names[i], err))
		}
	}
	return errors.Join(errs...)
}

type noClose struct {
	Sink
}

func (noClose) Close() error { return nil }

// NoClose wraps a sink whose lifetime is managed elsewhere.
func NoClose(s Sink) Sink {
	return noClose{Sink: s}
}
