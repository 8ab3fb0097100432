package ingest

import (
	"context"
	"errors"
	"fmt"
)

var ErrRunInProgress = errors.New("a scrape run is already in progress")

// FetchError means the price page could not be retrieved.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError means the retrieved document could not be turned into a tree.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WriteError means the sink did not accept the batch.
type WriteError struct {
	Points int
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write of %d points failed: %v", e.Points, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Category names the failure class of err, or "" for nil.
func Category(err error) string {
	var (
		fetchErr *FetchError
		parseErr *ParseError
		writeErr *WriteError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &writeErr):
		return "write"
	case errors.Is(err, ErrRunInProgress):
		return "busy"
	default:
		return "unknown"
	}
}
