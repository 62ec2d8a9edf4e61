// Package core provides the transport-agnostic engine plumbing for VeilKit.
// This package must NOT import any adapter-specific code (Wails, Cobra).
// It should be fully testable without UI.
package core

import (
	"context"
	"fmt"
)

// Progress is emitted once per finished item. Index is 1-based and strictly
// increasing within a run; adapters forward it to the UI or console as-is.
type Progress struct {
	Index       int     `json:"index"`
	Total       int     `json:"total"`
	CurrentFile string  `json:"currentFile"`
	Percentage  float64 `json:"percentage"`
	BytesFreed  int64   `json:"bytesFreed,omitempty"`
}

// ProgressSink receives progress events. A nil sink is allowed.
type ProgressSink func(Progress)

// ItemFunc processes a single path. The returned byte count is whatever the
// engine reclaimed or produced for that item (0 where it has no meaning).
type ItemFunc func(ctx context.Context, path string) (int64, error)

// ItemError records a single failed item without aborting the run.
type ItemError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// BatchResult is the outcome of a run. A partially failed run is still a
// normal result; only empty input is a run-level error.
type BatchResult struct {
	Succeeded  int         `json:"succeeded"`
	Failed     []ItemError `json:"failed,omitempty"`
	Cancelled  bool        `json:"cancelled"`
	BytesFreed int64       `json:"bytesFreed"`
}

// RunBatch processes paths strictly in order on the calling goroutine.
// Cancellation is checked between items only, so a file that has started is
// always finished (or failed) before the run stops. Item failures and panics
// are isolated: they are recorded in Failed and the run continues.
func RunBatch(ctx context.Context, paths []string, fn ItemFunc, sink ProgressSink) (*BatchResult, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}

	result := &BatchResult{}
	total := len(paths)

	for i, path := range paths {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			return result, nil
		default:
		}

		freed, err := runItem(ctx, path, fn)
		if err != nil {
			result.Failed = append(result.Failed, ItemError{Path: path, Message: err.Error()})
		} else {
			result.Succeeded++
			result.BytesFreed += freed
		}

		if sink != nil {
			sink(Progress{
				Index:       i + 1,
				Total:       total,
				CurrentFile: path,
				Percentage:  float64(i+1) / float64(total) * 100,
				BytesFreed:  result.BytesFreed,
			})
		}
	}

	return result, nil
}

// runItem calls fn with panic isolation so a misbehaving engine cannot take
// down the whole batch.
func runItem(ctx context.Context, path string, fn ItemFunc) (freed int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error processing %s: %v", path, r)
		}
	}()
	return fn(ctx, path)
}
