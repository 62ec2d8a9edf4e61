package services

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"VeilKit/internal/core"
	"VeilKit/pkg/shredder"
)

// ShredService exposes secure deletion to the frontend.
type ShredService struct {
	ctx    context.Context
	log    *zerolog.Logger
	eraser *shredder.Eraser
	runs   *core.RunTracker
	config *ConfigService
}

// ShredRequest is one secure-delete batch as submitted by the UI.
type ShredRequest struct {
	Paths  []string `json:"paths"`
	Method string   `json:"method,omitempty"`
}

// ShredResult reports a secure-delete batch.
type ShredResult struct {
	Deleted       int              `json:"deleted"`
	BytesShredded int64            `json:"bytesShredded"`
	Failed        []core.ItemError `json:"failed,omitempty"`
	Cancelled     bool             `json:"cancelled"`
}

// ShredProgress is one shred-progress event. Percent covers the overwrite
// passes of the file currently being destroyed.
type ShredProgress struct {
	Index       int    `json:"index"`
	Total       int    `json:"total"`
	CurrentFile string `json:"currentFile"`
	Percent     int    `json:"percent"`
}

// NewShredService creates a new ShredService
func NewShredService(log *zerolog.Logger, config *ConfigService) *ShredService {
	return &ShredService{
		log:    log,
		eraser: shredder.NewEraser(log),
		runs:   core.NewRunTracker(),
		config: config,
	}
}

// SetContext sets the Wails runtime context for event emission
func (s *ShredService) SetContext(ctx context.Context) {
	s.ctx = ctx
}

// DryRunShred previews a shred selection without touching anything.
func (s *ShredService) DryRunShred(paths []string) *shredder.DryRunReport {
	s.log.Info().Int("paths", len(paths)).Msg("[ShredService] DryRunShred")
	return s.eraser.DryRun(paths)
}

// DeleteItems overwrites and removes the selection. The method defaults to
// the configured one when the request leaves it empty.
func (s *ShredService) DeleteItems(req ShredRequest) (*ShredResult, error) {
	s.log.Info().Int("paths", len(req.Paths)).Str("method", req.Method).Msg("[ShredService] DeleteItems")

	if len(req.Paths) == 0 {
		return nil, core.ErrNoInput
	}

	method := shredder.Method(req.Method)
	if req.Method == "" {
		method = shredder.Method(s.config.GetConfig().DefaultShredMethod)
	}

	runID, runCtx, err := s.runs.Begin(s.ctx, "shred")
	if err != nil {
		return nil, err
	}

	total := len(req.Paths)
	index := 0
	batch, err := core.RunBatch(runCtx, req.Paths, func(ctx context.Context, path string) (int64, error) {
		index++
		i := index
		return s.eraser.Erase(ctx, path, method, func(file string, percent int) {
			if s.ctx == nil {
				return
			}
			runtime.EventsEmit(s.ctx, "shred-progress", ShredProgress{
				Index:       i,
				Total:       total,
				CurrentFile: file,
				Percent:     percent,
			})
		})
	}, nil)

	s.runs.Complete(runID, batch != nil && batch.Cancelled, err)
	if err != nil {
		return nil, err
	}
	return &ShredResult{
		Deleted:       batch.Succeeded,
		BytesShredded: batch.BytesFreed,
		Failed:        batch.Failed,
		Cancelled:     batch.Cancelled,
	}, nil
}

// CancelShred requests cancellation of the active shred run. The file in
// flight is always destroyed completely before the run stops.
func (s *ShredService) CancelShred() error {
	s.log.Info().Msg("[ShredService] CancelShred")
	return s.runs.Cancel()
}
