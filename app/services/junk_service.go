package services

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"VeilKit/internal/core"
	"VeilKit/pkg/junk"
)

// JunkService exposes system junk scanning and cleaning to the frontend.
type JunkService struct {
	ctx     context.Context
	log     *zerolog.Logger
	manager *junk.Manager
	runs    *core.RunTracker
}

// NewJunkService creates a new JunkService
func NewJunkService(log *zerolog.Logger) *JunkService {
	return &JunkService{
		log:     log,
		manager: junk.NewManager(log),
		runs:    core.NewRunTracker(),
	}
}

// SetContext sets the Wails runtime context for event emission
func (s *JunkService) SetContext(ctx context.Context) {
	s.ctx = ctx
}

// ScanSystemJunk sizes every known junk location and returns the non-empty
// ones. Nothing is modified.
func (s *JunkService) ScanSystemJunk() []junk.Item {
	s.log.Info().Msg("[JunkService] ScanSystemJunk")
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return s.manager.Scan(ctx)
}

// DryRunClean previews what cleaning the selection would delete.
func (s *JunkService) DryRunClean(paths []string) (*junk.DryRunResult, error) {
	s.log.Info().Int("paths", len(paths)).Msg("[JunkService] DryRunClean")
	return s.manager.Estimate(paths)
}

// CleanSystemJunk deletes the selected scan results. Only paths the scan
// itself advertised are ever touched.
func (s *JunkService) CleanSystemJunk(paths []string) (*junk.CleanResult, error) {
	s.log.Info().Int("paths", len(paths)).Msg("[JunkService] CleanSystemJunk")

	runID, runCtx, err := s.runs.Begin(s.ctx, "clean-junk")
	if err != nil {
		return nil, err
	}

	result, err := s.manager.Clean(runCtx, paths, func(current, total int, name string, freed int64) {
		if s.ctx == nil {
			return
		}
		runtime.EventsEmit(s.ctx, "clean-progress", core.Progress{
			Index:       current,
			Total:       total,
			CurrentFile: name,
			Percentage:  float64(current) / float64(total) * 100,
			BytesFreed:  freed,
		})
	})

	s.runs.Complete(runID, result != nil && result.Cancelled, err)
	return result, err
}

// CancelSystemClean requests cancellation of the active clean run.
func (s *JunkService) CancelSystemClean() error {
	s.log.Info().Msg("[JunkService] CancelSystemClean")
	return s.runs.Cancel()
}
