package services

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"VeilKit/internal/core"
	"VeilKit/pkg/metascrub"
)

// MetadataService exposes metadata inspection and scrubbing to the frontend.
type MetadataService struct {
	ctx      context.Context
	log      *zerolog.Logger
	scrubber *metascrub.Scrubber
	runs     *core.RunTracker
	config   *ConfigService
}

// CleanMetadataRequest is one scrub batch as submitted by the UI.
type CleanMetadataRequest struct {
	Paths     []string          `json:"paths"`
	OutputDir string            `json:"outputDir,omitempty"`
	Options   metascrub.Options `json:"options"`
}

// CleanMetadataResult reports a scrub batch.
type CleanMetadataResult struct {
	Success    []string         `json:"success"`
	Failed     []core.ItemError `json:"failed,omitempty"`
	TotalFiles int              `json:"totalFiles"`
	SizeBefore int64            `json:"sizeBefore"`
	SizeAfter  int64            `json:"sizeAfter"`
	Cancelled  bool             `json:"cancelled"`
}

// NewMetadataService creates a new MetadataService
func NewMetadataService(log *zerolog.Logger, config *ConfigService) *MetadataService {
	return &MetadataService{
		log:      log,
		scrubber: metascrub.NewScrubber(log),
		runs:     core.NewRunTracker(),
		config:   config,
	}
}

// SetContext sets the Wails runtime context for event emission
func (s *MetadataService) SetContext(ctx context.Context) {
	s.ctx = ctx
}

// AnalyzeFile reports the metadata found in one file without modifying it.
func (s *MetadataService) AnalyzeFile(path string) (*metascrub.Report, error) {
	s.log.Debug().Str("path", path).Msg("[MetadataService] AnalyzeFile")
	return s.scrubber.Analyze(path)
}

// IsSupported tells the UI whether a file type can be analyzed at all.
func (s *MetadataService) IsSupported(path string) bool {
	return s.scrubber.Supported(path)
}

// BatchCleanMetadata writes a scrubbed copy of each file. Originals are
// never modified; outputs land next to the source or in the configured
// output directory.
func (s *MetadataService) BatchCleanMetadata(req CleanMetadataRequest) (*CleanMetadataResult, error) {
	s.log.Info().Int("files", len(req.Paths)).Msg("[MetadataService] BatchCleanMetadata")

	if len(req.Paths) == 0 {
		return nil, core.ErrNoInput
	}

	runID, runCtx, err := s.runs.Begin(s.ctx, "clean-metadata")
	if err != nil {
		return nil, err
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = s.config.GetConfig().OutputDir
	}

	result := &CleanMetadataResult{TotalFiles: len(req.Paths)}
	batch, err := core.RunBatch(runCtx, req.Paths, func(ctx context.Context, path string) (int64, error) {
		cleaned, err := s.scrubber.Clean(path, outputDir, req.Options)
		if err != nil {
			return 0, err
		}
		result.Success = append(result.Success, cleaned)
		if before, err := os.Stat(path); err == nil {
			result.SizeBefore += before.Size()
		}
		if after, err := os.Stat(cleaned); err == nil {
			result.SizeAfter += after.Size()
		}
		return 0, nil
	}, func(p core.Progress) {
		if s.ctx != nil {
			runtime.EventsEmit(s.ctx, "clean-metadata-progress", p)
		}
	})

	s.runs.Complete(runID, batch != nil && batch.Cancelled, err)
	if err != nil {
		return nil, err
	}
	result.Failed = batch.Failed
	result.Cancelled = batch.Cancelled
	return result, nil
}

// CompareFiles diffs the metadata of an original against its cleaned copy.
func (s *MetadataService) CompareFiles(original, cleaned string) (*metascrub.Comparison, error) {
	return s.scrubber.Compare(original, cleaned)
}

// CancelMetadataClean requests cancellation of the active scrub run.
func (s *MetadataService) CancelMetadataClean() error {
	s.log.Info().Msg("[MetadataService] CancelMetadataClean")
	return s.runs.Cancel()
}
