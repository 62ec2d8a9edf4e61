package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"VeilKit/internal/core"
	"VeilKit/pkg/lockbox"
)

// VaultService exposes file locking and unlocking to the frontend.
type VaultService struct {
	ctx    context.Context
	log    *zerolog.Logger
	engine *lockbox.Engine
	runs   *core.RunTracker
	config *ConfigService
}

// CryptoRequest is one lock or unlock batch as submitted by the UI.
type CryptoRequest struct {
	Paths        []string `json:"paths"`
	Passphrase   string   `json:"passphrase"`
	KeyfilePath  string   `json:"keyfilePath,omitempty"`
	ExtraEntropy string   `json:"extraEntropy,omitempty"`
}

// CryptoItemResult reports the outcome for a single file in a batch.
type CryptoItemResult struct {
	Path    string `json:"path"`
	Output  string `json:"output,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CryptoBatchResult is the run-level outcome returned to the frontend.
type CryptoBatchResult struct {
	Items     []CryptoItemResult `json:"items"`
	Succeeded int                `json:"succeeded"`
	Cancelled bool               `json:"cancelled"`
}

// NewVaultService creates a new VaultService
func NewVaultService(log *zerolog.Logger, config *ConfigService) *VaultService {
	return &VaultService{
		log:    log,
		engine: lockbox.NewEngine(log),
		runs:   core.NewRunTracker(),
		config: config,
	}
}

// SetContext sets the Wails runtime context for event emission
func (s *VaultService) SetContext(ctx context.Context) {
	s.ctx = ctx
}

// credentials resolves the request secrets. The keyfile is hashed once per
// batch, not once per file.
func (s *VaultService) credentials(req CryptoRequest) (lockbox.Credentials, error) {
	creds := lockbox.Credentials{Passphrase: req.Passphrase}
	if req.KeyfilePath != "" {
		hash, err := lockbox.HashKeyfile(req.KeyfilePath)
		if err != nil {
			return lockbox.Credentials{}, fmt.Errorf("failed to read keyfile: %w", err)
		}
		creds.KeyfileHash = hash
	}
	if creds.Passphrase == "" && len(creds.KeyfileHash) == 0 {
		return lockbox.Credentials{}, core.ErrNoSecret
	}
	return creds, nil
}

// LockFiles encrypts each requested file into a container next to it.
// Progress is pushed via crypto-progress events; the per-file outcomes come
// back in the returned result.
func (s *VaultService) LockFiles(req CryptoRequest) (*CryptoBatchResult, error) {
	s.log.Info().Int("files", len(req.Paths)).Msg("[VaultService] LockFiles")

	if len(req.Paths) == 0 {
		return nil, core.ErrNoInput
	}
	creds, err := s.credentials(req)
	if err != nil {
		return nil, err
	}

	runID, runCtx, err := s.runs.Begin(s.ctx, "lock")
	if err != nil {
		return nil, err
	}

	params := s.config.KDFParams()
	extra := []byte(req.ExtraEntropy)

	out := &CryptoBatchResult{}
	index := 0
	batch, err := core.RunBatch(runCtx, req.Paths, func(ctx context.Context, path string) (int64, error) {
		opts := lockbox.LockOptions{Params: params}
		if len(extra) > 0 {
			opts.ExtraEntropy = lockbox.PerFileEntropy(extra, index)
		}
		index++
		container, err := s.engine.Lock(ctx, path, creds, opts)
		if err != nil {
			out.Items = append(out.Items, CryptoItemResult{Path: path, Message: err.Error()})
			return 0, err
		}
		out.Items = append(out.Items, CryptoItemResult{Path: path, Output: container, Success: true})
		return 0, nil
	}, s.emitProgress)

	s.runs.Complete(runID, batch != nil && batch.Cancelled, err)
	if err != nil {
		return nil, err
	}
	out.Succeeded = batch.Succeeded
	out.Cancelled = batch.Cancelled
	return out, nil
}

// UnlockFiles decrypts each container back to its original name. A container
// is only removed after its plaintext has been fully verified and renamed
// into place.
func (s *VaultService) UnlockFiles(req CryptoRequest) (*CryptoBatchResult, error) {
	s.log.Info().Int("files", len(req.Paths)).Msg("[VaultService] UnlockFiles")

	if len(req.Paths) == 0 {
		return nil, core.ErrNoInput
	}
	creds, err := s.credentials(req)
	if err != nil {
		return nil, err
	}

	runID, runCtx, err := s.runs.Begin(s.ctx, "unlock")
	if err != nil {
		return nil, err
	}

	out := &CryptoBatchResult{}
	batch, err := core.RunBatch(runCtx, req.Paths, func(ctx context.Context, path string) (int64, error) {
		restored, err := s.engine.Unlock(ctx, path, creds)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, core.ErrIntegrity) {
				msg = core.ErrIntegrity.Error()
			}
			out.Items = append(out.Items, CryptoItemResult{Path: path, Message: msg})
			return 0, err
		}
		out.Items = append(out.Items, CryptoItemResult{Path: path, Output: restored, Success: true})
		return 0, nil
	}, s.emitProgress)

	s.runs.Complete(runID, batch != nil && batch.Cancelled, err)
	if err != nil {
		return nil, err
	}
	out.Succeeded = batch.Succeeded
	out.Cancelled = batch.Cancelled
	return out, nil
}

// InspectContainer reads the public header of a container without needing
// any credentials.
func (s *VaultService) InspectContainer(path string) (*lockbox.ContainerInfo, error) {
	return s.engine.Inspect(path)
}

// CancelVaultOp requests cancellation of the active lock or unlock run. The
// file currently in flight is finished first.
func (s *VaultService) CancelVaultOp() error {
	s.log.Info().Msg("[VaultService] CancelVaultOp")
	return s.runs.Cancel()
}

// ActiveRun returns the current run snapshot, or nil when idle.
func (s *VaultService) ActiveRun() *core.RunSnapshot {
	return s.runs.Active()
}

func (s *VaultService) emitProgress(p core.Progress) {
	if s.ctx == nil {
		return
	}
	runtime.EventsEmit(s.ctx, "crypto-progress", p)
}
