package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState represents the lifecycle state of a run.
type RunState string

const (
	RunActive    RunState = "active"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// RunSnapshot is the authoritative state of a run at a point in time.
// Adapters should derive all state from snapshots, never from events alone.
type RunSnapshot struct {
	RunID     string    `json:"runId"`
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	State     RunState  `json:"state"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunTracker owns per-run cancellation for one service. A service starts a
// run with Begin, which hands back a context cancelled by Cancel; there is
// never any process-wide cancellation state. Only one run may be active per
// tracker at a time.
type RunTracker struct {
	mu      sync.Mutex
	runs    map[string]*RunSnapshot
	cancels map[string]context.CancelFunc
	active  string
	seq     int64
}

// NewRunTracker creates an empty tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{
		runs:    make(map[string]*RunSnapshot),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Begin registers a new run and returns its ID together with a context that
// is cancelled when Cancel is called. Returns ErrBusy while another run of
// this tracker is still active.
func (rt *RunTracker) Begin(ctx context.Context, kind string) (string, context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.active != "" {
		if run := rt.runs[rt.active]; run != nil && run.State == RunActive {
			return "", nil, fmt.Errorf("%w: %s (%s)", ErrBusy, run.RunID, run.Kind)
		}
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)

	rt.seq++
	rt.runs[runID] = &RunSnapshot{
		RunID:     runID,
		Seq:       rt.seq,
		Kind:      kind,
		State:     RunActive,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	rt.cancels[runID] = cancel
	rt.active = runID

	return runID, runCtx, nil
}

// Complete marks a run finished. Cancelled wins over failed so a run stopped
// by the user is not reported as an error.
func (rt *RunTracker) Complete(runID string, cancelled bool, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	run, ok := rt.runs[runID]
	if !ok {
		return
	}

	switch {
	case cancelled:
		run.State = RunCancelled
		run.Message = "cancelled by user"
	case err != nil:
		run.State = RunFailed
		run.Message = err.Error()
	default:
		run.State = RunSucceeded
	}
	run.UpdatedAt = time.Now()

	if cancel, ok := rt.cancels[runID]; ok {
		cancel()
		delete(rt.cancels, runID)
	}
	if rt.active == runID {
		rt.active = ""
	}
	rt.seq++
	run.Seq = rt.seq
}

// Cancel cancels the active run. The run stays in the active slot until the
// owning goroutine observes the cancellation and calls Complete.
func (rt *RunTracker) Cancel() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.active == "" {
		return fmt.Errorf("no active run to cancel")
	}
	cancel, ok := rt.cancels[rt.active]
	if !ok {
		return fmt.Errorf("run not cancellable: %s", rt.active)
	}
	cancel()
	return nil
}

// Active returns a copy of the active run snapshot, or nil if none.
func (rt *RunTracker) Active() *RunSnapshot {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.active == "" {
		return nil
	}
	run, ok := rt.runs[rt.active]
	if !ok {
		return nil
	}
	snapshot := *run
	return &snapshot
}

// Get returns a copy of a specific run snapshot.
func (rt *RunTracker) Get(runID string) (*RunSnapshot, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	run, ok := rt.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	snapshot := *run
	return &snapshot, nil
}

// List returns all runs, newest first.
func (rt *RunTracker) List() []*RunSnapshot {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	list := make([]*RunSnapshot, 0, len(rt.runs))
	for _, run := range rt.runs {
		snapshot := *run
		list = append(list, &snapshot)
	}
	for i := 0; i < len(list)-1; i++ {
		for j := i + 1; j < len(list); j++ {
			if list[j].StartedAt.After(list[i].StartedAt) {
				list[i], list[j] = list[j], list[i]
			}
		}
	}
	return list
}
