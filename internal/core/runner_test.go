package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunTracker_Begin(t *testing.T) {
	rt := NewRunTracker()
	ctx := context.Background()

	runID, runCtx, err := rt.Begin(ctx, "shred")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if runID == "" {
		t.Error("runID should not be empty")
	}
	if runCtx == nil {
		t.Error("runCtx should not be nil")
	}

	active := rt.Active()
	if active == nil {
		t.Fatal("expected active run, got nil")
	}
	if active.State != RunActive {
		t.Errorf("expected state active, got %s", active.State)
	}
	if active.Kind != "shred" {
		t.Errorf("expected kind shred, got %s", active.Kind)
	}
}

func TestRunTracker_SingleRunAtATime(t *testing.T) {
	rt := NewRunTracker()
	ctx := context.Background()

	_, _, err := rt.Begin(ctx, "lock")
	if err != nil {
		t.Fatalf("first Begin failed: %v", err)
	}

	_, _, err = rt.Begin(ctx, "unlock")
	if err == nil {
		t.Error("expected error when starting second run, got nil")
	}
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestRunTracker_Cancel(t *testing.T) {
	rt := NewRunTracker()

	runID, runCtx, _ := rt.Begin(context.Background(), "clean")

	if err := rt.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case <-runCtx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("run context was not cancelled")
	}

	// Run stays active until the owner reports completion.
	if rt.Active() == nil {
		t.Error("run should stay in the active slot until Complete")
	}

	rt.Complete(runID, true, nil)
	snapshot, _ := rt.Get(runID)
	if snapshot.State != RunCancelled {
		t.Errorf("expected state cancelled, got %s", snapshot.State)
	}
	if rt.Active() != nil {
		t.Error("expected no active run after Complete")
	}
}

func TestRunTracker_CancelWithoutActiveRun(t *testing.T) {
	rt := NewRunTracker()
	if err := rt.Cancel(); err == nil {
		t.Error("expected error cancelling with no active run")
	}
}

func TestRunTracker_Complete(t *testing.T) {
	rt := NewRunTracker()

	runID, _, _ := rt.Begin(context.Background(), "scrub")
	rt.Complete(runID, false, nil)

	snapshot, err := rt.Get(runID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snapshot.State != RunSucceeded {
		t.Errorf("expected state succeeded, got %s", snapshot.State)
	}

	// A new run can start once the previous one finished.
	if _, _, err := rt.Begin(context.Background(), "scrub"); err != nil {
		t.Errorf("Begin after Complete failed: %v", err)
	}
}

func TestRunTracker_CompleteWithError(t *testing.T) {
	rt := NewRunTracker()

	runID, _, _ := rt.Begin(context.Background(), "lock")
	rt.Complete(runID, false, errors.New("disk full"))

	snapshot, _ := rt.Get(runID)
	if snapshot.State != RunFailed {
		t.Errorf("expected state failed, got %s", snapshot.State)
	}
	if snapshot.Message != "disk full" {
		t.Errorf("expected message 'disk full', got '%s'", snapshot.Message)
	}
}

func TestRunTracker_SequenceNumbers(t *testing.T) {
	rt := NewRunTracker()
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 3; i++ {
		runID, _, err := rt.Begin(ctx, "test")
		if err != nil {
			t.Fatalf("Begin %d failed: %v", i, err)
		}
		rt.Complete(runID, false, nil)
		snapshot, _ := rt.Get(runID)
		seqs = append(seqs, snapshot.Seq)
		time.Sleep(2 * time.Millisecond) // Ensure different timestamps
	}

	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Errorf("seq numbers not increasing: %d <= %d", seqs[i], seqs[i-1])
		}
	}

	runs := rt.List()
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Error("runs not sorted newest first")
		}
	}
}
