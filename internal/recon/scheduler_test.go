package recon

import (
	"context"
	"testing"
	"time"

	"github.com/rbergman/daybook/internal/ledger"
)

func TestPruneRuns(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	svc := NewService(store, Options{})

	now := time.Now().UTC()
	store.RecordRun(ctx, ledger.Run{ID: "ancient", FinishedAt: now.AddDate(0, 0, -120)})
	store.RecordRun(ctx, ledger.Run{ID: "recent", FinishedAt: now.AddDate(0, 0, -1)})

	svc.pruneRuns(ctx, HistoryConfig{RetentionDays: 90})

	runs, _ := store.Runs(ctx, 10)
	if len(runs) != 1 {
		t.Fatalf("runs after prune = %d, want 1", len(runs))
	}
	if runs[0].ID != "recent" {
		t.Errorf("surviving run = %q, want recent", runs[0].ID)
	}
}

func TestStartPruneScheduler_StopsOnCancel(t *testing.T) {
	store := ledger.NewMemory()
	svc := NewService(store, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartPruneScheduler(ctx, HistoryConfig{RetentionDays: 90, CheckInterval: time.Hour})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
