package recon

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rbergman/daybook/internal/ledger"
)

// extractLine builds a full-width extract line with the three key fields
// filled in and everything else blank.
func extractLine(tx, cust, prod string) string {
	line := []byte(strings.Repeat(" ", 149))
	copy(line[0:], tx)
	copy(line[6:], cust)
	copy(line[37:], prod)
	return string(line)
}

func TestRunBatch(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	svc := NewService(store, Options{})

	input := extractLine("TX0001", "CU0001", "PRD001") + "\n" +
		extractLine("TX0002", "CU0002", "PRD002") + "\n"

	run, err := svc.RunBatch(ctx, "Day1", "Day1.txt", strings.NewReader(input))
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if run.ID == "" {
		t.Error("run should carry an ID")
	}
	if run.Label != "Day1" || run.FileName != "Day1.txt" {
		t.Errorf("run identity = %q/%q, want Day1/Day1.txt", run.Label, run.FileName)
	}
	if run.Records != 2 || run.Inserted != 2 || run.Retired != 0 {
		t.Errorf("run counts = %+v, want 2 records, 2 inserted, 0 retired", run)
	}
	if !run.Baseline {
		t.Error("first batch must be a baseline load")
	}
	if run.Error != "" {
		t.Errorf("run.Error = %q, want empty", run.Error)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Error("FinishedAt precedes StartedAt")
	}

	rows, _ := store.AllRows(ctx)
	if len(rows) != 2 {
		t.Errorf("ledger has %d rows, want 2", len(rows))
	}
}

func TestRunBatch_SecondDaySupersedes(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	svc := NewService(store, Options{})

	day1 := extractLine("TX0001", "CU0001", "PRD001") + "\n"
	if _, err := svc.RunBatch(ctx, "Day1", "Day1.txt", strings.NewReader(day1)); err != nil {
		t.Fatalf("Day1 error = %v", err)
	}

	day2 := extractLine("TX0001", "CU0001", "PRD001") + "\n" +
		extractLine("TX0009", "CU0009", "PRD009") + "\n"
	run, err := svc.RunBatch(ctx, "Day2", "Day2.txt", strings.NewReader(day2))
	if err != nil {
		t.Fatalf("Day2 error = %v", err)
	}

	if run.Baseline {
		t.Error("second batch must not be a baseline")
	}
	if run.Inserted != 2 || run.Retired != 1 {
		t.Errorf("run counts = inserted %d retired %d, want 2/1", run.Inserted, run.Retired)
	}

	active, _ := store.ActiveRows(ctx)
	if len(active) != 2 {
		t.Errorf("active rows = %d, want 2", len(active))
	}
}

func TestRunBatch_RecordsHistory(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	svc := NewService(store, Options{})

	input := extractLine("TX0001", "CU0001", "PRD001") + "\n"
	run, err := svc.RunBatch(ctx, "Day1", "Day1.txt", strings.NewReader(input))
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	history, err := svc.RunHistory(ctx, 10)
	if err != nil {
		t.Fatalf("RunHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].ID != run.ID {
		t.Errorf("history run ID = %q, want %q", history[0].ID, run.ID)
	}
}

func TestRunBatch_FailureRecordedInHistory(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	store := &failingStorage{Memory: mem, failAfter: 0}
	svc := NewService(store, Options{})

	input := extractLine("TX0001", "CU0001", "PRD001") + "\n"
	run, err := svc.RunBatch(ctx, "Day1", "Day1.txt", strings.NewReader(input))
	if err == nil {
		t.Fatal("RunBatch() expected error")
	}
	if run.Error == "" {
		t.Error("failed run should carry the error message")
	}

	history, _ := svc.RunHistory(ctx, 10)
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Error == "" {
		t.Error("history entry should record the failure")
	}

	rows, _ := mem.AllRows(ctx)
	if len(rows) != 0 {
		t.Errorf("failed batch leaked %d rows", len(rows))
	}
}

// failingStorage adds run history on top of failingStore.
type failingStorage struct {
	*ledger.Memory
	failAfter int
}

func (f *failingStorage) Batch(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	return f.Memory.Batch(ctx, func(ctx context.Context, tx ledger.Store) error {
		return fn(ctx, &failingTx{Store: tx, failAfter: f.failAfter})
	})
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	svc := NewService(store, Options{})

	input := extractLine("TX0001", "CU0001", "PRD001") + "\n"
	if _, err := svc.RunBatch(ctx, "Day1", "Day1.txt", strings.NewReader(input)); err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	rows, _ := svc.Rows(ctx, false)
	if len(rows) != 0 {
		t.Errorf("ledger has %d rows after Reset, want 0", len(rows))
	}

	// the next batch is a baseline again
	run, err := svc.RunBatch(ctx, "Day1", "Day1.txt", strings.NewReader(input))
	if err != nil {
		t.Fatalf("RunBatch() after Reset error = %v", err)
	}
	if !run.Baseline {
		t.Error("first batch after Reset must be a baseline load")
	}
}

func TestService_Rows(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	svc := NewService(store, Options{})

	day1 := extractLine("TX0001", "CU0001", "PRD001") + "\n"
	svc.RunBatch(ctx, "Day1", "Day1.txt", strings.NewReader(day1))
	svc.RunBatch(ctx, "Day2", "Day2.txt", strings.NewReader(day1))

	all, err := svc.Rows(ctx, false)
	if err != nil {
		t.Fatalf("Rows(all) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all rows = %d, want 2", len(all))
	}

	active, err := svc.Rows(ctx, true)
	if err != nil {
		t.Fatalf("Rows(active) error = %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active rows = %d, want 1", len(active))
	}
}

func TestRunGate_Serializes(t *testing.T) {
	g := newRunGate(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := g.acquire(ctx); err != nil {
		t.Fatalf("first acquire error = %v", err)
	}
	if g.activeCount() != 1 {
		t.Errorf("activeCount = %d, want 1", g.activeCount())
	}

	err := g.acquire(ctx)
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second acquire error = %v, want ErrRunInProgress", err)
	}

	g.release()
	if g.activeCount() != 0 {
		t.Errorf("activeCount = %d after release, want 0", g.activeCount())
	}

	if err := g.acquire(ctx); err != nil {
		t.Fatalf("acquire after release error = %v", err)
	}
	g.release()
}

func TestRunGate_AcquireHonorsContext(t *testing.T) {
	g := newRunGate(1, time.Minute)
	ctx := context.Background()

	if err := g.acquire(ctx); err != nil {
		t.Fatalf("acquire error = %v", err)
	}
	defer g.release()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := g.acquire(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("acquire with cancelled context = %v, want context.Canceled", err)
	}
}

func TestRunGate_WaitForDrain(t *testing.T) {
	g := newRunGate(1, time.Second)
	ctx := context.Background()

	if err := g.acquire(ctx); err != nil {
		t.Fatalf("acquire error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		done <- g.waitForDrain(drainCtx)
	}()

	time.Sleep(150 * time.Millisecond)
	g.release()

	if err := <-done; err != nil {
		t.Fatalf("waitForDrain error = %v", err)
	}
}
