package recon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rbergman/daybook/internal/extract"
	"github.com/rbergman/daybook/internal/ledger"
)

// Storage is the persistence surface the service needs: the ledger itself
// plus run history. Both ledger drivers satisfy it.
type Storage interface {
	ledger.Store
	ledger.RunStore
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	MaxConcurrentRuns int           // gate width, default 1 (single writer)
	RunWaitTime       time.Duration // how long to wait for the gate
	RunTimeout        time.Duration // per-run deadline, default 10m
}

// DefaultRunTimeout bounds a single batch run.
const DefaultRunTimeout = 10 * time.Minute

// Service glues batch loading, the engine, the run gate, and run history.
// It is the entry point for both the HTTP handlers and the CLI.
type Service struct {
	store      Storage
	engine     *Engine
	gate       *runGate
	runTimeout time.Duration
}

// NewService returns a service over the given storage.
func NewService(store Storage, opts Options) *Service {
	timeout := opts.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Service{
		store:      store,
		engine:     NewEngine(store),
		gate:       newRunGate(opts.MaxConcurrentRuns, opts.RunWaitTime),
		runTimeout: timeout,
	}
}

// RunBatch loads one day's extract and reconciles it against the ledger.
//
// Loading errors abort before any write: no partial batch reaches the
// engine. Engine errors surface with the failing record's position and
// business key; writes already committed for earlier batches stay in
// effect and re-running the corrected batch is the caller's remedy. The
// run is recorded in history either way.
func (s *Service) RunBatch(ctx context.Context, label, fileName string, src io.Reader) (ledger.Run, error) {
	if err := s.gate.acquire(ctx); err != nil {
		return ledger.Run{}, err
	}
	defer s.gate.release()

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	run := ledger.Run{
		ID:        uuid.New().String(),
		Label:     label,
		FileName:  fileName,
		StartedAt: time.Now().UTC(),
	}

	batch, err := extract.ReadBatch(src)
	if err != nil {
		return s.finishRun(ctx, run, Result{}, fmt.Errorf("load batch %s: %w", label, err))
	}
	run.Records = len(batch)

	res, err := s.engine.Apply(runCtx, batch)
	return s.finishRun(ctx, run, res, err)
}

// finishRun stamps the outcome onto the run, records it, and returns it
// alongside the original error.
func (s *Service) finishRun(ctx context.Context, run ledger.Run, res Result, runErr error) (ledger.Run, error) {
	run.Inserted = res.Inserted
	run.Retired = res.Retired
	run.Baseline = res.Baseline
	run.FinishedAt = time.Now().UTC()
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if err := s.store.RecordRun(ctx, run); err != nil {
		// History is telemetry; a failed write must not mask the run outcome.
		slog.Error("failed to record run", "run_id", run.ID, "label", run.Label, "error", err)
	}

	if runErr != nil {
		return run, runErr
	}
	slog.Info("batch reconciled",
		"run_id", run.ID,
		"label", run.Label,
		"records", run.Records,
		"inserted", run.Inserted,
		"retired", run.Retired,
		"baseline", run.Baseline,
		"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	)
	return run, nil
}

// Reset drops and recreates the ledger. Used once at the start of a full
// reconciliation run over all days.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.gate.acquire(ctx); err != nil {
		return err
	}
	defer s.gate.release()

	slog.Warn("recreating ledger, all prior contents discarded")
	return s.store.Init(ctx)
}

// Rows returns ledger rows in ascending sequence order, all versions or
// active only.
func (s *Service) Rows(ctx context.Context, activeOnly bool) ([]ledger.Row, error) {
	if activeOnly {
		return s.store.ActiveRows(ctx)
	}
	return s.store.AllRows(ctx)
}

// RunHistory returns up to limit recorded runs, most recent first.
func (s *Service) RunHistory(ctx context.Context, limit int) ([]ledger.Run, error) {
	return s.store.Runs(ctx, limit)
}

// ActiveRuns reports how many batch runs hold the gate right now.
func (s *Service) ActiveRuns() int {
	return s.gate.activeCount()
}

// WaitForRuns blocks until in-flight batch runs complete, for graceful
// shutdown.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.gate.waitForDrain(ctx)
}
