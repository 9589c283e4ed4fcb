// Package recon implements the per-batch reconciliation of daily extract
// batches against the versioned ledger.
package recon

import (
	"context"
	"fmt"

	"github.com/rbergman/daybook/internal/extract"
	"github.com/rbergman/daybook/internal/ledger"
)

// Result summarizes the writes applied for one batch.
type Result struct {
	Records  int  `json:"records"`
	Inserted int  `json:"inserted"`
	Retired  int  `json:"retired"`
	Baseline bool `json:"baseline"`
}

// RecordError reports the record that caused a batch to fail, by position
// within the batch and by business key, so the operator can correct the
// input and re-run.
type RecordError struct {
	Position int // 1-based position within the batch
	Key      ledger.Key
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (transaction %q, customer %q, product %q): %v",
		e.Position, e.Key.TransactionID, e.Key.CustomerID, e.Key.ProductID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Engine applies batches to a ledger store.
type Engine struct {
	store ledger.Store
}

// NewEngine returns an engine bound to the given store.
func NewEngine(store ledger.Store) *Engine {
	return &Engine{store: store}
}

// Apply reconciles one batch against the ledger inside a single
// transactional boundary.
//
// The very first batch against an empty ledger is a baseline load: every
// record is inserted directly as a new active row. Otherwise one snapshot
// of the active rows is taken at the start of the batch and each record is
// matched against it by business key: a match retires the snapshot row and
// inserts the incoming record as its superseding version; a miss inserts
// the record directly. Only the three key fields are compared, so a
// byte-identical resubmission still produces a retirement and a new row.
//
// The snapshot is not refreshed as the batch is processed. A batch holding
// two records with the same business key therefore matches both against
// the pre-batch row, leaving two active rows for that key afterwards. That
// is a documented consequence of the snapshot-once design, not a defect to
// repair here.
func (e *Engine) Apply(ctx context.Context, batch extract.Batch) (Result, error) {
	var res Result
	res.Records = len(batch)

	err := e.store.Batch(ctx, func(ctx context.Context, tx ledger.Store) error {
		empty, err := tx.Empty(ctx)
		if err != nil {
			return err
		}

		if empty {
			// Baseline load: no key lookup, no retirements.
			res.Baseline = true
			for i, rec := range batch {
				if _, err := tx.InsertActive(ctx, rec); err != nil {
					return &RecordError{Position: i + 1, Key: rec.Key(), Err: err}
				}
				res.Inserted++
			}
			return nil
		}

		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}

		for i, rec := range batch {
			if match, ok := snap[rec.Key()]; ok {
				if err := tx.Retire(ctx, match.Sequence); err != nil {
					return &RecordError{Position: i + 1, Key: rec.Key(), Err: err}
				}
				res.Retired++
			}
			if _, err := tx.InsertActive(ctx, rec); err != nil {
				return &RecordError{Position: i + 1, Key: rec.Key(), Err: err}
			}
			res.Inserted++
		}
		return nil
	})

	return res, err
}
