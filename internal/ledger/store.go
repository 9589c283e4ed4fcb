package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a retirement targets a sequence number
// with no row behind it.
var ErrNotFound = errors.New("ledger row not found")

// Store is the contract for ledger persistence.
//
// Implementations must serialize Snapshot, InsertActive, and Retire
// relative to each other within a single batch. Rows are never deleted;
// Retire only flips the active indicator.
type Store interface {
	// Init recreates an empty ledger, discarding any prior contents.
	// Called once at the start of a full reconciliation run, not per batch.
	Init(ctx context.Context) error

	// Empty reports whether the ledger holds no rows at all, active or
	// retired.
	Empty(ctx context.Context) (bool, error)

	// Snapshot returns the active rows keyed by business key as of the
	// call. When more than one active row exists for a key (a documented
	// anomaly of duplicate keys within one batch), the lowest-sequence row
	// wins, matching the original scan order.
	Snapshot(ctx context.Context) (map[Key]Row, error)

	// InsertActive appends a new active row for rec and returns the
	// assigned sequence number.
	InsertActive(ctx context.Context, rec Record) (int64, error)

	// Retire flips the active indicator of the row with the given sequence
	// number to N. Retiring an already-retired row is a no-op; a sequence
	// with no row reports ErrNotFound.
	Retire(ctx context.Context, seq int64) error

	// AllRows returns every ledger row in ascending sequence order.
	AllRows(ctx context.Context) ([]Row, error)

	// ActiveRows returns the active rows in ascending sequence order.
	ActiveRows(ctx context.Context) ([]Row, error)

	// Batch runs fn against a store handle scoped to one transactional
	// boundary. All writes made through the handle become visible together
	// when fn returns nil, and are discarded when it returns an error, on
	// backends that support atomic batches.
	Batch(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Run is one recorded reconciliation run.
type Run struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	FileName   string    `json:"fileName,omitempty"`
	Records    int       `json:"records"`
	Inserted   int       `json:"inserted"`
	Retired    int       `json:"retired"`
	Baseline   bool      `json:"baseline"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}

// RunStore records and queries reconciliation run history. Both ledger
// drivers implement it alongside Store.
type RunStore interface {
	// RecordRun appends one run to the history.
	RecordRun(ctx context.Context, run Run) error

	// Runs returns up to limit runs, most recent first.
	Runs(ctx context.Context, limit int) ([]Run, error)

	// PruneRuns deletes runs that finished before cutoff and returns the
	// number removed. Run history is operational telemetry, not ledger
	// state; pruning it does not violate the append-only contract.
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}
