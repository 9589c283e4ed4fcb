package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory ledger driver implementing Store and RunStore.
// It backs tests and embedded use; semantics match the Postgres driver,
// including atomic per-batch visibility (Batch applies writes to a shadow
// copy and swaps it in on success).
type Memory struct {
	mu      sync.RWMutex
	rows    []Row
	nextSeq int64
	runs    []Run
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{nextSeq: 1}
}

// shadow is a transaction-scoped view over copied state. It implements
// Store without locking; the owning Memory holds the lock for the whole
// batch.
type shadow struct {
	rows    []Row
	nextSeq int64
}

func (s *shadow) Init(ctx context.Context) error {
	s.rows = nil
	s.nextSeq = 1
	return nil
}

func (s *shadow) Empty(ctx context.Context) (bool, error) {
	return len(s.rows) == 0, nil
}

func (s *shadow) Snapshot(ctx context.Context) (map[Key]Row, error) {
	return snapshotRows(s.rows), nil
}

func (s *shadow) InsertActive(ctx context.Context, rec Record) (int64, error) {
	seq := s.nextSeq
	s.nextSeq++
	s.rows = append(s.rows, Row{Sequence: seq, Record: rec, Active: true})
	return seq, nil
}

func (s *shadow) Retire(ctx context.Context, seq int64) error {
	for i := range s.rows {
		if s.rows[i].Sequence == seq {
			s.rows[i].Active = false
			return nil
		}
	}
	return fmt.Errorf("retire sequence %d: %w", seq, ErrNotFound)
}

func (s *shadow) AllRows(ctx context.Context) ([]Row, error) {
	return append([]Row(nil), s.rows...), nil
}

func (s *shadow) ActiveRows(ctx context.Context) ([]Row, error) {
	var out []Row
	for _, row := range s.rows {
		if row.Active {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *shadow) Batch(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, s)
}

// snapshotRows builds the active-row map. Rows are kept in sequence order,
// so the first active row per key wins.
func snapshotRows(rows []Row) map[Key]Row {
	snap := make(map[Key]Row)
	for _, row := range rows {
		if !row.Active {
			continue
		}
		if _, seen := snap[row.Key()]; !seen {
			snap[row.Key()] = row
		}
	}
	return snap
}

// Init recreates an empty ledger.
func (m *Memory) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	m.nextSeq = 1
	m.runs = nil
	return nil
}

// Empty reports whether the ledger holds no rows at all.
func (m *Memory) Empty(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows) == 0, nil
}

// Snapshot returns the active rows keyed by business key.
func (m *Memory) Snapshot(ctx context.Context) (map[Key]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshotRows(m.rows), nil
}

// InsertActive appends a new active row and returns its sequence number.
func (m *Memory) InsertActive(ctx context.Context, rec Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.nextSeq
	m.nextSeq++
	m.rows = append(m.rows, Row{Sequence: seq, Record: rec, Active: true})
	return seq, nil
}

// Retire flips the row's active indicator. Already-retired rows are a
// no-op; a missing sequence reports ErrNotFound.
func (m *Memory) Retire(ctx context.Context, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].Sequence == seq {
			m.rows[i].Active = false
			return nil
		}
	}
	return fmt.Errorf("retire sequence %d: %w", seq, ErrNotFound)
}

// AllRows returns every ledger row in ascending sequence order.
func (m *Memory) AllRows(ctx context.Context) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Row(nil), m.rows...), nil
}

// ActiveRows returns the active rows in ascending sequence order.
func (m *Memory) ActiveRows(ctx context.Context) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Row
	for _, row := range m.rows {
		if row.Active {
			out = append(out, row)
		}
	}
	return out, nil
}

// Batch applies fn to a shadow copy of the ledger and swaps the copy in
// only when fn succeeds, giving all-or-nothing visibility per batch.
func (m *Memory) Batch(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sh := &shadow{
		rows:    append([]Row(nil), m.rows...),
		nextSeq: m.nextSeq,
	}
	if err := fn(ctx, sh); err != nil {
		return err
	}

	m.rows = sh.rows
	m.nextSeq = sh.nextSeq
	return nil
}

// RecordRun appends one reconciliation run to the history.
func (m *Memory) RecordRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// Runs returns up to limit runs, most recent first.
func (m *Memory) Runs(ctx context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]Run(nil), m.runs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneRuns deletes runs that finished before cutoff.
func (m *Memory) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.runs[:0]
	var pruned int64
	for _, run := range m.runs {
		if run.FinishedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, run)
	}
	m.runs = kept
	return pruned, nil
}
