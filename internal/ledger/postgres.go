package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgx operations the store needs.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	activeYes = "Y"
	activeNo  = "N"
)

// Postgres is the PostgreSQL ledger driver. It implements Store and
// RunStore. All writes are parameterized; the column list comes from the
// schema bindings, never from a hand-maintained positional list.
type Postgres struct {
	db   DB
	pool *pgxpool.Pool // nil when scoped to a transaction
}

// NewPostgres returns a ledger store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool, pool: pool}
}

// insertRowSQL and selectRowSQL are derived from the schema bindings once
// at package init.
var (
	insertRowSQL string
	selectRowSQL string
)

func init() {
	cols := ColumnNames()
	params := make([]string, len(cols)+1)
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	params[len(cols)] = fmt.Sprintf("$%d", len(cols)+1)

	insertRowSQL = fmt.Sprintf(
		"INSERT INTO ledger_rows (%s, active) VALUES (%s) RETURNING sequence",
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
	selectRowSQL = fmt.Sprintf(
		"SELECT sequence, active, %s FROM ledger_rows",
		strings.Join(cols, ", "),
	)
}

// Init drops and recreates the ledger and run-history tables.
func (s *Postgres) Init(ctx context.Context) error {
	stmts := []string{
		`DROP TABLE IF EXISTS ledger_rows`,
		`DROP TABLE IF EXISTS batch_runs`,
		`CREATE TABLE ledger_rows (
			sequence BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			transaction_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_addr_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			product_price TEXT NOT NULL,
			product_quantity TEXT NOT NULL,
			status TEXT NOT NULL,
			transaction_timestamp TEXT NOT NULL,
			ordered_date TEXT NOT NULL,
			shipment_date TEXT NOT NULL,
			delivered_date TEXT NOT NULL,
			active CHAR(1) NOT NULL DEFAULT 'Y'
		)`,
		`CREATE INDEX idx_ledger_rows_key_active
			ON ledger_rows (transaction_id, customer_id, product_id)
			WHERE active = 'Y'`,
		`CREATE TABLE batch_runs (
			id UUID PRIMARY KEY,
			label TEXT NOT NULL,
			file_name TEXT,
			records INTEGER NOT NULL,
			inserted INTEGER NOT NULL,
			retired INTEGER NOT NULL,
			baseline BOOLEAN NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			error_message TEXT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init ledger: %w", err)
		}
	}
	return nil
}

// Empty reports whether the ledger holds no rows at all.
func (s *Postgres) Empty(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM ledger_rows`).Scan(&n); err != nil {
		return false, fmt.Errorf("count ledger rows: %w", err)
	}
	return n == 0, nil
}

// InsertActive appends a new active row and returns its sequence number.
func (s *Postgres) InsertActive(ctx context.Context, rec Record) (int64, error) {
	args := make([]any, 0, len(recordColumns)+1)
	for _, c := range recordColumns {
		args = append(args, *c.Ref(&rec))
	}
	args = append(args, activeYes)

	var seq int64
	if err := s.db.QueryRow(ctx, insertRowSQL, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("insert ledger row: %w", err)
	}
	return seq, nil
}

// Retire flips the row's active indicator to N. Retiring a row that is
// already retired is a no-op; a sequence number with no row at all reports
// ErrNotFound. A batch holding duplicate business keys retires the same
// matched row once per duplicate, so the second flip must not fail.
func (s *Postgres) Retire(ctx context.Context, seq int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE ledger_rows SET active = $1 WHERE sequence = $2`,
		activeNo, seq,
	)
	if err != nil {
		return fmt.Errorf("retire sequence %d: %w", seq, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("retire sequence %d: %w", seq, ErrNotFound)
	}
	return nil
}

// Snapshot returns the active rows keyed by business key. Rows are scanned
// in ascending sequence order and the first row per key wins.
func (s *Postgres) Snapshot(ctx context.Context) (map[Key]Row, error) {
	rows, err := s.queryRows(ctx, selectRowSQL+` WHERE active = 'Y' ORDER BY sequence`)
	if err != nil {
		return nil, err
	}

	snap := make(map[Key]Row, len(rows))
	for _, row := range rows {
		if _, seen := snap[row.Key()]; !seen {
			snap[row.Key()] = row
		}
	}
	return snap, nil
}

// AllRows returns every ledger row in ascending sequence order.
func (s *Postgres) AllRows(ctx context.Context) ([]Row, error) {
	return s.queryRows(ctx, selectRowSQL+` ORDER BY sequence`)
}

// ActiveRows returns the active rows in ascending sequence order.
func (s *Postgres) ActiveRows(ctx context.Context) ([]Row, error) {
	return s.queryRows(ctx, selectRowSQL+` WHERE active = 'Y' ORDER BY sequence`)
}

// queryRows runs a row query and maps results back by column name, so the
// mapping stays correct regardless of the physical column order.
func (s *Postgres) queryRows(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger rows: %w", err)
	}
	defer rows.Close()

	names := make([]string, len(rows.FieldDescriptions()))
	for i, fd := range rows.FieldDescriptions() {
		names[i] = fd.Name
	}

	var out []Row
	for rows.Next() {
		var (
			row    Row
			active string
		)
		dests := make([]any, len(names))
		refs := columnRefs(&row.Record, names)
		for i, name := range names {
			switch name {
			case "sequence":
				dests[i] = &row.Sequence
			case "active":
				dests[i] = &active
			default:
				dests[i] = refs[i]
			}
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		row.Active = active == activeYes
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ledger rows: %w", err)
	}
	return out, nil
}

// Batch runs fn inside a single database transaction. A nested call on an
// already transaction-scoped store runs fn directly.
func (s *Postgres) Batch(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &Postgres{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// RecordRun appends one reconciliation run to the history table.
func (s *Postgres) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO batch_runs
			(id, label, file_name, records, inserted, retired, baseline, started_at, finished_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID,
		run.Label,
		toPgText(run.FileName),
		run.Records,
		run.Inserted,
		run.Retired,
		run.Baseline,
		run.StartedAt,
		run.FinishedAt,
		toPgText(run.Error),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, most recent first.
func (s *Postgres) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, label, file_name, records, inserted, retired, baseline, started_at, finished_at, error_message
		FROM batch_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run      Run
			fileName pgtype.Text
			errMsg   pgtype.Text
		)
		if err := rows.Scan(
			&run.ID, &run.Label, &fileName,
			&run.Records, &run.Inserted, &run.Retired, &run.Baseline,
			&run.StartedAt, &run.FinishedAt, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.FileName = fileName.String
		run.Error = errMsg.String
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return out, nil
}

// PruneRuns deletes runs that finished before cutoff.
func (s *Postgres) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM batch_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// toPgText maps an optional string to a nullable text value.
func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
