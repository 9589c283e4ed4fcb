// Command reconcile performs a full reconciliation run from the command
// line: it recreates the ledger, then applies each day's extract file in
// order, printing a summary per batch.
//
// Usage:
//
//	reconcile [-dir extracts] [-keep] Day1.txt Day2.txt Day3.txt
//
// Files are resolved against -dir unless given as absolute paths. By
// default the ledger is dropped and recreated first (a full run from
// baseline); -keep skips that and applies the batches to the existing
// ledger instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rbergman/daybook/internal/config"
	"github.com/rbergman/daybook/internal/ledger"
	"github.com/rbergman/daybook/internal/logging"
	"github.com/rbergman/daybook/internal/recon"
)

func main() {
	var (
		dir  = flag.String("dir", "", "directory holding the extract files (default: BATCH_EXTRACT_DIR)")
		keep = flag.Bool("keep", false, "apply to the existing ledger instead of recreating it")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: reconcile [-dir extracts] [-keep] FILE...")
		os.Exit(2)
	}

	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	extractDir := *dir
	if extractDir == "" {
		extractDir = cfg.Batch.ExtractDir
	}

	if err := run(cfg, extractDir, *keep, flag.Args()); err != nil {
		slog.Error("reconciliation run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, extractDir string, keep bool, files []string) error {
	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	store := ledger.NewPostgres(pool)
	service := recon.NewService(store, recon.Options{
		MaxConcurrentRuns: cfg.Batch.MaxConcurrentRuns,
		RunWaitTime:       cfg.Batch.RunWaitTime,
		RunTimeout:        cfg.Batch.RunTimeout,
	})

	if !keep {
		if err := service.Reset(ctx); err != nil {
			return fmt.Errorf("recreate ledger: %w", err)
		}
	}

	for _, name := range files {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(extractDir, name)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open extract %s: %w", name, err)
		}

		label := trimExt(filepath.Base(name))
		run, err := service.RunBatch(ctx, label, filepath.Base(path), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("batch %s: %w", label, err)
		}

		slog.Info("batch applied",
			"label", run.Label,
			"records", run.Records,
			"inserted", run.Inserted,
			"retired", run.Retired,
			"baseline", run.Baseline,
		)
	}

	rows, err := store.AllRows(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	active := 0
	for _, row := range rows {
		if row.Active {
			active++
		}
	}
	slog.Info("reconciliation run complete", "rows", len(rows), "active", active)
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
