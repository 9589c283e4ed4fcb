package recon

// scheduler.go prunes old run-history entries in the background.
//
// Ledger rows are never deleted, but run history is operational telemetry
// and grows with every batch. The scheduler removes runs older than the
// configured retention, running once at start and then on a fixed
// interval until the context is cancelled. Individual prune failures are
// logged and do not stop the scheduler.

import (
	"context"
	"log/slog"
	"time"
)

// HistoryConfig holds run-history retention settings.
type HistoryConfig struct {
	RetentionDays int           // days of run history to keep (default: 90)
	CheckInterval time.Duration // how often to prune (default: 24h)
}

// StartPruneScheduler periodically prunes run history until ctx is
// cancelled.
func (s *Service) StartPruneScheduler(ctx context.Context, cfg HistoryConfig) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	slog.Info("run-history prune scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	s.pruneRuns(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("run-history prune scheduler stopped")
			return
		case <-ticker.C:
			s.pruneRuns(ctx, cfg)
		}
	}
}

func (s *Service) pruneRuns(ctx context.Context, cfg HistoryConfig) {
	cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)
	start := time.Now()

	pruned, err := s.store.PruneRuns(ctx, cutoff)
	if err != nil {
		slog.Error("run-history prune failed", "error", err)
		return
	}
	if pruned > 0 {
		slog.Info("pruned run history",
			"runs_pruned", pruned,
			"cutoff", cutoff.Format(time.RFC3339),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
