package server

import (
	"context"
	"log"
	"time"

	"quick-share/internal/share"
)

// Sweeper removes expired and abandoned batches.
type Sweeper interface {
	Sweep(ctx context.Context) (share.SweepReport, error)
}

// CleanupConfig holds configuration for the cleanup job
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	Sweeper  Sweeper
}

// StartCleanupJob sweeps once, then every Interval until ctx is done. It
// blocks; run it in its own goroutine.
func StartCleanupJob(ctx context.Context, cfg CleanupConfig) {
	if !cfg.Enabled || cfg.Sweeper == nil {
		log.Printf("service=cleanup msg=%q", "disabled")
		return
	}

	log.Printf("service=cleanup msg=%q interval=%s", "starting", cfg.Interval)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runCleanup(ctx, cfg.Sweeper)

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=cleanup msg=%q", "shutting_down")
			return
		case <-ticker.C:
			runCleanup(ctx, cfg.Sweeper)
		}
	}
}

func runCleanup(ctx context.Context, s Sweeper) {
	start := time.Now()

	report, err := s.Sweep(ctx)
	GetMetrics().RecordSweep(report.Batches, report.Objects, err)
	if err != nil {
		log.Printf("service=cleanup msg=%q batches=%d objects=%d err=%v",
			"cleanup_partial", report.Batches, report.Objects, err)
		return
	}

	log.Printf("service=cleanup msg=%q batches=%d objects=%d duration_ms=%d",
		"cleanup_complete", report.Batches, report.Objects, time.Since(start).Milliseconds())
}
