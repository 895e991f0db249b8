package share

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// SweepStore is the object store surface the sweeper needs.
type SweepStore interface {
	PrefixRemover
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Batches int
	Objects int
}

// Sweeper reclaims batches that expired and batches abandoned before
// completion. It is only run when explicitly enabled; expiry is otherwise
// enforced at read time.
type Sweeper struct {
	store SweepStore
	index SweepIndex
	grace time.Duration
	limit int
	now   func() time.Time
}

func NewSweeper(store SweepStore, index SweepIndex, grace time.Duration, limit int) *Sweeper {
	if limit <= 0 {
		limit = 100
	}
	return &Sweeper{store: store, index: index, grace: grace, limit: limit, now: time.Now}
}

// Sweep deletes one page of expired and stale batches. Failures on one
// batch do not stop the others; they are returned together.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	var result *multierror.Error

	now := s.now()
	expired, err := s.index.ExpiredBatches(ctx, now, s.limit)
	if err != nil {
		return report, fmt.Errorf("list expired batches: %w", err)
	}
	stale, err := s.index.StaleBatches(ctx, now.Add(-s.grace), s.limit)
	if err != nil {
		return report, fmt.Errorf("list stale batches: %w", err)
	}

	done := make(map[string]bool, len(expired)+len(stale))
	for _, b := range append(expired, stale...) {
		if done[b.ShareID] {
			continue
		}
		done[b.ShareID] = true

		n, err := s.store.RemovePrefix(ctx, b.ShareID+"/")
		report.Objects += n
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("remove objects of %s: %w", b.ShareID, err))
			continue
		}
		if err := s.index.DeleteBatch(ctx, b.ShareID); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete batch %s: %w", b.ShareID, err))
			continue
		}
		report.Batches++
	}
	return report, result.ErrorOrNil()
}
