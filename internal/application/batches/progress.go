package batches

import (
	"context"
	"math"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

// Progress derives a monitoring snapshot from persisted state. Read-only and
// callable mid-run; the counts come from one aggregate query, so the view is
// internally consistent even while items are moving.
func (s *Service) Progress(ctx context.Context, id domain.BatchID) (domain.Progress, error) {
	batch, err := s.Repo.GetBatch(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}

	counts, err := s.Repo.ItemStatusCounts(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}

	total := counts.Total()
	percent := 0
	if total > 0 {
		done := counts.Completed + counts.Failed
		percent = int(math.Round(float64(done) / float64(total) * 100))
	}

	return domain.Progress{
		BatchID:         batch.ID,
		Status:          batch.Status,
		TotalItems:      total,
		PendingItems:    counts.Pending,
		RunningItems:    counts.Running,
		CompletedItems:  counts.Completed,
		FailedItems:     counts.Failed,
		PercentComplete: percent,
		StartedAt:       batch.StartedAt,
		CompletedAt:     batch.CompletedAt,
	}, nil
}
