package batches

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

// itemResult is the serialized result payload stored on a completed item.
type itemResult struct {
	Summary       string                `json:"summary"`
	FindingsCount int                   `json:"findings_count"`
	Severity      domain.SeverityCounts `json:"severity"`
}

// processItem runs one item end to end: mark running, analyze, persist
// findings, then the terminal write. Every failure path ends in a failed
// outcome, never a returned error; the scheduler depends on that.
func (s *Service) processItem(ctx context.Context, batch *domain.Batch, item *domain.BatchItem) domain.ItemOutcome {
	// Safety net against double-processing: PendingItems should never hand
	// us a terminal item, but refuse to reprocess one if it does.
	if item.Status.Terminal() {
		return domain.ItemOutcome{
			ItemID: item.ID,
			Order:  item.Order,
			Status: item.Status,
			Error:  item.ErrorMessage,
		}
	}

	started := s.Clock.Now()

	// The running write lands before the analyzer call so a crash mid-run
	// leaves a durable running row, not a silently stuck pending one.
	if err := s.Repo.MarkItemRunning(ctx, item.ID, started); err != nil {
		return s.failItem(ctx, item, started, fmt.Errorf("marking item running: %w", err))
	}

	analysis, err := s.analyze(ctx, batch, item)
	if err != nil {
		return s.failItem(ctx, item, started, err)
	}

	// Findings are persisted before the terminal write so they stay
	// traceable to the item even if the completion write fails.
	if len(analysis.Findings) > 0 {
		now := s.Clock.Now()
		for _, f := range analysis.Findings {
			f.ID = uuid.New().String()
			f.ItemID = item.ID
			f.CreatedAt = now
		}
		if err := s.Repo.SaveFindings(ctx, item.ID, analysis.Findings); err != nil {
			return s.failItem(ctx, item, started, fmt.Errorf("saving findings: %w", err))
		}
	}

	var severity domain.SeverityCounts
	for _, f := range analysis.Findings {
		severity.Add(f.Severity)
	}
	payload, err := json.Marshal(itemResult{
		Summary:       analysis.Summary,
		FindingsCount: len(analysis.Findings),
		Severity:      severity,
	})
	if err != nil {
		return s.failItem(ctx, item, started, fmt.Errorf("serializing result: %w", err))
	}

	completed := s.Clock.Now()
	duration := completed.Sub(started).Milliseconds()
	if err := s.Repo.CompleteItem(ctx, item.ID, payload, duration, completed); err != nil {
		return s.failItem(ctx, item, started, fmt.Errorf("completing item: %w", err))
	}

	return domain.ItemOutcome{
		ItemID:     item.ID,
		Order:      item.Order,
		Status:     domain.ItemCompleted,
		DurationMS: duration,
	}
}

// analyze invokes the external analyzer under the per-item deadline. A
// timeout surfaces as an ordinary analyzer failure.
func (s *Service) analyze(ctx context.Context, batch *domain.Batch, item *domain.BatchItem) (*domain.Analysis, error) {
	if s.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ItemTimeout)
		defer cancel()
	}
	analysis, err := s.Analyzer.Analyze(ctx, item, batch.Type)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	if analysis == nil {
		analysis = &domain.Analysis{}
	}
	return analysis, nil
}

// failItem records the failure durably (best-effort) and returns the failed
// outcome the scheduler expects.
func (s *Service) failItem(ctx context.Context, item *domain.BatchItem, started time.Time, cause error) domain.ItemOutcome {
	completed := s.Clock.Now()
	duration := completed.Sub(started).Milliseconds()
	msg := cause.Error()

	// If even this write fails, the item stays in whatever state was last
	// durable; reconciliation of those rows is outside this engine.
	_ = s.Repo.FailItem(ctx, item.ID, msg, duration, completed)

	return domain.ItemOutcome{
		ItemID:     item.ID,
		Order:      item.Order,
		Status:     domain.ItemFailed,
		Error:      msg,
		DurationMS: duration,
	}
}
