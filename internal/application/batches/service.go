package batches

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/docbatch/internal/application"
	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

const (
	DefaultMaxParallel = 5
	DefaultItemTimeout = 120 * time.Second
)

// Service implements use-cases untuk Batch orchestration.
// Safe for concurrent use; one Run call drives one batch at a time and the
// pending→running check-and-set in the store keeps concurrent callers out.
type Service struct {
	Repo     domain.Repository
	Analyzer domain.Analyzer
	Reports  domain.ReportStore // optional, nil disables report upload
	Clock    application.Clock

	MaxParallel int           // default concurrency bound, per-call override via RunOptions
	ItemTimeout time.Duration // per-item analyzer deadline, 0 disables
}

// RunOptions override konfigurasi per panggilan Run.
type RunOptions struct {
	MaxParallel int
}

// Run executes every pending item of the batch and returns the full outcome
// list in item order. Precondition failures (ErrBatchNotFound,
// ErrBatchRunning, ErrBatchFinished) are the only errors that cross this
// boundary before items start; per-item failures are folded into the summary.
func (s *Service) Run(ctx context.Context, id domain.BatchID, opts RunOptions) (domain.RunSummary, error) {
	batch, err := s.Repo.GetBatch(ctx, id)
	if err != nil {
		return domain.RunSummary{}, err
	}

	if err := s.Repo.BeginRun(ctx, id, s.Clock.Now()); err != nil {
		return domain.RunSummary{}, err
	}

	items, err := s.Repo.PendingItems(ctx, id)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("fetching pending items: %w", err)
	}

	// Empty batch is vacuously successful.
	if len(items) == 0 {
		if err := s.Repo.FinishBatch(ctx, id, domain.StatusCompleted, s.Clock.Now()); err != nil {
			return domain.RunSummary{}, fmt.Errorf("finishing empty batch: %w", err)
		}
		return domain.RunSummary{BatchID: id, Status: domain.StatusCompleted}, nil
	}

	parallel := s.MaxParallel
	if opts.MaxParallel > 0 {
		parallel = opts.MaxParallel
	}
	if parallel < 1 {
		parallel = DefaultMaxParallel
	}

	outcomes := runChunks(ctx, items, parallel, func(ctx context.Context, item *domain.BatchItem) domain.ItemOutcome {
		return s.processItem(ctx, batch, item)
	})

	status := domain.StatusCompleted
	for _, o := range outcomes {
		if o.Failed() {
			status = domain.StatusFailed
			break
		}
	}

	// failed is a normal terminal state; completed_at is recorded either way
	if err := s.Repo.FinishBatch(ctx, id, status, s.Clock.Now()); err != nil {
		return domain.RunSummary{}, fmt.Errorf("finishing batch: %w", err)
	}

	summary := domain.RunSummary{
		BatchID:        id,
		Status:         status,
		ItemsProcessed: len(outcomes),
		Outcomes:       outcomes,
	}
	summary.ReportURL = s.uploadReport(ctx, batch, summary)
	return summary, nil
}

// Command untuk create batch
type CreateBatchCommand struct {
	Type  string
	Name  string
	Items []CreateItem
}

type CreateItem struct {
	DocumentURL string
	Config      json.RawMessage
}

// CreateBatch persists a pending batch and its ordered items in one go.
// Item order follows the command's slice order.
func (s *Service) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*domain.Batch, error) {
	batchType, err := domain.ParseBatchType(cmd.Type)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	batch := &domain.Batch{
		ID:         domain.BatchID(uuid.New().String()),
		Type:       batchType,
		Name:       cmd.Name,
		Status:     domain.StatusPending,
		ItemsTotal: len(cmd.Items),
		CreatedAt:  now,
	}

	items := make([]*domain.BatchItem, 0, len(cmd.Items))
	for i, it := range cmd.Items {
		items = append(items, &domain.BatchItem{
			ID:          domain.ItemID(uuid.New().String()),
			BatchID:     batch.ID,
			Order:       i,
			Status:      domain.ItemPending,
			DocumentURL: it.DocumentURL,
			Config:      it.Config,
		})
	}

	if err := s.Repo.CreateBatch(ctx, batch, items); err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}
	return batch, nil
}

// GetBatch ambil batch + semua item-nya.
func (s *Service) GetBatch(ctx context.Context, id domain.BatchID) (*domain.Batch, []*domain.BatchItem, error) {
	batch, err := s.Repo.GetBatch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.Repo.ListItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return batch, items, nil
}
