package batches

import (
	"context"
	"encoding/json"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	CreateBatch(ctx context.Context, b *Batch, items []*BatchItem) error
	GetBatch(ctx context.Context, id BatchID) (*Batch, error)

	// BeginRun atomically moves a pending batch to running and records
	// started_at. It is the sole source of truth for "already running":
	// ErrBatchRunning when the stored status is running, ErrBatchFinished
	// when it is completed or failed, ErrBatchNotFound when absent.
	BeginRun(ctx context.Context, id BatchID, startedAt time.Time) error
	FinishBatch(ctx context.Context, id BatchID, status Status, completedAt time.Time) error

	PendingItems(ctx context.Context, id BatchID) ([]*BatchItem, error)
	ListItems(ctx context.Context, id BatchID) ([]*BatchItem, error)

	// MarkItemRunning refuses to transition an item that is no longer
	// pending and returns ErrItemTerminal.
	MarkItemRunning(ctx context.Context, id ItemID, startedAt time.Time) error
	CompleteItem(ctx context.Context, id ItemID, result json.RawMessage, durationMS int64, completedAt time.Time) error
	FailItem(ctx context.Context, id ItemID, message string, durationMS int64, completedAt time.Time) error

	SaveFindings(ctx context.Context, id ItemID, findings []*Finding) error

	// ItemStatusCounts aggregates item statuses in a single query so
	// progress reads see one consistent snapshot.
	ItemStatusCounts(ctx context.Context, id BatchID) (StatusCounts, error)
}

// Analyzer port (interface untuk analisis per item)
type Analyzer interface {
	Analyze(ctx context.Context, item *BatchItem, batchType BatchType) (*Analysis, error)
}

// Analysis is what the analyzer returns for one item.
type Analysis struct {
	Findings []*Finding `json:"findings"`
	Summary  string     `json:"summary"`
}

// ReportStore port (interface untuk penyimpanan laporan run)
type ReportStore interface {
	UploadReport(ctx context.Context, key string, report []byte) (string, error)
}
