package batches

import "time"

// ItemOutcome is the terminal result recorded for one item. A failed analyzer
// call is data here, not an error; the scheduler collects one outcome per item
// no matter what happened to it.
type ItemOutcome struct {
	ItemID     ItemID     `json:"item_id"`
	Order      int        `json:"item_order"`
	Status     ItemStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

func (o ItemOutcome) Failed() bool { return o.Status == ItemFailed }

// RunSummary is returned by Run: final batch status plus the full outcome
// list in original item order.
type RunSummary struct {
	BatchID        BatchID       `json:"batch_id"`
	Status         Status        `json:"status"`
	ItemsProcessed int           `json:"items_processed"`
	Outcomes       []ItemOutcome `json:"outcomes"`
	ReportURL      string        `json:"report_url,omitempty"`
}

// StatusCounts holds per-status item counts for one batch.
type StatusCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (c StatusCounts) Total() int {
	return c.Pending + c.Running + c.Completed + c.Failed
}

// Progress is a point-in-time monitoring view, derived from persisted state.
// PercentComplete counts terminal items (completed + failed) over total,
// rounded half-up; 0 for an empty batch.
type Progress struct {
	BatchID         BatchID    `json:"batch_id"`
	Status          Status     `json:"status"`
	TotalItems      int        `json:"total_items"`
	PendingItems    int        `json:"pending_items"`
	RunningItems    int        `json:"running_items"`
	CompletedItems  int        `json:"completed_items"`
	FailedItems     int        `json:"failed_items"`
	PercentComplete int        `json:"percent_complete"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}
