package batches

import (
	"encoding/json"
	"fmt"
	"time"
)

// ID tipe untuk Batch
type BatchID string

// ID tipe untuk BatchItem
type ItemID string

// BatchType enum: satu keluarga prompt analyzer per tipe
type BatchType string

const (
	TypeContractReview   BatchType = "contract_review"
	TypeInvoiceAudit     BatchType = "invoice_audit"
	TypeComplianceScreen BatchType = "compliance_screen"
)

// ParseBatchType validates an incoming batch type string.
func ParseBatchType(s string) (BatchType, error) {
	switch BatchType(s) {
	case TypeContractReview, TypeInvoiceAudit, TypeComplianceScreen:
		return BatchType(s), nil
	}
	return "", fmt.Errorf("unknown batch type: %q", s)
}

// Status enum untuk Batch
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ItemStatus enum untuk BatchItem
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemRunning   ItemStatus = "running"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Add folds another breakdown into this one.
func (c *SeverityCounts) Add(o SeverityCounts) {
	c.Critical += o.Critical
	c.High += o.High
	c.Medium += o.Medium
	c.Low += o.Low
	c.Total += o.Total
}

// Aggregate Root: Batch. Status is mutated only by the orchestrator that owns
// the pending→running transition; started_at is set exactly once.
type Batch struct {
	ID          BatchID    `json:"id"`
	Type        BatchType  `json:"batch_type"`
	Name        string     `json:"name,omitempty"`
	Status      Status     `json:"status"`
	ItemsTotal  int        `json:"items_total"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// BatchItem is one unit of work inside a Batch. item_order is unique within a
// batch and fixes the fetch order for processing.
type BatchItem struct {
	ID           ItemID          `json:"id"`
	BatchID      BatchID         `json:"batch_id"`
	Order        int             `json:"item_order"`
	Status       ItemStatus      `json:"status"`
	DocumentURL  string          `json:"document_url"`
	Config       json.RawMessage `json:"item_config,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Finding is one analytical lens's output for a single item. Write-once,
// persisted before the owning item is marked terminal.
type Finding struct {
	ID              string          `json:"id"`
	ItemID          ItemID          `json:"item_id"`
	Lens            string          `json:"lens"`
	Findings        json.RawMessage `json:"findings,omitempty"`
	DetectedCount   int             `json:"detected_count"`
	MissedCount     int             `json:"missed_count"`
	Accuracy        *float64        `json:"accuracy,omitempty"`
	Severity        SeverityCounts  `json:"severity"`
	Evidence        json.RawMessage `json:"evidence,omitempty"`
	Recommendations json.RawMessage `json:"recommendations,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
