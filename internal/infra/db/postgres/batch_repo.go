package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

type BatchRepository struct{ db *sql.DB }

func NewBatchRepository(db *sql.DB) *BatchRepository { return &BatchRepository{db: db} }

// CreateBatch insert batch + items dalam satu transaksi
func (r *BatchRepository) CreateBatch(ctx context.Context, b *domain.Batch, items []*domain.BatchItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qb = `
INSERT INTO analysis_batches
(id, batch_type, name, status, items_total, created_at)
VALUES ($1,$2,$3,$4,$5,$6);
`
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := tx.ExecContext(ctx, qb, b.ID, b.Type, b.Name, b.Status, b.ItemsTotal, created); err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}

	const qi = `
INSERT INTO batch_items
(id, batch_id, item_order, status, document_url, item_config)
VALUES ($1,$2,$3,$4,$5,$6);
`
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, qi,
			it.ID, it.BatchID, it.Order, it.Status, it.DocumentURL, rawOrNull(it.Config),
		); err != nil {
			return fmt.Errorf("inserting item %d: %w", it.Order, err)
		}
	}

	return tx.Commit()
}

// GetBatch by ID
func (r *BatchRepository) GetBatch(ctx context.Context, id domain.BatchID) (*domain.Batch, error) {
	const q = `
SELECT id, batch_type, name, status, items_total, created_at, started_at, completed_at
FROM analysis_batches
WHERE id=$1 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)

	var b domain.Batch
	var started, completed sql.NullTime
	if err := row.Scan(
		&b.ID, &b.Type, &b.Name, &b.Status, &b.ItemsTotal, &b.CreatedAt, &started, &completed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	b.StartedAt = timePtr(started)
	b.CompletedAt = timePtr(completed)
	return &b, nil
}

// BeginRun atomic pending→running via guarded UPDATE
func (r *BatchRepository) BeginRun(ctx context.Context, id domain.BatchID, startedAt time.Time) error {
	const q = `
UPDATE analysis_batches
SET status=$1, started_at=$2
WHERE id=$3 AND status=$4;
`
	res, err := r.db.ExecContext(ctx, q, domain.StatusRunning, startedAt, id, domain.StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	b, err := r.GetBatch(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case b.Status == domain.StatusRunning:
		return domain.ErrBatchRunning
	case b.Status.Terminal():
		return domain.ErrBatchFinished
	}
	return fmt.Errorf("batch %s in unexpected status %q", id, b.Status)
}

// FinishBatch running→terminal
func (r *BatchRepository) FinishBatch(ctx context.Context, id domain.BatchID, status domain.Status, completedAt time.Time) error {
	const q = `
UPDATE analysis_batches
SET status=$1, completed_at=$2
WHERE id=$3 AND status=$4;
`
	res, err := r.db.ExecContext(ctx, q, status, completedAt, id, domain.StatusRunning)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("batch %s not running, terminal write refused", id)
	}
	return nil
}

const itemColumns = `
id, batch_id, item_order, status, document_url, item_config,
result, error_message, duration_ms, started_at, completed_at`

// PendingItems item pending, urut item_order ascending
func (r *BatchRepository) PendingItems(ctx context.Context, id domain.BatchID) ([]*domain.BatchItem, error) {
	q := `SELECT` + itemColumns + `
FROM batch_items
WHERE batch_id=$1 AND status=$2
ORDER BY item_order ASC;`
	return r.queryItems(ctx, q, id, domain.ItemPending)
}

// ListItems semua item batch
func (r *BatchRepository) ListItems(ctx context.Context, id domain.BatchID) ([]*domain.BatchItem, error) {
	q := `SELECT` + itemColumns + `
FROM batch_items
WHERE batch_id=$1
ORDER BY item_order ASC;`
	return r.queryItems(ctx, q, id)
}

func (r *BatchRepository) queryItems(ctx context.Context, q string, args ...any) ([]*domain.BatchItem, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.BatchItem
	for rows.Next() {
		var it domain.BatchItem
		var config, result, errMsg sql.NullString
		var duration sql.NullInt64
		var started, completed sql.NullTime
		if err := rows.Scan(
			&it.ID, &it.BatchID, &it.Order, &it.Status, &it.DocumentURL, &config,
			&result, &errMsg, &duration, &started, &completed,
		); err != nil {
			return nil, err
		}
		if config.Valid {
			it.Config = json.RawMessage(config.String)
		}
		if result.Valid {
			it.Result = json.RawMessage(result.String)
		}
		it.ErrorMessage = errMsg.String
		it.DurationMS = duration.Int64
		it.StartedAt = timePtr(started)
		it.CompletedAt = timePtr(completed)
		out = append(out, &it)
	}
	return out, rows.Err()
}

// MarkItemRunning pending→running saja
func (r *BatchRepository) MarkItemRunning(ctx context.Context, id domain.ItemID, startedAt time.Time) error {
	const q = `
UPDATE batch_items
SET status=$1, started_at=$2
WHERE id=$3 AND status=$4;
`
	res, err := r.db.ExecContext(ctx, q, domain.ItemRunning, startedAt, id, domain.ItemPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrItemTerminal
	}
	return nil
}

// CompleteItem terminal write sukses
func (r *BatchRepository) CompleteItem(ctx context.Context, id domain.ItemID, result json.RawMessage, durationMS int64, completedAt time.Time) error {
	const q = `
UPDATE batch_items
SET status=$1, result=$2, error_message=NULL, duration_ms=$3, completed_at=$4
WHERE id=$5 AND status=$6;
`
	res, err := r.db.ExecContext(ctx, q, domain.ItemCompleted, rawOrNull(result), durationMS, completedAt, id, domain.ItemRunning)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrItemTerminal
	}
	return nil
}

// FailItem terminal write gagal (pending atau running)
func (r *BatchRepository) FailItem(ctx context.Context, id domain.ItemID, message string, durationMS int64, completedAt time.Time) error {
	const q = `
UPDATE batch_items
SET status=$1, error_message=$2, duration_ms=$3, completed_at=$4
WHERE id=$5 AND status IN ($6,$7);
`
	res, err := r.db.ExecContext(ctx, q,
		domain.ItemFailed, message, durationMS, completedAt,
		id, domain.ItemPending, domain.ItemRunning,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrItemTerminal
	}
	return nil
}

// SaveFindings insert findings untuk satu item
func (r *BatchRepository) SaveFindings(ctx context.Context, id domain.ItemID, findings []*domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
INSERT INTO batch_findings
(id, item_id, lens, findings, detected_count, missed_count, accuracy,
 critical, high, medium, low, evidence, recommendations, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);
`
	for _, f := range findings {
		created := f.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx, q,
			f.ID, id, f.Lens, rawOrNull(f.Findings), f.DetectedCount, f.MissedCount, f.Accuracy,
			f.Severity.Critical, f.Severity.High, f.Severity.Medium, f.Severity.Low,
			rawOrNull(f.Evidence), rawOrNull(f.Recommendations), created,
		); err != nil {
			return fmt.Errorf("inserting finding %s: %w", f.Lens, err)
		}
	}

	return tx.Commit()
}

// ItemStatusCounts satu query agregat
func (r *BatchRepository) ItemStatusCounts(ctx context.Context, id domain.BatchID) (domain.StatusCounts, error) {
	const q = `
SELECT
  COALESCE(SUM(CASE WHEN status='pending'   THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN status='running'   THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN status='failed'    THEN 1 ELSE 0 END),0)
FROM batch_items
WHERE batch_id=$1;
`
	var c domain.StatusCounts
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.Pending, &c.Running, &c.Completed, &c.Failed); err != nil {
		return domain.StatusCounts{}, err
	}
	return c, nil
}

func rawOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
