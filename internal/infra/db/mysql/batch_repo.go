package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

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
VALUES (?,?,?,?,?,?);
`
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := tx.ExecContext(ctx, qb,
		b.ID, b.Type, stringOrDash(b.Name), b.Status, b.ItemsTotal, created,
	); err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}

	const qi = `
INSERT INTO batch_items
(id, batch_id, item_order, status, document_url, item_config)
VALUES (?,?,?,?,?,?);
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
WHERE id=? LIMIT 1;
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

// BeginRun is the atomic pending→running check-and-set. The guarded UPDATE is
// the isolation boundary: zero rows affected means some other status won, and
// a follow-up read decides which precondition error to return.
func (r *BatchRepository) BeginRun(ctx context.Context, id domain.BatchID, startedAt time.Time) error {
	const q = `
UPDATE analysis_batches
SET status=?, started_at=?
WHERE id=? AND status=?;
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

// FinishBatch moves a running batch to its terminal status.
func (r *BatchRepository) FinishBatch(ctx context.Context, id domain.BatchID, status domain.Status, completedAt time.Time) error {
	const q = `
UPDATE analysis_batches
SET status=?, completed_at=?
WHERE id=? AND status=?;
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

// PendingItems ambil item pending, urut item_order ascending
func (r *BatchRepository) PendingItems(ctx context.Context, id domain.BatchID) ([]*domain.BatchItem, error) {
	q := `SELECT` + itemColumns + `
FROM batch_items
WHERE batch_id=? AND status=?
ORDER BY item_order ASC;`
	return r.queryItems(ctx, q, id, domain.ItemPending)
}

// ListItems ambil semua item batch, urut item_order ascending
func (r *BatchRepository) ListItems(ctx context.Context, id domain.BatchID) ([]*domain.BatchItem, error) {
	q := `SELECT` + itemColumns + `
FROM batch_items
WHERE batch_id=?
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
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanItem(rows *sql.Rows) (*domain.BatchItem, error) {
	var it domain.BatchItem
	var config, result sql.NullString
	var errMsg sql.NullString
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
	return &it, nil
}

// MarkItemRunning refuses any transition that is not pending→running.
func (r *BatchRepository) MarkItemRunning(ctx context.Context, id domain.ItemID, startedAt time.Time) error {
	const q = `
UPDATE batch_items
SET status=?, started_at=?
WHERE id=? AND status=?;
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

// CompleteItem terminal write untuk item sukses
func (r *BatchRepository) CompleteItem(ctx context.Context, id domain.ItemID, result json.RawMessage, durationMS int64, completedAt time.Time) error {
	const q = `
UPDATE batch_items
SET status=?, result=?, error_message=NULL, duration_ms=?, completed_at=?
WHERE id=? AND status=?;
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

// FailItem terminal write untuk item gagal. Accepts pending as the source
// state too, for items that never made it to running.
func (r *BatchRepository) FailItem(ctx context.Context, id domain.ItemID, message string, durationMS int64, completedAt time.Time) error {
	const q = `
UPDATE batch_items
SET status=?, error_message=?, duration_ms=?, completed_at=?
WHERE id=? AND status IN (?,?);
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
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?);
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

// ItemStatusCounts aggregates statuses in one query (single snapshot).
func (r *BatchRepository) ItemStatusCounts(ctx context.Context, id domain.BatchID) (domain.StatusCounts, error) {
	const q = `
SELECT
  COALESCE(SUM(CASE WHEN status='pending'   THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN status='running'   THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN status='failed'    THEN 1 ELSE 0 END),0)
FROM batch_items
WHERE batch_id=?;
`
	var c domain.StatusCounts
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.Pending, &c.Running, &c.Completed, &c.Failed); err != nil {
		return domain.StatusCounts{}, err
	}
	return c, nil
}
