package batches

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

// fakeRepo is an in-memory Repository with the same transition guards as the
// SQL implementations.
type fakeRepo struct {
	mu       sync.Mutex
	batches  map[domain.BatchID]*domain.Batch
	items    map[domain.ItemID]*domain.BatchItem
	findings map[domain.ItemID][]*domain.Finding
	events   []string // ordered log of write calls, e.g. "findings:0", "complete:0"

	failSaveFindings bool
	failCompleteItem bool
	beginRunCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		batches:  make(map[domain.BatchID]*domain.Batch),
		items:    make(map[domain.ItemID]*domain.BatchItem),
		findings: make(map[domain.ItemID][]*domain.Finding),
	}
}

// seedBatch stores a pending batch with n pending items in order.
func (r *fakeRepo) seedBatch(t domain.BatchType, n int) *domain.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := &domain.Batch{
		ID:         domain.BatchID(fmt.Sprintf("batch-%d", len(r.batches)+1)),
		Type:       t,
		Status:     domain.StatusPending,
		ItemsTotal: n,
		CreatedAt:  time.Now(),
	}
	r.batches[b.ID] = b
	for i := 0; i < n; i++ {
		it := &domain.BatchItem{
			ID:          domain.ItemID(fmt.Sprintf("%s-item-%d", b.ID, i)),
			BatchID:     b.ID,
			Order:       i,
			Status:      domain.ItemPending,
			DocumentURL: fmt.Sprintf("https://docs.example.com/%s/%d.pdf", b.ID, i),
		}
		r.items[it.ID] = it
	}
	return b
}

func (r *fakeRepo) item(id domain.ItemID) *domain.BatchItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

func (r *fakeRepo) CreateBatch(ctx context.Context, b *domain.Batch, items []*domain.BatchItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID] = b
	for _, it := range items {
		r.items[it.ID] = it
	}
	return nil
}

func (r *fakeRepo) GetBatch(ctx context.Context, id domain.BatchID) (*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeRepo) BeginRun(ctx context.Context, id domain.BatchID, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beginRunCalls++
	b, ok := r.batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	switch {
	case b.Status == domain.StatusRunning:
		return domain.ErrBatchRunning
	case b.Status.Terminal():
		return domain.ErrBatchFinished
	}
	b.Status = domain.StatusRunning
	b.StartedAt = &startedAt
	return nil
}

func (r *fakeRepo) FinishBatch(ctx context.Context, id domain.BatchID, status domain.Status, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	if b.Status != domain.StatusRunning {
		return fmt.Errorf("batch %s not running", id)
	}
	b.Status = status
	b.CompletedAt = &completedAt
	return nil
}

func (r *fakeRepo) PendingItems(ctx context.Context, id domain.BatchID) ([]*domain.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BatchItem
	for _, it := range r.items {
		if it.BatchID == id && it.Status == domain.ItemPending {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeRepo) ListItems(ctx context.Context, id domain.BatchID) ([]*domain.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BatchItem
	for _, it := range r.items {
		if it.BatchID == id {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeRepo) MarkItemRunning(ctx context.Context, id domain.ItemID, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Status != domain.ItemPending {
		return domain.ErrItemTerminal
	}
	it.Status = domain.ItemRunning
	it.StartedAt = &startedAt
	r.events = append(r.events, fmt.Sprintf("running:%d", it.Order))
	return nil
}

func (r *fakeRepo) CompleteItem(ctx context.Context, id domain.ItemID, result json.RawMessage, durationMS int64, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCompleteItem {
		return fmt.Errorf("store unavailable")
	}
	it, ok := r.items[id]
	if !ok || it.Status != domain.ItemRunning {
		return domain.ErrItemTerminal
	}
	it.Status = domain.ItemCompleted
	it.Result = result
	it.DurationMS = durationMS
	it.CompletedAt = &completedAt
	r.events = append(r.events, fmt.Sprintf("complete:%d", it.Order))
	return nil
}

func (r *fakeRepo) FailItem(ctx context.Context, id domain.ItemID, message string, durationMS int64, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Status.Terminal() {
		return domain.ErrItemTerminal
	}
	it.Status = domain.ItemFailed
	it.ErrorMessage = message
	it.DurationMS = durationMS
	it.CompletedAt = &completedAt
	r.events = append(r.events, fmt.Sprintf("fail:%d", it.Order))
	return nil
}

func (r *fakeRepo) SaveFindings(ctx context.Context, id domain.ItemID, findings []*domain.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaveFindings {
		return fmt.Errorf("store unavailable")
	}
	r.findings[id] = append(r.findings[id], findings...)
	if it, ok := r.items[id]; ok {
		r.events = append(r.events, fmt.Sprintf("findings:%d", it.Order))
	}
	return nil
}

func (r *fakeRepo) ItemStatusCounts(ctx context.Context, id domain.BatchID) (domain.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c domain.StatusCounts
	for _, it := range r.items {
		if it.BatchID != id {
			continue
		}
		switch it.Status {
		case domain.ItemPending:
			c.Pending++
		case domain.ItemRunning:
			c.Running++
		case domain.ItemCompleted:
			c.Completed++
		case domain.ItemFailed:
			c.Failed++
		}
	}
	return c, nil
}

// fakeAnalyzer is a scripted Analyzer: per-order failures and panics, optional
// delay, in-flight high-water mark for concurrency assertions.
type fakeAnalyzer struct {
	mu          sync.Mutex
	delay       time.Duration
	failOrders  map[int]error
	panicOrders map[int]bool

	calls       int
	inFlight    int
	maxInFlight int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, item *domain.BatchItem, batchType domain.BatchType) (*domain.Analysis, error) {
	a.mu.Lock()
	a.calls++
	a.inFlight++
	if a.inFlight > a.maxInFlight {
		a.maxInFlight = a.inFlight
	}
	delay := a.delay
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight--
		a.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if a.panicOrders[item.Order] {
		panic(fmt.Sprintf("analyzer blew up on item %d", item.Order))
	}
	if err := a.failOrders[item.Order]; err != nil {
		return nil, err
	}

	return &domain.Analysis{
		Summary: fmt.Sprintf("analyzed %s", item.DocumentURL),
		Findings: []*domain.Finding{{
			Lens:          "pricing_accuracy",
			DetectedCount: 2,
			Severity:      domain.SeverityCounts{High: 1, Low: 1, Total: 2},
		}},
	}, nil
}

func (a *fakeAnalyzer) stats() (calls, maxInFlight int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls, a.maxInFlight
}

// fakeReportStore captures the last uploaded report.
type fakeReportStore struct {
	mu      sync.Mutex
	key     string
	payload []byte
	err     error
}

func (s *fakeReportStore) UploadReport(ctx context.Context, key string, report []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.key = key
	s.payload = report
	return "http://minio.local/" + key, nil
}
