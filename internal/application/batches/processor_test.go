package batches

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

func runOneItem(t *testing.T, repo *fakeRepo, svc *Service, b *domain.Batch) domain.ItemOutcome {
	t.Helper()
	items, err := repo.PendingItems(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	return svc.processItem(context.Background(), b, items[0])
}

func TestProcessItemSuccess(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeAnalyzer{})
	b := repo.seedBatch(domain.TypeContractReview, 1)

	outcome := runOneItem(t, repo, svc, b)

	assert.Equal(t, domain.ItemCompleted, outcome.Status)
	assert.Empty(t, outcome.Error)
	assert.GreaterOrEqual(t, outcome.DurationMS, int64(0))

	it := repo.item(outcome.ItemID)
	assert.Equal(t, domain.ItemCompleted, it.Status)
	assert.NotNil(t, it.StartedAt)
	assert.NotNil(t, it.CompletedAt)
	require.Len(t, repo.findings[it.ID], 1)
	assert.Equal(t, "pricing_accuracy", repo.findings[it.ID][0].Lens)
	assert.NotEmpty(t, repo.findings[it.ID][0].ID)

	// findings land before the terminal write
	assert.Equal(t, []string{"running:0", "findings:0", "complete:0"}, repo.events)
}

func TestProcessItemAnalyzerFailure(t *testing.T) {
	repo := newFakeRepo()
	analyzer := &fakeAnalyzer{failOrders: map[int]error{0: assert.AnError}}
	svc := newTestService(repo, analyzer)
	b := repo.seedBatch(domain.TypeContractReview, 1)

	outcome := runOneItem(t, repo, svc, b)

	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Error, assert.AnError.Error())

	it := repo.item(outcome.ItemID)
	assert.Equal(t, domain.ItemFailed, it.Status)
	assert.Contains(t, it.ErrorMessage, assert.AnError.Error())
	assert.NotNil(t, it.CompletedAt)
	assert.Empty(t, repo.findings[it.ID])
}

func TestProcessItemTimeout(t *testing.T) {
	repo := newFakeRepo()
	analyzer := &fakeAnalyzer{delay: 200 * time.Millisecond}
	svc := newTestService(repo, analyzer)
	svc.ItemTimeout = 10 * time.Millisecond
	b := repo.seedBatch(domain.TypeInvoiceAudit, 1)

	outcome := runOneItem(t, repo, svc, b)

	// a timeout is an ordinary failure outcome, not a special case
	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Error, context.DeadlineExceeded.Error())
	assert.Equal(t, domain.ItemFailed, repo.item(outcome.ItemID).Status)
}

func TestProcessItemTerminalGuard(t *testing.T) {
	repo := newFakeRepo()
	analyzer := &fakeAnalyzer{}
	svc := newTestService(repo, analyzer)
	b := repo.seedBatch(domain.TypeContractReview, 1)

	items, err := repo.PendingItems(context.Background(), b.ID)
	require.NoError(t, err)
	item := items[0]
	item.Status = domain.ItemCompleted

	outcome := svc.processItem(context.Background(), b, item)

	assert.Equal(t, domain.ItemCompleted, outcome.Status)
	calls, _ := analyzer.stats()
	assert.Equal(t, 0, calls, "terminal items are never re-analyzed")
	assert.Empty(t, repo.events, "no writes for a terminal item")
}

func TestProcessItemFindingsWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failSaveFindings = true
	svc := newTestService(repo, &fakeAnalyzer{})
	b := repo.seedBatch(domain.TypeContractReview, 1)

	outcome := runOneItem(t, repo, svc, b)

	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Error, "saving findings")
	assert.Equal(t, domain.ItemFailed, repo.item(outcome.ItemID).Status)
}

func TestProcessItemCompleteWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failCompleteItem = true
	svc := newTestService(repo, &fakeAnalyzer{})
	b := repo.seedBatch(domain.TypeContractReview, 1)

	outcome := runOneItem(t, repo, svc, b)

	// infrastructure fault during the terminal write still yields a failed
	// outcome for the scheduler instead of a propagated error
	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Error, "completing item")
}
