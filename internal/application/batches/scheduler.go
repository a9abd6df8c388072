package batches

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

type processFunc func(ctx context.Context, item *domain.BatchItem) domain.ItemOutcome

// runChunks drives fn over items with at most maxParallel in flight.
//
// Items are partitioned into fixed-width chunks; a chunk's goroutines all
// reach a terminal outcome before the next chunk starts, which keeps the
// number of concurrent analyzer calls bounded without a refilling pool.
// Outcomes land in their item's original slot, so the returned slice is in
// input order regardless of completion order.
func runChunks(ctx context.Context, items []*domain.BatchItem, maxParallel int, fn processFunc) []domain.ItemOutcome {
	if maxParallel < 1 {
		maxParallel = 1
	}

	outcomes := make([]domain.ItemOutcome, len(items))
	for start := 0; start < len(items); start += maxParallel {
		end := min(start+maxParallel, len(items))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = contained(ctx, items[i], fn)
			}(i)
		}
		wg.Wait()
	}
	return outcomes
}

// contained runs fn and converts a panic into a failed outcome so one broken
// item can never take down the rest of the batch.
func contained(ctx context.Context, item *domain.BatchItem, fn processFunc) (out domain.ItemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.ItemOutcome{
				ItemID: item.ID,
				Order:  item.Order,
				Status: domain.ItemFailed,
				Error:  fmt.Sprintf("panic while processing item: %v", r),
			}
		}
	}()
	return fn(ctx, item)
}
