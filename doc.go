// Package parsort sorts slices with a bottom-up merge sort whose merges run
// on a fixed pool of persistent worker goroutines.
//
// Sorting
//   - Sort(ctx, elems, parallelism, opts...) for constraints.Ordered elements.
//   - SortFunc(ctx, elems, parallelism, cmp, opts...) with a comparator.
//
// Every element starts as a one-element run. Each round merges consecutive
// pairs of runs on the pool, at most Size() pairs per batch; an odd last run
// is carried to the next round unchanged. The sort is stable and never
// modifies its input. Any failure aborts the whole sort; partial output is
// never returned.
//
// Pool
// The Pool is usable on its own. New(n) starts n workers, each with its own
// inbound and outbound channel. Submit(batch) hands batch[k] to worker k and
// rejects batches larger than n with ErrCapacityExceeded; Collect returns the
// items in submission order. A panic in a work item is returned as the item's
// Err (ErrTaskPanicked) and the worker keeps running. Shutdown stops and joins
// all workers.
//
// Defaults
//   - Metrics: metrics.NoopProvider
//   - CollectTimeout: 0 (Collect blocks until the batch is complete)
//   - ChunkSize: 0 (pool size)
package parsort
