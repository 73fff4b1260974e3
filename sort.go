package parsort

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ygrebnov/errorc"
	"golang.org/x/exp/constraints"

	"github.com/ygrebnov/parsort/metrics"
)

// Sort returns the elements of elems in non-decreasing order, merging runs
// pairwise on a pool of at most parallelism workers.
//
// Semantics:
//   - parallelism must be > 0; otherwise an error wrapping ErrInvalidConfig.
//   - elems is never modified; the result is a new slice.
//   - Empty and single-element inputs are returned without starting a pool.
//   - The sort is stable: equal elements keep their input order.
//   - Any failure (a failed merge, ctx cancellation, a collect timeout set
//     with WithCollectTimeout) aborts the sort with an error wrapping
//     ErrSortFailed; no partial result is returned.
func Sort[T constraints.Ordered](ctx context.Context, elems []T, parallelism uint, opts ...Option) ([]T, error) {
	return SortFunc(ctx, elems, parallelism, cmp.Compare[T], opts...)
}

// SortFunc is Sort with an explicit comparator, see MergeFunc.
func SortFunc[T any](
	ctx context.Context,
	elems []T,
	parallelism uint,
	cmp func(x, y T) int,
	opts ...Option,
) ([]T, error) {
	if parallelism == 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "parallelism must be > 0"))
	}
	if cmp == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "comparator must not be nil"))
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	switch len(elems) {
	case 0:
		return []T{}, nil
	case 1:
		return []T{elems[0]}, nil
	}

	return newSorter[T](&cfg, cmp).run(ctx, elems, parallelism)
}

// sorter drives the bottom-up merge rounds for one Sort call.
type sorter[T any] struct {
	cfg   *config
	merge Func[[2][]T, []T]

	rounds     metrics.Counter
	runsMerged metrics.Counter
	duration   metrics.Histogram
}

func newSorter[T any](cfg *config, cmp func(x, y T) int) *sorter[T] {
	p := cfg.Metrics
	return &sorter[T]{
		cfg:   cfg,
		merge: mergePair(cmp),
		rounds: p.Counter("sort_rounds_total",
			metrics.WithDescription("Merge rounds completed"), metrics.WithUnit("1")),
		runsMerged: p.Counter("sort_runs_merged_total",
			metrics.WithDescription("Merged runs produced by the pool"), metrics.WithUnit("1")),
		duration: p.Histogram("sort_duration_seconds",
			metrics.WithDescription("Wall time of a parallel sort"), metrics.WithUnit("seconds")),
	}
}

// run sorts elems, which holds at least two elements.
func (s *sorter[T]) run(ctx context.Context, elems []T, parallelism uint) ([]T, error) {
	start := time.Now()
	defer func() { s.duration.Record(time.Since(start).Seconds()) }()

	frontier := make([][]T, len(elems))
	for i := range elems {
		frontier[i] = []T{elems[i]}
	}

	// The first round has the most pairs; more workers than that would idle.
	workers := min(parallelism, uint(len(frontier)/2))
	pool, err := New[[2][]T, []T](workers, WithMetrics(s.cfg.Metrics))
	if err != nil {
		return nil, err
	}
	defer pool.Shutdown()

	chunk := pool.Size()
	if s.cfg.ChunkSize > 0 && int(s.cfg.ChunkSize) < chunk {
		chunk = int(s.cfg.ChunkSize)
	}

	for round := 0; len(frontier) > 1; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSortFailed, withRound(err, round))
		}

		frontier, err = s.round(ctx, pool, frontier, chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSortFailed, withRound(err, round))
		}
		s.rounds.Add(1)
	}

	return frontier[0], nil
}

// round merges consecutive pairs of frontier and returns the next frontier.
// An odd last run is carried over unchanged after the merged runs.
func (s *sorter[T]) round(
	ctx context.Context, pool *Pool[[2][]T, []T], frontier [][]T, chunk int,
) ([][]T, error) {
	var carry []T
	hasCarry := len(frontier)%2 == 1
	if hasCarry {
		carry = frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
	}

	pairs := len(frontier) / 2
	next := make([][]T, 0, pairs+1)

	for lo := 0; lo < pairs; lo += chunk {
		hi := min(lo+chunk, pairs)

		batch := make([]*WorkItem[[2][]T, []T], 0, hi-lo)
		for p := lo; p < hi; p++ {
			batch = append(batch, NewWorkItem(s.merge, [2][]T{frontier[2*p], frontier[2*p+1]}))
		}

		if err := pool.Submit(batch); err != nil {
			return nil, err
		}

		results, err := s.collect(ctx, pool)
		if err != nil {
			return nil, err
		}

		var errs []error
		for _, item := range results {
			if item.Err != nil {
				errs = append(errs, item.Err)
				continue
			}
			next = append(next, item.Output)
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		s.runsMerged.Add(int64(len(results)))
	}

	if hasCarry {
		next = append(next, carry)
	}
	return next, nil
}

func (s *sorter[T]) collect(ctx context.Context, pool *Pool[[2][]T, []T]) ([]*WorkItem[[2][]T, []T], error) {
	if s.cfg.CollectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CollectTimeout)
		defer cancel()
	}
	return pool.CollectContext(ctx)
}
