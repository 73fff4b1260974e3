package parsort

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/parsort/metrics"
)

// shutdownWithin fails the test if Shutdown does not return within d.
func shutdownWithin[I, O any](t *testing.T, p *Pool[I, O], d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("Shutdown did not return within %v", d)
	}
}

// collectWithin calls Collect and fails the test if it blocks longer than d.
func collectWithin[I, O any](t *testing.T, p *Pool[I, O], d time.Duration) ([]*WorkItem[I, O], error) {
	t.Helper()
	type result struct {
		items []*WorkItem[I, O]
		err   error
	}
	done := make(chan result, 1)
	go func() {
		items, err := p.Collect()
		done <- result{items, err}
	}()
	select {
	case r := <-done:
		return r.items, r.err
	case <-time.After(d):
		t.Fatalf("Collect did not return within %v", d)
		return nil, nil
	}
}

func double(in int) int { return in * 2 }

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		n    uint
		opts []Option
	}{
		{name: "zero workers", n: 0},
		{name: "nil metrics provider", n: 2, opts: []Option{WithMetrics(nil)}},
		{name: "negative collect timeout", n: 2, opts: []Option{WithCollectTimeout(-time.Second)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New[int, int](tt.n, tt.opts...)
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Nil(t, p)
		})
	}
}

func TestNew_ZeroWorkers_StartsNothing(t *testing.T) {
	mp := metrics.NewBasicProvider()
	_, err := New[int, int](0, WithMetrics(mp))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, ok := mp.CounterValue("workers_started_total")
	require.False(t, ok, "no instrument should be created for a rejected pool")
}

func TestPool_SubmitCollect_SubmissionOrder(t *testing.T) {
	const n = 4
	p, err := New[int, string](n)
	require.NoError(t, err)
	defer shutdownWithin(t, p, 2*time.Second)

	// Later slots finish first; results must still come back in submission order.
	fn := Pure(func(id int) string {
		time.Sleep(time.Duration(n-id) * 10 * time.Millisecond)
		return fmt.Sprintf("done-%d", id)
	})

	batch := make([]*WorkItem[int, string], 0, n)
	for id := range n {
		batch = append(batch, NewWorkItem(fn, id))
	}

	require.NoError(t, p.Submit(batch))
	require.Equal(t, n, p.Pending())

	results, err := p.Collect()
	require.NoError(t, err)
	require.Len(t, results, n)
	require.Equal(t, 0, p.Pending())

	for k, item := range results {
		require.Same(t, batch[k], item)
		require.Equal(t, k, item.Input)
		require.Equal(t, fmt.Sprintf("done-%d", k), item.Output)
		require.NoError(t, item.Err)

		slot, ok := item.Slot()
		require.True(t, ok)
		require.Equal(t, k, slot)
	}
}

func TestPool_PartialAndEmptyBatches(t *testing.T) {
	p, err := New[int, int](4)
	require.NoError(t, err)
	defer shutdownWithin(t, p, 2*time.Second)

	tests := []struct {
		name   string
		inputs []int
	}{
		{name: "empty batch", inputs: nil},
		{name: "one item", inputs: []int{21}},
		{name: "two items", inputs: []int{1, 2}},
		{name: "full batch", inputs: []int{1, 2, 3, 4}},
		{name: "three items after full", inputs: []int{7, 8, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := make([]*WorkItem[int, int], 0, len(tt.inputs))
			for _, in := range tt.inputs {
				batch = append(batch, NewWorkItem(Pure(double), in))
			}

			require.NoError(t, p.Submit(batch))
			results, err := p.Collect()
			require.NoError(t, err)
			require.Len(t, results, len(tt.inputs))
			for k, item := range results {
				require.Equal(t, tt.inputs[k]*2, item.Output)
			}
		})
	}
}

func TestPool_Submit_CapacityExceeded(t *testing.T) {
	var executed atomic.Int32
	fn := Pure(func(in int) int {
		executed.Add(1)
		return in
	})

	p, err := New[int, int](2)
	require.NoError(t, err)
	defer shutdownWithin(t, p, 2*time.Second)

	batch := []*WorkItem[int, int]{NewWorkItem(fn, 1), NewWorkItem(fn, 2), NewWorkItem(fn, 3)}
	err = p.Submit(batch)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, 0, p.Pending())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), executed.Load(), "no item of an oversized batch may run")

	// The pool is still usable with a batch that fits.
	require.NoError(t, p.Submit(batch[:2]))
	results, err := p.Collect()
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int32(2), executed.Load())
}

func TestPool_Submit_InvalidState(t *testing.T) {
	p, err := New[int, int](2)
	require.NoError(t, err)
	defer shutdownWithin(t, p, 2*time.Second)

	require.NoError(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(Pure(double), 1)}))
	err = p.Submit([]*WorkItem[int, int]{NewWorkItem(Pure(double), 2)})
	require.ErrorIs(t, err, ErrInvalidState)

	results, err := p.Collect()
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, results[0].Output)
}

func TestPool_Submit_InvalidWorkItem(t *testing.T) {
	p, err := New[int, int](2)
	require.NoError(t, err)
	defer shutdownWithin(t, p, 2*time.Second)

	tests := []struct {
		name  string
		batch []*WorkItem[int, int]
	}{
		{name: "nil item", batch: []*WorkItem[int, int]{NewWorkItem(Pure(double), 1), nil}},
		{name: "nil function", batch: []*WorkItem[int, int]{NewWorkItem[int, int](nil, 1)}},
		{name: "terminate item", batch: []*WorkItem[int, int]{newTerminateItem[int, int]()}},
		{name: "repeated item", batch: func() []*WorkItem[int, int] {
			item := NewWorkItem(Pure(double), 1)
			return []*WorkItem[int, int]{item, item}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, p.Submit(tt.batch), ErrInvalidWorkItem)
			require.Equal(t, 0, p.Pending())
		})
	}
}

func TestPool_CollectWithoutSubmit(t *testing.T) {
	p, err := New[int, int](1)
	require.NoError(t, err)
	defer shutdownWithin(t, p, 2*time.Second)

	results, err := p.Collect()
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestPool_ItemFailures_AreResults(t *testing.T) {
	mp := metrics.NewBasicProvider()
	p, err := New[int, int](3, WithMetrics(mp))
	require.NoError(t, err)
	defer shutdownWithin(t, p, 2*time.Second)

	boom := errors.New("boom")
	fn := Func[int, int](func(in int) (int, error) {
		switch in {
		case 1:
			panic("kaboom")
		case 2:
			return 99, boom
		}
		return in * 10, nil
	})

	require.NoError(t, p.Submit([]*WorkItem[int, int]{
		NewWorkItem(fn, 0), NewWorkItem(fn, 1), NewWorkItem(fn, 2),
	}))
	results, err := p.Collect()
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.Equal(t, 0, results[0].Output)

	require.ErrorIs(t, results[1].Err, ErrTaskPanicked)
	require.Contains(t, results[1].Err.Error(), "kaboom")
	slot, ok := ExtractSlot(results[1].Err)
	require.True(t, ok)
	require.Equal(t, 1, slot)

	require.ErrorIs(t, results[2].Err, boom)
	require.Equal(t, 0, results[2].Output, "output stays zero on error")

	failed, _ := mp.CounterValue("items_failed_total")
	require.Equal(t, int64(2), failed)

	// The worker that panicked keeps serving.
	require.NoError(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(fn, 5), NewWorkItem(fn, 6)}))
	results, err = p.Collect()
	require.NoError(t, err)
	require.Equal(t, 60, results[1].Output)
}

func TestPool_WorkerGone(t *testing.T) {
	mp := metrics.NewBasicProvider()
	p, err := New[int, int](2, WithMetrics(mp))
	require.NoError(t, err)

	fn := Pure(func(in int) int {
		if in < 0 {
			runtime.Goexit()
		}
		return in
	})

	require.NoError(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(fn, 1), NewWorkItem(fn, -1)}))
	_, err = p.Collect()
	require.ErrorIs(t, err, ErrWorkerGone)
	slot, ok := ExtractSlot(err)
	require.True(t, ok)
	require.Equal(t, 1, slot)

	require.ErrorIs(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(fn, 2)}), ErrInvalidState)
	_, err = collectWithin(t, p, time.Second)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, 0, p.Pending())

	inflight, _ := mp.UpDownValue("items_inflight")
	require.Equal(t, int64(0), inflight)

	shutdownWithin(t, p, 2*time.Second)
	stopped, _ := mp.CounterValue("workers_stopped_total")
	require.Equal(t, int64(2), stopped)
}

func TestPool_CollectContext_Cancelled(t *testing.T) {
	p, err := New[int, int](2)
	require.NoError(t, err)

	release := make(chan struct{})
	fn := Pure(func(in int) int {
		if in == 1 {
			<-release
		}
		return in
	})

	require.NoError(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(fn, 0), NewWorkItem(fn, 1)}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = p.CollectContext(ctx)
	require.ErrorIs(t, err, ErrCollectCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.ErrorIs(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(fn, 2)}), ErrInvalidState)
	_, err = collectWithin(t, p, time.Second)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = p.CollectContext(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, 0, p.Pending())

	close(release)
	shutdownWithin(t, p, 2*time.Second)
	require.Equal(t, 1, p.Residual(), "the late result of slot 1 is drained")
}

func TestPool_Shutdown(t *testing.T) {
	const n = 4
	mp := metrics.NewBasicProvider()
	p, err := New[int, int](n, WithMetrics(mp))
	require.NoError(t, err)

	require.NoError(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(Pure(double), 1)}))
	_, err = p.Collect()
	require.NoError(t, err)

	shutdownWithin(t, p, 2*time.Second)
	require.Equal(t, 0, p.Residual())

	started, _ := mp.CounterValue("workers_started_total")
	stopped, _ := mp.CounterValue("workers_stopped_total")
	require.Equal(t, int64(n), started)
	require.Equal(t, int64(n), stopped)

	inflight, _ := mp.UpDownValue("items_inflight")
	require.Equal(t, int64(0), inflight)

	require.ErrorIs(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(Pure(double), 1)}), ErrPoolClosed)
	_, err = p.Collect()
	require.ErrorIs(t, err, ErrPoolClosed)

	// idempotent
	shutdownWithin(t, p, time.Second)
	stopped, _ = mp.CounterValue("workers_stopped_total")
	require.Equal(t, int64(n), stopped)
}

func TestPool_Shutdown_DrainsUncollectedBatch(t *testing.T) {
	p, err := New[int, int](3)
	require.NoError(t, err)

	require.NoError(t, p.Submit([]*WorkItem[int, int]{
		NewWorkItem(Pure(double), 1), NewWorkItem(Pure(double), 2), NewWorkItem(Pure(double), 3),
	}))

	shutdownWithin(t, p, 2*time.Second)
	require.Equal(t, 3, p.Residual())
	require.Equal(t, 0, p.Pending())
}

func TestPool_Metrics(t *testing.T) {
	mp := metrics.NewBasicProvider()
	p, err := New[int, int](2, WithMetrics(mp))
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, p.Submit([]*WorkItem[int, int]{NewWorkItem(Pure(double), 1), NewWorkItem(Pure(double), 2)}))
		_, err = p.Collect()
		require.NoError(t, err)
	}
	shutdownWithin(t, p, 2*time.Second)

	items, _ := mp.CounterValue("items_submitted_total")
	batches, _ := mp.CounterValue("batches_submitted_total")
	require.Equal(t, int64(6), items)
	require.Equal(t, int64(3), batches)

	h, ok := mp.HistogramSnapshot("item_duration_seconds")
	require.True(t, ok)
	require.Equal(t, int64(6), h.Count)
}
