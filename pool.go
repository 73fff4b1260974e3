package parsort

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ygrebnov/errorc"
)

// Pool is a fixed set of persistent workers executing batches of WorkItems.
//
// Worker i reads from inbound channel i and writes to outbound channel i; this
// index binding is the only addressing scheme. A batch of k items is sent to
// workers 0..k-1 and collected from the same workers in the same order, so
// results come back in submission order regardless of completion order.
//
// Pool follows a single-writer discipline: Submit, Collect, CollectContext and
// Shutdown must not be called concurrently. Calls after Shutdown fail fast
// with ErrPoolClosed.
type Pool[I, O any] struct {
	// noCopy prevents accidental copying of the pool.
	//go:nocopy
	nc noCopy

	n        int
	inbound  []chan *WorkItem[I, O]
	outbound []chan *WorkItem[I, O]

	workersWG sync.WaitGroup

	// pending is the size of the last submitted batch. hasPending is true
	// between a Submit and the Collect that consumes it.
	pending    int
	hasPending bool

	// faulted is set when a collect was abandoned; results may still be in
	// flight, so the pool accepts no new batches.
	faulted bool

	closed   atomic.Bool
	shutdown *shutdownCoordinator

	inst *instruments
}

// noCopy is a vet-recognized marker to discourage copying types with this field embedded.
// It works with the "-copylocks" analyzer via the presence of Lock/Unlock methods.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New starts a pool of n workers. It returns an error wrapping
// ErrInvalidConfig if n is zero or an option is invalid; no worker is started
// in that case.
func New[I, O any](n uint, opts ...Option) (*Pool[I, O], error) {
	if n == 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "pool size must be > 0"))
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	p := &Pool[I, O]{
		n:        int(n),
		inbound:  make([]chan *WorkItem[I, O], n),
		outbound: make([]chan *WorkItem[I, O], n),
		inst:     newInstruments(cfg.Metrics),
	}
	p.shutdown = newShutdownCoordinator(
		func() { p.closed.Store(true) },
		p.signalTerminate,
		&p.workersWG,
		p.drainOutbound,
	)

	for i := range p.n {
		// Capacity 1 on both sides: a submit never waits for an idle worker and
		// a worker never waits for collect to read its result.
		p.inbound[i] = make(chan *WorkItem[I, O], 1)
		p.outbound[i] = make(chan *WorkItem[I, O], 1)

		w := newWorker[I, O](i, p.inbound[i], p.outbound[i], p.inst)
		p.workersWG.Add(1)
		go func() {
			defer p.workersWG.Done()
			w.run()
		}()
		p.inst.workersStarted.Add(1)
	}

	return p, nil
}

// Size returns the number of workers.
func (p *Pool[I, O]) Size() int { return p.n }

// Pending returns the size of the batch awaiting Collect, or zero. A batch
// whose collect failed is no longer pending.
func (p *Pool[I, O]) Pending() int {
	if p.faulted {
		return 0
	}
	return p.pending
}

// Submit sends batch[k] to worker k for every k in the batch.
//
// Semantics:
//   - len(batch) must not exceed Size(); otherwise ErrCapacityExceeded is
//     returned and nothing is sent. Batches are never truncated or queued.
//   - The previous batch must have been collected; otherwise ErrInvalidState.
//   - Every item must be non-nil, built with NewWorkItem and appear at most
//     once in the batch; otherwise ErrInvalidWorkItem and nothing is sent.
//   - After Shutdown, ErrPoolClosed.
func (p *Pool[I, O]) Submit(batch []*WorkItem[I, O]) error {
	switch {
	case p.closed.Load():
		return ErrPoolClosed
	case len(batch) > p.n:
		return errorc.With(ErrCapacityExceeded, errorc.String("",
			"batch of "+strconv.Itoa(len(batch))+" items, pool of "+strconv.Itoa(p.n)+" workers"))
	case p.hasPending, p.faulted:
		return ErrInvalidState
	}

	seen := make(map[*WorkItem[I, O]]struct{}, len(batch))
	for k, item := range batch {
		if item == nil || item.fn == nil || item.terminate {
			return errorc.With(ErrInvalidWorkItem, errorc.String("", "batch index "+strconv.Itoa(k)))
		}
		if _, dup := seen[item]; dup {
			return errorc.With(ErrInvalidWorkItem, errorc.String("", "batch index "+strconv.Itoa(k)+" repeats an item"))
		}
		seen[item] = struct{}{}
	}

	for k, item := range batch {
		item.Err = nil
		p.inst.inflight.Add(1)
		p.inbound[k] <- item
	}

	p.pending = len(batch)
	p.hasPending = true
	p.inst.itemsSubmitted.Add(int64(len(batch)))
	p.inst.batchesSubmitted.Add(1)
	return nil
}

// Collect blocks until every item of the last batch has been returned and
// yields them in submission order. It has no timeout; see CollectContext.
//
// Item failures are not Collect failures: a failed item is returned with its
// Err set. Collect itself fails with ErrWorkerGone (tagged with the slot) if a
// worker exited without returning its item, and with ErrPoolClosed after
// Shutdown. Collect without a pending batch returns an empty slice.
func (p *Pool[I, O]) Collect() ([]*WorkItem[I, O], error) {
	return p.CollectContext(context.Background())
}

// CollectContext is Collect bounded by ctx. When ctx is done before every
// result has arrived, it returns an error wrapping ErrCollectCancelled and
// ctx.Err(), and the pool rejects further batches and collects with
// ErrInvalidState. The pool can still be shut down.
func (p *Pool[I, O]) CollectContext(ctx context.Context) ([]*WorkItem[I, O], error) {
	switch {
	case p.closed.Load():
		return nil, ErrPoolClosed
	case p.faulted:
		return nil, ErrInvalidState
	case !p.hasPending:
		return []*WorkItem[I, O]{}, nil
	}

	results := make([]*WorkItem[I, O], 0, p.pending)
	for i := range p.pending {
		select {
		case item, ok := <-p.outbound[i]:
			if !ok {
				p.faulted = true
				return nil, newSlotError(ErrWorkerGone, i)
			}
			results = append(results, item)

		case <-ctx.Done():
			p.faulted = true
			return nil, fmt.Errorf("%w: %w", ErrCollectCancelled, ctx.Err())
		}
	}

	p.pending = 0
	p.hasPending = false
	return results, nil
}

// Shutdown sends a terminate item to every worker and waits for all of them
// to exit. Results that were submitted but never collected are drained and
// counted, see Residual. Shutdown is idempotent. It waits for items still
// executing, so a function that never returns blocks it.
func (p *Pool[I, O]) Shutdown() {
	p.shutdown.Close()
}

// Residual returns the number of uncollected results drained by Shutdown.
// It is zero before Shutdown and after a clean one.
func (p *Pool[I, O]) Residual() int { return p.shutdown.Residual() }

// signalTerminate sends one terminate item per worker.
// A worker that already exited left its inbound buffer empty, so no send blocks forever.
func (p *Pool[I, O]) signalTerminate() {
	for i := range p.inbound {
		p.inbound[i] <- newTerminateItem[I, O]()
	}
}

// drainOutbound reads whatever is left in the outbound channels. Workers close
// their outbound channel on exit, so it must run after they are all joined.
func (p *Pool[I, O]) drainOutbound() int {
	residual := 0
	for i := range p.outbound {
		for range p.outbound[i] {
			residual++
		}
	}
	p.pending = 0
	p.hasPending = false
	return residual
}
