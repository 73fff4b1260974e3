package parsort

import (
	"time"

	"github.com/ygrebnov/parsort/metrics"
)

// worker is a persistent goroutine bound to one pool slot.
// It owns the sending side of outbound and closes it on exit.
type worker[I, O any] struct {
	slot     int
	inbound  <-chan *WorkItem[I, O]
	outbound chan<- *WorkItem[I, O]
	inst     *instruments
}

func newWorker[I, O any](
	slot int, inbound <-chan *WorkItem[I, O], outbound chan<- *WorkItem[I, O], inst *instruments,
) *worker[I, O] {
	return &worker[I, O]{slot: slot, inbound: inbound, outbound: outbound, inst: inst}
}

// run receives items until a terminate item arrives or inbound is closed.
func (w *worker[I, O]) run() {
	defer close(w.outbound)
	defer w.inst.workersStopped.Add(1)

	for item := range w.inbound {
		if item.terminate {
			return
		}
		w.execute(item)
		w.outbound <- item
	}
}

func (w *worker[I, O]) execute(item *WorkItem[I, O]) {
	item.slot = w.slot

	// Recorded on every exit, runtime.Goexit included.
	start := time.Now()
	defer func() {
		w.inst.itemDuration.Record(time.Since(start).Seconds())
		w.inst.inflight.Add(-1)
	}()

	item.run()
	if item.Err != nil {
		w.inst.itemsFailed.Add(1)
	}
}

// instruments groups the pool metrics so workers record into the same set.
type instruments struct {
	itemsSubmitted   metrics.Counter
	batchesSubmitted metrics.Counter
	itemsFailed      metrics.Counter
	inflight         metrics.UpDownCounter
	itemDuration     metrics.Histogram
	workersStarted   metrics.Counter
	workersStopped   metrics.Counter
}

func newInstruments(p metrics.Provider) *instruments {
	return &instruments{
		itemsSubmitted: p.Counter("items_submitted_total",
			metrics.WithDescription("Work items submitted to the pool"), metrics.WithUnit("1")),
		batchesSubmitted: p.Counter("batches_submitted_total",
			metrics.WithDescription("Batches submitted to the pool"), metrics.WithUnit("1")),
		itemsFailed: p.Counter("items_failed_total",
			metrics.WithDescription("Work items that returned an error or panicked"), metrics.WithUnit("1")),
		inflight: p.UpDownCounter("items_inflight",
			metrics.WithDescription("Work items currently executing"), metrics.WithUnit("1")),
		itemDuration: p.Histogram("item_duration_seconds",
			metrics.WithDescription("Work item execution time"), metrics.WithUnit("seconds")),
		workersStarted: p.Counter("workers_started_total",
			metrics.WithDescription("Worker goroutines started"), metrics.WithUnit("1")),
		workersStopped: p.Counter("workers_stopped_total",
			metrics.WithDescription("Worker goroutines exited"), metrics.WithUnit("1")),
	}
}
