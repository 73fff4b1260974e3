package parsort

import (
	"sync"
)

// shutdownCoordinator encapsulates the shutdown sequence for Pool.
// It is a wiring helper: it doesn't own channels; it orchestrates closing,
// signalling, waiting and draining in a deterministic order.
//
// Close() is safe for repeated calls; the sequence executes exactly once.
type shutdownCoordinator struct {
	markClosed func()
	signal     func()
	workersWG  *sync.WaitGroup
	drain      func() int

	once     sync.Once
	residual int
}

func newShutdownCoordinator(
	markClosed func(),
	signal func(),
	workersWG *sync.WaitGroup,
	drain func() int,
) *shutdownCoordinator {
	return &shutdownCoordinator{
		markClosed: markClosed,
		signal:     signal,
		workersWG:  workersWG,
		drain:      drain,
	}
}

// Close executes the shutdown sequence exactly once:
// 1) mark the pool closed so Submit and Collect fail fast
// 2) send one terminate item to every worker
// 3) wait for all worker goroutines to exit
// 4) drain results nobody collected and remember their count
func (sc *shutdownCoordinator) Close() {
	sc.once.Do(func() {
		if sc.markClosed != nil {
			sc.markClosed()
		}
		if sc.signal != nil {
			sc.signal()
		}
		if sc.workersWG != nil {
			sc.workersWG.Wait()
		}
		if sc.drain != nil {
			sc.residual = sc.drain()
		}
	})
}

// Residual returns the number of results drained during Close.
func (sc *shutdownCoordinator) Residual() int { return sc.residual }
