package parsort

import "errors"

const Namespace = "parsort"

var (
	ErrInvalidConfig    = errors.New(Namespace + ": invalid configuration")
	ErrCapacityExceeded = errors.New(Namespace + ": batch size exceeds the number of workers")
	ErrInvalidState     = errors.New(
		Namespace + ": cannot submit a batch while a previous batch is uncollected or the pool is faulted",
	)
	ErrInvalidWorkItem  = errors.New(Namespace + ": invalid work item")
	ErrPoolClosed       = errors.New(Namespace + ": pool is shut down")
	ErrTaskPanicked     = errors.New(Namespace + ": work item execution panicked")
	ErrWorkerGone       = errors.New(Namespace + ": worker exited before returning its result")
	ErrCollectCancelled = errors.New(Namespace + ": collect cancelled")
	ErrSortFailed       = errors.New(Namespace + ": sort failed")
)
