package parsort

import (
	"fmt"
)

// Func is the canonical unit of work executed by a Pool worker.
// It maps an input of type I to an output of type O, or fails with an error.
type Func[I, O any] func(I) (O, error)

// Pure adapts a function that cannot fail to Func.
func Pure[I, O any](fn func(I) O) Func[I, O] {
	return func(in I) (O, error) { return fn(in), nil }
}

// WorkItem is one dispatchable unit of work: a function, its input and the
// slots the executing worker fills in.
//
// A WorkItem is owned by exactly one worker while it executes and is handed
// back to the caller by Collect. Output and Err must not be read before that.
type WorkItem[I, O any] struct {
	fn Func[I, O]

	// Input is passed to the function.
	Input I

	// Output holds the function result. It is the zero value of O until the
	// item is executed, and stays zero when Err is set.
	Output O

	// Err is set when the function returned an error or panicked.
	// It is tagged with the worker slot, see ExtractSlot.
	Err error

	// terminate marks a shutdown signal. It carries no input or output.
	terminate bool

	slot int
}

// NewWorkItem returns a WorkItem which applies fn to in.
func NewWorkItem[I, O any](fn Func[I, O], in I) *WorkItem[I, O] {
	return &WorkItem[I, O]{fn: fn, Input: in, slot: noMeta}
}

// newTerminateItem returns the shutdown signal sent to every worker.
func newTerminateItem[I, O any]() *WorkItem[I, O] {
	return &WorkItem[I, O]{terminate: true, slot: noMeta}
}

// Slot returns the index of the worker that executed the item, or false if the
// item has not been submitted yet.
func (w *WorkItem[I, O]) Slot() (int, bool) {
	if w.slot == noMeta {
		return 0, false
	}
	return w.slot, true
}

// run executes the item function inside a fault boundary and fills in the
// output slots. A panic is converted into an ErrTaskPanicked error.
func (w *WorkItem[I, O]) run() {
	var (
		out O
		err error
	)

	func() {
		defer func() {
			if ePanic := recover(); ePanic != nil {
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, ePanic)
			}
		}()

		out, err = w.fn(w.Input)
	}()

	if err != nil {
		var zero O
		w.Output = zero
		w.Err = newSlotError(err, w.slot)
		return
	}

	w.Output = out
	w.Err = nil
}
