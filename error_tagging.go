package parsort

import (
	"errors"
	"fmt"
)

// ItemMetaError exposes correlation metadata for a failed work item or sort round.
type ItemMetaError interface {
	error
	Unwrap() error
	Slot() (int, bool)
	Round() (int, bool)
}

const noMeta = -1

type itemTaggedError struct {
	err   error
	slot  int
	round int
}

// newSlotError tags err with the worker slot that produced it.
func newSlotError(err error, slot int) error {
	if err == nil {
		return nil
	}
	return &itemTaggedError{err: err, slot: slot, round: noMeta}
}

// withRound tags err with the merge round it happened in, keeping any slot
// already attached.
func withRound(err error, round int) error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*itemTaggedError); ok && te.round == noMeta {
		return &itemTaggedError{err: te.err, slot: te.slot, round: round}
	}
	slot, ok := ExtractSlot(err)
	if !ok {
		slot = noMeta
	}
	return &itemTaggedError{err: err, slot: slot, round: round}
}

func (e *itemTaggedError) Error() string { return e.err.Error() }
func (e *itemTaggedError) Unwrap() error { return e.err }

func (e *itemTaggedError) Slot() (int, bool) {
	if e.slot == noMeta {
		return 0, false
	}
	return e.slot, true
}

func (e *itemTaggedError) Round() (int, bool) {
	if e.round == noMeta {
		return 0, false
	}
	return e.round, true
}

func (e *itemTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "item(round=%d,slot=%d): %+v", e.round, e.slot, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractSlot returns the worker slot from err if present.
func ExtractSlot(err error) (int, bool) {
	var ime ItemMetaError
	if errors.As(err, &ime) {
		return ime.Slot()
	}
	return 0, false
}

// ExtractRound returns the merge round from err if present.
func ExtractRound(err error) (int, bool) {
	var ime ItemMetaError
	if errors.As(err, &ime) {
		return ime.Round()
	}
	return 0, false
}
