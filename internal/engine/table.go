package engine

import (
	"fmt"
	"sync"

	"github.com/fetchmux/fetchmux/internal/model"
)

// Transfer lifecycle states tracked by the table.
const (
	stateCreated = iota
	stateAttached
	stateFinished
	stateDetached
)

// Table tracks per-transfer state for engine implementations. It owns the
// handle namespace, the attach/finish/detach lifecycle, and the queue of
// newly finished transfers that Perform drains. Safe for concurrent use;
// engines mutate it from their transfer goroutines.
type Table struct {
	mu        sync.Mutex
	transfers map[Handle]*tableEntry
	attached  int
	finished  []Handle
}

type tableEntry struct {
	spec   Spec
	state  int
	result Result
}

// NewTable creates an empty transfer table.
func NewTable() *Table {
	return &Table{
		transfers: make(map[Handle]*tableEntry),
	}
}

// Add records a new transfer in the created state and returns its handle.
func (t *Table) Add(spec Spec) Handle {
	h := Handle(model.NewID())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.transfers[h] = &tableEntry{spec: spec, state: stateCreated}
	return h
}

// Spec returns the spec a transfer was created with.
func (t *Table) Spec(h Handle) (Spec, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.transfers[h]
	if !ok {
		return Spec{}, ErrUnknownHandle
	}
	return e.spec, nil
}

// MarkAttached transitions a created transfer to attached.
func (t *Table) MarkAttached(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.transfers[h]
	if !ok {
		return ErrUnknownHandle
	}
	if e.state != stateCreated {
		return fmt.Errorf("transfer %s already attached", h)
	}
	e.state = stateAttached
	t.attached++
	return nil
}

// Finish records the terminal result of an attached transfer and queues its
// handle for the next DrainFinished.
func (t *Table) Finish(h Handle, r Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.transfers[h]
	if !ok {
		return ErrUnknownHandle
	}
	if e.state != stateAttached {
		return fmt.Errorf("transfer %s is not attached", h)
	}
	e.state = stateFinished
	e.result = r
	t.finished = append(t.finished, h)
	return nil
}

// DrainFinished returns the handles finished since the previous call.
func (t *Table) DrainFinished() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	done := t.finished
	t.finished = nil
	return done
}

// MarkDetached removes a finished transfer from the multiplexer. In-flight
// transfers cannot be detached; a started transfer runs to completion.
func (t *Table) MarkDetached(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.transfers[h]
	if !ok {
		return ErrUnknownHandle
	}
	if e.state != stateFinished {
		return fmt.Errorf("transfer %s is not finished", h)
	}
	e.state = stateDetached
	t.attached--
	return nil
}

// Result returns the terminal result of a finished or detached transfer.
func (t *Table) Result(h Handle) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.transfers[h]
	if !ok {
		return Result{}, ErrUnknownHandle
	}
	if e.state != stateFinished && e.state != stateDetached {
		return Result{}, fmt.Errorf("transfer %s has no result yet", h)
	}
	return e.result, nil
}

// Remove frees all state for a created or detached transfer.
func (t *Table) Remove(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.transfers[h]
	if !ok {
		return ErrUnknownHandle
	}
	if e.state == stateAttached || e.state == stateFinished {
		return fmt.Errorf("transfer %s is still attached", h)
	}
	delete(t.transfers, h)
	return nil
}

// Attached reports how many transfers are attached to the multiplexer,
// including finished ones not yet detached.
func (t *Table) Attached() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attached
}
