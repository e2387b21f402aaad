// Package task implements single-shot resumable tasks: units of work that
// suspend at explicit await points and are driven forward by an external
// caller through Resume. A task's body runs on its own goroutine, but in
// strict handoff with the driving goroutine — at any instant exactly one of
// the two is running, so bodies behave like coroutines, not like concurrent
// goroutines.
package task

import "errors"

// ErrCompleted is returned by Resume when the task body has already run to
// completion.
var ErrCompleted = errors.New("task already completed")

// ErrNotSuspended is returned by Resume when the task is not at a
// suspension point.
var ErrNotSuspended = errors.New("task is not suspended")

// State is the lifecycle state of a task.
type State int

const (
	// StateSuspended means the body is parked at a suspension point (or
	// has not started yet) and is waiting to be resumed.
	StateSuspended State = iota
	// StateRunning means the body is executing.
	StateRunning
	// StateDone means the body has returned. A done task cannot be resumed.
	StateDone
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Task is one resumable unit of work. Its body does not execute until the
// first Resume, and after the body returns the task is permanently done.
//
// A task is not safe for concurrent driving: Resume and the resume function
// handed out by Suspend must be called from the single goroutine that drives
// the task (typically the goroutine spinning the scheduler's Tick loop).
//
// A panic inside the body is not recovered; there is no error channel for
// task bodies.
type Task struct {
	state State

	// resume unparks the body; yield hands control back to the driver.
	// Both are unbuffered so every transfer of control is a rendezvous.
	resume chan struct{}
	yield  chan struct{}
}

// New creates a task around body. The body goroutine starts parked; no body
// statement executes before the first Resume.
func New(body func(t *Task)) *Task {
	t := &Task{
		state:  StateSuspended,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}

	go func() {
		<-t.resume
		body(t)
		t.state = StateDone
		t.yield <- struct{}{}
	}()

	return t
}

// Resume runs the body from its current suspension point until it suspends
// again or returns. Resuming a done task returns ErrCompleted; resuming a
// task that is not suspended returns ErrNotSuspended.
func (t *Task) Resume() error {
	switch t.state {
	case StateDone:
		return ErrCompleted
	case StateRunning:
		return ErrNotSuspended
	}

	t.handoff()
	return nil
}

// InProgress reports whether the body still has work left. It is true from
// creation until the body returns.
func (t *Task) InProgress() bool {
	return t.state != StateDone
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	return t.state
}

// Suspend parks the body at a suspension point. It must be called from
// within the body. start receives a single-use resume function that the
// completion of an asynchronous operation invokes to continue the body;
// calling it twice for one suspension panics. If start returns an error the
// body is not parked and the error is returned, so a failed operation start
// never strands the task.
//
// start must not invoke the resume function synchronously: the body is not
// parked until start returns.
func (t *Task) Suspend(start func(resume func()) error) error {
	used := false
	if err := start(func() {
		if used {
			panic("task: resume called twice for one suspension")
		}
		used = true
		t.handoff()
	}); err != nil {
		return err
	}

	t.state = StateSuspended
	t.yield <- struct{}{}
	<-t.resume
	return nil
}

// handoff transfers control to the body and blocks until it yields again.
func (t *Task) handoff() {
	t.state = StateRunning
	t.resume <- struct{}{}
	<-t.yield
}
