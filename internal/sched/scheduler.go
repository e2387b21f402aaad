package sched

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/fetchmux/fetchmux/internal/engine"
	"github.com/fetchmux/fetchmux/internal/model"
)

// Scheduler precondition and lifecycle errors.
var (
	// ErrNilCallback is returned when a transfer is registered without a
	// completion callback.
	ErrNilCallback = errors.New("completion callback is nil")

	// ErrAlreadyRegistered is returned when a transfer handle is registered
	// twice.
	ErrAlreadyRegistered = errors.New("transfer already registered")

	// ErrTransfersPending is returned by Close while completions are still
	// outstanding. Closing under pending transfers would leak engine state,
	// so it is rejected instead.
	ErrTransfersPending = errors.New("transfers still pending")

	// ErrClosed is returned by operations on a closed scheduler.
	ErrClosed = errors.New("scheduler is closed")
)

// Recorder persists completed fetches. The history store satisfies this.
type Recorder interface {
	RecordFetch(ctx context.Context, f *model.Fetch) error
}

// completionFunc interprets the terminal result of one transfer. It runs
// exactly once, synchronously inside Tick, after the transfer has been
// detached and released.
type completionFunc func(res engine.Result)

// Scheduler multiplexes many outstanding transfers over a single engine and
// delivers their completions from Tick.
//
// A scheduler is deliberately not safe for concurrent use: all methods must
// be called from the one goroutine that drives the Tick loop. Task bodies
// resumed from inside Tick run in strict handoff with that goroutine and so
// may call Get and AwaitGet. Calling Tick itself re-entrantly from a
// completion callback is unsupported.
type Scheduler struct {
	eng     engine.Engine
	logger  *slog.Logger
	rec     Recorder
	pending map[engine.Handle]completionFunc
	closed  bool
}

// New creates a scheduler that owns eng; Close tears the engine down.
func New(eng engine.Engine, logger *slog.Logger) (*Scheduler, error) {
	if eng == nil {
		return nil, errors.New("engine is nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}

	return &Scheduler{
		eng:     eng,
		logger:  logger,
		pending: make(map[engine.Handle]completionFunc),
	}, nil
}

// SetRecorder attaches a history recorder. Every completed transfer is
// recorded; recording failures are logged and do not affect delivery.
func (s *Scheduler) SetRecorder(r Recorder) {
	s.rec = r
}

// Engine returns the underlying transfer engine.
func (s *Scheduler) Engine() engine.Engine {
	return s.eng
}

// Pending reports the number of transfers whose completion has not been
// delivered yet.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// Tick advances all registered transfers without blocking. Every transfer
// that reached a terminal state is detached from the multiplexer, removed
// from the pending set, and has its callback invoked exactly once before
// Tick returns. Completion order within one tick is engine-defined.
//
// Per-transfer failures are delivered to the transfer's own callback, never
// through Tick's return value; Tick errors only on multiplexer-level
// failure.
func (s *Scheduler) Tick() error {
	if s.closed {
		return ErrClosed
	}

	done, err := s.eng.Perform()
	if err != nil {
		return fmt.Errorf("advance multiplexer: %w", err)
	}

	for _, h := range done {
		complete, ok := s.pending[h]
		if !ok {
			// A finished transfer the scheduler does not know about means
			// the registration invariant is broken; release it and move on.
			s.logger.Error("finished transfer has no registered callback", "transfer_id", string(h))
			s.discard(h)
			continue
		}
		delete(s.pending, h)

		if err := s.eng.Detach(h); err != nil {
			s.logger.Error("detach finished transfer", "transfer_id", string(h), "error", err)
		}
		res, err := s.eng.Outcome(h)
		if err != nil {
			res = engine.Result{Err: fmt.Errorf("read transfer outcome: %w", err)}
		}
		if err := s.eng.Release(h); err != nil {
			s.logger.Error("release transfer", "transfer_id", string(h), "error", err)
		}

		complete(res)
	}

	return nil
}

// register attaches a created transfer to the multiplexer and records its
// completion callback. The transfer must not already be registered.
func (s *Scheduler) register(h engine.Handle, complete completionFunc) error {
	if s.closed {
		return ErrClosed
	}
	if complete == nil {
		return ErrNilCallback
	}
	if _, ok := s.pending[h]; ok {
		return ErrAlreadyRegistered
	}

	if err := s.eng.Attach(h); err != nil {
		return fmt.Errorf("attach transfer: %w", err)
	}
	s.pending[h] = complete

	transfersStarted.WithLabelValues(s.eng.Name()).Inc()
	return nil
}

// discard detaches and releases a transfer outside the normal completion
// path.
func (s *Scheduler) discard(h engine.Handle) {
	if err := s.eng.Detach(h); err != nil {
		s.logger.Error("detach discarded transfer", "transfer_id", string(h), "error", err)
		return
	}
	if err := s.eng.Release(h); err != nil {
		s.logger.Error("release discarded transfer", "transfer_id", string(h), "error", err)
	}
}

// Close tears down the scheduler and its engine. It is rejected with
// ErrTransfersPending while any completion is outstanding; the caller must
// drive Tick until Pending reaches zero first.
func (s *Scheduler) Close() error {
	if s.closed {
		return ErrClosed
	}
	if len(s.pending) > 0 {
		return ErrTransfersPending
	}

	s.closed = true
	if err := s.eng.Close(); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}
