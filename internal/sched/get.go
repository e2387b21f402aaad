package sched

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fetchmux/fetchmux/internal/engine"
	"github.com/fetchmux/fetchmux/internal/model"
)

// Callback receives the outcome of one transfer: the complete response body
// on success, or a non-nil error (StatusError for non-2xx responses,
// engine.ErrAborted for sink aborts, a transport error otherwise). There is
// no partial result: body is nil whenever err is non-nil.
type Callback func(body []byte, err error)

// StatusError reports a transfer that received a non-success HTTP status.
// No retry is attempted.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transfer failed with status %d", e.Status)
}

// Get starts one asynchronous GET of url. The transfer follows redirects
// and accumulates its body into a buffer owned by the transfer; on
// completion cb is invoked exactly once, synchronously inside Tick, with
// the full body or the transfer's error. Any non-2xx status is an error —
// a deliberate simplification, no retry and no partial body.
func (s *Scheduler) Get(url string, cb Callback) error {
	if s.closed {
		return ErrClosed
	}
	if cb == nil {
		return ErrNilCallback
	}

	var buf bytes.Buffer
	spec := engine.Spec{
		URL:             url,
		FollowRedirects: true,
		Sink: func(chunk []byte) int {
			buf.Write(chunk)
			return len(chunk)
		},
	}

	h, err := s.eng.Create(spec)
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}

	started := time.Now()
	complete := func(res engine.Result) {
		body, terr := interpret(res, &buf)
		s.observe(h, url, started, res, int64(buf.Len()), terr)
		if terr != nil {
			cb(nil, terr)
			return
		}
		cb(body, nil)
	}

	if err := s.register(h, complete); err != nil {
		if rerr := s.eng.Release(h); rerr != nil {
			s.logger.Error("release unregistered transfer", "transfer_id", string(h), "error", rerr)
		}
		return err
	}

	s.logger.Debug("transfer started", "transfer_id", string(h), "url", url)
	return nil
}

// interpret maps an engine result onto the callback contract, handing the
// buffer contents over exactly once on success.
func interpret(res engine.Result, buf *bytes.Buffer) ([]byte, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Status < 200 || res.Status > 299 {
		return nil, &StatusError{Status: res.Status}
	}
	return buf.Bytes(), nil
}

// observe updates metrics and the history recorder for one completion.
func (s *Scheduler) observe(h engine.Handle, url string, started time.Time, res engine.Result, size int64, terr error) {
	outcome := classify(res, terr)
	elapsed := time.Since(started)

	transfersCompleted.WithLabelValues(s.eng.Name(), outcome).Inc()
	transferDuration.WithLabelValues(s.eng.Name()).Observe(elapsed.Seconds())
	if terr == nil {
		responseBytes.WithLabelValues(s.eng.Name()).Add(float64(size))
	}

	if s.rec == nil {
		return
	}

	now := time.Now().UTC()
	f := &model.Fetch{
		ID:         string(h),
		URL:        url,
		Engine:     s.eng.Name(),
		Outcome:    outcome,
		Status:     res.Status,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  now.Add(-elapsed),
		FinishedAt: &now,
	}
	if terr != nil {
		f.Error = terr.Error()
	} else {
		f.Bytes = size
	}

	if err := s.rec.RecordFetch(context.Background(), f); err != nil {
		s.logger.Error("record fetch", "transfer_id", string(h), "error", err)
	}
}

// classify buckets a completion for metrics and history.
func classify(res engine.Result, terr error) string {
	switch {
	case terr == nil:
		return model.OutcomeSuccess
	case errors.Is(terr, engine.ErrAborted):
		return model.OutcomeAborted
	default:
		var se *StatusError
		if errors.As(terr, &se) {
			return model.OutcomeProtocolError
		}
		return model.OutcomeTransportError
	}
}
