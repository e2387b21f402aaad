package sched

import (
	"fmt"

	"github.com/fetchmux/fetchmux/internal/task"
)

// AwaitGet fetches url from inside a task body, suspending the task until
// the transfer completes. The suspension always happens: the transfer is
// started at the suspension point and its completion — delivered inside a
// later Tick — stores the result and resumes the task synchronously on the
// driving goroutine. It yields exactly the bytes a directly registered Get
// on the same url would deliver.
//
// AwaitGet must only be called from within a task body driven by the same
// goroutine that ticks this scheduler.
func (s *Scheduler) AwaitGet(t *task.Task, url string) ([]byte, error) {
	var body []byte
	var terr error

	err := t.Suspend(func(resume func()) error {
		return s.Get(url, func(b []byte, err error) {
			body = b
			terr = err
			resume()
		})
	})
	if err != nil {
		return nil, fmt.Errorf("start awaited transfer: %w", err)
	}

	return body, terr
}
