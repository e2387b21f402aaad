package sched

import (
	"fmt"
	"time"

	"github.com/fetchmux/fetchmux/internal/engine"
)

// idleWait is how long Fetch sleeps between ticks that delivered nothing,
// to avoid spinning a core while the transfer is on the wire.
const idleWait = time.Millisecond

// Fetch performs one blocking GET of url: a convenience wrapper that builds
// a private scheduler around eng, starts the transfer, and spins Tick until
// the completion arrives. It takes ownership of eng and closes it before
// returning.
func Fetch(eng engine.Engine, url string) ([]byte, error) {
	s, err := New(eng, nil)
	if err != nil {
		return nil, err
	}

	var body []byte
	var terr error
	done := false

	if err := s.Get(url, func(b []byte, err error) {
		body = b
		terr = err
		done = true
	}); err != nil {
		_ = s.Close()
		return nil, err
	}

	for !done {
		if err := s.Tick(); err != nil {
			return nil, err
		}
		if !done {
			time.Sleep(idleWait)
		}
	}

	if terr != nil {
		_ = s.Close()
		return nil, terr
	}
	if err := s.Close(); err != nil {
		return nil, fmt.Errorf("close scheduler: %w", err)
	}
	return body, nil
}
