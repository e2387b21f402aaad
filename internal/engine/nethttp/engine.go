// Package nethttp implements the transfer engine on top of the standard
// library HTTP client. Each attached transfer runs on its own goroutine and
// streams its body through the sink in chunks; finished transfers are
// surfaced only through Perform.
package nethttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/fetchmux/fetchmux/internal/engine"
)

// EngineName is the name used when registering with the engine registry.
const EngineName = "nethttp"

// readChunkSize is the buffer size for streaming response bodies into sinks.
const readChunkSize = 32 * 1024

// defaultMaxRedirects bounds redirect chains when the spec leaves the limit
// unset.
const defaultMaxRedirects = 10

// Engine multiplexes transfers over net/http.
type Engine struct {
	transport *http.Transport
	cfg       engine.Config
	table     *engine.Table

	mu     sync.Mutex
	closed bool
}

var _ engine.Engine = (*Engine)(nil)

// Factory builds a nethttp engine for registry registration.
func Factory(cfg engine.Config) (engine.Engine, error) {
	return New(cfg), nil
}

// New creates a nethttp engine. The underlying transport is shared by all
// transfers.
func New(cfg engine.Config) *Engine {
	return &Engine{
		transport: http.DefaultTransport.(*http.Transport).Clone(),
		cfg:       cfg,
		table:     engine.NewTable(),
	}
}

// Name identifies this engine implementation.
func (e *Engine) Name() string { return EngineName }

// Create builds one transfer from the spec and returns its handle.
func (e *Engine) Create(spec engine.Spec) (engine.Handle, error) {
	if err := e.guard(); err != nil {
		return "", err
	}
	if spec.URL == "" {
		return "", errors.New("transfer URL is empty")
	}
	if spec.Sink == nil {
		return "", errors.New("transfer sink is nil")
	}
	return e.table.Add(spec), nil
}

// Attach adds the transfer to the multiplexer and starts it.
func (e *Engine) Attach(h engine.Handle) error {
	if err := e.guard(); err != nil {
		return err
	}
	spec, err := e.table.Spec(h)
	if err != nil {
		return err
	}
	if err := e.table.MarkAttached(h); err != nil {
		return err
	}

	go e.run(h, spec)
	return nil
}

// Detach removes a finished transfer from the multiplexer.
func (e *Engine) Detach(h engine.Handle) error {
	return e.table.MarkDetached(h)
}

// Perform reports the transfers that finished since the previous call. It
// never blocks.
func (e *Engine) Perform() ([]engine.Handle, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.table.DrainFinished(), nil
}

// Outcome returns the final result of a finished transfer.
func (e *Engine) Outcome(h engine.Handle) (engine.Result, error) {
	return e.table.Result(h)
}

// Release frees all engine-owned state for a transfer.
func (e *Engine) Release(h engine.Handle) error {
	return e.table.Remove(h)
}

// Close tears the engine down and releases idle connections. It fails while
// transfers are still attached.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("engine already closed")
	}
	if e.table.Attached() > 0 {
		return engine.ErrTransfersAttached
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}

func (e *Engine) guard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("engine is closed")
	}
	return nil
}

// run drives one transfer to its terminal state on its own goroutine.
func (e *Engine) run(h engine.Handle, spec engine.Spec) {
	res := e.perform(spec)
	// Finish can only fail if the handle vanished, which the lifecycle
	// rules prevent while the transfer is attached.
	_ = e.table.Finish(h, res)
}

func (e *Engine) perform(spec engine.Spec) engine.Result {
	req, err := http.NewRequest(http.MethodGet, spec.URL, nil)
	if err != nil {
		return engine.Result{Err: fmt.Errorf("build request: %w", err)}
	}
	if ua := e.userAgent(spec); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	client := &http.Client{
		Transport:     e.transport,
		CheckRedirect: redirectPolicy(spec, e.cfg),
	}

	resp, err := client.Do(req)
	if err != nil {
		return engine.Result{Err: fmt.Errorf("perform transfer: %w", err)}
	}
	defer resp.Body.Close()

	buf := make([]byte, readChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if consumed := spec.Sink(buf[:n]); consumed < n {
				return engine.Result{Status: resp.StatusCode, Err: engine.ErrAborted}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return engine.Result{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
		}
	}

	return engine.Result{Status: resp.StatusCode}
}

func (e *Engine) userAgent(spec engine.Spec) string {
	if spec.UserAgent != "" {
		return spec.UserAgent
	}
	return e.cfg.UserAgent
}

// redirectPolicy builds the CheckRedirect hook for one transfer. A transfer
// that does not follow redirects returns the redirect response itself.
func redirectPolicy(spec engine.Spec, cfg engine.Config) func(*http.Request, []*http.Request) error {
	if !spec.FollowRedirects {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	limit := spec.MaxRedirects
	if limit <= 0 {
		limit = cfg.MaxRedirects
	}
	if limit <= 0 {
		limit = defaultMaxRedirects
	}

	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		return nil
	}
}
