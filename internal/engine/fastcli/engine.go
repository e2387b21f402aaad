// Package fastcli implements the transfer engine on top of
// github.com/valyala/fasthttp. fasthttp buffers response bodies itself, so
// each transfer delivers its body to the sink in a single chunk.
package fastcli

import (
	"errors"
	"fmt"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/fetchmux/fetchmux/internal/engine"
)

// EngineName is the name used when registering with the engine registry.
const EngineName = "fastcli"

const defaultMaxRedirects = 10

// Engine multiplexes transfers over a shared fasthttp client.
type Engine struct {
	client *fasthttp.Client
	cfg    engine.Config
	table  *engine.Table

	mu     sync.Mutex
	closed bool
}

var _ engine.Engine = (*Engine)(nil)

// Factory builds a fastcli engine for registry registration.
func Factory(cfg engine.Config) (engine.Engine, error) {
	return New(cfg), nil
}

// New creates a fastcli engine.
func New(cfg engine.Config) *Engine {
	return &Engine{
		client: &fasthttp.Client{
			Name: cfg.UserAgent,
		},
		cfg:   cfg,
		table: engine.NewTable(),
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

	go func() {
		_ = e.table.Finish(h, e.perform(spec))
	}()
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

// Close tears the engine down. It fails while transfers are still attached.
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
	e.client.CloseIdleConnections()
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

func (e *Engine) perform(spec engine.Spec) engine.Result {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(spec.URL)
	req.Header.SetMethod(fasthttp.MethodGet)
	if spec.UserAgent != "" {
		req.Header.SetUserAgent(spec.UserAgent)
	}

	var err error
	if spec.FollowRedirects {
		err = e.client.DoRedirects(req, resp, e.redirectLimit(spec))
	} else {
		err = e.client.Do(req, resp)
	}
	if err != nil {
		return engine.Result{Err: fmt.Errorf("perform transfer: %w", err)}
	}

	status := resp.StatusCode()
	if body := resp.Body(); len(body) > 0 {
		if consumed := spec.Sink(body); consumed < len(body) {
			return engine.Result{Status: status, Err: engine.ErrAborted}
		}
	}

	return engine.Result{Status: status}
}

func (e *Engine) redirectLimit(spec engine.Spec) int {
	if spec.MaxRedirects > 0 {
		return spec.MaxRedirects
	}
	if e.cfg.MaxRedirects > 0 {
		return e.cfg.MaxRedirects
	}
	return defaultMaxRedirects
}
