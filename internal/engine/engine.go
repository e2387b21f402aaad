package engine

import "errors"

// ErrAborted is the terminal error of a transfer whose sink consumed fewer
// bytes than it was handed. The engine stops reading the body and reports
// the transfer finished with this error.
var ErrAborted = errors.New("transfer aborted by sink")

// ErrUnknownHandle is returned when a handle does not identify a transfer
// owned by the engine.
var ErrUnknownHandle = errors.New("unknown transfer handle")

// ErrTransfersAttached is returned by Close while transfers are still
// attached to the multiplexer.
var ErrTransfersAttached = errors.New("transfers still attached")

// Handle is the opaque identity of one transfer. The engine owns all state
// behind a handle; callers only pass it back.
type Handle string

// SinkFunc receives one chunk of response body. It reports how many bytes it
// consumed; consuming fewer than len(chunk) aborts the transfer.
type SinkFunc func(chunk []byte) int

// Spec describes one transfer to be created by an engine.
type Spec struct {
	URL             string
	FollowRedirects bool
	MaxRedirects    int
	UserAgent       string
	Sink            SinkFunc
}

// Result is the final outcome of a finished transfer. Err is non-nil for
// transport failures and sink aborts; Status carries the HTTP status code
// when a response was received.
type Result struct {
	Status int
	Err    error
}

// Engine is the interface that all transfer engines must implement. An
// engine multiplexes many outstanding transfers and advances them without
// blocking; implementations may run goroutines internally, but finished
// transfers are only ever surfaced through Perform, on the calling
// goroutine.
type Engine interface {
	// Name identifies the engine implementation ("nethttp", "fastcli").
	Name() string

	// Create builds and configures one transfer and returns its handle.
	// The transfer does not move until it is attached.
	Create(spec Spec) (Handle, error)

	// Attach adds a created transfer to the multiplexer, starting it.
	Attach(h Handle) error

	// Detach removes a transfer from the multiplexer. Finished transfers
	// must be detached before their outcome is read.
	Detach(h Handle) error

	// Perform advances all attached transfers without blocking and returns
	// the handles that reached a terminal state since the previous call.
	Perform() ([]Handle, error)

	// Outcome reports the final result of a finished transfer.
	Outcome(h Handle) (Result, error)

	// Release frees all engine-owned state for a transfer.
	Release(h Handle) error

	// Close tears the engine down. It fails with ErrTransfersAttached if
	// any transfer is still attached.
	Close() error
}

// Config carries the per-engine settings shared by all transfers an engine
// creates defaults from.
type Config struct {
	UserAgent    string
	MaxRedirects int
}
