package nethttp

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fetchmux/fetchmux/internal/engine"
)

const finishTimeout = 5 * time.Second

// waitFinished polls Perform until the engine reports one finished transfer.
func waitFinished(t *testing.T, eng engine.Engine) engine.Handle {
	t.Helper()
	deadline := time.Now().Add(finishTimeout)
	for time.Now().Before(deadline) {
		done, err := eng.Perform()
		if err != nil {
			t.Fatalf("Perform: %v", err)
		}
		if len(done) > 0 {
			return done[0]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("transfer did not finish in time")
	return ""
}

// start creates and attaches one transfer accumulating into buf.
func start(t *testing.T, eng engine.Engine, url string, spec engine.Spec, buf *bytes.Buffer) engine.Handle {
	t.Helper()
	spec.URL = url
	if spec.Sink == nil {
		spec.Sink = func(chunk []byte) int {
			buf.Write(chunk)
			return len(chunk)
		}
	}
	h, err := eng.Create(spec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := eng.Attach(h); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return h
}

func finish(t *testing.T, eng engine.Engine, h engine.Handle) engine.Result {
	t.Helper()
	got := waitFinished(t, eng)
	if got != h {
		t.Fatalf("finished handle = %s, want %s", got, h)
	}
	if err := eng.Detach(h); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	res, err := eng.Outcome(h)
	if err != nil {
		t.Fatalf("Outcome: %v", err)
	}
	if err := eng.Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	return res
}

func TestEngineFetchesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	eng := New(engine.Config{})
	defer eng.Close()

	var buf bytes.Buffer
	h := start(t, eng, srv.URL+"/file1.txt", engine.Spec{FollowRedirects: true}, &buf)

	res := finish(t, eng, h)
	if res.Err != nil {
		t.Fatalf("transfer error: %v", res.Err)
	}
	if res.Status != http.StatusOK {
		t.Errorf("status = %d, want %d", res.Status, http.StatusOK)
	}
	if buf.String() != "hello" {
		t.Errorf("body = %q, want %q", buf.String(), "hello")
	}
}

func TestEngineFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	eng := New(engine.Config{})
	defer eng.Close()

	var buf bytes.Buffer
	h := start(t, eng, srv.URL+"/hop", engine.Spec{FollowRedirects: true}, &buf)

	res := finish(t, eng, h)
	if res.Err != nil {
		t.Fatalf("transfer error: %v", res.Err)
	}
	if res.Status != http.StatusOK {
		t.Errorf("status = %d, want %d", res.Status, http.StatusOK)
	}
	if buf.String() != "landed" {
		t.Errorf("body = %q, want %q", buf.String(), "landed")
	}
}

func TestEngineStopsAtRedirectWhenNotFollowing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	eng := New(engine.Config{})
	defer eng.Close()

	var buf bytes.Buffer
	h := start(t, eng, srv.URL, engine.Spec{FollowRedirects: false}, &buf)

	res := finish(t, eng, h)
	if res.Err != nil {
		t.Fatalf("transfer error: %v", res.Err)
	}
	if res.Status != http.StatusFound {
		t.Errorf("status = %d, want %d", res.Status, http.StatusFound)
	}
}

func TestEngineRedirectLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	eng := New(engine.Config{MaxRedirects: 2})
	defer eng.Close()

	var buf bytes.Buffer
	h := start(t, eng, srv.URL+"/loop", engine.Spec{FollowRedirects: true}, &buf)

	res := finish(t, eng, h)
	if res.Err == nil {
		t.Fatal("transfer error = nil, want redirect-limit error")
	}
}

func TestEngineSinkAbort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "some body the sink refuses")
	}))
	defer srv.Close()

	eng := New(engine.Config{})
	defer eng.Close()

	spec := engine.Spec{
		FollowRedirects: true,
		Sink:            func(chunk []byte) int { return 0 },
	}
	var buf bytes.Buffer
	h := start(t, eng, srv.URL, spec, &buf)

	res := finish(t, eng, h)
	if !errors.Is(res.Err, engine.ErrAborted) {
		t.Errorf("transfer error = %v, want ErrAborted", res.Err)
	}
}

func TestEngineSendsUserAgent(t *testing.T) {
	gotUA := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA <- r.UserAgent()
	}))
	defer srv.Close()

	eng := New(engine.Config{UserAgent: "fetchmux-test/1.0"})
	defer eng.Close()

	var buf bytes.Buffer
	h := start(t, eng, srv.URL, engine.Spec{FollowRedirects: true}, &buf)
	finish(t, eng, h)

	if ua := <-gotUA; ua != "fetchmux-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", ua, "fetchmux-test/1.0")
	}
}

func TestEngineTransportError(t *testing.T) {
	eng := New(engine.Config{})
	defer eng.Close()

	var buf bytes.Buffer
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	h := start(t, eng, url, engine.Spec{FollowRedirects: true}, &buf)

	res := finish(t, eng, h)
	if res.Err == nil {
		t.Fatal("transfer error = nil, want transport error")
	}
	if res.Status != 0 {
		t.Errorf("status = %d, want 0 for transport error", res.Status)
	}
}

func TestEngineCloseRejectsAttached(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	eng := New(engine.Config{})

	var buf bytes.Buffer
	start(t, eng, srv.URL, engine.Spec{FollowRedirects: true}, &buf)

	if err := eng.Close(); !errors.Is(err, engine.ErrTransfersAttached) {
		t.Errorf("Close with attached transfer = %v, want ErrTransfersAttached", err)
	}
}

func TestEngineCreateValidation(t *testing.T) {
	eng := New(engine.Config{})
	defer eng.Close()

	if _, err := eng.Create(engine.Spec{Sink: func([]byte) int { return 0 }}); err == nil {
		t.Error("Create with empty URL succeeded, want error")
	}
	if _, err := eng.Create(engine.Spec{URL: "http://x"}); err == nil {
		t.Error("Create with nil sink succeeded, want error")
	}
}
