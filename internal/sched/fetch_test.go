package sched

import (
	"errors"
	"testing"
)

func TestFetchBlocksUntilBody(t *testing.T) {
	eng := newStubEngine(map[string]stubResponse{
		"http://x/file1.txt": {status: 200, chunks: []string{"hello"}, delayTicks: 3},
	})

	body, err := Fetch(eng, "http://x/file1.txt")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
	if !eng.closed {
		t.Error("Fetch did not close its engine")
	}
}

func TestFetchStatusError(t *testing.T) {
	eng := newStubEngine(map[string]stubResponse{
		"http://x/secret": {status: 403},
	})

	_, err := Fetch(eng, "http://x/secret")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 403 {
		t.Errorf("Fetch error = %v, want StatusError 403", err)
	}
	if !eng.closed {
		t.Error("Fetch did not close its engine after a failed transfer")
	}
}
