// testserver starts a standalone origin server with a small built-in file
// corpus, so the fetchmux CLI and the transfer engines have something local
// to fetch against.
// Usage: go run ./cmd/testserver
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/fetchmux/fetchmux/internal/origin"
)

func main() {
	addr := ":8080"
	if v := os.Getenv("FETCHMUX_LISTEN_ADDR"); v != "" {
		addr = v
	}

	files := map[string]string{
		"file1.txt": "hello",
		"file2.txt": "hello world",
		"large.txt": largeBody(),
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	srv := origin.NewServer(addr, files, logger)

	logger.Info("testserver: starting", "addr", addr, "files", len(files))
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// largeBody builds a response big enough to span several read chunks.
func largeBody() string {
	line := "the quick brown fox jumps over the lazy dog\n"
	buf := make([]byte, 0, 256*1024)
	for len(buf) < 256*1024 {
		buf = append(buf, line...)
	}
	return string(buf)
}
