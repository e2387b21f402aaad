// fetchmux fetches one or more URLs through an asynchronous transfer
// engine and records every transfer in the fetch history database.
//
// By default all URLs are registered up front and complete in whatever
// order the wire delivers them. With -sequential the URLs are fetched one
// after another from inside a cooperative task, each await suspending the
// task until its transfer completes.
//
// Usage: fetchmux [-sequential] URL [URL ...]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fetchmux/fetchmux/internal/config"
	"github.com/fetchmux/fetchmux/internal/engine"
	"github.com/fetchmux/fetchmux/internal/engine/fastcli"
	"github.com/fetchmux/fetchmux/internal/engine/nethttp"
	"github.com/fetchmux/fetchmux/internal/sched"
	"github.com/fetchmux/fetchmux/internal/store"
	"github.com/fetchmux/fetchmux/internal/task"
)

// idleWait is how long the drive loop sleeps between ticks that delivered
// nothing.
const idleWait = time.Millisecond

func main() {
	sequential := flag.Bool("sequential", false, "fetch URLs one at a time from a cooperative task")
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: fetchmux [-sequential] URL [URL ...]")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	logger.Info("fetchmux: starting",
		"engine", cfg.Engine,
		"db_path", cfg.DBPath,
		"urls", len(urls),
		"sequential", *sequential,
	)

	reg := engine.NewRegistry()
	reg.Register(nethttp.EngineName, nethttp.Factory)
	reg.Register(fastcli.EngineName, fastcli.Factory)

	eng, err := reg.Resolve(cfg.Engine, engine.Config{
		UserAgent:    cfg.UserAgent,
		MaxRedirects: cfg.MaxRedirects,
	})
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	s, err := sched.New(eng, logger)
	if err != nil {
		log.Fatalf("failed to build scheduler: %v", err)
	}
	s.SetRecorder(db)

	var failures int
	if *sequential {
		failures = runSequential(s, urls)
	} else {
		failures = runConcurrent(s, urls)
	}

	if err := s.Close(); err != nil {
		log.Fatalf("failed to close scheduler: %v", err)
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// runConcurrent registers every URL up front and ticks until all
// completions have been delivered. Returns the number of failed fetches.
func runConcurrent(s *sched.Scheduler, urls []string) int {
	remaining := len(urls)
	failures := 0

	for _, u := range urls {
		url := u
		err := s.Get(url, func(body []byte, err error) {
			remaining--
			if !report(url, body, err) {
				failures++
			}
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", url, err)
			remaining--
			failures++
		}
	}

	for remaining > 0 {
		if err := s.Tick(); err != nil {
			log.Fatalf("tick failed: %v", err)
		}
		if remaining > 0 {
			time.Sleep(idleWait)
		}
	}
	return failures
}

// runSequential fetches the URLs one after another from inside a task,
// suspending at each await until its transfer completes.
func runSequential(s *sched.Scheduler, urls []string) int {
	failures := 0

	t := task.New(func(t *task.Task) {
		for _, url := range urls {
			body, err := s.AwaitGet(t, url)
			if !report(url, body, err) {
				failures++
			}
		}
	})

	if err := t.Resume(); err != nil {
		log.Fatalf("failed to start task: %v", err)
	}
	for t.InProgress() {
		if err := s.Tick(); err != nil {
			log.Fatalf("tick failed: %v", err)
		}
		if t.InProgress() {
			time.Sleep(idleWait)
		}
	}
	return failures
}

// report prints one fetch result and reports whether it succeeded.
func report(url string, body []byte, err error) bool {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", url, err)
		return false
	}
	fmt.Printf("%s: %d bytes\n", url, len(body))
	return true
}
