// Package sched provides the asynchronous transfer scheduler. It owns one
// transfer engine ("multiplexer"), maps every in-flight transfer to a
// single-use completion callback, and delivers completions synchronously
// from Tick on the driving goroutine. On top of that single
// completion-delivery point it offers the callback fetch API (Get), the
// awaitable fetch bridge for resumable tasks (AwaitGet), and a blocking
// convenience wrapper (Fetch).
package sched
