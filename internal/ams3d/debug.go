package ams3d

import (
	"io"
	"log"
	"sync"
)

// LogWriters selects the destination for each of the package's three
// logging streams. A nil writer silences that stream.
type LogWriters struct {
	// Ops carries run-level events a user of the segmenter should see,
	// written through Opsf. The segmentation pipeline itself logs only to
	// Diag and Trace; recovered worker panics are returned as errors.
	Ops io.Writer
	// Diag carries tuning-relevant detail such as tiles skipped by the
	// height filter.
	Diag io.Writer
	// Trace carries per-tile volume: retention counts, local crown maxima.
	Trace io.Writer
}

var (
	streamMu sync.RWMutex
	streams  struct {
		ops, diag, trace *log.Logger
	}
)

// SetLogWriters swaps all three streams at once. Safe to call while a
// segmentation run is in flight.
func SetLogWriters(w LogWriters) {
	streamMu.Lock()
	defer streamMu.Unlock()
	streams.ops = streamLogger(w.Ops)
	streams.diag = streamLogger(w.Diag)
	streams.trace = streamLogger(w.Trace)
}

func streamLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[ams3d] ", log.LstdFlags|log.Lmicroseconds)
}

func logTo(pick func() *log.Logger, format string, args []interface{}) {
	streamMu.RLock()
	l := pick()
	streamMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Opsf logs an event the operator of a segmentation run should act on.
func Opsf(format string, args ...interface{}) {
	logTo(func() *log.Logger { return streams.ops }, format, args)
}

// Diagf logs detail useful when tuning kernel or tiling parameters.
func Diagf(format string, args ...interface{}) {
	logTo(func() *log.Logger { return streams.diag }, format, args)
}

// Tracef logs per-tile detail; enable only when chasing a specific tile.
func Tracef(format string, args ...interface{}) {
	logTo(func() *log.Logger { return streams.trace }, format, args)
}
