// Package datalog records trading session events as JSONL files, one file
// per run under <base>/<yyyy-mm-dd>/run-<stamp>.jsonl.
//
// Writes happen on a background goroutine; Log never blocks the trading
// path, dropping events instead when the queue is full.
package datalog

import (
	"log"
	"path/filepath"
	"sync"
	"time"
)

const queueSize = 1024

type Logger struct {
	w  *writer
	ch chan any

	closeOnce sync.Once
	done      chan struct{}
}

// RunFilePath returns the session file path for a run starting at now.
func RunFilePath(baseDir string, now time.Time) string {
	now = now.UTC()
	return filepath.Join(
		baseDir,
		now.Format("2006-01-02"),
		"run-"+now.Format("2006-01-02T15-04-05")+".jsonl",
	)
}

// New starts a logger writing under baseDir. An empty baseDir disables
// logging; all methods on the returned nil-backed logger are no-ops.
func New(baseDir string) *Logger {
	if baseDir == "" {
		return nil
	}
	l := &Logger{
		w:    newWriter(RunFilePath(baseDir, time.Now())),
		ch:   make(chan any, queueSize),
		done: make(chan struct{}),
	}
	go l.writeLoop()
	return l
}

// Log queues an event for asynchronous writing. Never blocks; events are
// dropped when the queue is full.
func (l *Logger) Log(event any) {
	if l == nil || event == nil {
		return
	}
	select {
	case l.ch <- event:
	default:
	}
}

// Close drains queued events, flushes, and stops the writer goroutine.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() { close(l.ch) })
	<-l.done
	return l.w.close()
}

func (l *Logger) writeLoop() {
	defer close(l.done)
	for event := range l.ch {
		if err := l.w.write(event); err != nil {
			log.Printf("[warn] data log write failed: %v", err)
		}
	}
}
