package datalog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// writer appends newline-delimited JSON records to a file, opening it
// lazily on first write. Safe for concurrent use.
type writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

func newWriter(path string) *writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &writer{path: path}
}

func (w *writer) ensureOpenLocked() error {
	if w.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	w.file = f
	w.w = bufio.NewWriterSize(f, 256*1024)
	return nil
}

// write appends v as a single JSON object followed by '\n', flushing so the
// record is visible to tailers.
func (w *writer) write(v any) error {
	if w == nil {
		return nil
	}
	if v == nil {
		return fmt.Errorf("datalog: nil record")
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpenLocked(); err != nil {
		return err
	}

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *writer) close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		if err := w.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.w = nil
	w.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
