package logging

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

const defaultLogLimit = 2 * 1024 * 1024

// RotatingWriter is a log file capped at limit bytes. A write that takes it
// past the cap moves it to path.1, replacing the previous backup, and starts
// a fresh file.
type RotatingWriter struct {
	mu    sync.Mutex
	path  string
	limit int64
	f     *os.File
	size  int64
	done  bool
}

func OpenRotating(path string) (*RotatingWriter, error) {
	return openRotating(path, defaultLogLimit)
}

func openRotating(path string, limit int64) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, limit: limit}
	if info, err := os.Stat(path); err == nil && info.Size() > limit {
		if err := os.Rename(path, w.backup()); err != nil {
			return nil, fmt.Errorf("rotate oversized log %s: %w", path, err)
		}
	}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) backup() string {
	return w.path + ".1"
}

func (w *RotatingWriter) open(mode int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log %s: %w", w.path, err)
	}
	w.f, w.size = f, info.Size()
	return nil
}

// Write appends p and rotates once the cap is crossed. A failed rotation is
// reported after p has been written; the next write retries the open.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return 0, os.ErrClosed
	}
	if w.f == nil {
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, err
	}
	if w.size > w.limit {
		if err := w.rotate(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// rotate swaps in a fresh file. When the backup cannot be written the
// current file is truncated instead so the cap still holds.
func (w *RotatingWriter) rotate() error {
	closeErr := w.f.Close()
	w.f = nil

	var renameErr error
	if err := os.Rename(w.path, w.backup()); err != nil {
		renameErr = fmt.Errorf("rotate log %s: %w", w.path, err)
	}
	return errors.Join(closeErr, renameErr, w.open(os.O_TRUNC))
}

// Sync satisfies zapcore.WriteSyncer.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
