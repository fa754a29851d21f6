// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen on a document file.
type Op int

const (
	// OpWrite indicates the file was created or modified.
	OpWrite Op = iota

	// OpRemove indicates the file was deleted or renamed away.
	OpRemove
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is a debounced change of the watched document.
type Change struct {
	// Path is the absolute path of the document.
	Path string

	// Op is the last operation seen within the debounce window.
	Op Op

	// Time is when the last event was observed.
	Time time.Time
}

// ChangeHandler is called once per debounce window with the latest change.
type ChangeHandler func(Change)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more events before calling the
	// handler.
	// Default: 200ms
	Debounce time.Duration

	// BufferSize is the size of the internal event channel.
	// Default: 64
	BufferSize int

	// Logger receives watcher errors.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce:   200 * time.Millisecond,
		BufferSize: 64,
	}
}

// Watcher reports changes to a single document file.
//
// Description:
//
//	Watches the file's directory rather than the file itself, so editors
//	that save by writing a temporary file and renaming it over the
//	original are still observed. Bursts of events are collapsed into one
//	handler call per debounce window.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	logger   *slog.Logger

	events   chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a watcher for the document at path.
//
// Inputs:
//
//	path - Document file. Its directory must exist.
//	handler - Called with each debounced change.
//	opts - Optional configuration (nil uses defaults).
//
// Outputs:
//
//	*Watcher - Call Start to begin watching and Stop to release it.
//	error - Non-nil if the path cannot be resolved or fsnotify fails.
//
// Example:
//
//	w, err := document.NewWatcher("campus.yaml", func(ch document.Change) {
//	    reload(ch.Path)
//	}, nil)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
func NewWatcher(path string, handler ChangeHandler, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultWatcherOptions().Debounce
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultWatcherOptions().BufferSize
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     absPath,
		watcher:  fw,
		handler:  handler,
		debounce: debounce,
		logger:   logger.With(slog.String("document", absPath)),
		events:   make(chan Change, size),
		done:     make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Start begins watching. It returns immediately; events are processed on
// background goroutines until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op == fsnotify.Chmod {
				continue
			}
			change := Change{Path: w.path, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.events <- change:
			default:
				// The debouncer only needs the latest event of a burst.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("document watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		return OpRemove
	}
	return OpWrite
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var (
		pending *Change
		timer   *time.Timer
		timerC  <-chan time.Time
	)

	flush := func() {
		if pending != nil && w.handler != nil {
			documentChanges.WithLabelValues(pending.Op.String()).Inc()
			w.handler(*pending)
		}
		pending = nil
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case change := <-w.events:
			pending = &change
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		}
	}
}
