// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler receives each successfully reloaded bundle.
type ReloadHandler func(*Bundle)

// WatcherOptions configures a catalog Watcher.
type WatcherOptions struct {
	// DebounceWindow coalesces bursts of writes into one reload.
	DebounceWindow time.Duration

	// Logger receives reload failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultWatcherOptions returns the default watcher options.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 200 * time.Millisecond,
	}
}

// Watcher reloads a catalog file when it changes on disk.
//
// Description:
//
//	Watches the directory holding the catalog file (editors often replace
//	files by rename, which a file-level watch would miss), filters events
//	to the catalog's base name, debounces them, and calls LoadFile. A
//	reload that fails to parse is logged and the previous bundle stays in
//	effect; the handler only ever sees valid bundles.
//
// Thread Safety: Safe for concurrent use.
type Watcher struct {
	path     string
	handler  ReloadHandler
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
	reloads  int
	failures int
}

// NewWatcher creates a watcher for the catalog at path.
//
// Inputs:
//
//	path - The catalog YAML file. Must not be empty.
//	handler - Called with every valid reloaded bundle. Must not be nil.
//	opts - Optional settings. Nil uses DefaultWatcherOptions().
//
// Outputs:
//
//	*Watcher - The watcher. Not started until Start() is called.
//	error - Non-nil if arguments are invalid or fsnotify cannot start.
func NewWatcher(path string, handler ReloadHandler, opts *WatcherOptions) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("catalog path must not be empty")
	}
	if handler == nil {
		return nil, errors.New("reload handler must not be nil")
	}
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     abs,
		handler:  handler,
		debounce: opts.DebounceWindow,
		logger:   logger.With(slog.String("component", "catalog_watcher"), slog.String("path", abs)),
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Stop halts the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// Stats returns the number of successful and failed reloads so far.
func (w *Watcher) Stats() (reloads, failures int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reloads, w.failures
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	bundle, err := LoadFile(w.path)
	if err != nil {
		w.mu.Lock()
		w.failures++
		w.mu.Unlock()
		w.logger.Error("catalog reload rejected, keeping previous catalog", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	w.logger.Info("catalog reloaded",
		slog.String("name", bundle.Name),
		slog.Int("actions", bundle.Catalog.Len()),
		slog.Int("conditions", bundle.Schema.Len()),
	)
	w.handler(bundle)
}
