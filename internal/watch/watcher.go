/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package watch reloads files when they change on disk
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bq-data-agent/internal/logging"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher watches a file for changes and triggers a reload callback
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	name     string
	filePath string
	reloadFn func() error
	debounce time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for filePath. name identifies the file
// in log lines (e.g. "template", "tokens").
func NewFileWatcher(name, filePath string, reloadFn func() error) (*FileWatcher, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", filePath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors often replace the file on save
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	return &FileWatcher{
		watcher:  watcher,
		name:     name,
		filePath: abs,
		reloadFn: reloadFn,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start() {
	go fw.watch()
}

// Stop stops watching for file changes. It is safe to call more than once.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.watcher.Close()
	})
}

func (fw *FileWatcher) watch() {
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(fw.debounce, fw.reload)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("file_watch_error", "file", fw.name, "path", fw.filePath, "error", err)

		case <-fw.done:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

func (fw *FileWatcher) reload() {
	if err := fw.reloadFn(); err != nil {
		logging.Error("file_reload_failed", "file", fw.name, "path", fw.filePath, "error", err)
		return
	}
	logging.Info("file_reloaded", "file", fw.name, "path", fw.filePath)
}
