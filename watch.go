package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 150 * time.Millisecond

// Watch reloads the open document every time it changes on disk and calls
// onReload with the new text, until ctx is done. The directory is watched
// rather than the file so that editors replacing the file by rename are
// followed.
func (a *App) Watch(ctx context.Context, onReload func(text string)) error {
	path := a.CurrentFile()
	if path == "" {
		return errNoDocument()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create file watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return types.NewIOError("failed to watch directory", filepath.Dir(path), err)
	}
	logger.Info("watching document", logger.String("path", path))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped watching document", logger.String("path", path))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", logger.Err(err))

		case <-pending:
			pending = nil
			text, err := a.ReloadFromDisk()
			if err != nil {
				// The file may be mid-write or briefly absent; the next event retries.
				logger.Warn("reload after change failed", logger.Err(err), logger.String("path", path))
				continue
			}
			if onReload != nil {
				onReload(text)
			}
		}
	}
}
