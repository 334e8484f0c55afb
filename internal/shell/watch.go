// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package shell

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watch requests a reload whenever the script file changes. It watches the
// script's directory so editors that save by rename are seen too.
func (a *App) watch(ctx context.Context, log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	script, err := filepath.Abs(a.script)
	if err != nil {
		_ = watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(script)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch script directory: %w", err)
	}
	log.Info("watching script for changes", "path", script)

	go func() {
		defer func() { _ = watcher.Close() }()

		// Debounce timer to coalesce editor save bursts
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != script {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(a.debounce, a.RequestReload)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("file watcher error", "error", err)
			}
		}
	}()

	return nil
}
