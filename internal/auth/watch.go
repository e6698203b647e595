// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchSignOut calls onSignOut whenever the token file at path is removed
// or renamed away, e.g. by 'morpheus signout' from another terminal. It
// returns once the watch is established; watching stops when ctx ends.
func WatchSignOut(ctx context.Context, path string, log zerolog.Logger, onSignOut func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: the file itself may not exist yet, and watches
	// on a removed file are dropped.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					log.Info().Str("path", path).Msg("token removed, signing out")
					onSignOut()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("token watch error")
			}
		}
	}()
	return nil
}
