// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
)

// Watch turns file creations and writes below the root into
// notifications, so readers blocked in a parent tree wake up when
// another process changes the directory. New subdirectories are
// watched as they appear. Watching stops when ctx is cancelled or the
// store shuts down.
//
// The watcher is registered before Watch returns.
func (f *Filesystem) Watch(ctx context.Context) error {
	if err := f.shuttingDown(); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := addTree(watcher, f.root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", f.root, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.watchMu.Lock()
	if f.closed.Load() {
		f.watchMu.Unlock()
		cancel()
		_ = watcher.Close()
		return spaceerr.New(spaceerr.ShuttingDown, "filesystem store is shut down")
	}
	f.stopWatch = append(f.stopWatch, cancel)
	f.watchMu.Unlock()

	go f.watch(ctx, watcher)
	return nil
}

func (f *Filesystem) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() { _ = watcher.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("filesystem watch error", "root", f.root, "error", err)
		}
	}
}

func (f *Filesystem) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path, ok := f.storePath(event.Name)
	if !ok {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		// Already gone again.
		return
	}
	if info.IsDir() {
		if err := addTree(watcher, event.Name); err != nil {
			f.logger.Warn("watching new directory failed", "dir", event.Name, "error", err)
		}
		// Files may have landed before the watch was added.
		f.notifyParentUnder(path)
		return
	}
	f.notifyParent(path)
}

// addTree watches dir and every directory below it.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
