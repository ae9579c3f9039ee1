// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"sync"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
)

// attachment records where a layer is mounted. Layers embed it to
// implement pathspace.Mountable.
type attachment struct {
	mu     sync.RWMutex
	parent pathspace.Notifier
	prefix spacepath.Path
}

// Attach implements pathspace.Mountable.
func (a *attachment) Attach(parent pathspace.Notifier, prefix string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parent = parent
	a.prefix = spacepath.Path(prefix)
}

func (a *attachment) mountPoint() (pathspace.Notifier, spacepath.Path) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.parent, a.prefix
}

// notifyParent forwards a notification for path, in the layer's own
// coordinates, to the parent.
func (a *attachment) notifyParent(path string) {
	if parent, prefix := a.mountPoint(); parent != nil {
		parent.Notify(string(spacepath.Concat(prefix, spacepath.Path(path))))
	}
}

// notifyParentUnder wakes every parent waiter at or below path.
func (a *attachment) notifyParentUnder(path string) {
	if parent, prefix := a.mountPoint(); parent != nil {
		pathspace.NotifyUnder(parent, string(spacepath.Concat(prefix, spacepath.Path(path))))
	}
}

// translate rewrites the entries of a delegated Visit from the inner
// store's coordinates back into the layer's, dropping anything outside
// prefix. keep, when set, hides entries it rejects along with their
// children.
func translate(visitor pathspace.Visitor, prefix spacepath.Path, keep func(path string) bool) pathspace.Visitor {
	return func(entry pathspace.Entry, handle *pathspace.ValueHandle) pathspace.VisitControl {
		relative, ok := spacepath.TrimPrefix(spacepath.Path(entry.Path), prefix)
		if !ok {
			return pathspace.SkipChildren
		}
		entry.Path = string(relative)
		if keep != nil && !keep(entry.Path) {
			return pathspace.SkipChildren
		}
		return visitor(entry, handle)
	}
}
