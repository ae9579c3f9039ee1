// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package waitmap

import (
	"context"
	"sync"
	"time"

	"github.com/bureau-foundation/pathspace/lib/clock"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
)

// Map holds per-path wake channels.
type Map struct {
	clock clock.Clock

	mu       sync.Mutex
	entries  map[string]*entry
	globs    map[string]*entry
	closed   bool
	closedCh chan struct{}
}

type entry struct {
	generation chan struct{}
	waiters    int
}

func (e *entry) wake() {
	close(e.generation)
	e.generation = make(chan struct{})
}

// New returns an empty map. A nil clock uses the real clock.
func New(c clock.Clock) *Map {
	if c == nil {
		c = clock.Real()
	}
	return &Map{
		clock:    c,
		entries:  make(map[string]*entry),
		globs:    make(map[string]*entry),
		closedCh: make(chan struct{}),
	}
}

// Guard is one registered waiter on a path. Call Release when done.
type Guard struct {
	waits    *Map
	entry    *entry
	released bool
}

// Wait registers a waiter on path, creating its entry on first use.
func (m *Map) Wait(path string) *Guard {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[path]
	if !ok {
		e = &entry{generation: make(chan struct{})}
		m.entries[path] = e
		if spacepath.Path(path).IsGlob() {
			m.globs[path] = e
		}
	}
	e.waiters++
	return &Guard{waits: m, entry: e}
}

// WaitUntil blocks until pred returns true, re-evaluating it after
// every notification on the guarded path. It returns false with a nil
// error when deadline passes first (a zero deadline never expires),
// false with ctx.Err() on cancellation, and false with a ShuttingDown
// error once the map is closed.
func (g *Guard) WaitUntil(ctx context.Context, deadline time.Time, pred func() bool) (bool, error) {
	m := g.waits
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return false, spaceerr.New(spaceerr.ShuttingDown, "wait released by shutdown")
		}
		generation := g.entry.generation
		m.mu.Unlock()

		if pred() {
			return true, nil
		}

		var timer *clock.Timer
		var expired <-chan time.Time
		if !deadline.IsZero() {
			remaining := deadline.Sub(m.clock.Now())
			if remaining <= 0 {
				return false, nil
			}
			timer = m.clock.NewTimer(remaining)
			expired = timer.C
		}

		select {
		case <-generation:
			if timer != nil {
				timer.Stop()
			}
		case <-expired:
			return pred(), nil
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return false, ctx.Err()
		case <-m.closedCh:
			if timer != nil {
				timer.Stop()
			}
			return false, spaceerr.New(spaceerr.ShuttingDown, "wait released by shutdown")
		}
	}
}

// Release unregisters the waiter. It is safe to call more than once.
func (g *Guard) Release() {
	m := g.waits
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	g.entry.waiters--
}

// Notify wakes the waiters on path and on every registered glob
// pattern matching it.
func (m *Map) Notify(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[path]; ok {
		e.wake()
	}
	if len(m.globs) == 0 {
		return
	}
	concrete := spacepath.Path(path)
	for pattern, e := range m.globs {
		if pattern != path && spacepath.Match(spacepath.Path(pattern), concrete) {
			e.wake()
		}
	}
}

// NotifyUnder wakes the waiters on prefix and on every path below it.
// A store calls this when a whole subtree appears at once, such as a
// mount.
func (m *Map) NotifyUnder(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, e := range m.entries {
		if _, under := spacepath.TrimPrefix(spacepath.Path(path), spacepath.Path(prefix)); under {
			e.wake()
		}
	}
}

// NotifyAll wakes every waiter in the map.
func (m *Map) NotifyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		e.wake()
	}
}

// HasWaiters reports whether any guard on path is unreleased.
func (m *Map) HasWaiters(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	return ok && e.waiters > 0
}

// Len returns the number of paths ever waited on.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close releases every current and future waiter with a ShuttingDown
// error. It is idempotent.
func (m *Map) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.closedCh)
}
