// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"
	"sync"
	"time"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// Bounded caps the number of values queued at each path of the wrapped
// store. An insert into a full path first takes the oldest value of
// the incoming type. If the front of the queue has another type the
// queue is left untouched and the new value is dropped, reported as a
// TypeMismatch error with NbrValuesSuppressed set.
//
// Counts track only values that went through this layer. Globs are
// rejected for inserts and takes because the affected paths cannot be
// counted.
type Bounded struct {
	inner pathspace.Space
	max   int

	// opMu serializes inserts and takes so a take cannot land between
	// an insert's capacity check and its eviction.
	opMu sync.Mutex

	mu     sync.Mutex
	counts map[string]int
}

// NewBounded wraps inner with a per-path capacity. A capacity below
// one is treated as one.
func NewBounded(inner pathspace.Space, capacity int) *Bounded {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded{
		inner:  inner,
		max:    capacity,
		counts: make(map[string]int),
	}
}

// Capacity returns the per-path limit.
func (b *Bounded) Capacity() int { return b.max }

// Len returns the number of values this layer believes are queued at
// path.
func (b *Bounded) Len(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[string(spacepath.Normalize(spacepath.Path(path)))]
}

func (b *Bounded) adjust(key string, delta int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := b.counts[key] + delta
	if count <= 0 {
		delete(b.counts, key)
		return
	}
	b.counts[key] = count
}

func (b *Bounded) concrete(path string) (string, error) {
	p := spacepath.Path(path)
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.IsGlob() {
		return "", spaceerr.Newf(spaceerr.InvalidPath, "bounded paths must be concrete: %s", path)
	}
	return string(spacepath.Normalize(p)), nil
}

func (b *Bounded) Insert(path string, v *value.Value) pathspace.InsertReturn {
	key, err := b.concrete(path)
	if err != nil {
		return pathspace.Failed(err)
	}
	if err := v.Validate(); err != nil {
		return pathspace.Failed(err)
	}

	b.opMu.Lock()
	defer b.opMu.Unlock()

	for b.Len(key) >= b.max {
		_, err := b.inner.Take(context.Background(), path, value.TypeFor(v.Type()), pathspace.Options{})
		switch {
		case err == nil:
			b.adjust(key, -1)
		case spaceerr.Is(err, spaceerr.NoSuchPath):
			// Drained behind our back; nothing left to evict.
			b.adjust(key, -b.Len(key))
		default:
			result := pathspace.Failed(spaceerr.Newf(spaceerr.CodeOf(err), "evicting at %s: %v", path, err))
			result.NbrValuesSuppressed = 1
			return result
		}
	}

	result := b.inner.Insert(path, v)
	if len(result.Errors) == 0 && result.Inserted() > 0 {
		b.adjust(key, 1)
	}
	return result
}

func (b *Bounded) Read(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	if !opts.DoPop {
		return b.inner.Read(ctx, path, want, opts)
	}
	return b.Take(ctx, path, want, opts)
}

// Take pops under the same lock as Insert. A blocking take waits for a
// value with a non-destructive read outside the lock, then retries.
func (b *Bounded) Take(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	key, err := b.concrete(path)
	if err != nil {
		return nil, err
	}
	attempt := opts
	attempt.Block = false
	attempt.DoPop = false

	var deadline time.Time
	if opts.Block && opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}
	for {
		v, err := b.takeNow(ctx, key, path, want, attempt)
		if err == nil || !opts.Block || !spaceerr.IsAbsent(err) {
			return v, err
		}

		wait := opts
		wait.DoPop = false
		if !deadline.IsZero() {
			wait.Timeout = time.Until(deadline)
			if wait.Timeout <= 0 {
				return nil, spaceerr.Newf(spaceerr.Timeout, "nothing at %s after %v", path, opts.Timeout)
			}
		}
		if _, err := b.inner.Read(ctx, path, want, wait); err != nil {
			return nil, err
		}
	}
}

func (b *Bounded) takeNow(ctx context.Context, key, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	b.opMu.Lock()
	defer b.opMu.Unlock()
	v, err := b.inner.Take(ctx, path, want, opts)
	if err == nil {
		b.adjust(key, -1)
	}
	return v, err
}

func (b *Bounded) Visit(ctx context.Context, visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	return b.inner.Visit(ctx, visitor, opts)
}

func (b *Bounded) Notify(path string) { b.inner.Notify(path) }

// Attach passes the mount point to the wrapped store, whose
// notifications then reach the parent directly.
func (b *Bounded) Attach(parent pathspace.Notifier, prefix string) {
	if mountable, ok := b.inner.(pathspace.Mountable); ok {
		mountable.Attach(parent, prefix)
	}
}

func (b *Bounded) Shutdown() { b.inner.Shutdown() }

var (
	_ pathspace.Space     = (*Bounded)(nil)
	_ pathspace.Mountable = (*Bounded)(nil)
)
