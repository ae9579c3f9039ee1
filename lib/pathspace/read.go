// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"context"
	"time"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/task"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// Read returns the front value at path. With opts.DoPop it removes the
// value, exactly like Take.
func (t *Tree) Read(ctx context.Context, path string, want value.Type, opts Options) (*value.Value, error) {
	return t.out(ctx, path, want, opts, opts.DoPop)
}

// Take removes and returns the front value at path. Taking the last
// value deletes the leaf. Taking a mount point with want set to the
// Space interface unmounts it.
func (t *Tree) Take(ctx context.Context, path string, want value.Type, opts Options) (*value.Value, error) {
	return t.out(ctx, path, want, opts, true)
}

// request carries the per-call parameters through resolution.
type request struct {
	ctx  context.Context
	want value.Type
	opts Options
	pop  bool
	// cacheKey is set only for reads that may use the cache.
	cacheKey string
}

// errLeafGone is returned internally when a resolved leaf died before
// it could be locked.
var errLeafGone = spaceerr.New(spaceerr.NoSuchPath, "leaf was removed")

func (t *Tree) out(ctx context.Context, path string, want value.Type, opts Options, pop bool) (*value.Value, error) {
	if err := t.shuttingDown(); err != nil {
		return nil, err
	}
	p := spacepath.Path(path)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	names := p.Split()
	if len(names) == 0 {
		return nil, spaceerr.New(spaceerr.InvalidPath, "the root holds no value")
	}

	key := string(spacepath.Normalize(p))
	req := &request{ctx: ctx, want: want, opts: opts, pop: pop}
	if !pop && !opts.BypassCache && !p.IsGlob() {
		req.cacheKey = key
	}
	attempt := func() (*value.Value, error) {
		if req.cacheKey != "" {
			if v, hit, err := t.outCached(req); hit {
				return v, err
			}
		}
		return t.outAt(t.root, spacepath.Root, names, req)
	}

	if !opts.Block {
		return attempt()
	}

	guard := t.waits.Wait(key)
	defer guard.Release()

	if opts.Timeout == 0 {
		v, err := attempt()
		if spaceerr.IsAbsent(err) {
			return nil, spaceerr.Newf(spaceerr.Timeout, "nothing at %s", path)
		}
		return v, err
	}
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = t.clock.Now().Add(opts.Timeout)
	}

	var found *value.Value
	var lastErr error
	ok, err := guard.WaitUntil(ctx, deadline, func() bool {
		found, lastErr = attempt()
		return !spaceerr.IsAbsent(lastErr)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, spaceerr.Newf(spaceerr.Timeout, "nothing at %s after %v", path, opts.Timeout)
	}
	return found, lastErr
}

// outCached serves a read from a cached leaf. hit is false when the
// cache has no live leaf for the key; a dead leaf is evicted.
func (t *Tree) outCached(req *request) (v *value.Value, hit bool, err error) {
	l, ok := t.cache.Lookup(req.cacheKey)
	if !ok {
		return nil, false, nil
	}
	v, _, err = t.outLeaf(l, spacepath.Path(req.cacheKey), req)
	if err == errLeafGone {
		t.cache.Invalidate(req.cacheKey)
		return nil, false, nil
	}
	return v, true, err
}

// outAt resolves names below n, which lives at the path at.
func (t *Tree) outAt(n *node, at spacepath.Path, names []spacepath.Name, req *request) (*value.Value, error) {
	name, rest := names[0], names[1:]

	if name.IsSupermatch() {
		return t.outSubtree(n, at, req)
	}
	if name.IsGlob() {
		var results fanout
		for _, c := range n.matching(name) {
			v, err := t.outEntry(n, c, spacepath.Child(at, c.name), rest, req)
			if err == nil {
				return v, nil
			}
			results.add(err)
		}
		return nil, results.err(at, name)
	}

	literal := name.Literal()
	childPath := spacepath.Child(at, literal)
	e, ok := n.get(literal)
	if !ok {
		return nil, spaceerr.Newf(spaceerr.NoSuchPath, "%s does not exist", childPath)
	}
	return t.outEntry(n, child{name: literal, entry: e}, childPath, rest, req)
}

// outSubtree returns the first value found below n in depth-first
// lexicographic order.
func (t *Tree) outSubtree(n *node, at spacepath.Path, req *request) (*value.Value, error) {
	var results fanout
	for _, c := range n.sorted() {
		childPath := spacepath.Child(at, c.name)
		var v *value.Value
		var err error
		switch c.entry.kind {
		case leafEntry:
			v, err = t.outEntry(n, c, childPath, nil, req)
		case dirEntry:
			v, err = t.outSubtree(c.entry.dir, childPath, req)
		case mountEntry:
			v, err = t.outMount(c.entry.mount, "/"+string(spacepath.Supermatch), req)
		}
		if err == nil {
			return v, nil
		}
		results.add(err)
	}
	return nil, results.err(at, spacepath.Supermatch)
}

// outEntry continues resolution at one child of parent.
func (t *Tree) outEntry(parent *node, c child, at spacepath.Path, rest []spacepath.Name, req *request) (*value.Value, error) {
	switch c.entry.kind {
	case leafEntry:
		if len(rest) > 0 {
			return nil, spaceerr.Newf(spaceerr.InvalidPathSubcomponent, "sub-component %s is data", at)
		}
		v, removed, err := t.outLeaf(c.entry.leaf, at, req)
		if err == errLeafGone {
			return nil, spaceerr.Newf(spaceerr.NoSuchPath, "%s does not exist", at)
		}
		if removed {
			parent.remove(c.name, c.entry)
		}
		if req.pop {
			t.cache.Invalidate(string(at))
		} else if err == nil && req.cacheKey != "" {
			t.cache.Store(req.cacheKey, c.entry.leaf)
		}
		return v, err

	case dirEntry:
		if len(rest) == 0 {
			return nil, spaceerr.Newf(spaceerr.NoObjectFound, "%s is a directory", at)
		}
		return t.outAt(c.entry.dir, at, rest, req)

	default:
		if len(rest) == 0 {
			return t.outMountPoint(parent, c, at, req)
		}
		return t.outMount(c.entry.mount, string(spacepath.Join(rest...)), req)
	}
}

// outMount delegates to a mounted space. Blocking is handled by this
// tree, which is woken by the mount's forwarded notifications.
func (t *Tree) outMount(mount Space, path string, req *request) (*value.Value, error) {
	opts := req.opts
	opts.Block = false
	opts.DoPop = false
	if req.pop {
		return mount.Take(req.ctx, path, req.want, opts)
	}
	return mount.Read(req.ctx, path, req.want, opts)
}

// outMountPoint handles a path that names a mount itself. Requesting
// the Space interface returns the mounted store; taking it unmounts.
func (t *Tree) outMountPoint(parent *node, c child, at spacepath.Path, req *request) (*value.Value, error) {
	if req.want.Reflect() != spaceType {
		return nil, spaceerr.Newf(spaceerr.NoObjectFound, "%s is a mounted space", at)
	}
	if !req.pop {
		return value.Nested(c.entry.mount), nil
	}
	if !parent.remove(c.name, c.entry) {
		return nil, spaceerr.Newf(spaceerr.NoSuchPath, "%s was unmounted concurrently", at)
	}
	if mountable, ok := c.entry.mount.(Mountable); ok {
		mountable.Attach(nil, "")
	}
	t.cache.InvalidatePrefix(string(at))
	nested := value.Nested(c.entry.mount)
	t.logger.Debug("unmounted space", "path", at, logValue(nested))
	return nested, nil
}

// outLeaf reads or pops the front of a leaf. removed reports that the
// pop emptied the leaf, which is now dead.
func (t *Tree) outLeaf(l *leaf, at spacepath.Path, req *request) (v *value.Value, removed bool, err error) {
	var lazy *task.Task

	l.mu.Lock()
	front := l.queue.Front()
	if l.dead || front == nil {
		l.mu.Unlock()
		return nil, false, errLeafGone
	}
	if err = front.Check(req.want); err != nil {
		l.mu.Unlock()
		return nil, false, err
	}

	if front.Kind() == value.KindTask && !front.Ready() {
		tk := front.Task()
		if tk.Category() == task.Lazy && tk.State() == task.Created {
			lazy = tk
		}
		err = spaceerr.Newf(spaceerr.NoObjectFound, "task at %s has not completed", at)
	} else {
		v = front
		if front.Kind() == value.KindTask {
			// A failed task is still consumed by a take.
			if _, err = front.Resolve(); err != nil {
				v = nil
			}
		}
		if req.pop {
			l.queue.Pop()
			if l.queue.Len() == 0 {
				l.dead = true
				removed = true
			}
		}
	}
	l.mu.Unlock()

	if lazy != nil {
		t.schedule(lazy)
	}
	return v, removed, err
}

// fanout chooses the error reported when no candidate of a glob
// produced a value.
type fanout struct {
	mismatch error
	failure  error
	absent   error
}

func (f *fanout) add(err error) {
	switch {
	case spaceerr.Is(err, spaceerr.TypeMismatch):
		if f.mismatch == nil {
			f.mismatch = err
		}
	case spaceerr.Is(err, spaceerr.NoObjectFound):
		if f.absent == nil {
			f.absent = err
		}
	case spaceerr.Is(err, spaceerr.NoSuchPath), spaceerr.Is(err, spaceerr.InvalidPathSubcomponent):
	default:
		if f.failure == nil {
			f.failure = err
		}
	}
}

func (f *fanout) err(at spacepath.Path, pattern spacepath.Name) error {
	switch {
	case f.mismatch != nil:
		return f.mismatch
	case f.failure != nil:
		return f.failure
	case f.absent != nil:
		return f.absent
	default:
		return spaceerr.Newf(spaceerr.NoSuchPath, "nothing matches %s", spacepath.Concat(at, spacepath.Join(pattern)))
	}
}
