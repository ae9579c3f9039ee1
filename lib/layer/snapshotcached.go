// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/snapshot"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// SnapshotCachedOptions configures a SnapshotCached.
type SnapshotCachedOptions struct {
	// Registry decodes cached values. Nil selects value.NewRegistry.
	Registry *value.Registry
	// RebuildDebounce is how long after the last write a rebuild
	// starts. Zero selects 200ms; negative disables automatic
	// rebuilds.
	RebuildDebounce time.Duration
	// MaxDirtyRoots bounds the tracked dirty subtrees. Past it the
	// whole cache is treated as dirty. Zero selects 128.
	MaxDirtyRoots int
	// Logger receives rebuild failures. Nil discards.
	Logger *slog.Logger
}

// SnapshotCachedMetrics counts cache activity.
type SnapshotCachedMetrics struct {
	Hits            uint64
	Misses          uint64
	Rebuilds        uint64
	RebuildFailures uint64
	LastRebuild     time.Time
	// Bytes is the serialized size of the cached values.
	Bytes int
}

// SnapshotCached serves plain reads of a space from a snapshot of it.
// Writes through the cache mark their subtree dirty, and dirty paths are
// read from the wrapped space until the next rebuild. Blocking reads,
// pops, globs, and reads with BypassCache always go to the wrapped
// space. Writes that bypass the cache are not seen until a rebuild.
type SnapshotCached struct {
	inner    pathspace.Space
	registry *value.Registry
	debounce time.Duration
	maxDirty int
	logger   *slog.Logger

	mu         sync.Mutex
	index      map[string][]snapshot.Value
	built      bool
	dirty      []spacepath.Path
	allDirty   bool
	generation uint64
	timer      *time.Timer
	closed     bool
	metrics    SnapshotCachedMetrics
}

// NewSnapshotCached wraps inner. The cache starts empty; call Rebuild
// to fill it or let the first write schedule a rebuild.
func NewSnapshotCached(inner pathspace.Space, opts SnapshotCachedOptions) *SnapshotCached {
	c := &SnapshotCached{
		inner:    inner,
		registry: opts.Registry,
		debounce: opts.RebuildDebounce,
		maxDirty: opts.MaxDirtyRoots,
		logger:   opts.Logger,
	}
	if c.registry == nil {
		c.registry = value.NewRegistry()
	}
	if c.debounce == 0 {
		c.debounce = 200 * time.Millisecond
	}
	if c.maxDirty <= 0 {
		c.maxDirty = 128
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Rebuild captures the wrapped space and replaces the cache. Writes
// that land during the capture keep their paths dirty.
func (c *SnapshotCached) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	snap, err := snapshot.Capture(ctx, c.inner, snapshot.Options{SkipMounts: true})
	if err != nil {
		c.mu.Lock()
		c.metrics.RebuildFailures++
		c.mu.Unlock()
		c.logger.Warn("snapshot cache rebuild failed", "error", err)
		return err
	}

	index := make(map[string][]snapshot.Value, len(snap.Leaves))
	size := 0
	for _, leaf := range snap.Leaves {
		index[leaf.Path] = leaf.Values
		for _, stored := range leaf.Values {
			size += len(stored.Data)
		}
	}
	// A leaf that lost values to the capture would serve the wrong front.
	for _, skip := range snap.Skipped {
		for _, stored := range index[skip.Path] {
			size -= len(stored.Data)
		}
		delete(index, skip.Path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = index
	c.built = true
	c.metrics.Rebuilds++
	c.metrics.LastRebuild = time.Now()
	c.metrics.Bytes = size
	if c.generation == generation {
		c.dirty = nil
		c.allDirty = false
	}
	return nil
}

// Metrics returns a copy of the counters.
func (c *SnapshotCached) Metrics() SnapshotCachedMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// concretePrefix returns the longest leading run of literal names.
func concretePrefix(p spacepath.Path) spacepath.Path {
	var names []spacepath.Name
	for name := range p.Names() {
		if name.IsGlob() {
			break
		}
		names = append(names, name)
	}
	return spacepath.Join(names...)
}

func (c *SnapshotCached) markDirty(path string) {
	p := spacepath.Path(path)
	if p.Validate() != nil {
		return
	}
	root := concretePrefix(p)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if !c.allDirty {
		covered := false
		for _, existing := range c.dirty {
			if _, under := spacepath.TrimPrefix(root, existing); under {
				covered = true
				break
			}
		}
		if !covered {
			kept := c.dirty[:0]
			for _, existing := range c.dirty {
				if _, under := spacepath.TrimPrefix(existing, root); !under {
					kept = append(kept, existing)
				}
			}
			c.dirty = append(kept, root)
		}
		if len(c.dirty) > c.maxDirty || root == spacepath.Root {
			c.allDirty = true
			c.dirty = nil
		}
	}
	c.scheduleLocked()
}

func (c *SnapshotCached) scheduleLocked() {
	if c.debounce < 0 || c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Reset(c.debounce)
		return
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		// Failures are counted and logged by Rebuild.
		_ = c.Rebuild(context.Background())
	})
}

func (c *SnapshotCached) isDirtyLocked(p spacepath.Path) bool {
	if c.allDirty || !c.built {
		return true
	}
	for _, root := range c.dirty {
		if _, under := spacepath.TrimPrefix(p, root); under {
			return true
		}
	}
	return false
}

// cached returns the front value at path from the cache, or false.
func (c *SnapshotCached) cached(path string, want value.Type, opts pathspace.Options) (*value.Value, bool) {
	if opts.Block || opts.DoPop || opts.BypassCache {
		return nil, false
	}
	p := spacepath.Path(path)
	if p.Validate() != nil || p.IsGlob() {
		return nil, false
	}
	p = spacepath.Normalize(p)

	c.mu.Lock()
	if c.isDirtyLocked(p) {
		c.mu.Unlock()
		return nil, false
	}
	stored, ok := c.index[string(p)]
	c.mu.Unlock()
	if !ok || len(stored) == 0 {
		return nil, false
	}

	// A mismatched front falls through so the wrapped space reports it.
	v, err := c.registry.Decode(stored[0].Type, stored[0].Data)
	if err != nil || v.Check(want) != nil {
		return nil, false
	}
	return v, true
}

func (c *SnapshotCached) Insert(path string, v *value.Value) pathspace.InsertReturn {
	result := c.inner.Insert(path, v)
	c.markDirty(path)
	return result
}

func (c *SnapshotCached) Read(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	if v, ok := c.cached(path, want, opts); ok {
		c.mu.Lock()
		c.metrics.Hits++
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Lock()
	c.metrics.Misses++
	c.mu.Unlock()

	v, err := c.inner.Read(ctx, path, want, opts)
	if opts.DoPop && err == nil {
		c.markDirty(path)
	}
	return v, err
}

func (c *SnapshotCached) Take(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	v, err := c.inner.Take(ctx, path, want, opts)
	if err == nil {
		c.markDirty(path)
	}
	return v, err
}

func (c *SnapshotCached) Visit(ctx context.Context, visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	return c.inner.Visit(ctx, visitor, opts)
}

// Attach hands the mount point to the wrapped space when it can be
// mounted.
func (c *SnapshotCached) Attach(parent pathspace.Notifier, prefix string) {
	if mountable, ok := c.inner.(pathspace.Mountable); ok {
		mountable.Attach(parent, prefix)
	}
}

func (c *SnapshotCached) Notify(path string) {
	c.inner.Notify(path)
}

// Shutdown stops pending rebuilds and shuts down the wrapped space.
func (c *SnapshotCached) Shutdown() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.inner.Shutdown()
}

var (
	_ pathspace.Space     = (*SnapshotCached)(nil)
	_ pathspace.Mountable = (*SnapshotCached)(nil)
)
