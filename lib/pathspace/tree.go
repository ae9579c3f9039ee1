// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/pathspace/lib/cache"
	"github.com/bureau-foundation/pathspace/lib/clock"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/task"
	"github.com/bureau-foundation/pathspace/lib/value"
	"github.com/bureau-foundation/pathspace/lib/waitmap"
)

// MaxRetargetHops bounds how many times one insert may be redirected
// before the tree gives up on it.
const MaxRetargetHops = 8

// Tree is the in-memory Space. The zero value is not usable; call New.
type Tree struct {
	logger *slog.Logger
	clock  clock.Clock

	executorOnce sync.Once
	executor     task.Executor
	ownsExecutor bool

	waits *waitmap.Map
	cache *cache.Cache[*leaf]
	root  *node

	// taskCtx is passed to every task and cancelled on shutdown.
	taskCtx    context.Context
	cancelTask context.CancelFunc

	mountMu sync.RWMutex
	parent  Notifier
	prefix  spacepath.Path

	closed       atomic.Bool
	shutdownOnce sync.Once
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = logger
	}
}

// WithClock sets the clock used for blocking deadlines. The default is
// clock.Real(). Tests inject clock.Fake() for deterministic timeouts.
func WithClock(c clock.Clock) Option {
	return func(t *Tree) {
		t.clock = c
	}
}

// WithExecutor sets the executor that runs tasks. The tree does not
// shut down an executor it was given. By default the tree starts a
// task.Pool with one worker per CPU the first time a task is
// scheduled, and shuts it down with the tree.
func WithExecutor(executor task.Executor) Option {
	return func(t *Tree) {
		t.executor = executor
	}
}

// WithCacheCapacity sets the read cache size. Zero selects
// cache.DefaultCapacity; a negative capacity disables caching while
// still counting lookups.
func WithCacheCapacity(capacity int) Option {
	return func(t *Tree) {
		t.cache = cache.New[*leaf](capacity)
	}
}

// New returns an empty tree.
func New(options ...Option) *Tree {
	t := &Tree{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  clock.Real(),
		root:   newNode(),
	}
	for _, option := range options {
		option(t)
	}
	if t.cache == nil {
		t.cache = cache.New[*leaf](cache.DefaultCapacity)
	}
	t.waits = waitmap.New(t.clock)
	t.taskCtx, t.cancelTask = context.WithCancel(context.Background())
	return t
}

// CacheStats returns the read cache counters.
func (t *Tree) CacheStats() cache.Stats {
	return t.cache.Stats()
}

// Attach records the parent that receives this tree's notifications.
// Tree implements Mountable so it can be nested in another tree.
func (t *Tree) Attach(parent Notifier, prefix string) {
	t.mountMu.Lock()
	defer t.mountMu.Unlock()
	t.parent = parent
	t.prefix = spacepath.Path(prefix)
}

func (t *Tree) mountPoint() (Notifier, spacepath.Path) {
	t.mountMu.RLock()
	defer t.mountMu.RUnlock()
	return t.parent, t.prefix
}

// Notify wakes waiters on path and forwards the notification to the
// parent, if any, with the mount prefix prepended.
func (t *Tree) Notify(path string) {
	t.waits.Notify(path)
	if parent, prefix := t.mountPoint(); parent != nil {
		parent.Notify(string(spacepath.Concat(prefix, spacepath.Path(path))))
	}
}

// NotifyUnder wakes waiters at or below prefix, here and in every
// parent.
func (t *Tree) NotifyUnder(prefix string) {
	t.waits.NotifyUnder(prefix)
	if parent, mountPrefix := t.mountPoint(); parent != nil {
		NotifyUnder(parent, string(spacepath.Concat(mountPrefix, spacepath.Path(prefix))))
	}
}

func (t *Tree) exec() task.Executor {
	t.executorOnce.Do(func() {
		if t.executor == nil {
			t.executor = task.NewPool(runtime.NumCPU(), t.logger)
			t.ownsExecutor = true
		}
	})
	return t.executor
}

// Shutdown releases every blocked reader with a ShuttingDown error,
// shuts down mounted spaces deepest first, cancels running tasks, and
// stops the tree's own executor. Later operations fail with
// ShuttingDown.
func (t *Tree) Shutdown() {
	t.shutdownOnce.Do(func() {
		t.closed.Store(true)
		t.waits.Close()

		mounts := t.root.mounts(nil)
		for _, mount := range mounts {
			mount.Shutdown()
		}

		t.cancelTask()
		t.executorOnce.Do(func() {
			t.executor = stoppedExecutor{}
		})
		if t.ownsExecutor {
			t.executor.Shutdown()
		}
		t.logger.Info("pathspace shut down", "mounts", len(mounts))
	})
}

func (t *Tree) shuttingDown() error {
	if t.closed.Load() {
		return spaceerr.New(spaceerr.ShuttingDown, "space is shut down")
	}
	return nil
}

// stoppedExecutor stands in when a tree is shut down before it ever
// needed a pool.
type stoppedExecutor struct{}

func (stoppedExecutor) Submit(func()) error {
	return spaceerr.New(spaceerr.ShuttingDown, "executor is shut down")
}

func (stoppedExecutor) SubmitMain(func()) error {
	return spaceerr.New(spaceerr.ShuttingDown, "executor is shut down")
}

func (stoppedExecutor) Shutdown() {}

func (stoppedExecutor) Size() int { return 0 }

var _ interface {
	Space
	Mountable
} = (*Tree)(nil)

// schedule starts a task that is not lazy, or a lazy one that a reader
// has reached.
func (t *Tree) schedule(tk *task.Task) {
	task.Schedule(t.taskCtx, t.exec(), tk)
}

// logValue is a short description of v for log attributes.
func logValue(v *value.Value) slog.Attr {
	return slog.Group("value", "kind", v.Kind().String(), "type", v.TypeName())
}
