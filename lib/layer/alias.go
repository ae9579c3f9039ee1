// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"
	"sync"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// Alias forwards every operation to an upstream store with the path
// rewritten under a target prefix. The prefix can be switched at any
// time with SetTargetPrefix, which wakes readers blocked under the
// alias so they re-resolve against the new target.
//
// The alias does not own its upstream: Shutdown is a no-op.
type Alias struct {
	attachment

	upstream pathspace.Space
	retarget bool

	mu     sync.RWMutex
	target spacepath.Path
}

// AliasOption configures an Alias.
type AliasOption func(*Alias)

// WithRetarget makes inserts answer with a pathspace.Retarget to the
// mapped path instead of forwarding. The tree that owns the insert
// re-issues it from its root, so the target prefix is interpreted in
// that tree's coordinates. This is the mode to use when the alias
// points back into the tree it is mounted in.
func WithRetarget() AliasOption {
	return func(a *Alias) {
		a.retarget = true
	}
}

// NewAlias returns an alias for upstream under targetPrefix. upstream
// may be nil in retarget mode, in which case reads fail.
func NewAlias(upstream pathspace.Space, targetPrefix string, options ...AliasOption) *Alias {
	a := &Alias{upstream: upstream}
	for _, option := range options {
		option(a)
	}
	a.target = normalizePrefix(targetPrefix)
	return a
}

func normalizePrefix(prefix string) spacepath.Path {
	if prefix == "" || prefix[0] != '/' {
		prefix = "/" + prefix
	}
	return spacepath.Path(prefix).Canonical()
}

// TargetPrefix returns the current target prefix.
func (a *Alias) TargetPrefix() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return string(a.target)
}

// SetTargetPrefix switches the target and wakes every waiter under the
// alias's mount point.
func (a *Alias) SetTargetPrefix(prefix string) {
	a.mu.Lock()
	a.target = normalizePrefix(prefix)
	a.mu.Unlock()
	a.notifyParentUnder(string(spacepath.Root))
}

func (a *Alias) mapPath(path string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return string(spacepath.Concat(a.target, spacepath.Path(path)))
}

func (a *Alias) requireUpstream() error {
	if a.upstream == nil {
		return spaceerr.New(spaceerr.InvalidPermissions, "alias upstream not set")
	}
	return nil
}

func (a *Alias) Insert(path string, v *value.Value) pathspace.InsertReturn {
	if err := spacepath.Path(path).Validate(); err != nil {
		return pathspace.Failed(err)
	}
	if a.retarget {
		return pathspace.InsertReturn{Retargets: []pathspace.Retarget{{Path: a.mapPath(path)}}}
	}
	if err := a.requireUpstream(); err != nil {
		return pathspace.Failed(err)
	}
	result := a.upstream.Insert(a.mapPath(path), v)
	if result.Inserted() > 0 && !spacepath.Path(path).IsGlob() {
		a.notifyParent(string(spacepath.Normalize(spacepath.Path(path))))
	}
	return result
}

func (a *Alias) Read(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	if err := a.requireUpstream(); err != nil {
		return nil, err
	}
	if err := spacepath.Path(path).Validate(); err != nil {
		return nil, err
	}
	return a.upstream.Read(ctx, a.mapPath(path), want, opts)
}

func (a *Alias) Take(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	if err := a.requireUpstream(); err != nil {
		return nil, err
	}
	if err := spacepath.Path(path).Validate(); err != nil {
		return nil, err
	}
	return a.upstream.Take(ctx, a.mapPath(path), want, opts)
}

func (a *Alias) Visit(ctx context.Context, visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	if err := a.requireUpstream(); err != nil {
		return err
	}
	root := opts.Root
	if root == "" {
		root = string(spacepath.Root)
	}
	if err := spacepath.Path(root).Validate(); err != nil {
		return err
	}
	a.mu.RLock()
	target := a.target
	a.mu.RUnlock()

	inner := opts
	inner.Root = string(spacepath.Concat(target, spacepath.Path(root)))
	return a.upstream.Visit(ctx, translate(visitor, target, nil), inner)
}

// Notify forwards to the upstream store at the mapped path.
func (a *Alias) Notify(path string) {
	if a.upstream != nil {
		a.upstream.Notify(a.mapPath(path))
	}
}

func (a *Alias) Shutdown() {}

var (
	_ pathspace.Space     = (*Alias)(nil)
	_ pathspace.Mountable = (*Alias)(nil)
)
