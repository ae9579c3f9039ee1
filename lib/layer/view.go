// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// Permission is what a caller may do at one path.
type Permission struct {
	Read    bool
	Write   bool
	Execute bool
}

// Predicate decides the permissions for a path in the view's
// coordinates. Paths passed to it may be globs.
type Predicate func(path string) Permission

// View exposes the subtree of another store under prefix, checking a
// predicate before every operation:
//
//   - Insert needs Write, and also Execute when the value is a task.
//   - Read needs Read; with DoPop it also needs Write.
//   - Take needs Read and Write.
//   - Visit needs Read on the root, and hides entries without Read.
//
// Denials fail with InvalidPermissions before the wrapped store is
// touched.
type View struct {
	attachment

	inner  pathspace.Space
	prefix spacepath.Path
	allow  Predicate
}

// NewView wraps inner. An empty prefix exposes the whole store. A nil
// predicate denies everything.
func NewView(inner pathspace.Space, prefix string, allow Predicate) *View {
	if allow == nil {
		allow = func(string) Permission { return Permission{} }
	}
	return &View{
		inner:  inner,
		prefix: spacepath.Path(prefix).Canonical(),
		allow:  allow,
	}
}

func (v *View) innerPath(path string) string {
	return string(spacepath.Concat(v.prefix, spacepath.Path(path)))
}

func denied(action, path string) error {
	return spaceerr.Newf(spaceerr.InvalidPermissions, "%s denied on %s", action, path)
}

func (v *View) Insert(path string, val *value.Value) pathspace.InsertReturn {
	if err := spacepath.Path(path).Validate(); err != nil {
		return pathspace.Failed(err)
	}
	permission := v.allow(path)
	if !permission.Write {
		return pathspace.Failed(denied("write", path))
	}
	if val != nil && val.Kind() == value.KindTask && !permission.Execute {
		return pathspace.Failed(denied("execute", path))
	}
	return v.inner.Insert(v.innerPath(path), val)
}

func (v *View) Read(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	if err := v.check(path, opts.DoPop); err != nil {
		return nil, err
	}
	return v.inner.Read(ctx, v.innerPath(path), want, opts)
}

func (v *View) Take(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	if err := v.check(path, true); err != nil {
		return nil, err
	}
	return v.inner.Take(ctx, v.innerPath(path), want, opts)
}

func (v *View) check(path string, pop bool) error {
	if err := spacepath.Path(path).Validate(); err != nil {
		return err
	}
	permission := v.allow(path)
	if !permission.Read {
		return denied("read", path)
	}
	if pop && !permission.Write {
		return denied("write", path)
	}
	return nil
}

func (v *View) Visit(ctx context.Context, visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	root := opts.Root
	if root == "" {
		root = string(spacepath.Root)
	}
	if err := spacepath.Path(root).Validate(); err != nil {
		return err
	}
	if !v.allow(root).Read {
		return denied("read", root)
	}
	inner := opts
	inner.Root = v.innerPath(root)
	return v.inner.Visit(ctx, translate(visitor, v.prefix, func(path string) bool {
		return v.allow(path).Read
	}), inner)
}

// Notify forwards to the wrapped store, which wakes its own waiters
// and, once the view is mounted, the parent's.
func (v *View) Notify(path string) {
	v.inner.Notify(v.innerPath(path))
}

// Attach records the mount point and routes the wrapped store's
// notifications through the view when it supports mounting.
func (v *View) Attach(parent pathspace.Notifier, prefix string) {
	v.attachment.Attach(parent, prefix)
	if mountable, ok := v.inner.(pathspace.Mountable); ok {
		if parent == nil {
			mountable.Attach(nil, "")
			return
		}
		mountable.Attach(viewRelay{v}, "")
	}
}

// Shutdown shuts down the wrapped store.
func (v *View) Shutdown() {
	v.inner.Shutdown()
}

// viewRelay receives the wrapped store's notifications and forwards
// the ones inside the view's subtree to the parent.
type viewRelay struct {
	view *View
}

func (r viewRelay) Notify(path string) {
	if relative, ok := spacepath.TrimPrefix(spacepath.Path(path), r.view.prefix); ok {
		r.view.notifyParent(string(relative))
	}
}

func (r viewRelay) NotifyUnder(prefix string) {
	relative, ok := spacepath.TrimPrefix(spacepath.Path(prefix), r.view.prefix)
	if !ok {
		return
	}
	if parent, mountPrefix := r.view.mountPoint(); parent != nil {
		pathspace.NotifyUnder(parent, string(spacepath.Concat(mountPrefix, relative)))
	}
}

var (
	_ pathspace.Space     = (*View)(nil)
	_ pathspace.Mountable = (*View)(nil)
)
