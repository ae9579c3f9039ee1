// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"context"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// VisitControl steers a Visit from inside the visitor.
type VisitControl int

const (
	// Continue descends into the entry's children, if any.
	Continue VisitControl = iota
	// SkipChildren moves on to the entry's next sibling.
	SkipChildren
	// Stop ends the walk.
	Stop
)

// Entry describes one visited path.
type Entry struct {
	Path        string
	Depth       int
	HasValue    bool
	HasChildren bool
	IsMount     bool
	QueueDepth  int
}

// ValueHandle gives a visitor access to a leaf's values as they were
// when the leaf was visited.
type ValueHandle struct {
	values []*value.Value
}

// NewValueHandle wraps a queue snapshot. Stores other than Tree use it
// to implement Visit.
func NewValueHandle(values []*value.Value) *ValueHandle {
	return &ValueHandle{values: values}
}

// Front returns the oldest value if it has the wanted type.
func (h *ValueHandle) Front(want value.Type) (*value.Value, error) {
	if len(h.values) == 0 {
		return nil, spaceerr.New(spaceerr.NoObjectFound, "leaf is empty")
	}
	front := h.values[0]
	if err := front.Check(want); err != nil {
		return nil, err
	}
	return front, nil
}

// Values returns the queued values, oldest first.
func (h *ValueHandle) Values() []*value.Value { return h.values }

func (h *ValueHandle) QueueDepth() int { return len(h.values) }

// Visitor is called once per visited entry. handle is nil unless
// VisitOptions.IncludeValues is set and the entry holds values.
type Visitor func(entry Entry, handle *ValueHandle) VisitControl

// VisitOptions bounds a Visit.
type VisitOptions struct {
	// Root is the concrete path the walk starts at. Empty means "/".
	Root string
	// MaxDepth limits how far below Root the walk goes. Zero is
	// unlimited.
	MaxDepth int
	// MaxChildren limits how many children of each directory are
	// visited. Zero is unlimited.
	MaxChildren int
	// IncludeValues passes a ValueHandle for every leaf.
	IncludeValues bool
	// IncludeNestedSpaces descends into mounted spaces.
	IncludeNestedSpaces bool
}

// descends reports whether children at depth+1 are within the limit.
func (o VisitOptions) descends(depth int) bool {
	return o.MaxDepth <= 0 || depth < o.MaxDepth
}

// Visit walks the tree depth-first in lexicographic order, calling
// visitor for the root and every entry below it.
func (t *Tree) Visit(ctx context.Context, visitor Visitor, opts VisitOptions) error {
	if err := t.shuttingDown(); err != nil {
		return err
	}
	root := spacepath.Path(opts.Root)
	if root == "" {
		root = spacepath.Root
	}
	if err := root.Validate(); err != nil {
		return err
	}
	if root.IsGlob() {
		return spaceerr.Newf(spaceerr.InvalidPath, "visit root %s must be concrete", root)
	}

	n := t.root
	at := spacepath.Root
	names := root.Split()
	for i, name := range names {
		literal := name.Literal()
		at = spacepath.Child(at, literal)
		e, ok := n.get(literal)
		if !ok {
			return spaceerr.Newf(spaceerr.NoSuchPath, "%s does not exist", at)
		}
		switch e.kind {
		case dirEntry:
			n = e.dir
		case leafEntry:
			if i != len(names)-1 {
				return spaceerr.Newf(spaceerr.InvalidPathSubcomponent, "sub-component %s is data", at)
			}
			_, err := t.visitLeaf(e.leaf, at, 0, visitor, opts)
			return err
		case mountEntry:
			inner := opts
			inner.Root = string(spacepath.Join(names[i+1:]...))
			_, err := visitMount(ctx, e.mount, at, 0, false, visitor, inner)
			return err
		}
	}
	_, err := t.visitNode(ctx, n, at, 0, visitor, opts)
	return err
}

func (t *Tree) visitNode(ctx context.Context, n *node, at spacepath.Path, depth int, visitor Visitor, opts VisitOptions) (VisitControl, error) {
	if err := ctx.Err(); err != nil {
		return Stop, err
	}
	children := n.sorted()
	control := visitor(Entry{Path: string(at), Depth: depth, HasChildren: len(children) > 0}, nil)
	if control != Continue || !opts.descends(depth) {
		return control, nil
	}
	if opts.MaxChildren > 0 && len(children) > opts.MaxChildren {
		children = children[:opts.MaxChildren]
	}

	for _, c := range children {
		childPath := spacepath.Child(at, c.name)
		var err error
		switch c.entry.kind {
		case leafEntry:
			control, err = t.visitLeaf(c.entry.leaf, childPath, depth+1, visitor, opts)
		case dirEntry:
			control, err = t.visitNode(ctx, c.entry.dir, childPath, depth+1, visitor, opts)
		case mountEntry:
			control = visitor(Entry{Path: string(childPath), Depth: depth + 1, HasChildren: true, IsMount: true}, nil)
			if control == Continue && opts.IncludeNestedSpaces && opts.descends(depth+1) {
				inner := opts
				inner.Root = ""
				if opts.MaxDepth > 0 {
					inner.MaxDepth = opts.MaxDepth - (depth + 1)
				}
				control, err = visitMount(ctx, c.entry.mount, childPath, depth+1, true, visitor, inner)
			}
		}
		if err != nil {
			return Stop, err
		}
		if control == Stop {
			return Stop, nil
		}
	}
	return Continue, nil
}

func (t *Tree) visitLeaf(l *leaf, at spacepath.Path, depth int, visitor Visitor, opts VisitOptions) (VisitControl, error) {
	values, ok := l.snapshot()
	if !ok {
		return Continue, nil
	}
	var handle *ValueHandle
	if opts.IncludeValues {
		handle = NewValueHandle(values)
	}
	return visitor(Entry{Path: string(at), Depth: depth, HasValue: true, QueueDepth: len(values)}, handle), nil
}

// visitMount walks a mounted space, translating its entries into this
// tree's coordinates. skipRoot suppresses the mount's own root entry,
// which the caller has already reported as the mount point.
func visitMount(ctx context.Context, mount Space, at spacepath.Path, depthOffset int, skipRoot bool, visitor Visitor, opts VisitOptions) (VisitControl, error) {
	stopped := false
	err := mount.Visit(ctx, func(entry Entry, handle *ValueHandle) VisitControl {
		if skipRoot && entry.Depth == 0 {
			return Continue
		}
		entry.Path = string(spacepath.Concat(at, spacepath.Path(entry.Path)))
		entry.Depth += depthOffset
		control := visitor(entry, handle)
		if control == Stop {
			stopped = true
		}
		return control
	}, opts)
	if stopped {
		return Stop, err
	}
	return Continue, err
}
