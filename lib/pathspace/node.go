// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

type entryKind int

const (
	leafEntry entryKind = iota
	dirEntry
	mountEntry
)

// entry is what a directory holds under one child name. Entries are
// replaced, never mutated, so a pointer comparison tells whether the
// name still refers to the entry a caller resolved earlier.
type entry struct {
	kind  entryKind
	leaf  *leaf
	dir   *node
	mount Space
}

// node is one directory. Child names are stored unescaped.
type node struct {
	mu       sync.RWMutex
	children map[string]*entry
}

func newNode() *node {
	return &node{children: make(map[string]*entry)}
}

// leaf holds the value queue at one path. A leaf whose last value was
// taken is marked dead and removed from its directory; holders of a
// stale pointer (such as the read cache) must check.
type leaf struct {
	mu    sync.Mutex
	queue value.Queue
	dead  bool
}

func newLeaf(v *value.Value) *leaf {
	l := &leaf{}
	l.queue.Push(v)
	return l
}

// push appends v unless the leaf has died.
func (l *leaf) push(v *value.Value) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return false
	}
	l.queue.Push(v)
	return true
}

func (l *leaf) isDead() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dead
}

// snapshot copies the queue contents. ok is false for a dead leaf.
func (l *leaf) snapshot() (values []*value.Value, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return nil, false
	}
	return l.queue.Values(), true
}

type child struct {
	name  string
	entry *entry
}

func (n *node) get(name string) (*entry, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	e, ok := n.children[name]
	return e, ok
}

// sorted returns the children in lexicographic order.
func (n *node) sorted() []child {
	n.mu.RLock()
	children := make([]child, 0, len(n.children))
	for name, e := range n.children {
		children = append(children, child{name: name, entry: e})
	}
	n.mu.RUnlock()
	slices.SortFunc(children, func(a, b child) int { return strings.Compare(a.name, b.name) })
	return children
}

// matching returns the children whose names match pattern, in
// lexicographic order.
func (n *node) matching(pattern spacepath.Name) []child {
	all := n.sorted()
	matched := all[:0]
	for _, c := range all {
		if ok, _ := pattern.Match(c.name); ok {
			matched = append(matched, c)
		}
	}
	return matched
}

func (n *node) isEmpty() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.children) == 0
}

// dir returns the directory entry for name, creating it when absent.
// An existing mount is returned as-is so the caller can delegate. A
// live leaf in the way is an error; a dead one is replaced.
func (n *node) dir(name string) (*entry, error) {
	if e, ok := n.get(name); ok && e.kind != leafEntry {
		return e, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.children[name]; ok {
		if e.kind != leafEntry {
			return e, nil
		}
		if !e.leaf.isDead() {
			return nil, spaceerr.Newf(spaceerr.InvalidPathSubcomponent, "sub-component %q holds data", name)
		}
	}
	e := &entry{kind: dirEntry, dir: newNode()}
	n.children[name] = e
	return e, nil
}

// appendValue pushes v onto the leaf at name, creating the leaf when
// absent or dead.
func (n *node) appendValue(name string, v *value.Value) error {
	if e, ok := n.get(name); ok && e.kind == leafEntry && e.leaf.push(v) {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.children[name]; ok {
		switch e.kind {
		case leafEntry:
			if e.leaf.push(v) {
				return nil
			}
		case dirEntry:
			return spaceerr.Newf(spaceerr.InvalidType, "%q is a directory", name)
		case mountEntry:
			return spaceerr.Newf(spaceerr.InvalidType, "%q is a mounted space", name)
		}
	}
	n.children[name] = &entry{kind: leafEntry, leaf: newLeaf(v)}
	return nil
}

// attach places a mount at name. Only an empty slot or a dead leaf can
// be replaced.
func (n *node) attach(name string, space Space) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.children[name]; ok && (e.kind != leafEntry || !e.leaf.isDead()) {
		return spaceerr.Newf(spaceerr.InvalidType, "cannot mount over %q", name)
	}
	n.children[name] = &entry{kind: mountEntry, mount: space}
	return nil
}

// remove deletes name if it still refers to e.
func (n *node) remove(name string, e *entry) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children[name] != e {
		return false
	}
	delete(n.children, name)
	return true
}

// mounts appends every mounted space in the subtree, deepest first.
func (n *node) mounts(into []Space) []Space {
	for _, c := range n.sorted() {
		switch c.entry.kind {
		case dirEntry:
			into = c.entry.dir.mounts(into)
		case mountEntry:
			into = append(into, c.entry.mount)
		}
	}
	return into
}
