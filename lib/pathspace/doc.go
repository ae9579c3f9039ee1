// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathspace implements the path-addressed store: callers
// insert, read, and take typed values at slash-delimited paths, using
// glob patterns to address many locations at once.
//
// [Space] is the contract shared by the default [Tree] implementation
// and every decorator in lib/layer. A Tree maps each child name of a
// directory to exactly one of a value queue, an owned subdirectory
// (created lazily on first write), or a mounted store. Operations
// descend into mounted stores transparently, so a tree composes
// heterogeneous backends into one namespace.
//
// # Resolution
//
// Literal intermediate segments create or reuse directories on insert.
// A glob intermediate segment fans the rest of the path out across the
// directories and mounts that already exist; a wildcard never creates
// a directory. A literal final segment appends to that leaf's queue
// (creating it); a glob final segment appends to every matching leaf
// that already exists. "**" targets every leaf below it.
//
// Reads peek at the front of the matched queue; takes pop it, and
// taking the last value deletes the leaf. A glob read returns the
// first match in lexicographic order that holds the requested type.
// [ReadAll] returns every match instead.
//
// # Blocking
//
// With [Options].Block set, a read or take that finds nothing parks on
// the tree's wait map until an insert notifies the path or the timeout
// elapses. Every successful insert notifies its concrete path; mounted
// stores forward their notifications to the parent with the mount
// prefix prepended, so a reader blocked at the root is woken by an
// insert deep inside a mount.
//
// # Typed access
//
// The Space methods are type-erased. The generic helpers [Insert],
// [Read], [Take], [InsertTask], and [Mount] capture or check the Go
// type at the call site:
//
//	tree := pathspace.New()
//	pathspace.Insert(tree, "/sensors/temp", 21.5)
//	temp, err := pathspace.Read[float64](ctx, tree, "/sensors/temp", pathspace.Options{})
package pathspace
