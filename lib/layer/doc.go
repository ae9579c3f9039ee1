// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package layer provides stores that wrap or stand in for a
// pathspace.Tree while implementing the same pathspace.Space contract,
// so they can be used directly or mounted into a tree:
//
//   - [View] restricts a store to a subtree and checks a permission
//     predicate before every operation.
//   - [Bounded] caps the queue length at every path, evicting the
//     oldest value of the incoming type.
//   - [Filesystem] stores string values as files under a directory and
//     turns filesystem changes into notifications.
//   - [Alias] forwards to another store under a target prefix that can
//     be switched at runtime.
//   - [Trellis] merges several source paths into one output, served
//     round-robin or by priority.
//   - [SnapshotCached] answers plain reads from a periodically rebuilt
//     snapshot of the store it wraps.
//
// Layers that hold no waiters of their own forward notifications to
// the tree they are mounted in, which is where blocked readers wait.
package layer
