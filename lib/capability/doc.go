// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability decides which actions a caller may perform on
// which paths.
//
// A [Policy] lists grants and denials. Each names path patterns, using
// the store's glob grammar (see lib/spacepath), and action patterns,
// using a slash-hierarchical form where "*" matches one action segment
// and "**" matches any number. Evaluation is default-deny: an action is
// allowed when some grant covers it and no denial does. Denials always
// win over grants.
//
// A [Checker] is the predicate consumed by the permission view in
// lib/layer: [Checker.Permissions] maps a path to the read, write, and
// execute bits the view enforces.
package capability
