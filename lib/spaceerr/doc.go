// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spaceerr defines the error taxonomy shared by every store
// implementation: the tree, its decorators, and the helpers built on
// top of them.
//
// Leaf-level failures (a missing path, a type mismatch, a permission
// denial) are returned to the caller as *Error values carrying a [Code]
// and an optional message. Nothing in the store panics on user input.
//
// Callers match on codes with [Is] or errors.Is against the sentinel
// values:
//
//	if errors.Is(err, spaceerr.ErrNoSuchPath) { ... }
//	if spaceerr.Is(err, spaceerr.Timeout) { ... }
//
// Errors render as "<code>" or "<code>:<message>".
//
// This package depends on no other pathspace packages.
package spaceerr
