// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spacepath implements the path grammar used to address values
// in a store: absolute, slash-delimited paths whose segments ([Name])
// are either concrete or glob patterns.
//
// Segment patterns support:
//
//   - "*" matches any run of characters within one segment
//   - "?" matches exactly one character
//   - "[abc]", "[a-z]", "[!abc]" match one character from a class
//   - "\X" matches a literal X, even when X is a metacharacter
//   - "**" as a whole segment is a supermatch: it consumes the rest of
//     the path regardless of depth
//
// A single "*" never crosses a "/" boundary. Malformed patterns (an
// unclosed class) never match.
//
// Stores key their children by the literal (unescaped) form of a
// concrete segment, so "/a\*b" and a glob "/a*" both address the child
// named "a*b". [Escape] and [Join] render such names back into valid
// path syntax.
//
// Ordering between names is plain lexicographic string order. It is
// used for deterministic iteration and never for pattern semantics.
package spacepath
