// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache provides the read-through cache a store consults
// before walking its tree.
//
// Entries are keyed by fully resolved concrete path and hold whatever
// the store needs to answer a repeat read without resolution (the tree
// caches a reference to the leaf). The cache keeps hit, miss, and
// invalidation counters; callers that bypass it simply do not call
// Lookup, so bypassed reads never move the counters.
//
// Capacity is bounded. When full, the oldest stored entry is evicted
// first. Eviction is not counted as an invalidation.
package cache
