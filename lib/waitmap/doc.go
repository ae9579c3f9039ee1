// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package waitmap lets blocking store operations park until a value
// may have arrived at a path.
//
// Each distinct path ever waited on gets an entry holding a generation
// channel. [Map.Notify] closes the current channel and installs a
// fresh one, waking every goroutine parked on that generation. Because
// a waiter captures the generation before evaluating its predicate, a
// notification that lands between the predicate check and the park is
// never lost.
//
// Entries are created lazily and never removed. A process-local
// namespace waits on a bounded set of paths, so the map stays small.
//
// Waiters may register on glob patterns. Notify for a concrete path
// also wakes every registered pattern that matches it, so a blocking
// glob read is released by the insert that satisfies it.
//
// [Map.Close] releases every waiter with a ShuttingDown error. A store
// owns exactly one Map; maps are never shared between unrelated stores.
package waitmap
