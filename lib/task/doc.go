// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package task implements deferred computations that can be stored at
// a path in place of a value, and the executor that runs them.
//
// A [Task] moves through a one-way state machine:
//
//	Created --TryStart--> Started --TransitionToRunning--> Running --> Completed | Failed
//
// Transitions are atomic compare-and-swap operations, so two readers
// racing to start a lazy task schedule it exactly once.
//
// The [Category] decides when and where the work happens: Immediate
// tasks are scheduled as soon as they are inserted, Lazy tasks on the
// first read that reaches them, and MainThread tasks run on the
// executor's single pinned goroutine.
//
// [Pool] is the default [Executor]: a fixed set of worker goroutines
// managed by an errgroup, plus one goroutine locked to its OS thread
// for MainThread work.
package task
