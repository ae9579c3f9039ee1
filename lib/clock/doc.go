// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for deadline
// handling.
//
// Blocking store operations compute deadlines from Clock.Now and sleep
// on Clock.NewTimer instead of calling the time package directly. In
// production, Real() provides the standard library behavior. In tests,
// Fake() provides a clock that advances only when Advance is called, so
// timeout paths are deterministic:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	tree := pathspace.New(pathspace.WithClock(c))
//	go func() { result <- readBlocking(tree) }()
//	c.WaitForTimers(1)          // the reader has armed its deadline
//	c.Advance(time.Second)      // the deadline passes
//
// WaitForTimers removes the race between a goroutine arming a timer
// and the test advancing the clock.
package clock
