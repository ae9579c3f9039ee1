// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package waitmap

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/pathspace/lib/clock"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type outcome struct {
	ok  bool
	err error
}

func waitAsync(guard *Guard, deadline time.Time, pred func() bool) <-chan outcome {
	results := make(chan outcome, 1)
	go func() {
		ok, err := guard.WaitUntil(context.Background(), deadline, pred)
		results <- outcome{ok, err}
	}()
	return results
}

func TestPredicateAlreadyTrue(t *testing.T) {
	waits := New(clock.Fake(epoch))
	guard := waits.Wait("/a")
	defer guard.Release()

	ok, err := guard.WaitUntil(context.Background(), epoch.Add(time.Second), func() bool { return true })
	if !ok || err != nil {
		t.Errorf("WaitUntil = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestNotifyWakesWaiter(t *testing.T) {
	fake := clock.Fake(epoch)
	waits := New(fake)
	var ready atomic.Bool

	guard := waits.Wait("/a")
	defer guard.Release()
	results := waitAsync(guard, epoch.Add(time.Minute), ready.Load)

	fake.WaitForTimers(1)
	testutil.RequireNoReceive(t, results, "waiter returned before notify")

	ready.Store(true)
	waits.Notify("/a")

	got := testutil.RequireReceive(t, results, "waiter after notify")
	if !got.ok || got.err != nil {
		t.Errorf("WaitUntil = (%v, %v), want (true, nil)", got.ok, got.err)
	}
}

func TestSpuriousWakeupRechecksPredicate(t *testing.T) {
	fake := clock.Fake(epoch)
	waits := New(fake)
	var checks atomic.Int32
	var ready atomic.Bool

	guard := waits.Wait("/a")
	defer guard.Release()
	results := waitAsync(guard, epoch.Add(time.Minute), func() bool {
		checks.Add(1)
		return ready.Load()
	})

	fake.WaitForTimers(1)
	waits.Notify("/a")
	testutil.RequireNoReceive(t, results, "waiter returned with predicate false")

	ready.Store(true)
	waits.Notify("/a")
	testutil.RequireReceive(t, results, "waiter after second notify")
	if checks.Load() < 3 {
		t.Errorf("predicate evaluated %d times, want at least 3", checks.Load())
	}
}

func TestNotifyOtherPathDoesNotWake(t *testing.T) {
	fake := clock.Fake(epoch)
	waits := New(fake)
	var ready atomic.Bool
	ready.Store(true)

	guard := waits.Wait("/a")
	defer guard.Release()

	// The predicate is already satisfiable, but the waiter only
	// re-checks after its own path is notified.
	var first atomic.Bool
	first.Store(true)
	results := waitAsync(guard, epoch.Add(time.Minute), func() bool {
		if first.Swap(false) {
			return false
		}
		return ready.Load()
	})

	fake.WaitForTimers(1)
	waits.Notify("/b")
	testutil.RequireNoReceive(t, results, "waiter woken by another path")
	waits.Notify("/a")
	testutil.RequireReceive(t, results, "waiter after own notify")
}

func TestDeadlineExpiry(t *testing.T) {
	fake := clock.Fake(epoch)
	waits := New(fake)
	guard := waits.Wait("/a")
	defer guard.Release()

	results := waitAsync(guard, epoch.Add(5*time.Second), func() bool { return false })
	fake.WaitForTimers(1)
	fake.Advance(5 * time.Second)

	got := testutil.RequireReceive(t, results, "waiter at deadline")
	if got.ok || got.err != nil {
		t.Errorf("WaitUntil at deadline = (%v, %v), want (false, nil)", got.ok, got.err)
	}
}

func TestPastDeadlineReturnsImmediately(t *testing.T) {
	waits := New(clock.Fake(epoch))
	guard := waits.Wait("/a")
	defer guard.Release()

	ok, err := guard.WaitUntil(context.Background(), epoch, func() bool { return false })
	if ok || err != nil {
		t.Errorf("WaitUntil(past deadline) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestContextCancellation(t *testing.T) {
	waits := New(clock.Fake(epoch))
	guard := waits.Wait("/a")
	defer guard.Release()

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan outcome, 1)
	go func() {
		ok, err := guard.WaitUntil(ctx, time.Time{}, func() bool { return false })
		results <- outcome{ok, err}
	}()
	cancel()

	got := testutil.RequireReceive(t, results, "waiter after cancel")
	if got.ok || got.err != context.Canceled {
		t.Errorf("WaitUntil after cancel = (%v, %v), want (false, context.Canceled)", got.ok, got.err)
	}
}

func TestCloseReleasesWaiters(t *testing.T) {
	waits := New(clock.Fake(epoch))
	first := waits.Wait("/a")
	second := waits.Wait("/b")

	resultsA := waitAsync(first, time.Time{}, func() bool { return false })
	resultsB := waitAsync(second, time.Time{}, func() bool { return false })
	waits.Close()
	waits.Close()

	for _, results := range []<-chan outcome{resultsA, resultsB} {
		got := testutil.RequireReceive(t, results, "waiter after close")
		if got.ok || !spaceerr.Is(got.err, spaceerr.ShuttingDown) {
			t.Errorf("WaitUntil after Close = (%v, %v), want (false, ShuttingDown)", got.ok, got.err)
		}
	}

	late := waits.Wait("/c")
	if _, err := late.WaitUntil(context.Background(), time.Time{}, func() bool { return true }); !spaceerr.Is(err, spaceerr.ShuttingDown) {
		t.Errorf("WaitUntil on closed map = %v, want ShuttingDown", err)
	}
}

func TestGlobWaiterWokenByConcreteNotify(t *testing.T) {
	fake := clock.Fake(epoch)
	waits := New(fake)
	var ready atomic.Bool

	guard := waits.Wait("/sensors/*")
	defer guard.Release()
	results := waitAsync(guard, epoch.Add(time.Minute), ready.Load)

	fake.WaitForTimers(1)
	ready.Store(true)
	waits.Notify("/other/x")
	testutil.RequireNoReceive(t, results, "glob waiter woken by unrelated path")

	waits.Notify("/sensors/temp")
	testutil.RequireReceive(t, results, "glob waiter after matching notify")
}

func TestNotifyAll(t *testing.T) {
	fake := clock.Fake(epoch)
	waits := New(fake)
	var ready atomic.Bool

	first := waits.Wait("/a")
	second := waits.Wait("/b")
	resultsA := waitAsync(first, epoch.Add(time.Minute), ready.Load)
	resultsB := waitAsync(second, epoch.Add(time.Minute), ready.Load)

	fake.WaitForTimers(2)
	ready.Store(true)
	waits.NotifyAll()

	testutil.RequireReceive(t, resultsA, "first waiter")
	testutil.RequireReceive(t, resultsB, "second waiter")
}

func TestHasWaitersAndEntriesPersist(t *testing.T) {
	waits := New(clock.Fake(epoch))
	if waits.HasWaiters("/a") {
		t.Fatal("HasWaiters on fresh map = true")
	}
	guard := waits.Wait("/a")
	if !waits.HasWaiters("/a") {
		t.Fatal("HasWaiters after Wait = false")
	}
	guard.Release()
	guard.Release()
	if waits.HasWaiters("/a") {
		t.Fatal("HasWaiters after Release = true")
	}
	if waits.Len() != 1 {
		t.Errorf("Len() = %d after release, want 1 (entries are never removed)", waits.Len())
	}
}

func TestNotifyUnder(t *testing.T) {
	fake := clock.Fake(epoch)
	waits := New(fake)
	var ready atomic.Bool

	inside := waits.Wait("/mnt/a/b")
	outside := waits.Wait("/other")
	defer inside.Release()
	defer outside.Release()
	resultsInside := waitAsync(inside, epoch.Add(time.Minute), ready.Load)
	resultsOutside := waitAsync(outside, epoch.Add(time.Minute), ready.Load)

	fake.WaitForTimers(2)
	ready.Store(true)
	waits.NotifyUnder("/mnt")

	testutil.RequireReceive(t, resultsInside, "waiter below the prefix")
	testutil.RequireNoReceive(t, resultsOutside, "waiter outside the prefix")
}
