// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"context"
	"testing"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/testutil"
	"github.com/bureau-foundation/pathspace/lib/value"
)

func TestMountReadThrough(t *testing.T) {
	ctx := context.Background()
	parent := newTestTree(t)
	child := newTestTree(t)
	mustInsert(t, child, "/v", 3)

	result := Mount(parent, "/sys/child", child)
	if err := result.Err(); err != nil || result.NbrSpacesInserted != 1 {
		t.Fatalf("Mount = %+v, want one space inserted", result)
	}

	if got, err := Read[int](ctx, parent, "/sys/child/v", Options{}); err != nil || got != 3 {
		t.Errorf("Read through mount = (%d, %v), want (3, nil)", got, err)
	}

	// Inserts through the parent land in the child.
	mustInsert(t, parent, "/sys/child/w", 4)
	if got, err := Take[int](ctx, child, "/w", Options{}); err != nil || got != 4 {
		t.Errorf("child Take(/w) = (%d, %v), want (4, nil)", got, err)
	}

	// The mount point itself is not a value.
	_, err := Read[int](ctx, parent, "/sys/child", Options{})
	wantCode(t, "Read of mount point", err, spaceerr.NoObjectFound)

	// Mounting over an occupied name fails.
	wantCode(t, "Mount over mount", Mount(parent, "/sys/child", New()).Err(), spaceerr.InvalidType)
	wantCode(t, "Insert onto mount point", Insert(parent, "/sys/child", 1).Err(), spaceerr.InvalidType)
}

func TestMountNotifiesParentWaiters(t *testing.T) {
	parent := newTestTree(t)
	child := newTestTree(t)
	Mount(parent, "/child", child)

	results := make(chan int, 1)
	go func() {
		got, _ := Take[int](context.Background(), parent, "/child/event", Block(Forever))
		results <- got
	}()

	// Insert directly into the child; the notification travels up.
	mustInsert(t, child, "/event", 7)
	if got := testutil.RequireReceive(t, results, "parent waiter not woken by child insert"); got != 7 {
		t.Errorf("Take = %d, want 7", got)
	}
}

func TestMountWakesWaitersUnderMountPoint(t *testing.T) {
	parent := newTestTree(t)
	child := newTestTree(t)
	mustInsert(t, child, "/ready", "yes")

	results := make(chan string, 1)
	go func() {
		got, _ := Read[string](context.Background(), parent, "/late/ready", Block(Forever))
		results <- got
	}()

	Mount(parent, "/late", child)
	if got := testutil.RequireReceive(t, results, "waiter not woken by mount"); got != "yes" {
		t.Errorf("Read = %q, want yes", got)
	}
}

func TestNestedMounts(t *testing.T) {
	ctx := context.Background()
	top := newTestTree(t)
	middle := newTestTree(t)
	bottom := newTestTree(t)
	Mount(top, "/a", middle)
	Mount(middle, "/b", bottom)

	results := make(chan int, 1)
	go func() {
		got, _ := Read[int](ctx, top, "/a/b/c", Block(Forever))
		results <- got
	}()
	mustInsert(t, bottom, "/c", 5)
	if got := testutil.RequireReceive(t, results); got != 5 {
		t.Errorf("Read(/a/b/c) = %d, want 5", got)
	}
}

func TestUnmount(t *testing.T) {
	ctx := context.Background()
	parent := newTestTree(t)
	child := newTestTree(t)
	mustInsert(t, child, "/v", 1)
	Mount(parent, "/m", child)

	v, err := parent.Read(ctx, "/m", value.TypeFor(spaceType), Options{})
	if err != nil || v.Space() != Space(child) {
		t.Fatalf("Read(/m, Space) = (%v, %v), want the child", v, err)
	}

	got, err := Unmount(ctx, parent, "/m")
	if err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if got != Space(child) {
		t.Errorf("Unmount returned %v, want the child", got)
	}
	_, err = Read[int](ctx, parent, "/m/v", Options{})
	wantCode(t, "Read after unmount", err, spaceerr.NoSuchPath)

	// The child no longer forwards to the old parent.
	if p, _ := child.mountPoint(); p != nil {
		t.Errorf("child parent after unmount = %v, want nil", p)
	}
}

func TestShutdownCascadesToMounts(t *testing.T) {
	parent := New()
	child := New()
	Mount(parent, "/child", child)

	errs := make(chan error, 1)
	go func() {
		_, err := Take[int](context.Background(), child, "/never", Block(Forever))
		errs <- err
	}()

	parent.Shutdown()
	err := testutil.RequireReceive(t, errs, "child waiter not released")
	wantCode(t, "child Take", err, spaceerr.ShuttingDown)
}

// redirect is a minimal Space that answers every insert with a
// retarget.
type redirect struct {
	target string
}

func (r *redirect) Notify(string) {}

func (r *redirect) Insert(path string, _ *value.Value) InsertReturn {
	return InsertReturn{Retargets: []Retarget{{Path: r.target + path}}}
}

func (r *redirect) Read(context.Context, string, value.Type, Options) (*value.Value, error) {
	return nil, spaceerr.ErrNotSupported
}

func (r *redirect) Take(context.Context, string, value.Type, Options) (*value.Value, error) {
	return nil, spaceerr.ErrNotSupported
}

func (r *redirect) Visit(context.Context, Visitor, VisitOptions) error {
	return spaceerr.ErrNotSupported
}

func (r *redirect) Shutdown() {}

func TestRetargetFollowed(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	Mount(tree, "/alias", &redirect{target: "/real"})

	result := Insert(tree, "/alias/x", 5)
	if err := result.Err(); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if result.NbrValuesInserted != 1 || len(result.Retargets) != 0 {
		t.Errorf("Insert = %+v, want one value and no pending retargets", result)
	}
	if got, err := Read[int](ctx, tree, "/real/x", Options{}); err != nil || got != 5 {
		t.Errorf("Read(/real/x) = (%d, %v), want (5, nil)", got, err)
	}
}

func TestRetargetPropagatesFromAttachedTree(t *testing.T) {
	ctx := context.Background()
	root := newTestTree(t)
	middle := newTestTree(t)
	Mount(root, "/mid", middle)
	Mount(middle, "/alias", &redirect{target: "/landing"})

	// The retarget path is resolved by the unattached root.
	result := Insert(root, "/mid/alias/v", 1)
	if result.NbrValuesInserted != 1 {
		t.Fatalf("Insert = %+v, want one value", result)
	}
	if _, err := Read[int](ctx, root, "/landing/v", Options{}); err != nil {
		t.Errorf("Read(/landing/v): %v", err)
	}
}

func TestRetargetLoopStops(t *testing.T) {
	tree := newTestTree(t)
	Mount(tree, "/loop", &redirect{target: "/loop"})

	result := Insert(tree, "/loop/x", 1)
	if result.Inserted() != 0 {
		t.Errorf("Insert inserted %d, want 0", result.Inserted())
	}
	wantCode(t, "retarget loop", result.Err(), spaceerr.CapacityExceeded)
}
