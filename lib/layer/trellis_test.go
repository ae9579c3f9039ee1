// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/testutil"
	"github.com/bureau-foundation/pathspace/lib/value"
)

func newTrellis(t *testing.T, backing pathspace.Space, config TrellisConfig) *Trellis {
	t.Helper()
	trellis := NewTrellis(backing)
	t.Cleanup(trellis.Shutdown)
	if err := trellis.Enable(config); err != nil {
		t.Fatalf("Enable(%+v): %v", config, err)
	}
	return trellis
}

func TestTrellisRoundRobin(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{
		Output:  "/out/merged",
		Sources: []string{"/in/a", "/in/b"},
	})

	mustInsert(t, backing, "/in/a", 1)
	mustInsert(t, backing, "/in/a", 3)
	mustInsert(t, backing, "/in/b", 2)

	var got []int
	for range 3 {
		v, err := pathspace.Take[int](background, trellis, "/out/merged", pathspace.Options{})
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		got = append(got, v)
	}
	if want := []int{1, 2, 3}; !slices.Equal(got, want) {
		t.Errorf("Take order = %v, want %v", got, want)
	}

	_, err := pathspace.Take[int](background, trellis, "/out/merged", pathspace.Options{})
	wantCode(t, "Take of drained output", err, spaceerr.NoObjectFound)

	stats, ok := trellis.Stats("/out/merged")
	if !ok || stats.Served != 3 || stats.LastSource != "/in/a" {
		t.Errorf("Stats = (%+v, %v), want 3 served, last from /in/a", stats, ok)
	}
}

func TestTrellisReadDoesNotAdvance(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{
		Output:  "/merged",
		Sources: []string{"/a", "/b"},
	})
	mustInsert(t, backing, "/a", "first")
	mustInsert(t, backing, "/b", "second")

	for range 2 {
		got, err := pathspace.Read[string](background, trellis, "/merged", pathspace.Options{})
		if err != nil || got != "first" {
			t.Fatalf("Read = (%q, %v), want (first, nil)", got, err)
		}
	}
	if got, _ := pathspace.Read[string](background, backing, "/a", pathspace.Options{}); got != "first" {
		t.Errorf("source /a = %q after reads, want first", got)
	}
}

func TestTrellisPriority(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{
		Output:  "/merged",
		Sources: []string{"/urgent", "/normal"},
		Policy:  Priority,
	})
	mustInsert(t, backing, "/normal", 10)
	mustInsert(t, backing, "/normal", 11)
	mustInsert(t, backing, "/urgent", 1)

	var got []int
	for range 3 {
		v, err := pathspace.Take[int](background, trellis, "/merged", pathspace.Options{})
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		got = append(got, v)
	}
	if want := []int{1, 10, 11}; !slices.Equal(got, want) {
		t.Errorf("Take order = %v, want %v", got, want)
	}
}

func TestTrellisLatestModeKeepsSources(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{
		Output:  "/latest",
		Sources: []string{"/a", "/b"},
		Mode:    TrellisLatest,
	})
	mustInsert(t, backing, "/a", 1)
	mustInsert(t, backing, "/b", 2)

	var got []int
	for range 4 {
		v, err := pathspace.Take[int](background, trellis, "/latest", pathspace.Options{})
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		got = append(got, v)
	}
	if want := []int{1, 2, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("Take sequence = %v, want %v", got, want)
	}
	for path, want := range map[string]int{"/a": 1, "/b": 2} {
		if v, err := pathspace.Read[int](background, backing, path, pathspace.Options{}); err != nil || v != want {
			t.Errorf("source %s = (%d, %v), want (%d, nil)", path, v, err, want)
		}
	}
}

func TestTrellisSkipsMismatchedSource(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{
		Output:  "/merged",
		Sources: []string{"/missing", "/strings"},
	})
	mustInsert(t, backing, "/strings", "hello")

	got, err := pathspace.Read[string](background, trellis, "/merged", pathspace.Options{})
	if err != nil || got != "hello" {
		t.Errorf("Read = (%q, %v), want (hello, nil)", got, err)
	}
	_, err = pathspace.Read[int](background, trellis, "/merged", pathspace.Options{})
	wantCode(t, "Read of int from string source", err, spaceerr.TypeMismatch)
}

func TestTrellisBlockingTakeWakesOnSourceInsert(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{
		Output:  "/merged",
		Sources: []string{"/a", "/b"},
	})

	results := make(chan int, 1)
	go func() {
		got, _ := pathspace.Take[int](background, trellis, "/merged", pathspace.Block(testutil.Timeout))
		results <- got
	}()
	testutil.RequireNoReceive(t, results, "take returned before any source had a value")

	mustInsert(t, backing, "/b", 42)
	if got := testutil.RequireReceive(t, results, "take not woken by source insert"); got != 42 {
		t.Errorf("Take = %d, want 42", got)
	}
	if _, err := pathspace.Read[int](background, backing, "/b", pathspace.Options{}); !spaceerr.IsAbsent(err) {
		t.Errorf("source /b after take: err = %v, want absent", err)
	}
	if stats, _ := trellis.Stats("/merged"); stats.Waits == 0 {
		t.Errorf("Stats.Waits = 0, want at least one wait")
	}
}

func TestTrellisBlockingTimeout(t *testing.T) {
	trellis := newTrellis(t, newTree(t), TrellisConfig{
		Output:  "/merged",
		Sources: []string{"/a"},
	})
	_, err := pathspace.Take[int](background, trellis, "/merged", pathspace.Block(10*time.Millisecond))
	wantCode(t, "Take with nothing queued", err, spaceerr.Timeout)
}

func TestTrellisShutdownReleasesWaiters(t *testing.T) {
	backing := newTree(t)
	trellis := NewTrellis(backing)
	if err := trellis.Enable(TrellisConfig{Output: "/merged", Sources: []string{"/a"}}); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := pathspace.Take[int](background, trellis, "/merged", pathspace.Block(pathspace.Forever))
		errs <- err
	}()
	testutil.RequireNoReceive(t, errs, "take returned before shutdown")
	trellis.Shutdown()
	err := testutil.RequireReceive(t, errs, "take not released by shutdown")
	wantCode(t, "Take during shutdown", err, spaceerr.ShuttingDown)

	// The backing store is still usable.
	mustInsert(t, backing, "/a", 1)
}

func TestTrellisInsertFansOut(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{
		Output:  "/merged",
		Sources: []string{"/a", "/b"},
	})
	result := pathspace.Insert(trellis, "/merged", "broadcast")
	if result.Err() != nil || result.Inserted() != 2 {
		t.Fatalf("Insert = %+v, want two values inserted", result)
	}
	for _, path := range []string{"/a", "/b"} {
		if got, err := pathspace.Read[string](background, backing, path, pathspace.Options{}); err != nil || got != "broadcast" {
			t.Errorf("Read(%s) = (%q, %v), want (broadcast, nil)", path, got, err)
		}
	}

	wantCode(t, "Insert at unknown path", pathspace.Insert(trellis, "/elsewhere", 1).Err(), spaceerr.NoSuchPath)
}

func TestTrellisCommands(t *testing.T) {
	backing := newTree(t)
	trellis := NewTrellis(backing)
	t.Cleanup(trellis.Shutdown)
	mustInsert(t, backing, "/a", 5)

	config := TrellisConfig{Output: "/merged", Sources: []string{"/a"}}
	if err := pathspace.Insert(trellis, TrellisEnablePath, config).Err(); err != nil {
		t.Fatalf("enable command: %v", err)
	}
	if got := trellis.Outputs(); !slices.Equal(got, []string{"/merged"}) {
		t.Errorf("Outputs = %v, want [/merged]", got)
	}
	if got, err := pathspace.Read[int](background, trellis, "/merged", pathspace.Options{}); err != nil || got != 5 {
		t.Errorf("Read = (%d, %v), want (5, nil)", got, err)
	}

	if err := pathspace.Insert(trellis, TrellisDisablePath, "/merged").Err(); err != nil {
		t.Fatalf("disable command: %v", err)
	}
	_, err := pathspace.Read[int](background, trellis, "/merged", pathspace.Options{})
	wantCode(t, "Read after disable", err, spaceerr.NoSuchPath)

	wantCode(t, "enable command with an int", pathspace.Insert(trellis, TrellisEnablePath, 3).Err(), spaceerr.InvalidType)
	wantCode(t, "unknown command", pathspace.Insert(trellis, "/_system/trellis/reboot", "x").Err(), spaceerr.InvalidPath)
}

func TestTrellisEnableValidation(t *testing.T) {
	trellis := newTrellis(t, newTree(t), TrellisConfig{Output: "/out/a", Sources: []string{"/a"}})

	tests := []struct {
		name   string
		config TrellisConfig
		code   spaceerr.Code
	}{
		{"root output", TrellisConfig{Output: "/", Sources: []string{"/a"}}, spaceerr.InvalidPath},
		{"glob output", TrellisConfig{Output: "/out/*", Sources: []string{"/a"}}, spaceerr.InvalidPath},
		{"system output", TrellisConfig{Output: "/_system/x", Sources: []string{"/a"}}, spaceerr.InvalidPath},
		{"no sources", TrellisConfig{Output: "/b"}, spaceerr.MalformedInput},
		{"glob source", TrellisConfig{Output: "/b", Sources: []string{"/in/*"}}, spaceerr.InvalidPath},
		{"below output", TrellisConfig{Output: "/out/a/deeper", Sources: []string{"/a"}}, spaceerr.InvalidPath},
		{"above output", TrellisConfig{Output: "/out", Sources: []string{"/a"}}, spaceerr.InvalidPath},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			wantCode(t, "Enable", trellis.Enable(test.config), test.code)
		})
	}

	// Re-enabling an output replaces its sources.
	if err := trellis.Enable(TrellisConfig{Output: "/out/a", Sources: []string{"/b", "/b"}}); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if err := trellis.Disable("/not/enabled"); err != nil {
		t.Errorf("Disable of unknown output: %v", err)
	}
}

func TestTrellisParseNames(t *testing.T) {
	if mode, err := ParseTrellisMode("latest"); err != nil || mode != TrellisLatest {
		t.Errorf("ParseTrellisMode(latest) = (%v, %v), want latest", mode, err)
	}
	if policy, err := ParseTrellisPolicy(""); err != nil || policy != RoundRobin {
		t.Errorf("ParseTrellisPolicy(\"\") = (%v, %v), want round_robin", policy, err)
	}
	_, err := ParseTrellisPolicy("random")
	wantCode(t, "ParseTrellisPolicy(random)", err, spaceerr.MalformedInput)
}

func TestTrellisVisit(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{Output: "/out/merged", Sources: []string{"/a", "/b"}})
	if err := trellis.Enable(TrellisConfig{Output: "/solo", Sources: []string{"/c"}}); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, backing, "/a", 1)
	mustInsert(t, backing, "/b", 2)
	mustInsert(t, backing, "/b", 3)

	type seen struct {
		path  string
		depth int
		queue int
	}
	var got []seen
	var values []*value.Value
	err := trellis.Visit(background, func(entry pathspace.Entry, handle *pathspace.ValueHandle) pathspace.VisitControl {
		got = append(got, seen{entry.Path, entry.Depth, entry.QueueDepth})
		if handle != nil {
			values = append(values, handle.Values()...)
		}
		return pathspace.Continue
	}, pathspace.VisitOptions{IncludeValues: true})
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	want := []seen{{"/", 0, 0}, {"/out", 1, 0}, {"/out/merged", 2, 3}, {"/solo", 1, 0}}
	if !slices.Equal(got, want) {
		t.Errorf("Visit = %v, want %v", got, want)
	}
	if len(values) != 3 {
		t.Errorf("Visit values = %d, want 3", len(values))
	}

	got = nil
	err = trellis.Visit(background, func(entry pathspace.Entry, _ *pathspace.ValueHandle) pathspace.VisitControl {
		got = append(got, seen{entry.Path, entry.Depth, entry.QueueDepth})
		return pathspace.Continue
	}, pathspace.VisitOptions{Root: "/out"})
	if err != nil {
		t.Fatalf("Visit(/out): %v", err)
	}
	if want := []seen{{"/out", 0, 0}, {"/out/merged", 1, 3}}; !slices.Equal(got, want) {
		t.Errorf("Visit(/out) = %v, want %v", got, want)
	}

	err = trellis.Visit(background, func(pathspace.Entry, *pathspace.ValueHandle) pathspace.VisitControl {
		return pathspace.Continue
	}, pathspace.VisitOptions{Root: "/nowhere"})
	wantCode(t, "Visit(/nowhere)", err, spaceerr.NoSuchPath)
}

func TestTrellisMountedBlockingRead(t *testing.T) {
	backing := newTree(t)
	trellis := newTrellis(t, backing, TrellisConfig{Output: "/merged", Sources: []string{"/a"}})
	parent := newTree(t)
	pathspace.Mount(parent, "/fan", trellis)

	mustInsert(t, backing, "/a", "ready")
	got, err := pathspace.Read[string](background, parent, "/fan/merged", pathspace.Options{})
	if err != nil || got != "ready" {
		t.Errorf("Read through mount = (%q, %v), want (ready, nil)", got, err)
	}
}
