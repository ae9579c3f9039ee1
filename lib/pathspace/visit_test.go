// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"context"
	"slices"
	"testing"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/value"
)

func visitedPaths(t *testing.T, s Space, opts VisitOptions, stopAt string) []string {
	t.Helper()
	var paths []string
	err := s.Visit(context.Background(), func(entry Entry, _ *ValueHandle) VisitControl {
		paths = append(paths, entry.Path)
		if entry.Path == stopAt {
			return Stop
		}
		return Continue
	}, opts)
	if err != nil {
		t.Fatalf("Visit(%+v): %v", opts, err)
	}
	return paths
}

func buildVisitTree(t *testing.T) *Tree {
	tree := newTestTree(t)
	mustInsert(t, tree, "/d", 3)
	mustInsert(t, tree, "/a/c", 2)
	mustInsert(t, tree, "/a/b", 1)
	return tree
}

func TestVisitOrder(t *testing.T) {
	tree := buildVisitTree(t)
	tests := []struct {
		name   string
		opts   VisitOptions
		stopAt string
		want   []string
	}{
		{"full", VisitOptions{}, "", []string{"/", "/a", "/a/b", "/a/c", "/d"}},
		{"depth one", VisitOptions{MaxDepth: 1}, "", []string{"/", "/a", "/d"}},
		{"max children", VisitOptions{MaxChildren: 1}, "", []string{"/", "/a", "/a/b"}},
		{"subtree", VisitOptions{Root: "/a"}, "", []string{"/a", "/a/b", "/a/c"}},
		{"leaf root", VisitOptions{Root: "/a/c"}, "", []string{"/a/c"}},
		{"stop", VisitOptions{}, "/a/b", []string{"/", "/a", "/a/b"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := visitedPaths(t, tree, test.opts, test.stopAt)
			if !slices.Equal(got, test.want) {
				t.Errorf("Visit = %q, want %q", got, test.want)
			}
		})
	}
}

func TestVisitSkipChildren(t *testing.T) {
	tree := buildVisitTree(t)
	var paths []string
	tree.Visit(context.Background(), func(entry Entry, _ *ValueHandle) VisitControl {
		paths = append(paths, entry.Path)
		if entry.Path == "/a" {
			return SkipChildren
		}
		return Continue
	}, VisitOptions{})
	if want := []string{"/", "/a", "/d"}; !slices.Equal(paths, want) {
		t.Errorf("Visit = %q, want %q", paths, want)
	}
}

func TestVisitEntries(t *testing.T) {
	tree := newTestTree(t)
	mustInsert(t, tree, "/q", 1)
	mustInsert(t, tree, "/q", 2)

	var leaf Entry
	var handle *ValueHandle
	tree.Visit(context.Background(), func(entry Entry, h *ValueHandle) VisitControl {
		if entry.Path == "/q" {
			leaf, handle = entry, h
		}
		return Continue
	}, VisitOptions{IncludeValues: true})

	if !leaf.HasValue || leaf.QueueDepth != 2 || leaf.Depth != 1 {
		t.Errorf("entry = %+v, want a depth-1 value with queue depth 2", leaf)
	}
	if handle == nil {
		t.Fatal("no value handle with IncludeValues")
	}
	front, err := handle.Front(value.TypeOf[int]())
	if err != nil {
		t.Fatalf("Front: %v", err)
	}
	if got, _ := value.As[int](front); got != 1 {
		t.Errorf("Front = %d, want 1", got)
	}
	if _, err := handle.Front(value.TypeOf[string]()); !spaceerr.Is(err, spaceerr.TypeMismatch) {
		t.Errorf("Front[string] error = %v, want TypeMismatch", err)
	}

	// Visiting is read-only.
	if got, err := Read[int](context.Background(), tree, "/q", Options{}); err != nil || got != 1 {
		t.Errorf("Read after visit = (%d, %v), want (1, nil)", got, err)
	}
}

func TestVisitNestedSpaces(t *testing.T) {
	parent := newTestTree(t)
	child := newTestTree(t)
	mustInsert(t, child, "/v", 1)
	mustInsert(t, parent, "/top", 1)
	Mount(parent, "/m", child)

	without := visitedPaths(t, parent, VisitOptions{}, "")
	if want := []string{"/", "/m", "/top"}; !slices.Equal(without, want) {
		t.Errorf("Visit without nested = %q, want %q", without, want)
	}

	var depths []int
	parent.Visit(context.Background(), func(entry Entry, _ *ValueHandle) VisitControl {
		depths = append(depths, entry.Depth)
		return Continue
	}, VisitOptions{IncludeNestedSpaces: true})
	with := visitedPaths(t, parent, VisitOptions{IncludeNestedSpaces: true}, "")
	if want := []string{"/", "/m", "/m/v", "/top"}; !slices.Equal(with, want) {
		t.Errorf("Visit with nested = %q, want %q", with, want)
	}
	if want := []int{0, 1, 2, 1}; !slices.Equal(depths, want) {
		t.Errorf("depths = %v, want %v", depths, want)
	}

	rooted := visitedPaths(t, parent, VisitOptions{Root: "/m"}, "")
	if want := []string{"/m", "/m/v"}; !slices.Equal(rooted, want) {
		t.Errorf("Visit rooted in mount = %q, want %q", rooted, want)
	}
}

func TestVisitErrors(t *testing.T) {
	tree := buildVisitTree(t)
	tests := []struct {
		root string
		code spaceerr.Code
	}{
		{"/missing", spaceerr.NoSuchPath},
		{"/a/*", spaceerr.InvalidPath},
		{"/d/below", spaceerr.InvalidPathSubcomponent},
	}
	for _, test := range tests {
		err := tree.Visit(context.Background(), func(Entry, *ValueHandle) VisitControl { return Continue }, VisitOptions{Root: test.root})
		if !spaceerr.Is(err, test.code) {
			t.Errorf("Visit(Root=%s) error = %v, want %v", test.root, err, test.code)
		}
	}
}

func TestChildren(t *testing.T) {
	ctx := context.Background()
	tree := buildVisitTree(t)
	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"a", "d"}},
		{"/a", []string{"b", "c"}},
		{"/d", nil},
	}
	for _, test := range tests {
		got, err := Children(ctx, tree, test.path)
		if err != nil {
			t.Fatalf("Children(%s): %v", test.path, err)
		}
		if !slices.Equal(got, test.want) {
			t.Errorf("Children(%s) = %q, want %q", test.path, got, test.want)
		}
	}
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	mustInsert(t, tree, "/r/a", 1)
	mustInsert(t, tree, "/r/b", "skip")
	mustInsert(t, tree, "/r/c", 3)
	mustInsert(t, tree, "/s/a", 4)

	got, err := ReadAll[int](ctx, tree, "/r/*")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []Match[int]{{Path: "/r/a", Value: 1}, {Path: "/r/c", Value: 3}}
	if !slices.Equal(got, want) {
		t.Errorf("ReadAll(/r/*) = %+v, want %+v", got, want)
	}

	got, err = ReadAll[int](ctx, tree, "/*/a")
	if err != nil || len(got) != 2 {
		t.Errorf("ReadAll(/*/a) = (%+v, %v), want two matches", got, err)
	}

	got, err = ReadAll[int](ctx, tree, "/none/*")
	if err != nil || len(got) != 0 {
		t.Errorf("ReadAll(/none/*) = (%+v, %v), want nothing", got, err)
	}
}
