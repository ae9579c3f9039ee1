// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"
	"testing"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/task"
)

func newTree(t *testing.T) *pathspace.Tree {
	t.Helper()
	tree := pathspace.New(pathspace.WithExecutor(task.Inline()))
	t.Cleanup(tree.Shutdown)
	return tree
}

func mustInsert[T any](t *testing.T, s pathspace.Space, path string, v T) {
	t.Helper()
	if err := pathspace.Insert(s, path, v).Err(); err != nil {
		t.Fatalf("Insert(%q): %v", path, err)
	}
}

func wantCode(t *testing.T, what string, err error, code spaceerr.Code) {
	t.Helper()
	if !spaceerr.Is(err, code) {
		t.Errorf("%s error = %v, want %v", what, err, code)
	}
}

var background = context.Background()
