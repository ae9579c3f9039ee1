// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import "testing"

func TestMatchAction(t *testing.T) {
	tests := []struct {
		pattern string
		action  string
		want    bool
	}{
		// Exact match.
		{ActionRead, ActionRead, true},
		{ActionRead, ActionWrite, false},

		// Single-segment wildcard.
		{ActionAll, ActionExecute, true},
		{ActionAll, "fs/read", false},
		{"fs/*", "fs/read", true},
		{"fs/*", "fs", false},
		{"fs/*", "fs/a/b", false},
		{"fs/re?d", "fs/read", true},

		// Recursive wildcard.
		{"fs/**", "fs", true},
		{"fs/**", "fs/read", true},
		{"fs/**", "fs/a/b", true},
		{"fs/**", "net/read", false},

		// Universal.
		{"**", "anything", true},
		{"**", "a/b/c", true},

		// Interior recursive.
		{"fs/**/read", "fs/read", true},
		{"fs/**/read", "fs/a/b/read", true},
		{"fs/**/read", "fs/a/write", false},

		// Malformed and empty.
		{"[", "[", false},
		{"", "read", false},
		{"read", "", false},
	}
	for _, tt := range tests {
		if got := MatchAction(tt.pattern, tt.action); got != tt.want {
			t.Errorf("MatchAction(%q, %q) = %v, want %v", tt.pattern, tt.action, got, tt.want)
		}
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern string
		target  string
		want    bool
	}{
		{"/secret/*", "/secret/key", true},
		{"/secret/*", "/secret/a/b", false},
		{"/secret/**", "/secret/a/b", true},
		{"/secret/**", "/public/a", false},
		{"**", "/", true},
		{"/**", "/", true},
		{"/**", "/any/depth", true},
		{"/data/[ab]", "/data/b", true},
		{"/data/[ab]", "/data/c", false},
	}
	for _, tt := range tests {
		if got := MatchPath(tt.pattern, tt.target); got != tt.want {
			t.Errorf("MatchPath(%q, %q) = %v, want %v", tt.pattern, tt.target, got, tt.want)
		}
	}
}
