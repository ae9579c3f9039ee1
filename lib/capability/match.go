// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"path"
	"strings"

	"github.com/bureau-foundation/pathspace/lib/spacepath"
)

// MatchAction reports whether action matches pattern:
//
//   - Exact: "read" matches only "read"
//   - Single-segment wildcard: "*" matches "read" but not "fs/read";
//     "fs/*" matches "fs/read" but not "fs/a/b"
//   - Recursive wildcard: "fs/**" matches "fs", "fs/read", "fs/a/b"
//   - Universal: "**" matches every action
//   - Interior recursive: "fs/**/read" matches "fs/read" and "fs/x/read"
//
// Segment wildcards use path.Match semantics. A malformed pattern never
// matches.
func MatchAction(pattern, action string) bool {
	if pattern == "" || action == "" {
		return false
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(action, "/"))
}

func matchSegments(pattern, action []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for skip := 0; skip <= len(action); skip++ {
				if matchSegments(rest, action[skip:]) {
					return true
				}
			}
			return false
		}
		if len(action) == 0 {
			return false
		}
		matched, err := path.Match(pattern[0], action[0])
		if err != nil || !matched {
			return false
		}
		pattern, action = pattern[1:], action[1:]
	}
	return len(action) == 0
}

// MatchAnyAction reports whether action matches any pattern. An empty
// list matches nothing.
func MatchAnyAction(patterns []string, action string) bool {
	for _, pattern := range patterns {
		if MatchAction(pattern, action) {
			return true
		}
	}
	return false
}

// MatchPath reports whether a store path matches a path pattern. The
// pattern "**" on its own covers every path, including the root.
func MatchPath(pattern, target string) bool {
	if pattern == string(spacepath.Supermatch) || pattern == "/"+string(spacepath.Supermatch) {
		return true
	}
	return spacepath.Match(spacepath.Path(pattern), spacepath.Path(target))
}

// MatchAnyPath reports whether target matches any pattern.
func MatchAnyPath(patterns []string, target string) bool {
	for _, pattern := range patterns {
		if MatchPath(pattern, target) {
			return true
		}
	}
	return false
}
