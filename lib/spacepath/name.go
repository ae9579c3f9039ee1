// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spacepath

import "strings"

// Supermatch is the segment that matches any remaining depth.
const Supermatch Name = "**"

// Name is one raw path segment as it appears in a path string,
// including any escape sequences.
type Name string

// IsGlob reports whether the segment contains an unescaped
// metacharacter ("*", "?", or "[").
func (n Name) IsGlob() bool {
	for i := 0; i < len(n); i++ {
		switch n[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// IsSupermatch reports whether the segment is exactly "**".
func (n Name) IsSupermatch() bool { return n == Supermatch }

// Literal returns the segment with escape sequences removed. For a
// concrete segment this is the key a store uses for the child. A
// trailing lone backslash is kept as-is.
func (n Name) Literal() string {
	if strings.IndexByte(string(n), '\\') < 0 {
		return string(n)
	}
	var builder strings.Builder
	builder.Grow(len(n))
	for i := 0; i < len(n); i++ {
		if n[i] == '\\' && i+1 < len(n) {
			i++
		}
		builder.WriteByte(n[i])
	}
	return builder.String()
}

// Match tests the segment, used as a pattern, against a literal child
// name. supermatch is true when the segment is "**", in which case the
// pattern consumes the remainder of the path unconditionally and
// matched is also true.
func (n Name) Match(name string) (matched, supermatch bool) {
	if n.IsSupermatch() {
		return true, true
	}
	return matchSegment([]rune(string(n)), []rune(name)), false
}

// Compare orders names lexicographically.
func Compare(a, b Name) int { return strings.Compare(string(a), string(b)) }

// Escape returns the segment form of a literal name, escaping every
// metacharacter so the result is concrete.
func Escape(literal string) Name {
	if !strings.ContainsAny(literal, `*?[]\`) {
		return Name(literal)
	}
	var builder strings.Builder
	builder.Grow(len(literal) + 4)
	for _, r := range literal {
		switch r {
		case '*', '?', '[', ']', '\\':
			builder.WriteByte('\\')
		}
		builder.WriteRune(r)
	}
	return Name(builder.String())
}

// matchSegment is a backtracking glob matcher over runes. Only the most
// recent "*" is remembered; that is sufficient because a later star can
// absorb anything an earlier one could.
func matchSegment(pattern, name []rune) bool {
	patternIndex, nameIndex := 0, 0
	starIndex, starResume := -1, 0

	for nameIndex < len(name) {
		if patternIndex < len(pattern) {
			switch c := pattern[patternIndex]; c {
			case '*':
				starIndex = patternIndex
				starResume = nameIndex
				patternIndex++
				continue
			case '?':
				patternIndex++
				nameIndex++
				continue
			case '[':
				matched, next, valid := matchClass(pattern, patternIndex, name[nameIndex])
				if !valid {
					return false
				}
				if matched {
					patternIndex = next
					nameIndex++
					continue
				}
			case '\\':
				if patternIndex+1 < len(pattern) {
					if pattern[patternIndex+1] == name[nameIndex] {
						patternIndex += 2
						nameIndex++
						continue
					}
				} else if name[nameIndex] == '\\' {
					patternIndex++
					nameIndex++
					continue
				}
			default:
				if c == name[nameIndex] {
					patternIndex++
					nameIndex++
					continue
				}
			}
		}
		if starIndex < 0 {
			return false
		}
		starResume++
		nameIndex = starResume
		patternIndex = starIndex + 1
	}

	for patternIndex < len(pattern) && pattern[patternIndex] == '*' {
		patternIndex++
	}
	return patternIndex == len(pattern)
}

// matchClass evaluates the character class starting at pattern[start]
// (which is '['). It returns whether r is in the class, the index just
// past the closing ']', and whether the class was well formed.
func matchClass(pattern []rune, start int, r rune) (matched bool, next int, valid bool) {
	index := start + 1
	negate := false
	if index < len(pattern) && (pattern[index] == '!' || pattern[index] == '^') {
		negate = true
		index++
	}

	first := true
	for index < len(pattern) {
		if pattern[index] == ']' && !first {
			return matched != negate, index + 1, true
		}
		first = false

		low := pattern[index]
		if low == '\\' && index+1 < len(pattern) {
			index++
			low = pattern[index]
		}
		index++

		high := low
		if index+1 < len(pattern) && pattern[index] == '-' && pattern[index+1] != ']' {
			high = pattern[index+1]
			if high == '\\' && index+2 < len(pattern) {
				high = pattern[index+2]
				index++
			}
			index += 2
		}

		if low <= r && r <= high {
			matched = true
		}
	}
	return false, 0, false
}
