// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spacepath

import (
	"iter"
	"strings"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
)

// Root is the path naming the top of a store.
const Root Path = "/"

// Path is an absolute, slash-delimited address. A Path value is not
// validated on construction; call [Path.Validate] before trusting it.
type Path string

// Validate checks the grammar: the path is absolute, contains no NUL
// byte, has no "." or ".." segment, and every unescaped "[" is closed
// by a "]" within the same segment.
func (p Path) Validate() error {
	if p == "" {
		return spaceerr.New(spaceerr.InvalidPath, "empty path")
	}
	if p[0] != '/' {
		return spaceerr.Newf(spaceerr.InvalidPath, "path %q is not absolute", string(p))
	}
	if strings.IndexByte(string(p), 0) >= 0 {
		return spaceerr.New(spaceerr.InvalidPath, "path contains a NUL byte")
	}

	open := false
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\\':
			i++
		case '[':
			open = true
		case ']':
			if !open {
				return spaceerr.Newf(spaceerr.InvalidPath, "unbalanced ']' in %q", string(p))
			}
			open = false
		case '/':
			if open {
				return spaceerr.Newf(spaceerr.InvalidPath, "unclosed '[' in %q", string(p))
			}
		}
	}
	if open {
		return spaceerr.Newf(spaceerr.InvalidPath, "unclosed '[' in %q", string(p))
	}

	for name := range p.Names() {
		if literal := name.Literal(); literal == "." || literal == ".." {
			return spaceerr.Newf(spaceerr.InvalidPath, "relative segment %q in %q", string(name), string(p))
		}
	}
	return nil
}

// IsValid reports whether Validate succeeds.
func (p Path) IsValid() bool { return p.Validate() == nil }

// Names yields the segments left to right, skipping the empty segments
// produced by repeated or trailing separators.
func (p Path) Names() iter.Seq[Name] {
	return func(yield func(Name) bool) {
		rest := string(p)
		for rest != "" {
			var segment string
			segment, rest, _ = strings.Cut(rest, "/")
			if segment == "" {
				continue
			}
			if !yield(Name(segment)) {
				return
			}
		}
	}
}

// Split returns the segments as a slice.
func (p Path) Split() []Name {
	var names []Name
	for name := range p.Names() {
		names = append(names, name)
	}
	return names
}

// IsGlob reports whether any segment is a pattern.
func (p Path) IsGlob() bool {
	for name := range p.Names() {
		if name.IsGlob() {
			return true
		}
	}
	return false
}

// Canonical returns the path with repeated and trailing separators
// collapsed.
func (p Path) Canonical() Path { return Join(p.Split()...) }

// String returns the raw path.
func (p Path) String() string { return string(p) }

// Join renders segments as a canonical path. Join() is "/".
func Join(names ...Name) Path {
	if len(names) == 0 {
		return Root
	}
	var builder strings.Builder
	for _, name := range names {
		builder.WriteByte('/')
		builder.WriteString(string(name))
	}
	return Path(builder.String())
}

// Child appends one literal child name to a path, escaping it.
func Child(parent Path, literal string) Path {
	if parent == "" || parent == Root {
		return Path("/" + string(Escape(literal)))
	}
	return Path(strings.TrimSuffix(string(parent), "/") + "/" + string(Escape(literal)))
}

// Concat prefixes path with a mount prefix. An empty or root prefix
// returns path unchanged.
func Concat(prefix, path Path) Path {
	if prefix == "" || prefix == Root {
		return path
	}
	if path == "" || path == Root {
		return prefix.Canonical()
	}
	return Path(strings.TrimSuffix(string(prefix.Canonical()), "/") + string(path))
}

// TrimPrefix removes a segment-aligned prefix from path. It reports
// false when path does not lie under prefix. Both arguments are
// compared in canonical form.
func TrimPrefix(path, prefix Path) (Path, bool) {
	pathNames := path.Split()
	prefixNames := prefix.Split()
	if len(prefixNames) > len(pathNames) {
		return "", false
	}
	for i, name := range prefixNames {
		if pathNames[i] != name {
			return "", false
		}
	}
	return Join(pathNames[len(prefixNames):]...), true
}

// Match compares a pattern path against a concrete path segment by
// segment. A supermatch segment on the pattern side makes the whole
// comparison succeed immediately. Unconsumed segments on either side
// without a supermatch make it fail.
func Match(pattern, concrete Path) bool {
	patternNames := pattern.Split()
	concreteNames := concrete.Split()

	for i := 0; i < len(patternNames) && i < len(concreteNames); i++ {
		matched, supermatch := patternNames[i].Match(concreteNames[i].Literal())
		if supermatch {
			return true
		}
		if !matched {
			return false
		}
	}
	return len(patternNames) == len(concreteNames)
}

// Normalize returns the canonical key for a path: separators
// collapsed and every concrete segment re-escaped in the form [Escape]
// produces. Glob segments are kept verbatim. Two spellings of the same
// concrete path normalize to the same string.
func Normalize(p Path) Path {
	names := p.Split()
	for i, name := range names {
		if !name.IsGlob() {
			names[i] = Escape(name.Literal())
		}
	}
	return Join(names...)
}
