// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"context"
	"reflect"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/task"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// Insert stores v at path with the default serializer for T.
func Insert[T any](s Space, path string, v T) InsertReturn {
	return s.Insert(path, value.Of(v))
}

// InsertWith stores v with an explicit serializer.
func InsertWith[T any](s Space, path string, v T, serializer value.Serializer) InsertReturn {
	return s.Insert(path, value.OfWith(v, serializer))
}

// InsertTask stores a computation whose result readers request as T.
// Immediate and MainThread tasks start right away; Lazy tasks start
// when a reader first reaches them.
func InsertTask[T any](s Space, path string, category task.Category, fn func(ctx context.Context) (T, error)) InsertReturn {
	tk := task.New(category, reflect.TypeFor[T](), func(ctx context.Context) (any, error) {
		result, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
	return s.Insert(path, value.FromTask(tk))
}

// Mount attaches child at path.
func Mount(s Space, path string, child Space) InsertReturn {
	return s.Insert(path, value.Nested(child))
}

// Unmount detaches and returns the space mounted at path.
func Unmount(ctx context.Context, s Space, path string) (Space, error) {
	v, err := s.Take(ctx, path, value.TypeFor(spaceType), Options{})
	if err != nil {
		return nil, err
	}
	mounted, ok := v.Space().(Space)
	if !ok {
		return nil, spaceerr.Newf(spaceerr.TypeMismatch, "%s is not a space", path)
	}
	return mounted, nil
}

// Read returns the front value at path as T.
func Read[T any](ctx context.Context, s Space, path string, opts Options) (T, error) {
	v, err := s.Read(ctx, path, value.TypeOf[T](), opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return value.As[T](v)
}

// Take removes the front value at path and returns it as T.
func Take[T any](ctx context.Context, s Space, path string, opts Options) (T, error) {
	v, err := s.Take(ctx, path, value.TypeOf[T](), opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return value.As[T](v)
}

// Match is one result of ReadAll.
type Match[T any] struct {
	Path  string
	Value T
}

// ReadAll returns the front value of every leaf matching pattern that
// holds a T, in lexicographic path order. Leaves of other types and
// unfinished tasks are skipped. Nothing matching is not an error.
func ReadAll[T any](ctx context.Context, s Space, pattern string) ([]Match[T], error) {
	p := spacepath.Path(pattern)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// Walk from the longest concrete prefix of the pattern.
	var prefix []spacepath.Name
	for name := range p.Names() {
		if name.IsGlob() {
			break
		}
		prefix = append(prefix, name)
	}

	want := value.TypeOf[T]()
	var matches []Match[T]
	err := s.Visit(ctx, func(entry Entry, handle *ValueHandle) VisitControl {
		if !entry.HasValue || handle == nil || !spacepath.Match(p, spacepath.Path(entry.Path)) {
			return Continue
		}
		front, err := handle.Front(want)
		if err != nil {
			return Continue
		}
		typed, err := value.As[T](front)
		if err != nil {
			return Continue
		}
		matches = append(matches, Match[T]{Path: entry.Path, Value: typed})
		return Continue
	}, VisitOptions{
		Root:                string(spacepath.Join(prefix...)),
		IncludeValues:       true,
		IncludeNestedSpaces: true,
	})
	if spaceerr.IsAbsent(err) {
		return nil, nil
	}
	return matches, err
}

// Children returns the literal names directly below path.
func Children(ctx context.Context, s Space, path string) ([]string, error) {
	var names []string
	err := s.Visit(ctx, func(entry Entry, _ *ValueHandle) VisitControl {
		if entry.Depth != 1 {
			return Continue
		}
		segments := spacepath.Path(entry.Path).Split()
		names = append(names, segments[len(segments)-1].Literal())
		return SkipChildren
	}, VisitOptions{Root: path, MaxDepth: 1, IncludeNestedSpaces: true})
	if err != nil {
		return nil, err
	}
	return names, nil
}
