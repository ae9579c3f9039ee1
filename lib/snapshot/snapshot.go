// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// FormatVersion is the version byte written by Encode. Decode rejects
// any other version.
const FormatVersion = 1

// Snapshot is the serializable content of a space at one moment.
type Snapshot struct {
	// Root is the path the capture started at. Leaf paths are
	// absolute, not relative to Root.
	Root   string `cbor:"root" json:"root"`
	Leaves []Leaf `cbor:"leaves" json:"leaves"`
	// Mounts lists the mount points crossed during the capture.
	Mounts  []string `cbor:"mounts,omitempty" json:"mounts,omitempty"`
	Skipped []Skip   `cbor:"skipped,omitempty" json:"skipped,omitempty"`
}

// Leaf is one path and its queue, oldest value first.
type Leaf struct {
	Path   string  `cbor:"path" json:"path"`
	Values []Value `cbor:"values" json:"values"`
}

// Value is a serialized value and the registry name of its type.
type Value struct {
	Type string `cbor:"type" json:"type"`
	Data []byte `cbor:"data" json:"data"`
}

// Skip records a value that was left out of the snapshot.
type Skip struct {
	Path   string `cbor:"path" json:"path"`
	Type   string `cbor:"type" json:"type"`
	Reason string `cbor:"reason" json:"reason"`
}

// ValueCount returns the number of captured values.
func (s *Snapshot) ValueCount() int {
	count := 0
	for _, leaf := range s.Leaves {
		count += len(leaf.Values)
	}
	return count
}

// Options bounds a capture.
type Options struct {
	// Root is the concrete path to start at. Empty means "/".
	Root string
	// MaxDepth limits how far below Root the capture goes. Zero is
	// unlimited.
	MaxDepth int
	// SkipMounts leaves mounted spaces out of the capture.
	SkipMounts bool
}

// Capture records the values of s at and below opts.Root.
func Capture(ctx context.Context, s pathspace.Space, opts Options) (*Snapshot, error) {
	root := opts.Root
	if root == "" {
		root = string(spacepath.Root)
	}
	snap := &Snapshot{Root: string(spacepath.Path(root).Canonical())}

	err := s.Visit(ctx, func(entry pathspace.Entry, handle *pathspace.ValueHandle) pathspace.VisitControl {
		if entry.IsMount {
			snap.Mounts = append(snap.Mounts, entry.Path)
		}
		if !entry.HasValue || handle == nil {
			return pathspace.Continue
		}
		leaf := Leaf{Path: entry.Path}
		for _, v := range handle.Values() {
			data, err := v.Bytes()
			if err != nil {
				snap.Skipped = append(snap.Skipped, Skip{
					Path:   entry.Path,
					Type:   v.TypeName(),
					Reason: spaceerr.CodeOf(err).String(),
				})
				continue
			}
			leaf.Values = append(leaf.Values, Value{Type: v.TypeName(), Data: data})
		}
		if len(leaf.Values) > 0 {
			snap.Leaves = append(snap.Leaves, leaf)
		}
		return pathspace.Continue
	}, pathspace.VisitOptions{
		Root:                root,
		MaxDepth:            opts.MaxDepth,
		IncludeValues:       true,
		IncludeNestedSpaces: !opts.SkipMounts,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", root, err)
	}
	return snap, nil
}

// Restore inserts every value of snap into s, decoding each through
// registry. Values whose type is not registered are reported in the
// result's errors and the rest are still inserted.
func Restore(s pathspace.Space, snap *Snapshot, registry *value.Registry) pathspace.InsertReturn {
	var result pathspace.InsertReturn
	for _, leaf := range snap.Leaves {
		for _, stored := range leaf.Values {
			v, err := registry.Decode(stored.Type, stored.Data)
			if err != nil {
				result.AddError(fmt.Errorf("restoring %s: %w", leaf.Path, err))
				result.NbrValuesSuppressed++
				continue
			}
			result.Merge(s.Insert(leaf.Path, v))
		}
	}
	return result
}
