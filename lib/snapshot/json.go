// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/json"

	"github.com/bureau-foundation/pathspace/lib/codec"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
)

// ValuesKey holds a leaf's queue in the JSON export. Literal names
// are used as object keys, so a child named "@values" would collide.
const ValuesKey = "@values"

// jsonValue is one exported value. Value holds the decoded CBOR
// payload. Raw carries the bytes when they are not CBOR or decode to
// something JSON cannot represent.
type jsonValue struct {
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
	Raw   []byte `json:"raw,omitempty"`
}

// JSON renders snap as nested objects keyed by path segment, with
// each leaf's values under ValuesKey.
func JSON(snap *Snapshot) ([]byte, error) {
	root := map[string]any{}
	for _, leaf := range snap.Leaves {
		node := root
		for name := range spacepath.Path(leaf.Path).Names() {
			key := name.Literal()
			child, ok := node[key].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[key] = child
			}
			node = child
		}
		values := make([]jsonValue, 0, len(leaf.Values))
		for _, stored := range leaf.Values {
			exported := jsonValue{Type: stored.Type}
			var decoded any
			if err := codec.Unmarshal(stored.Data, &decoded); err == nil && representable(decoded) {
				exported.Value = decoded
			} else {
				exported.Raw = stored.Data
			}
			values = append(values, exported)
		}
		node[ValuesKey] = values
	}
	return json.MarshalIndent(root, "", "  ")
}

// representable reports whether encoding/json accepts v. NaN, the
// infinities, and maps with non-string keys do not survive.
func representable(v any) bool {
	_, err := json.Marshal(v)
	return err == nil
}
