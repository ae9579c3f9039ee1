// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"io"
	"reflect"

	"github.com/bureau-foundation/pathspace/lib/codec"
)

// Serializer is the byte-level entry point pair bound to one concrete
// type at insertion.
type Serializer struct {
	Serialize   func(v any, w io.Writer) error
	Deserialize func(r io.Reader) (any, error)
}

// Missing reports whether either half of the pair is absent.
func (s Serializer) Missing() bool {
	return s.Serialize == nil || s.Deserialize == nil
}

// CBOR returns the default serializer for t. Deserialize yields a
// value of exactly type t.
func CBOR(t reflect.Type) Serializer {
	return Serializer{
		Serialize: func(v any, w io.Writer) error {
			return codec.NewEncoder(w).Encode(v)
		},
		Deserialize: func(r io.Reader) (any, error) {
			target := reflect.New(t)
			if err := codec.NewDecoder(r).Decode(target.Interface()); err != nil {
				return nil, err
			}
			return target.Elem().Interface(), nil
		},
	}
}

// defaultSerializer returns CBOR for serializable types and the zero
// Serializer otherwise.
func defaultSerializer(t reflect.Type, traits Traits) Serializer {
	if t == nil || !traits.Serializable {
		return Serializer{}
	}
	return CBOR(t)
}
