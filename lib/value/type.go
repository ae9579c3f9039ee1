// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "reflect"

// Type is the identity a reader requests. The zero Type accepts any
// stored value.
type Type struct {
	rtype reflect.Type
}

// TypeOf returns the Type for T. Interface types accept any stored
// value whose type implements them.
func TypeOf[T any]() Type { return Type{rtype: reflect.TypeFor[T]()} }

// TypeFor wraps a reflect type.
func TypeFor(t reflect.Type) Type { return Type{rtype: t} }

// Any accepts every stored value.
var Any Type

// Reflect returns the underlying reflect type, or nil for Any.
func (t Type) Reflect() reflect.Type { return t.rtype }

// Name is the registry name of the type.
func (t Type) Name() string {
	if t.rtype == nil {
		return "any"
	}
	return t.rtype.String()
}

// Traits computes the traits of the type.
func (t Type) Traits() Traits { return TraitsOf(t.rtype) }

// Accepts reports whether a value stored with type stored satisfies a
// request for t.
func (t Type) Accepts(stored reflect.Type) bool {
	if t.rtype == nil {
		return true
	}
	if stored == nil {
		return false
	}
	if t.rtype.Kind() == reflect.Interface {
		return stored.Implements(t.rtype)
	}
	return stored == t.rtype
}

func (t Type) String() string { return t.Name() }
