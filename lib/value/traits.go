// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "reflect"

// Traits describes a concrete type as captured at insertion.
type Traits struct {
	Kind  reflect.Kind
	Size  uintptr
	Align uintptr

	// Fundamental is set for booleans, numbers, and strings.
	Fundamental bool
	// Array is set for fixed-size arrays; ArrayLen is the extent.
	Array    bool
	ArrayLen int
	Pointer  bool
	Callable bool

	// TriviallyCopyable is set when a shallow copy shares no memory:
	// the type contains no pointers, slices, maps, channels,
	// functions, interfaces, or strings.
	TriviallyCopyable bool
	Comparable        bool
	// DefaultConstructible is false only for interface types, whose
	// zero value holds nothing.
	DefaultConstructible bool
	// Serializable is false for types the default serializer cannot
	// encode.
	Serializable bool
}

// TraitsOf computes traits for t. A nil type yields the zero Traits.
func TraitsOf(t reflect.Type) Traits {
	if t == nil {
		return Traits{}
	}
	kind := t.Kind()
	traits := Traits{
		Kind:                 kind,
		Size:                 t.Size(),
		Align:                uintptr(t.Align()),
		Fundamental:          isFundamental(kind),
		Pointer:              kind == reflect.Pointer || kind == reflect.UnsafePointer,
		Callable:             kind == reflect.Func,
		TriviallyCopyable:    isTrivial(t),
		Comparable:           t.Comparable(),
		DefaultConstructible: kind != reflect.Interface,
		Serializable:         isSerializable(t, 0),
	}
	if kind == reflect.Array {
		traits.Array = true
		traits.ArrayLen = t.Len()
	}
	return traits
}

func isFundamental(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func isTrivial(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Array:
		return isTrivial(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isTrivial(t.Field(i).Type) {
				return false
			}
		}
		return true
	case reflect.String:
		return false
	default:
		return isFundamental(t.Kind())
	}
}

// maxSerializableDepth bounds the walk over recursive types.
const maxSerializableDepth = 32

func isSerializable(t reflect.Type, depth int) bool {
	if depth > maxSerializableDepth {
		return true
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Uintptr:
		return false
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return isSerializable(t.Elem(), depth+1)
	case reflect.Map:
		return isSerializable(t.Key(), depth+1) && isSerializable(t.Elem(), depth+1)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if !isSerializable(field.Type, depth+1) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
