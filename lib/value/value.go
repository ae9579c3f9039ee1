// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/task"
)

// Kind distinguishes what a Value carries.
type Kind int

const (
	KindData Kind = iota
	KindTask
	KindSpace
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindTask:
		return "task"
	case KindSpace:
		return "space"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a type-erased payload with the metadata captured when it
// was created. Values are immutable once constructed.
type Value struct {
	kind       Kind
	rtype      reflect.Type
	traits     Traits
	payload    any
	serializer Serializer
	task       *task.Task
}

// Of captures v with the default serializer for its type. A nil v
// produces a Value that fails Validate.
func Of(v any) *Value {
	rtype := reflect.TypeOf(v)
	traits := TraitsOf(rtype)
	return &Value{
		kind:       KindData,
		rtype:      rtype,
		traits:     traits,
		payload:    v,
		serializer: defaultSerializer(rtype, traits),
	}
}

// OfWith captures v with an explicit serializer. A zero Serializer
// marks the value as having no serialization entry points.
func OfWith(v any, serializer Serializer) *Value {
	rtype := reflect.TypeOf(v)
	return &Value{
		kind:       KindData,
		rtype:      rtype,
		traits:     TraitsOf(rtype),
		payload:    v,
		serializer: serializer,
	}
}

// FromTask wraps a deferred computation. Its identity is the task's
// declared result type.
func FromTask(t *task.Task) *Value {
	rtype := t.ResultType()
	traits := TraitsOf(rtype)
	return &Value{
		kind:       KindTask,
		rtype:      rtype,
		traits:     traits,
		serializer: defaultSerializer(rtype, traits),
		task:       t,
	}
}

// Nested wraps a store to be mounted.
func Nested(space any) *Value {
	rtype := reflect.TypeOf(space)
	return &Value{
		kind:    KindSpace,
		rtype:   rtype,
		traits:  TraitsOf(rtype),
		payload: space,
	}
}

// Validate rejects values that cannot be stored.
func (v *Value) Validate() error {
	if v == nil || v.rtype == nil {
		return spaceerr.New(spaceerr.InvalidType, "cannot store a nil value")
	}
	if v.kind == KindTask && v.task == nil {
		return spaceerr.New(spaceerr.InvalidType, "task value without a task")
	}
	return nil
}

func (v *Value) Kind() Kind { return v.kind }

// Type returns the captured reflect type.
func (v *Value) Type() reflect.Type { return v.rtype }

// TypeName is the registry name of the captured type.
func (v *Value) TypeName() string { return TypeFor(v.rtype).Name() }

func (v *Value) Traits() Traits { return v.traits }

func (v *Value) Serializer() Serializer { return v.serializer }

// Task returns the wrapped task, or nil for other kinds.
func (v *Value) Task() *task.Task { return v.task }

// Space returns the wrapped store, or nil for other kinds.
func (v *Value) Space() any {
	if v.kind != KindSpace {
		return nil
	}
	return v.payload
}

// Check fails with TypeMismatch unless want accepts the captured type.
func (v *Value) Check(want Type) error {
	if want.Accepts(v.rtype) {
		return nil
	}
	return spaceerr.Newf(spaceerr.TypeMismatch, "want %s, have %s", want.Name(), v.TypeName())
}

// Resolve returns the concrete payload. For a task this is its result,
// which is a NoObjectFound error until the task has finished.
func (v *Value) Resolve() (any, error) {
	switch v.kind {
	case KindTask:
		return v.task.Result()
	default:
		return v.payload, nil
	}
}

// Ready reports whether Resolve would return without a pending error.
func (v *Value) Ready() bool {
	return v.kind != KindTask || v.task.State().Terminal()
}

// Bytes serializes the resolved payload.
func (v *Value) Bytes() ([]byte, error) {
	if v.serializer.Serialize == nil {
		if v.kind == KindSpace || !v.traits.Serializable {
			return nil, spaceerr.Newf(spaceerr.UnserializableType, "%s cannot be serialized", v.TypeName())
		}
		return nil, spaceerr.Newf(spaceerr.SerializationFunctionMissing, "no serializer for %s", v.TypeName())
	}
	payload, err := v.Resolve()
	if err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	if err := v.serializer.Serialize(payload, &buffer); err != nil {
		return nil, spaceerr.Newf(spaceerr.UnserializableType, "serializing %s: %v", v.TypeName(), err)
	}
	return buffer.Bytes(), nil
}

// Decode rebuilds a data Value from bytes produced by the same
// serializer.
func Decode(data []byte, serializer Serializer) (*Value, error) {
	if serializer.Deserialize == nil {
		return nil, spaceerr.New(spaceerr.SerializationFunctionMissing, "no deserializer")
	}
	payload, err := serializer.Deserialize(bytes.NewReader(data))
	if err != nil {
		return nil, spaceerr.Newf(spaceerr.MalformedInput, "deserializing: %v", err)
	}
	return OfWith(payload, serializer), nil
}

// As returns the resolved payload as T.
func As[T any](v *Value) (T, error) {
	var zero T
	if err := v.Check(TypeOf[T]()); err != nil {
		return zero, err
	}
	payload, err := v.Resolve()
	if err != nil {
		return zero, err
	}
	typed, ok := payload.(T)
	if !ok {
		return zero, spaceerr.Newf(spaceerr.TypeMismatch, "payload is %T", payload)
	}
	return typed, nil
}
