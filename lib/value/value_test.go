// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/task"
)

type point struct {
	X, Y int32
}

type labelled struct {
	Label string
	Tags  []string
}

func TestTraitsOf(t *testing.T) {
	tests := []struct {
		name  string
		value any
		check func(Traits) bool
	}{
		{"int is fundamental", 42, func(tr Traits) bool {
			return tr.Fundamental && tr.TriviallyCopyable && tr.Size == 8 && tr.Serializable
		}},
		{"string is not trivially copyable", "x", func(tr Traits) bool {
			return tr.Fundamental && !tr.TriviallyCopyable
		}},
		{"array extent", [3]int16{}, func(tr Traits) bool {
			return tr.Array && tr.ArrayLen == 3 && tr.Size == 6 && tr.TriviallyCopyable
		}},
		{"pointer", &point{}, func(tr Traits) bool { return tr.Pointer && !tr.TriviallyCopyable }},
		{"plain struct", point{}, func(tr Traits) bool {
			return tr.TriviallyCopyable && tr.Comparable && tr.Align == 4
		}},
		{"struct with slice", labelled{}, func(tr Traits) bool {
			return !tr.TriviallyCopyable && !tr.Comparable && tr.Serializable
		}},
		{"callable", func() {}, func(tr Traits) bool { return tr.Callable && !tr.Serializable }},
		{"channel", make(chan int), func(tr Traits) bool { return !tr.Serializable }},
	}
	for _, test := range tests {
		traits := TraitsOf(reflect.TypeOf(test.value))
		if !test.check(traits) {
			t.Errorf("%s: TraitsOf(%T) = %+v", test.name, test.value, traits)
		}
	}
}

func TestCheckTypeIdentity(t *testing.T) {
	stored := Of(42)

	if err := stored.Check(TypeOf[int]()); err != nil {
		t.Errorf("Check(int) = %v, want nil", err)
	}
	if err := stored.Check(TypeOf[int64]()); !spaceerr.Is(err, spaceerr.TypeMismatch) {
		t.Errorf("Check(int64) = %v, want TypeMismatch", err)
	}
	if err := stored.Check(Any); err != nil {
		t.Errorf("Check(Any) = %v, want nil", err)
	}
	if err := Of(point{}).Check(TypeOf[fmt.Stringer]()); !spaceerr.Is(err, spaceerr.TypeMismatch) {
		t.Errorf("Check(Stringer) on point = %v, want TypeMismatch", err)
	}
	if err := Of(reflect.TypeFor[int]()).Check(TypeOf[fmt.Stringer]()); err != nil {
		t.Errorf("Check(Stringer) on reflect.Type = %v, want nil", err)
	}
}

func TestAs(t *testing.T) {
	got, err := As[string](Of("hello"))
	if err != nil || got != "hello" {
		t.Errorf("As[string] = (%q, %v), want (hello, nil)", got, err)
	}
	if _, err := As[int](Of("hello")); !spaceerr.Is(err, spaceerr.TypeMismatch) {
		t.Errorf("As[int] on string = %v, want TypeMismatch", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Of(nil).Validate(); !spaceerr.Is(err, spaceerr.InvalidType) {
		t.Errorf("Of(nil).Validate() = %v, want InvalidType", err)
	}
	if err := Of(1).Validate(); err != nil {
		t.Errorf("Of(1).Validate() = %v, want nil", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	original := labelled{Label: "sensor", Tags: []string{"a", "b"}}
	stored := Of(original)

	data, err := stored.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	decoded, err := Decode(data, stored.Serializer())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, err := As[labelled](decoded)
	if err != nil {
		t.Fatalf("As: %v", err)
	}
	if got.Label != original.Label || len(got.Tags) != 2 || got.Tags[1] != "b" {
		t.Errorf("decoded = %+v, want %+v", got, original)
	}
}

func TestBytesErrors(t *testing.T) {
	if _, err := Of(func() {}).Bytes(); !spaceerr.Is(err, spaceerr.UnserializableType) {
		t.Errorf("Bytes() of func = %v, want UnserializableType", err)
	}
	if _, err := OfWith(7, Serializer{}).Bytes(); !spaceerr.Is(err, spaceerr.SerializationFunctionMissing) {
		t.Errorf("Bytes() without serializer = %v, want SerializationFunctionMissing", err)
	}
	if _, err := Decode([]byte{0xff}, CBOR(reflect.TypeFor[int]())); !spaceerr.Is(err, spaceerr.MalformedInput) {
		t.Errorf("Decode(garbage) = %v, want MalformedInput", err)
	}
}

func TestTaskValue(t *testing.T) {
	work := task.New(task.Lazy, reflect.TypeFor[int](), func(context.Context) (any, error) { return 5, nil })
	stored := FromTask(work)

	if stored.Kind() != KindTask {
		t.Fatalf("Kind() = %v, want task", stored.Kind())
	}
	if err := stored.Check(TypeOf[int]()); err != nil {
		t.Errorf("Check(int) on int task = %v", err)
	}
	if stored.Ready() {
		t.Error("Ready() = true before the task ran")
	}
	if _, err := stored.Resolve(); !spaceerr.Is(err, spaceerr.NoObjectFound) {
		t.Errorf("Resolve() before run = %v, want NoObjectFound", err)
	}

	work.TryStart()
	work.Run(context.Background())

	got, err := As[int](stored)
	if err != nil || got != 5 {
		t.Errorf("As[int] after run = (%d, %v), want (5, nil)", got, err)
	}
}

func TestRegistryDecode(t *testing.T) {
	registry := NewRegistry()
	Register[point](registry)

	data, err := Of(point{X: 1, Y: 2}).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	decoded, err := registry.Decode(TypeFor(reflect.TypeFor[point]()).Name(), data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got, _ := As[point](decoded); got != (point{X: 1, Y: 2}) {
		t.Errorf("decoded = %+v, want {1 2}", got)
	}

	if _, err := registry.Decode("unknown.Type", data); !spaceerr.Is(err, spaceerr.NotFound) {
		t.Errorf("Decode(unknown) = %v, want NotFound", err)
	}
	if _, _, ok := registry.Lookup("string"); !ok {
		t.Error("builtin string type missing from registry")
	}
}

func TestQueueFIFO(t *testing.T) {
	var queue Queue
	if queue.Front() != nil || queue.Pop() != nil {
		t.Fatal("empty queue returned a value")
	}
	for i := 1; i <= 3; i++ {
		queue.Push(Of(i))
	}
	if queue.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", queue.Len())
	}
	if got, _ := As[int](queue.Front()); got != 1 {
		t.Errorf("Front() = %d, want 1", got)
	}
	for want := 1; want <= 3; want++ {
		if got, _ := As[int](queue.Pop()); got != want {
			t.Errorf("Pop() = %d, want %d", got, want)
		}
	}
	if queue.Len() != 0 {
		t.Errorf("Len() after draining = %d, want 0", queue.Len())
	}
}
