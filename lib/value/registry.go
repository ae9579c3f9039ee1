// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"reflect"
	"sync"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
)

// Registry maps type names to types and serializers so that serialized
// values can be decoded by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	rtype      reflect.Type
	serializer Serializer
}

// NewRegistry returns a registry holding the builtin scalar, string,
// and byte-slice types.
func NewRegistry() *Registry {
	registry := &Registry{entries: make(map[string]registryEntry)}
	for _, rtype := range []reflect.Type{
		reflect.TypeFor[bool](),
		reflect.TypeFor[string](),
		reflect.TypeFor[[]byte](),
		reflect.TypeFor[int](),
		reflect.TypeFor[int8](),
		reflect.TypeFor[int16](),
		reflect.TypeFor[int32](),
		reflect.TypeFor[int64](),
		reflect.TypeFor[uint](),
		reflect.TypeFor[uint8](),
		reflect.TypeFor[uint16](),
		reflect.TypeFor[uint32](),
		reflect.TypeFor[uint64](),
		reflect.TypeFor[float32](),
		reflect.TypeFor[float64](),
		reflect.TypeFor[[]string](),
		reflect.TypeFor[map[string]any](),
	} {
		registry.RegisterType(rtype, CBOR(rtype))
	}
	return registry
}

// Register adds T with the default serializer.
func Register[T any](r *Registry) {
	rtype := reflect.TypeFor[T]()
	r.RegisterType(rtype, CBOR(rtype))
}

// RegisterType adds or replaces a type under its reflect name.
func (r *Registry) RegisterType(rtype reflect.Type, serializer Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[rtype.String()] = registryEntry{rtype: rtype, serializer: serializer}
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (reflect.Type, Serializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry.rtype, entry.serializer, ok
}

// Decode rebuilds a value of the named type.
func (r *Registry) Decode(name string, data []byte) (*Value, error) {
	_, serializer, ok := r.Lookup(name)
	if !ok {
		return nil, spaceerr.Newf(spaceerr.NotFound, "type %q is not registered", name)
	}
	return Decode(data, serializer)
}
