// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package value implements the type-erased container stored at every
// leaf of a store.
//
// A [Value] is created at the insertion call site from a concrete Go
// value. It captures the value's reflect type, a [Traits] description
// (size, alignment, classification flags), and a [Serializer] pair
// bound to the concrete type. Readers name the type they expect with a
// [Type]; [Value.Check] compares the captured identity against it and
// fails with TypeMismatch instead of converting.
//
// A Value is one of three kinds: plain data, a deferred computation
// (a *task.Task whose identity is its declared result type), or a
// nested store being mounted. The nested store is carried as an opaque
// any so this package does not depend on the store interface.
//
// The default serializer encodes with lib/codec (deterministic CBOR).
// Callables and channels get no serializer; asking them for bytes
// yields UnserializableType. A [Registry] maps type names back to
// reflect types so that serialized values can be restored without
// compile-time knowledge of the type.
package value
