// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration used wherever a stored
// value has to become bytes: the default value serializer, snapshot
// bodies, and snapshot digests.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical value always produces identical bytes, which is what
// makes snapshot digests stable.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Stream-oriented callers use NewEncoder/NewDecoder.
//
// Decoding into an any-typed target produces map[string]any for maps,
// so decoded payloads interoperate with encoding/json.
package codec
