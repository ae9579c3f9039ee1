// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot captures the serializable contents of a space and
// writes them to a compact file.
//
// [Capture] walks a space with Visit and records every queued value as
// its registry type name plus the bytes its serializer produced.
// Values that cannot be serialized (nested spaces, functions, tasks
// that have not finished) are listed in [Snapshot].Skipped rather than
// failing the capture.
//
// A snapshot file is a small header followed by a CBOR body:
//
//	magic "PSNP" | version (1 byte) | compression tag (1 byte) |
//	uncompressed body length (4 bytes, big endian) | body
//
// The body is compressed with LZ4 or zstd when that makes it smaller;
// otherwise it is stored as-is and the tag says so. [Digest] is a
// keyed BLAKE3 hash of the uncompressed body, so two snapshots of the
// same contents have the same digest whatever compression was used.
//
// [Restore] re-inserts a snapshot into a space, decoding each value
// through a [value.Registry]. [JSON] renders a snapshot as nested JSON
// for tooling that does not speak CBOR.
package snapshot
