// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/pathspace/lib/codec"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// String returns the hash in hex.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// digestKey separates snapshot digests from any other BLAKE3 use of
// the same bytes. It is the ASCII domain name, zero-padded to 32
// bytes; changing it changes every digest.
var digestKey = [32]byte{
	'p', 'a', 't', 'h', 's', 'p', 'a', 'c', 'e', '.', 's', 'n', 'a', 'p', 's', 'h',
	'o', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest returns the keyed BLAKE3 hash of the snapshot's canonical
// CBOR encoding.
func Digest(snap *Snapshot) (Hash, error) {
	body, err := codec.Marshal(snap)
	if err != nil {
		return Hash{}, fmt.Errorf("encoding snapshot for digest: %w", err)
	}
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(body)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash, nil
}
