// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/pathspace/lib/codec"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
)

var magic = [4]byte{'P', 'S', 'N', 'P'}

const headerSize = len(magic) + 1 + 1 + 4

// MaxBodySize bounds the uncompressed body Decode will allocate.
const MaxBodySize = 1 << 30

// Header describes an encoded snapshot without decoding its body.
type Header struct {
	Version     uint8
	Compression Compression
	BodySize    int
}

// Encode writes snap to w, compressing the body with c when that
// makes it smaller. It returns the compression actually used.
func Encode(w io.Writer, snap *Snapshot, c Compression) (Compression, error) {
	body, err := codec.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot body: %w", err)
	}
	if len(body) > MaxBodySize {
		return 0, spaceerr.Newf(spaceerr.CapacityExceeded, "snapshot body is %d bytes, limit %d", len(body), MaxBodySize)
	}

	payload, err := compress(body, c)
	if errors.Is(err, errIncompressible) {
		payload, c = body, CompressionNone
	} else if err != nil {
		return 0, err
	}

	header := make([]byte, headerSize)
	copy(header, magic[:])
	header[4] = FormatVersion
	header[5] = byte(c)
	binary.BigEndian.PutUint32(header[6:], uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return 0, fmt.Errorf("writing snapshot header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return 0, fmt.Errorf("writing snapshot body: %w", err)
	}
	return c, nil
}

// ReadHeader parses the fixed header at the start of data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < headerSize || !bytes.Equal(data[:len(magic)], magic[:]) {
		return Header{}, spaceerr.New(spaceerr.MalformedInput, "not a snapshot file")
	}
	header := Header{
		Version:     data[4],
		Compression: Compression(data[5]),
		BodySize:    int(binary.BigEndian.Uint32(data[6:headerSize])),
	}
	if header.Version != FormatVersion {
		return Header{}, spaceerr.Newf(spaceerr.NotSupported, "snapshot version %d, want %d", header.Version, FormatVersion)
	}
	if header.BodySize > MaxBodySize {
		return Header{}, spaceerr.Newf(spaceerr.MalformedInput, "snapshot body of %d bytes exceeds limit %d", header.BodySize, MaxBodySize)
	}
	return header, nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Snapshot, Header, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Header{}, fmt.Errorf("reading snapshot: %w", err)
	}
	header, err := ReadHeader(data)
	if err != nil {
		return nil, Header{}, err
	}
	body, err := decompress(data[headerSize:], header.Compression, header.BodySize)
	if err != nil {
		return nil, Header{}, spaceerr.Newf(spaceerr.MalformedInput, "snapshot body: %v", err)
	}
	var snap Snapshot
	if err := codec.Unmarshal(body, &snap); err != nil {
		return nil, Header{}, spaceerr.Newf(spaceerr.MalformedInput, "decoding snapshot body: %v", err)
	}
	return &snap, header, nil
}
