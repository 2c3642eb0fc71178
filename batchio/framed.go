// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package batchio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// frame layout on the wire:
//
//	uint32le decodedLen     (size of the serialized batch before compression)
//	uint32le compressedLen  (size of the compressed payload that follows)
//	[32]byte digest         (blake2b-256 of the compressed payload)
//	[compressedLen]byte     compressed payload
//
// The two length fields make every sub-batch self-delimiting, which is
// what lets ShuffleWrite concatenate sub-batches from many spills back
// to back and still let a downstream reader walk them one at a time.
// The digest catches a torn or bit-flipped block written by a crashed
// or misbehaving spill, the same per-block integrity check
// ion/blockfmt keeps alongside its trailer.

const frameHeaderLen = 4 + 4 + blake2b.Size256

// WriteOneBatch serializes b and appends it to w as one framed block,
// compressed with codec. withLengthPrefix must be true for blocks that
// will be read back by ReadOneBatch in a stream of concatenated
// blocks; it can also be used headerless by callers that track
// boundaries themselves.
func WriteOneBatch(b *Batch, w io.Writer, withLengthPrefix bool, codec Compressor) error {
	raw := serializeBatch(b)
	compressed := codec.Compress(raw, nil)

	if !withLengthPrefix {
		_, err := w.Write(compressed)
		return err
	}

	digest := blake2b.Sum256(compressed)
	header := make([]byte, frameHeaderLen)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(raw)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(compressed)))
	copy(header[8:], digest[:])
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("batchio: writing frame header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("batchio: writing frame payload: %w", err)
	}
	return nil
}

// ReadOneBatch reads one framed block written by WriteOneBatch (with
// withLengthPrefix true) from r and decodes it against schema. It
// returns io.EOF, unwrapped, when r is exhausted at a clean frame
// boundary, so callers can use errors.Is(err, io.EOF) to detect the
// end of a stream of concatenated blocks.
func ReadOneBatch(r io.Reader, schema *Schema, codec Decompressor) (*Batch, error) {
	header := make([]byte, frameHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("batchio: reading frame header: %w", err)
	}
	decodedLen := binary.LittleEndian.Uint32(header[0:4])
	compressedLen := binary.LittleEndian.Uint32(header[4:8])
	wantDigest := header[8:frameHeaderLen]

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("batchio: reading frame payload: %w", err)
	}
	gotDigest := blake2b.Sum256(compressed)
	if !bytes.Equal(gotDigest[:], wantDigest) {
		return nil, fmt.Errorf("batchio: frame payload digest mismatch, block is corrupt")
	}
	raw, err := codec.Decompress(compressed, int(decodedLen))
	if err != nil {
		return nil, err
	}
	return deserializeBatch(raw, schema)
}

func serializeBatch(b *Batch) []byte {
	size := 8
	for _, col := range b.Cols {
		size += 4
		for _, v := range col {
			size += 4 + len(v)
		}
	}
	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(b.Rows))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(b.Cols)))
	off += 4
	for _, col := range b.Cols {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(col)))
		off += 4
		for _, v := range col {
			binary.LittleEndian.PutUint32(buf[off:], uint32(len(v)))
			off += 4
			copy(buf[off:], v)
			off += len(v)
		}
	}
	return buf
}

func deserializeBatch(raw []byte, schema *Schema) (*Batch, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("batchio: truncated batch payload")
	}
	rows := int(binary.LittleEndian.Uint32(raw[0:4]))
	numCols := int(binary.LittleEndian.Uint32(raw[4:8]))
	if numCols != len(schema.Columns) {
		return nil, fmt.Errorf("batchio: payload has %d columns, schema has %d", numCols, len(schema.Columns))
	}
	off := 8
	cols := make([][][]byte, numCols)
	for c := 0; c < numCols; c++ {
		if off+4 > len(raw) {
			return nil, fmt.Errorf("batchio: truncated column header")
		}
		n := int(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
		col := make([][]byte, n)
		for i := 0; i < n; i++ {
			if off+4 > len(raw) {
				return nil, fmt.Errorf("batchio: truncated value header")
			}
			vlen := int(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
			if off+vlen > len(raw) {
				return nil, fmt.Errorf("batchio: truncated value")
			}
			col[i] = raw[off : off+vlen]
			off += vlen
		}
		cols[c] = col
	}
	return &Batch{Schema: schema, Rows: rows, Cols: cols}, nil
}
