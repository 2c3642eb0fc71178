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
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compressor is the interface WriteOneBatch needs a block codec to
// implement. Compression is entirely the batch writer's choice; the
// repartitioner core never references a concrete codec.
type Compressor interface {
	Name() string
	Compress(src, dst []byte) []byte
}

// Decompressor is the Compressor-matching inverse used by ReadOneBatch.
type Decompressor interface {
	Name() string
	Decompress(src []byte, decodedLen int) ([]byte, error)
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (s2Codec) Decompress(src []byte, decodedLen int) ([]byte, error) {
	dst := make([]byte, decodedLen)
	ret, err := s2.Decode(dst, src)
	if err != nil {
		return nil, fmt.Errorf("batchio: s2 decompress: %w", err)
	}
	if len(ret) != decodedLen {
		return nil, fmt.Errorf("batchio: s2 decompress produced %d bytes, expected %d", len(ret), decodedLen)
	}
	return ret, nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (z *zstdCodec) Name() string { return "zstd" }

func (z *zstdCodec) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z *zstdCodec) Decompress(src []byte, decodedLen int) ([]byte, error) {
	ret, err := z.dec.DecodeAll(src, make([]byte, 0, decodedLen))
	if err != nil {
		return nil, fmt.Errorf("batchio: zstd decompress: %w", err)
	}
	return ret, nil
}

// Codec selects a block codec by name. "s2" favors throughput, which
// is why this package's framed writer defaults to it: the encode runs
// on the freeze hot path.
func Codec(name string) (Compressor, Decompressor, error) {
	switch name {
	case "s2", "":
		return s2Codec{}, s2Codec{}, nil
	case "zstd":
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("batchio: building zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("batchio: building zstd decoder: %w", err)
		}
		return &zstdCodec{enc: enc}, &zstdCodec{dec: dec}, nil
	default:
		return nil, nil, fmt.Errorf("batchio: unknown codec %q", name)
	}
}
