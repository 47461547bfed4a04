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

// Package compr provides a unified interface wrapping the
// third-party block-compression and entropy-coding libraries
// used by the terminal codecs.
package compr

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor describes the interface a terminal codec needs a
// block-compression algorithm to implement.
type Compressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Compress appends the compressed contents of src to dst
	// and returns the result.
	Compress(src, dst []byte) []byte
}

// Decompressor is the inverse of Compressor.
type Decompressor interface {
	// Name is the name of the compression algorithm.
	// See also Compressor.Name.
	Name() string
	// Decompress decompresses source data into dst. It errors
	// out if the encoded source does not decompress to exactly
	// len(dst) bytes.
	//
	// It must be safe to make multiple calls to Decompress
	// simultaneously from different goroutines.
	Decompress(src, dst []byte) error
}

type zstdCompressor struct {
	enc *zstd.Encoder
}

func (z zstdCompressor) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z zstdCompressor) Name() string { return "zstd" }

var (
	zstdDefault *zstd.Encoder
	zstdBetter  *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	zstdDefault = e
	e, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	zstdBetter = e
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = d
}

type zstdDecompressor zstd.Decoder

func (z *zstdDecompressor) Name() string { return "zstd" }

func (z *zstdDecompressor) Decompress(src, dst []byte) error {
	into := dst[:0:len(dst)]
	ret, err := (*zstd.Decoder)(z).DecodeAll(src, into)
	if err != nil {
		return err
	}
	if len(ret) != len(dst) {
		return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(ret))
	}
	// the decoder should not have had to
	// realloc the buffer
	if len(dst) > 0 && &ret[0] != &dst[0] {
		return fmt.Errorf("zstd decompress: output buffer realloc'd")
	}
	return nil
}

type s2Compressor struct{}

func (s2Compressor) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (s2Compressor) Decompress(src, dst []byte) error {
	into := dst[:0:len(dst)]
	ret, err := s2.Decode(into, src)
	if err != nil {
		return err
	}
	if len(ret) != len(dst) {
		return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(ret))
	}
	if len(dst) > 0 && &ret[0] != &dst[0] {
		return fmt.Errorf("s2 decompress: output buffer realloc'd")
	}
	return nil
}

func (s2Compressor) Name() string { return "s2" }

// lz4Compressor emits LZ4 blocks behind a one-byte mode prefix
// so that incompressible blocks round-trip as raw bytes.
type lz4Compressor struct{}

const (
	lz4ModeRaw   = 0
	lz4ModeBlock = 1
)

func (lz4Compressor) Compress(src, dst []byte) []byte {
	tmp := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, tmp, nil)
	if err != nil || n == 0 || n >= len(src) {
		// incompressible
		dst = append(dst, lz4ModeRaw)
		return append(dst, src...)
	}
	dst = append(dst, lz4ModeBlock)
	return append(dst, tmp[:n]...)
}

func (lz4Compressor) Decompress(src, dst []byte) error {
	if len(src) == 0 {
		return fmt.Errorf("lz4: empty block")
	}
	mode, body := src[0], src[1:]
	switch mode {
	case lz4ModeRaw:
		if len(body) != len(dst) {
			return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(body))
		}
		copy(dst, body)
		return nil
	case lz4ModeBlock:
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return err
		}
		if n != len(dst) {
			return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), n)
		}
		return nil
	default:
		return fmt.Errorf("lz4: bad block mode %d", mode)
	}
}

func (lz4Compressor) Name() string { return "lz4" }

// Compression selects a compression algorithm by name.
// The returned Compressor will return the same value
// for Compressor.Name as the specified name, except that
// "zstd-better" returns a Compressor named "zstd".
func Compression(name string) Compressor {
	switch name {
	case "zstd-better":
		return zstdCompressor{zstdBetter}
	case "zstd":
		return zstdCompressor{zstdDefault}
	case "s2":
		return s2Compressor{}
	case "lz4":
		return lz4Compressor{}
	default:
		return nil
	}
}

// Decompression selects a decompression algorithm by name.
func Decompression(name string) Decompressor {
	switch name {
	case "zstd", "zstd-better":
		return (*zstdDecompressor)(zstdDecoder)
	case "s2":
		return s2Compressor{}
	case "lz4":
		return lz4Compressor{}
	default:
		return nil
	}
}
