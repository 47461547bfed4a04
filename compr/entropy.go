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

package compr

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/fse"
	"github.com/klauspost/compress/huff0"
)

// Entropy-coded blocks carry a one-byte mode so that inputs the
// coder rejects (incompressible, single-symbol, or oversized)
// still round-trip.
const (
	entropyRaw  = 0 // verbatim bytes
	entropyRLE  = 1 // one byte, repeated to the output size
	entropyFSE  = 2 // FSE block
	entropyHuff = 3 // huff0 1X block
)

// EncodeFSE appends an FSE-coded representation of src to dst.
func EncodeFSE(src, dst []byte) ([]byte, error) {
	if rle, ok := rleByte(src); ok {
		return append(dst, entropyRLE, rle), nil
	}
	var s fse.Scratch
	out, err := fse.Compress(src, &s)
	if err != nil {
		if errors.Is(err, fse.ErrIncompressible) || errors.Is(err, fse.ErrUseRLE) {
			dst = append(dst, entropyRaw)
			return append(dst, src...), nil
		}
		return nil, err
	}
	dst = append(dst, entropyFSE)
	return append(dst, out...), nil
}

// DecodeFSE decodes a block produced by EncodeFSE into dst,
// which must be exactly the original size.
func DecodeFSE(src, dst []byte) error {
	mode, body, err := entropyMode(src)
	if err != nil {
		return err
	}
	switch mode {
	case entropyFSE:
		var s fse.Scratch
		s.DecompressLimit = len(dst)
		out, err := fse.Decompress(body, &s)
		if err != nil {
			return err
		}
		if len(out) != len(dst) {
			return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(out))
		}
		copy(dst, out)
		return nil
	default:
		return decodeFallback(mode, body, dst)
	}
}

// EncodeHuff encodes src with huff0, returning the code table
// (to travel in a codec header) and the coded payload
// separately. The mode byte leads the table.
func EncodeHuff(src []byte) (table, data []byte, err error) {
	if rle, ok := rleByte(src); ok {
		return []byte{entropyRLE}, []byte{rle}, nil
	}
	if len(src) > huff0.BlockSizeMax {
		return []byte{entropyRaw}, src, nil
	}
	var s huff0.Scratch
	_, _, err = huff0.Compress1X(src, &s)
	if err != nil {
		if errors.Is(err, huff0.ErrIncompressible) || errors.Is(err, huff0.ErrUseRLE) {
			return []byte{entropyRaw}, src, nil
		}
		return nil, nil, err
	}
	table = append([]byte{entropyHuff}, s.OutTable...)
	return table, s.OutData, nil
}

// DecodeHuff decodes a (table, data) pair produced by EncodeHuff
// into dst, which must be exactly the original size.
func DecodeHuff(table, data, dst []byte) error {
	mode, tbl, err := entropyMode(table)
	if err != nil {
		return err
	}
	switch mode {
	case entropyHuff:
		s, rem, err := huff0.ReadTable(tbl, nil)
		if err != nil {
			return err
		}
		if len(rem) != 0 {
			return fmt.Errorf("%d stray bytes after huffman table", len(rem))
		}
		s.MaxDecodedSize = len(dst)
		out, err := s.Decompress1X(data)
		if err != nil {
			return err
		}
		if len(out) != len(dst) {
			return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(out))
		}
		copy(dst, out)
		return nil
	default:
		return decodeFallback(mode, data, dst)
	}
}

func entropyMode(src []byte) (byte, []byte, error) {
	if len(src) == 0 {
		return 0, nil, fmt.Errorf("empty entropy block")
	}
	return src[0], src[1:], nil
}

func decodeFallback(mode byte, body, dst []byte) error {
	switch mode {
	case entropyRaw:
		if len(body) != len(dst) {
			return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(body))
		}
		copy(dst, body)
		return nil
	case entropyRLE:
		if len(body) != 1 {
			return fmt.Errorf("RLE block is %d bytes, want 1", len(body))
		}
		for i := range dst {
			dst[i] = body[0]
		}
		return nil
	default:
		return fmt.Errorf("bad entropy block mode %d", mode)
	}
}

// rleByte reports whether src is nonempty and all one byte.
func rleByte(src []byte) (byte, bool) {
	if len(src) == 0 {
		return 0, false
	}
	b := src[0]
	for _, c := range src[1:] {
		if c != b {
			return 0, false
		}
	}
	return b, true
}
