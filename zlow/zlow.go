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

// Package zlow implements the low-level transform kernels behind
// the standard codecs: delta and zigzag coding, bit packing,
// byte-plane transposition, tokenization, varint coding, and
// float deconstruction.
//
// Kernels operate on the little-endian byte representation of
// streams. Most kernels write into destination slices that the
// caller sizes (see PackedSize and FloatFracWidth); the
// tokenizers allocate their outputs and VarintEncode appends to dst.
package zlow

import "encoding/binary"

// readElt reads the little-endian element at index i.
func readElt(width int, src []byte, i int) uint64 {
	switch width {
	case 1:
		return uint64(src[i])
	case 2:
		return uint64(binary.LittleEndian.Uint16(src[i*2:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(src[i*4:]))
	default:
		return binary.LittleEndian.Uint64(src[i*8:])
	}
}

// writeElt writes the little-endian element at index i.
func writeElt(width int, dst []byte, i int, v uint64) {
	switch width {
	case 1:
		dst[i] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(v))
	default:
		binary.LittleEndian.PutUint64(dst[i*8:], v)
	}
}

// signExtend interprets v as a signed integer of the given width
// in bytes and returns it sign-extended to 64 bits.
func signExtend(width int, v uint64) int64 {
	shift := 64 - uint(width)*8
	return int64(v<<shift) >> shift
}
