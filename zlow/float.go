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

package zlow

import "encoding/binary"

// Float deconstruction splits IEEE-754 values into a plane of
// sign+exponent words and a plane of mantissa bytes, which
// compress far better separately. For 4-byte floats the split is
// 9/23 bits, for 8-byte floats 12/52 bits; both planes are
// padded to whole bytes.

// FloatFracWidth returns the mantissa-plane record width for a
// float element width of 4 or 8.
func FloatFracWidth(width int) int {
	if width == 4 {
		return 3
	}
	return 7
}

// FloatDeconstruct splits the float elements of src into expo
// (uint16 little-endian sign+exponent words, one per element)
// and frac (mantissa records of FloatFracWidth(width) bytes).
func FloatDeconstruct(width int, src, expo, frac []byte) {
	n := len(src) / width
	if width == 4 {
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint32(src[i*4:])
			binary.LittleEndian.PutUint16(expo[i*2:], uint16(v>>23))
			m := v & (1<<23 - 1)
			frac[i*3] = byte(m)
			frac[i*3+1] = byte(m >> 8)
			frac[i*3+2] = byte(m >> 16)
		}
		return
	}
	for i := 0; i < n; i++ {
		v := binary.LittleEndian.Uint64(src[i*8:])
		binary.LittleEndian.PutUint16(expo[i*2:], uint16(v>>52))
		m := v & (1<<52 - 1)
		for b := 0; b < 7; b++ {
			frac[i*7+b] = byte(m >> (8 * b))
		}
	}
}

// FloatReconstruct merges sign+exponent words and mantissa
// records back into float elements, inverting FloatDeconstruct.
func FloatReconstruct(width int, expo, frac, dst []byte) {
	n := len(dst) / width
	if width == 4 {
		for i := 0; i < n; i++ {
			e := uint32(binary.LittleEndian.Uint16(expo[i*2:]))
			m := uint32(frac[i*3]) | uint32(frac[i*3+1])<<8 | uint32(frac[i*3+2])<<16
			binary.LittleEndian.PutUint32(dst[i*4:], e<<23|m)
		}
		return
	}
	for i := 0; i < n; i++ {
		e := uint64(binary.LittleEndian.Uint16(expo[i*2:]))
		m := uint64(0)
		for b := 0; b < 7; b++ {
			m |= uint64(frac[i*7+b]) << (8 * b)
		}
		binary.LittleEndian.PutUint64(dst[i*8:], e<<52|m)
	}
}
