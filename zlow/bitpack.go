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

import "fmt"

// PackedSize returns the number of bytes occupied by n elements
// packed at the given bit width.
func PackedSize(n, bitWidth int) int {
	return (n*bitWidth + 7) / 8
}

// PackBits packs the little-endian elements of src into a
// little-endian bit stream of bitWidth bits per element.
// bitWidth must be at least BitsFor(MaxValue(width, src));
// len(dst) must be at least PackedSize(n, bitWidth).
// A bitWidth of 0 packs to nothing (all elements are zero).
func PackBits(width, bitWidth int, src, dst []byte) {
	n := len(src) / width
	acc := byte(0)
	nbits := 0
	j := 0
	for i := 0; i < n; i++ {
		v := readElt(width, src, i)
		rem := bitWidth
		for rem > 0 {
			take := 8 - nbits
			if take > rem {
				take = rem
			}
			acc |= byte(v&(1<<take-1)) << nbits
			v >>= uint(take)
			nbits += take
			rem -= take
			if nbits == 8 {
				dst[j] = acc
				j++
				acc = 0
				nbits = 0
			}
		}
	}
	if nbits > 0 {
		dst[j] = acc
	}
}

// UnpackBits unpacks n elements of bitWidth bits each from the
// bit stream in src into little-endian elements of the given
// byte width in dst. It inverts PackBits.
func UnpackBits(width, bitWidth, n int, src, dst []byte) error {
	if bitWidth > width*8 {
		return fmt.Errorf("bit width %d exceeds element width %d bytes", bitWidth, width)
	}
	if len(src) < PackedSize(n, bitWidth) {
		return fmt.Errorf("packed stream is %d bytes, need %d", len(src), PackedSize(n, bitWidth))
	}
	acc := uint64(0)
	nbits := 0
	j := 0
	for i := 0; i < n; i++ {
		v := uint64(0)
		got := 0
		for got < bitWidth {
			if nbits == 0 {
				acc = uint64(src[j])
				j++
				nbits = 8
			}
			take := nbits
			if take > bitWidth-got {
				take = bitWidth - got
			}
			v |= (acc & (1<<take - 1)) << got
			acc >>= uint(take)
			nbits -= take
			got += take
		}
		writeElt(width, dst, i, v)
	}
	return nil
}
