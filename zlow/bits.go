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

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// BitsFor returns the number of bits needed to represent v;
// BitsFor(0) is 0.
func BitsFor(v uint64) int {
	return bits.Len64(v)
}

// MaxValue returns the largest element of the little-endian
// elements in src.
func MaxValue(width int, src []byte) uint64 {
	n := len(src) / width
	max := uint64(0)
	for i := 0; i < n; i++ {
		if v := readElt(width, src, i); v > max {
			max = v
		}
	}
	return max
}

// ByteWidth returns the smallest of 1, 2, 4, or 8 that can hold
// values below n.
func ByteWidth[T constraints.Integer](n T) int {
	switch {
	case uint64(n) <= 1<<8:
		return 1
	case uint64(n) <= 1<<16:
		return 2
	case uint64(n) <= 1<<32:
		return 4
	default:
		return 8
	}
}
