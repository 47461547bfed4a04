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

// DeltaEncode writes the wrapping first-difference transform of
// the elements of src into dst. The first element is copied
// verbatim. src and dst hold little-endian elements of the given
// width; len(dst) must be at least len(src).
func DeltaEncode(width int, src, dst []byte) {
	n := len(src) / width
	prev := uint64(0)
	for i := 0; i < n; i++ {
		v := readElt(width, src, i)
		writeElt(width, dst, i, v-prev)
		prev = v
	}
}

// DeltaDecode inverts DeltaEncode (a wrapping prefix sum).
// src and dst may alias.
func DeltaDecode(width int, src, dst []byte) {
	n := len(src) / width
	acc := uint64(0)
	for i := 0; i < n; i++ {
		acc += readElt(width, src, i)
		writeElt(width, dst, i, acc)
	}
}

// ZigzagEncode maps the signed interpretation of each element to
// an unsigned value with small magnitudes near zero:
// 0, -1, 1, -2, ... become 0, 1, 2, 3, ...
func ZigzagEncode(width int, src, dst []byte) {
	n := len(src) / width
	for i := 0; i < n; i++ {
		s := signExtend(width, readElt(width, src, i))
		writeElt(width, dst, i, uint64((s<<1)^(s>>63)))
	}
}

// ZigzagDecode inverts ZigzagEncode.
func ZigzagDecode(width int, src, dst []byte) {
	n := len(src) / width
	for i := 0; i < n; i++ {
		v := readElt(width, src, i)
		writeElt(width, dst, i, (v>>1)^-(v&1))
	}
}
