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
	"encoding/binary"
	"fmt"
)

// VarintEncode appends the LEB128 encoding of each little-endian
// element of src to dst and returns the extended slice.
func VarintEncode(width int, src, dst []byte) []byte {
	n := len(src) / width
	for i := 0; i < n; i++ {
		dst = binary.AppendUvarint(dst, readElt(width, src, i))
	}
	return dst
}

// VarintDecode decodes n LEB128 values from src into
// little-endian elements of the given width in dst, inverting
// VarintEncode. Values that do not fit the element width or a
// short source are errors.
func VarintDecode(width, n int, src, dst []byte) error {
	for i := 0; i < n; i++ {
		v, sz := binary.Uvarint(src)
		if sz <= 0 {
			return fmt.Errorf("truncated varint stream at element %d", i)
		}
		if width < 8 && v>>(uint(width)*8) != 0 {
			return fmt.Errorf("varint value %d overflows %d-byte element", v, width)
		}
		writeElt(width, dst, i, v)
		src = src[sz:]
	}
	if len(src) != 0 {
		return fmt.Errorf("%d trailing bytes after varint stream", len(src))
	}
	return nil
}
