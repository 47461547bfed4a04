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

package zdag

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Frame checksums are the low 32 bits of XXH3-64.

// contentChecksum hashes the logical concatenation of the input
// streams, type-aware: each stream contributes its type tag,
// element width, element count, contents, and (for strings) its
// length array.
func contentChecksum(ins []*Stream) uint32 {
	var h xxh3.Hasher
	var tmp [8]byte
	for _, s := range ins {
		tmp[0] = byte(s.Type())
		tmp[1] = byte(s.EltWidth())
		h.Write(tmp[:2])
		binary.LittleEndian.PutUint64(tmp[:], uint64(s.NumElts()))
		h.Write(tmp[:])
		b, _ := s.Bytes()
		h.Write(b)
		if s.Type() == TypeString {
			lens, _ := s.Lens()
			for _, n := range lens {
				binary.LittleEndian.PutUint32(tmp[:4], n)
				h.Write(tmp[:4])
			}
		}
	}
	return uint32(h.Sum64())
}

// bodyChecksum hashes the frame body (everything before the
// checksum itself).
func bodyChecksum(body []byte) uint32 {
	return uint32(xxh3.Hash(body))
}
