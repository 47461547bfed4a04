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
	"fmt"

	"github.com/dchest/siphash"
)

// fixed siphash key for token hashing; the table is rebuilt on
// every call, so the key needs no secrecy, only distribution
const (
	tokHashK0 = 0x7964627473616877
	tokHashK1 = 0x2d6b65792d7a6c6f
)

// HashToken hashes a variable-length token.
func HashToken(b []byte) uint64 {
	return siphash.Hash(tokHashK0, tokHashK1, b)
}

// TokenizeNum replaces the elements of src with indices into an
// alphabet of its distinct values. The alphabet lists values in
// first-occurrence order, so the transform is deterministic.
// It returns the alphabet (little-endian, same width as src)
// and one index per element.
func TokenizeNum(width int, src []byte) (alphabet []byte, indices []uint32) {
	n := len(src) / width
	seen := make(map[uint64]uint32, 64)
	indices = make([]uint32, n)
	for i := 0; i < n; i++ {
		v := readElt(width, src, i)
		idx, ok := seen[v]
		if !ok {
			idx = uint32(len(seen))
			seen[v] = idx
			alphabet = append(alphabet, make([]byte, width)...)
			writeElt(width, alphabet, int(idx), v)
		}
		indices[i] = idx
	}
	return alphabet, indices
}

// DetokenizeNum maps indices back through the alphabet,
// inverting TokenizeNum. It fails if an index is out of range
// for the alphabet.
func DetokenizeNum(width int, alphabet []byte, indices []uint32, dst []byte) error {
	nalpha := len(alphabet) / width
	for i, idx := range indices {
		if int(idx) >= nalpha {
			return fmt.Errorf("token index %d out of range (alphabet has %d entries)", idx, nalpha)
		}
		writeElt(width, dst, i, readElt(width, alphabet, int(idx)))
	}
	return nil
}

// TokenizeStr replaces a string stream (concatenated content
// plus per-element lengths) with indices into an alphabet of its
// distinct strings, in first-occurrence order. Tokens are
// bucketed by siphash with exact comparison on collision.
func TokenizeStr(content []byte, lens []uint32) (alphaContent []byte, alphaLens []uint32, indices []uint32) {
	type tok struct {
		off, len int
		idx      uint32
	}
	buckets := make(map[uint64][]tok, 64)
	indices = make([]uint32, len(lens))
	next := uint32(0)
	off := 0
	for i, n := range lens {
		s := content[off : off+int(n)]
		h := HashToken(s)
		idx := uint32(0)
		found := false
		for _, t := range buckets[h] {
			if t.len == int(n) && string(alphaContent[t.off:t.off+t.len]) == string(s) {
				idx = t.idx
				found = true
				break
			}
		}
		if !found {
			idx = next
			next++
			buckets[h] = append(buckets[h], tok{off: len(alphaContent), len: int(n), idx: idx})
			alphaContent = append(alphaContent, s...)
			alphaLens = append(alphaLens, n)
		}
		indices[i] = idx
		off += int(n)
	}
	return alphaContent, alphaLens, indices
}

// DetokenizeStr maps indices back through a string alphabet,
// inverting TokenizeStr.
func DetokenizeStr(alphaContent []byte, alphaLens []uint32, indices []uint32, dst []byte, dstLens []uint32) (int, error) {
	offs := make([]int, len(alphaLens)+1)
	for i, n := range alphaLens {
		offs[i+1] = offs[i] + int(n)
	}
	pos := 0
	for i, idx := range indices {
		if int(idx) >= len(alphaLens) {
			return 0, fmt.Errorf("token index %d out of range (alphabet has %d entries)", idx, len(alphaLens))
		}
		n := copy(dst[pos:], alphaContent[offs[idx]:offs[idx+1]])
		if n != offs[idx+1]-offs[idx] {
			return 0, fmt.Errorf("destination too small at token %d", i)
		}
		dstLens[i] = alphaLens[idx]
		pos += n
	}
	return pos, nil
}
