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

	"golang.org/x/exp/constraints"
)

type ownership uint8

const (
	// ownsBuffer: the stream allocated its buffer and owns it.
	ownsBuffer ownership = iota
	// refRead: the stream borrows a read-only buffer owned elsewhere.
	refRead
	// refWrite: the stream borrows a preallocated writable buffer;
	// used to deliver decompressed output directly into user memory.
	refWrite
)

// Stream is a typed, optionally-owned buffer of elements,
// plus a per-element length array for TypeString.
//
// A Stream is either uncommitted (capacity reserved, size not
// finalized) or committed (size frozen, contents read-only).
// Streams produced by codecs are committed exactly once.
type Stream struct {
	buf       []byte   // full capacity buffer
	lens      []uint32 // per-element lengths (TypeString only)
	meta      map[int]int
	src       *Stream // view parent; contents shared, lifetime bound
	typ       Type
	own       ownership
	committed bool
	width     int // element width in bytes (1 for serial/string content)
	nelts     int // committed element count
	csize     int // committed content size in bytes
	filled    int // elements written so far via Append
}

// newOwned allocates an owned, uncommitted stream.
// For TypeString, capElts is the content capacity in bytes
// and the length array is reserved separately via ReserveLens.
func newOwned(t Type, width, capElts int) (*Stream, error) {
	if !t.valid() {
		return nil, errf(KindLogicError, "reserve", "invalid stream type %d", t)
	}
	if !validWidth(t, width) {
		return nil, errf(KindLogicError, "reserve", "invalid element width %d for %s", width, t)
	}
	if capElts < 0 {
		return nil, errf(KindLogicError, "reserve", "negative capacity %d", capElts)
	}
	nbytes := capElts * width
	if capElts != 0 && nbytes/capElts != width {
		return nil, errf(KindAllocation, "reserve", "capacity %d x width %d overflows", capElts, width)
	}
	return &Stream{
		typ:   t,
		own:   ownsBuffer,
		width: width,
		buf:   make([]byte, nbytes),
	}, nil
}

// RefSerial creates a committed read-only TypeSerial stream
// over data. The stream's lifetime is bounded by data's owner.
func RefSerial(data []byte) *Stream {
	return &Stream{
		typ: TypeSerial, own: refRead, committed: true,
		width: 1, nelts: len(data), csize: len(data), buf: data,
	}
}

// RefStruct creates a committed read-only TypeStruct stream over
// data; len(data) must be a multiple of width.
func RefStruct(data []byte, width int) (*Stream, error) {
	if !validWidth(TypeStruct, width) {
		return nil, errf(KindLogicError, "RefStruct", "invalid width %d", width)
	}
	if len(data)%width != 0 {
		return nil, errf(KindLogicError, "RefStruct", "%d bytes is not a multiple of width %d", len(data), width)
	}
	return &Stream{
		typ: TypeStruct, own: refRead, committed: true,
		width: width, nelts: len(data) / width, csize: len(data), buf: data,
	}, nil
}

// RefNumeric creates a committed read-only TypeNumeric stream over
// data, which holds little-endian integers of the given width.
func RefNumeric(data []byte, width int) (*Stream, error) {
	if !validWidth(TypeNumeric, width) {
		return nil, errf(KindLogicError, "RefNumeric", "invalid numeric width %d", width)
	}
	if len(data)%width != 0 {
		return nil, errf(KindLogicError, "RefNumeric", "%d bytes is not a multiple of width %d", len(data), width)
	}
	return &Stream{
		typ: TypeNumeric, own: refRead, committed: true,
		width: width, nelts: len(data) / width, csize: len(data), buf: data,
	}, nil
}

// RefString creates a committed read-only TypeString stream.
// content must be exactly the concatenation of the per-element
// strings whose lengths are given by lens.
func RefString(content []byte, lens []uint32) (*Stream, error) {
	total := 0
	for _, n := range lens {
		total += int(n)
	}
	if total != len(content) {
		return nil, errf(KindLogicError, "RefString", "lengths sum to %d but content is %d bytes", total, len(content))
	}
	return &Stream{
		typ: TypeString, own: refRead, committed: true,
		width: 1, nelts: len(lens), csize: len(content), buf: content, lens: lens,
	}, nil
}

// NumericOf builds a committed owned TypeNumeric stream from a
// slice of fixed-width integers, converting to the little-endian
// wire representation.
func NumericOf[T constraints.Integer](vals []T) *Stream {
	var zero T
	width := 1
	switch any(zero).(type) {
	case int16, uint16:
		width = 2
	case int32, uint32:
		width = 4
	case int64, uint64, int, uint:
		width = 8
	}
	buf := make([]byte, len(vals)*width)
	for i, v := range vals {
		switch width {
		case 1:
			buf[i] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
		}
	}
	return &Stream{
		typ: TypeNumeric, own: ownsBuffer, committed: true,
		width: width, nelts: len(vals), csize: len(buf), buf: buf,
	}
}

// WriteRef creates an uncommitted write-only stream over buf.
// The caller guarantees buf remains valid for the stream's
// lifetime; the decompressor commits it when output is final.
func WriteRef(t Type, width int, buf []byte) (*Stream, error) {
	if !t.valid() {
		return nil, errf(KindLogicError, "WriteRef", "invalid stream type %d", t)
	}
	if !validWidth(t, width) {
		return nil, errf(KindLogicError, "WriteRef", "invalid element width %d for %s", width, t)
	}
	return &Stream{typ: t, own: refWrite, width: width, buf: buf}, nil
}

// WriteString creates an uncommitted write-only TypeString stream
// whose content goes into buf and whose lengths go into lens.
func WriteString(buf []byte, lens []uint32) *Stream {
	return &Stream{typ: TypeString, own: refWrite, width: 1, buf: buf, lens: lens[:0:len(lens)]}
}

// Type returns the stream's element type.
func (s *Stream) Type() Type { return s.typ }

// EltWidth returns the element width in bytes.
// For TypeString the content width is 1.
func (s *Stream) EltWidth() int { return s.width }

// NumElts returns the committed element count.
func (s *Stream) NumElts() int { return s.nelts }

// ContentSize returns the committed content size in bytes.
func (s *Stream) ContentSize() int { return s.csize }

// Committed returns whether the stream size has been frozen.
func (s *Stream) Committed() bool { return s.committed }

// Bytes returns the committed contents of the stream.
// It returns an error if the stream has not been committed:
// a write-only stream may not be read until it is committed.
func (s *Stream) Bytes() ([]byte, error) {
	if !s.committed {
		return nil, errf(KindLogicError, "Bytes", "stream not committed")
	}
	return s.buf[:s.csize], nil
}

// Lens returns the per-element length array of a committed
// TypeString stream.
func (s *Stream) Lens() ([]uint32, error) {
	if s.typ != TypeString {
		return nil, errf(KindLogicError, "Lens", "stream type is %s, not string", s.typ)
	}
	if !s.committed {
		return nil, errf(KindLogicError, "Lens", "stream not committed")
	}
	return s.lens[:s.nelts], nil
}

// Writable returns the full-capacity buffer of an uncommitted
// stream for a codec to fill before Commit.
func (s *Stream) Writable() ([]byte, error) {
	if s.committed {
		return nil, errf(KindLogicError, "Writable", "stream already committed")
	}
	if s.own == refRead {
		return nil, errf(KindLogicError, "Writable", "stream is a read-only reference")
	}
	return s.buf, nil
}

// ReserveLens allocates the per-element length array of an
// uncommitted TypeString stream and returns it for filling.
func (s *Stream) ReserveLens(n int) ([]uint32, error) {
	if s.typ != TypeString {
		return nil, errf(KindLogicError, "ReserveLens", "stream type is %s, not string", s.typ)
	}
	if s.committed {
		return nil, errf(KindLogicError, "ReserveLens", "stream already committed")
	}
	if cap(s.lens) < n {
		s.lens = make([]uint32, n)
	} else {
		s.lens = s.lens[:n]
	}
	return s.lens, nil
}

// SetLens attaches the per-element lengths of an uncommitted
// TypeString stream, copying from lens.
func (s *Stream) SetLens(lens []uint32) error {
	dst, err := s.ReserveLens(len(lens))
	if err != nil {
		return err
	}
	copy(dst, lens)
	return nil
}

// Commit freezes the stream at nelts elements. The committed size
// must not exceed the reserved capacity, and a stream may be
// committed only once; afterwards it is read-only.
//
// For TypeString streams the lengths must be attached (via
// ReserveLens or SetLens) before Commit; the content size is the
// sum of the first nelts lengths.
func (s *Stream) Commit(nelts int) error {
	if s.committed {
		return errf(KindLogicError, "Commit", "stream already committed")
	}
	if s.own == refRead {
		return errf(KindLogicError, "Commit", "stream is a read-only reference")
	}
	if nelts < 0 {
		return errf(KindLogicError, "Commit", "negative element count %d", nelts)
	}
	if s.typ == TypeString {
		if nelts > len(s.lens) {
			return errf(KindLogicError, "Commit", "%d elements committed but only %d lengths set", nelts, len(s.lens))
		}
		total := 0
		for _, n := range s.lens[:nelts] {
			total += int(n)
		}
		if total > len(s.buf) {
			return errf(KindAllocation, "Commit", "lengths sum to %d bytes but capacity is %d", total, len(s.buf))
		}
		s.nelts = nelts
		s.csize = total
		s.lens = s.lens[:nelts]
		s.committed = true
		return nil
	}
	if nelts*s.width > len(s.buf) {
		return errf(KindAllocation, "Commit", "%d elements exceed capacity of %d bytes", nelts, len(s.buf))
	}
	s.nelts = nelts
	s.csize = nelts * s.width
	s.committed = true
	return nil
}

// Slice returns a read-only view of count elements of a committed
// stream starting at element off. The view shares contents with
// (and is lifetime-bound to) the source stream.
func (s *Stream) Slice(off, count int) (*Stream, error) {
	if !s.committed {
		return nil, errf(KindLogicError, "Slice", "stream not committed")
	}
	if off < 0 || count < 0 || off+count > s.nelts {
		return nil, errf(KindLogicError, "Slice", "range [%d, %d+%d) out of bounds (%d elements)", off, off, count, s.nelts)
	}
	v := &Stream{
		typ: s.typ, own: refRead, committed: true,
		width: s.width, nelts: count,
		meta: s.meta, src: s,
	}
	if s.typ == TypeString {
		start := 0
		for _, n := range s.lens[:off] {
			start += int(n)
		}
		size := 0
		for _, n := range s.lens[off : off+count] {
			size += int(n)
		}
		v.buf = s.buf[start : start+size]
		v.lens = s.lens[off : off+count]
		v.csize = size
		return v, nil
	}
	v.buf = s.buf[off*s.width : (off+count)*s.width]
	v.csize = count * s.width
	return v, nil
}

// Append copies the committed contents of src onto the end of an
// owned, uncommitted stream. The types and element widths must
// match and the remaining capacity must suffice.
func (s *Stream) Append(src *Stream) error {
	if s.committed {
		return errf(KindLogicError, "Append", "destination already committed")
	}
	if s.own != ownsBuffer {
		return errf(KindLogicError, "Append", "destination does not own its buffer")
	}
	if !src.committed {
		return errf(KindLogicError, "Append", "source not committed")
	}
	if s.typ != src.typ || s.width != src.width {
		return errf(KindLogicError, "Append", "type mismatch: %s/%d vs %s/%d", s.typ, s.width, src.typ, src.width)
	}
	if s.typ == TypeString {
		off := 0
		for _, n := range s.lens {
			off += int(n)
		}
		if off+src.csize > len(s.buf) {
			return errf(KindAllocation, "Append", "append of %d bytes exceeds capacity %d", src.csize, len(s.buf))
		}
		copy(s.buf[off:], src.buf[:src.csize])
		s.lens = append(s.lens, src.lens[:src.nelts]...)
		s.filled += src.nelts
		return nil
	}
	off := s.filled * s.width
	if off+src.csize > len(s.buf) {
		return errf(KindAllocation, "Append", "append of %d bytes exceeds capacity %d", src.csize, len(s.buf))
	}
	copy(s.buf[off:], src.buf[:src.csize])
	s.filled += src.nelts
	return nil
}

// Filled returns the number of elements written so far
// through Append on an uncommitted stream.
func (s *Stream) Filled() int { return s.filled }

// SetIntMeta sets a sparse integer metadata entry on the stream.
func (s *Stream) SetIntMeta(key, value int) {
	if s.meta == nil {
		s.meta = make(map[int]int)
	}
	s.meta[key] = value
}

// IntMeta looks up a sparse integer metadata entry.
func (s *Stream) IntMeta(key int) (int, bool) {
	v, ok := s.meta[key]
	return v, ok
}
