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
	"bytes"
	"testing"
)

func TestStreamCommitDiscipline(t *testing.T) {
	s, err := newOwned(TypeNumeric, 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Bytes(); !IsKind(err, KindLogicError) {
		t.Errorf("reading an uncommitted stream: %v", err)
	}
	buf, err := s.Writable()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 40 {
		t.Fatalf("capacity %d bytes, want 40", len(buf))
	}
	// over-capacity commit must fail
	if err := s.Commit(11); !IsKind(err, KindAllocation) {
		t.Errorf("over-capacity commit: %v", err)
	}
	if err := s.Commit(7); err != nil {
		t.Fatal(err)
	}
	if s.NumElts() != 7 || s.ContentSize() != 28 {
		t.Fatalf("committed to %d elements / %d bytes", s.NumElts(), s.ContentSize())
	}
	// double commit is a logic error
	if err := s.Commit(7); !IsKind(err, KindLogicError) {
		t.Errorf("double commit: %v", err)
	}
	// committed streams are read-only
	if _, err := s.Writable(); !IsKind(err, KindLogicError) {
		t.Errorf("writing a committed stream: %v", err)
	}
}

func TestStreamInvalidShapes(t *testing.T) {
	if _, err := newOwned(TypeNumeric, 3, 10); !IsKind(err, KindLogicError) {
		t.Errorf("numeric width 3: %v", err)
	}
	if _, err := newOwned(TypeSerial, 2, 10); !IsKind(err, KindLogicError) {
		t.Errorf("serial width 2: %v", err)
	}
	if _, err := newOwned(TypeStruct, 0, 10); !IsKind(err, KindLogicError) {
		t.Errorf("struct width 0: %v", err)
	}
	if _, err := RefNumeric([]byte{1, 2, 3}, 2); !IsKind(err, KindLogicError) {
		t.Errorf("ragged numeric ref: %v", err)
	}
	if _, err := RefString([]byte("abc"), []uint32{1, 1}); !IsKind(err, KindLogicError) {
		t.Errorf("mismatched string lengths: %v", err)
	}
}

func TestStreamString(t *testing.T) {
	content := []byte("foobarbaz")
	lens := []uint32{3, 3, 3}
	s, err := RefString(content, lens)
	if err != nil {
		t.Fatal(err)
	}
	if s.NumElts() != 3 || s.ContentSize() != 9 {
		t.Fatalf("%d elements / %d bytes", s.NumElts(), s.ContentSize())
	}
	got, err := s.Lens()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("%d lengths", len(got))
	}

	// owned string commit requires lengths first
	o, err := newOwned(TypeString, 1, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Commit(2); !IsKind(err, KindLogicError) {
		t.Errorf("commit without lengths: %v", err)
	}
	buf, _ := o.Writable()
	copy(buf, "hiyo")
	if err := o.SetLens([]uint32{2, 2}); err != nil {
		t.Fatal(err)
	}
	if err := o.Commit(2); err != nil {
		t.Fatal(err)
	}
	if o.ContentSize() != 4 {
		t.Fatalf("content size %d", o.ContentSize())
	}
}

func TestStreamSlice(t *testing.T) {
	s, _ := RefNumeric([]byte{1, 0, 2, 0, 3, 0, 4, 0}, 2)
	v, err := s.Slice(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := v.Bytes()
	if !bytes.Equal(b, []byte{2, 0, 3, 0}) {
		t.Errorf("slice contents %v", b)
	}
	if v.NumElts() != 2 || v.EltWidth() != 2 {
		t.Errorf("slice shape %d/%d", v.NumElts(), v.EltWidth())
	}
	// views share contents with the parent
	if &b[0] != &s.buf[2] {
		t.Error("slice copied instead of aliasing")
	}
	if _, err := s.Slice(3, 2); !IsKind(err, KindLogicError) {
		t.Errorf("out-of-range slice: %v", err)
	}

	str, _ := RefString([]byte("aabbbcc"), []uint32{2, 3, 2})
	v, err = str.Slice(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, _ = v.Bytes()
	if string(b) != "bbb" {
		t.Errorf("string slice %q", b)
	}
}

func TestStreamAppend(t *testing.T) {
	dst, err := newOwned(TypeNumeric, 2, 6)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := RefNumeric([]byte{1, 0, 2, 0}, 2)
	b, _ := RefNumeric([]byte{3, 0}, 2)
	if err := dst.Append(a); err != nil {
		t.Fatal(err)
	}
	if err := dst.Append(b); err != nil {
		t.Fatal(err)
	}
	if dst.Filled() != 3 {
		t.Fatalf("filled %d", dst.Filled())
	}
	if err := dst.Commit(3); err != nil {
		t.Fatal(err)
	}
	got, _ := dst.Bytes()
	if !bytes.Equal(got, []byte{1, 0, 2, 0, 3, 0}) {
		t.Errorf("append contents %v", got)
	}
	// type mismatch
	c := RefSerial([]byte{1})
	dst2, _ := newOwned(TypeNumeric, 2, 4)
	if err := dst2.Append(c); !IsKind(err, KindLogicError) {
		t.Errorf("mismatched append: %v", err)
	}
	// capacity overflow
	dst3, _ := newOwned(TypeNumeric, 2, 1)
	if err := dst3.Append(a); !IsKind(err, KindAllocation) {
		t.Errorf("over-capacity append: %v", err)
	}
}

func TestStreamMetadata(t *testing.T) {
	s := RefSerial([]byte("xyz"))
	if _, ok := s.IntMeta(3); ok {
		t.Error("metadata present on fresh stream")
	}
	s.SetIntMeta(3, 77)
	if v, ok := s.IntMeta(3); !ok || v != 77 {
		t.Errorf("metadata = %d, %v", v, ok)
	}
	// views observe the source's metadata
	v, _ := s.Slice(0, 2)
	if got, ok := v.IntMeta(3); !ok || got != 77 {
		t.Errorf("view metadata = %d, %v", got, ok)
	}
}

func TestNumericOf(t *testing.T) {
	s := NumericOf([]uint32{1, 256, 0xdeadbeef})
	if s.EltWidth() != 4 || s.NumElts() != 3 {
		t.Fatalf("shape %d/%d", s.EltWidth(), s.NumElts())
	}
	b, _ := s.Bytes()
	want := []byte{1, 0, 0, 0, 0, 1, 0, 0, 0xef, 0xbe, 0xad, 0xde}
	if !bytes.Equal(b, want) {
		t.Errorf("little-endian contents %x", b)
	}
	if s8 := NumericOf([]int16{-1}); s8.EltWidth() != 2 {
		t.Errorf("int16 width %d", s8.EltWidth())
	}
}
