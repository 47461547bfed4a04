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

import "fmt"

// Type is the type of the elements of a Stream.
// The four Type values are represented as distinct
// bits so that a set of types forms a TypeMask.
type Type uint8

const (
	// TypeSerial is an opaque byte sequence;
	// the element width is always 1.
	TypeSerial Type = 1 << iota
	// TypeStruct is a sequence of fixed-width records.
	TypeStruct
	// TypeNumeric is a sequence of little-endian
	// unsigned integers of width 1, 2, 4, or 8.
	TypeNumeric
	// TypeString is a sequence of variable-length byte
	// strings, stored as concatenated contents plus a
	// per-element length array.
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeSerial:
		return "serial"
	case TypeStruct:
		return "struct"
	case TypeNumeric:
		return "numeric"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("Type(%X)", uint8(t))
	}
}

func (t Type) valid() bool {
	switch t {
	case TypeSerial, TypeStruct, TypeNumeric, TypeString:
		return true
	}
	return false
}

// fixedWidth indicates whether elements of this
// type occupy a fixed number of bytes.
func (t Type) fixedWidth() bool {
	return t != TypeString
}

// TypeMask is a set of Types.
type TypeMask uint8

// AnyType is the TypeMask containing every Type.
const AnyType = TypeMask(TypeSerial | TypeStruct | TypeNumeric | TypeString)

// Mask converts a single Type into a TypeMask.
func (t Type) Mask() TypeMask { return TypeMask(t) }

// MaskOf builds a TypeMask from a list of Types.
func MaskOf(types ...Type) TypeMask {
	m := TypeMask(0)
	for _, t := range types {
		m |= TypeMask(t)
	}
	return m
}

// Has returns whether t is a member of m.
func (m TypeMask) Has(t Type) bool {
	return m&TypeMask(t) != 0
}

func (m TypeMask) String() string {
	if m == AnyType {
		return "any"
	}
	s := ""
	for _, t := range []Type{TypeSerial, TypeStruct, TypeNumeric, TypeString} {
		if m.Has(t) {
			if s != "" {
				s += "|"
			}
			s += t.String()
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// validWidth returns whether width is a legal element
// width for streams of type t.
func validWidth(t Type, width int) bool {
	switch t {
	case TypeSerial, TypeString:
		return width == 1
	case TypeStruct:
		return width > 0
	case TypeNumeric:
		return width == 1 || width == 2 || width == 4 || width == 8
	}
	return false
}
