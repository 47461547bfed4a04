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
	"errors"
	"fmt"
)

// Kind discriminates the classes of errors
// returned by this package.
type Kind uint8

const (
	// KindAllocation indicates memory or capacity exhaustion.
	KindAllocation Kind = iota + 1
	// KindLogicError indicates incorrect API use by the caller,
	// for example committing a stream twice or reading an
	// uncommitted stream.
	KindLogicError
	// KindGraphTypeMismatch indicates an attempt to attach
	// graphs with incompatible stream types.
	KindGraphTypeMismatch
	// KindNodeInvalidInput indicates a codec received the wrong
	// number or type of inputs at runtime.
	KindNodeInvalidInput
	// KindCodecExecution indicates a codec failed internally
	// or violated its declared contract.
	KindCodecExecution
	// KindUnknownCodec indicates the decompressor encountered
	// a codec ID that is not in its registry.
	KindUnknownCodec
	// KindCorruption indicates a structurally invalid frame
	// or a checksum mismatch.
	KindCorruption
	// KindUnsupportedVersion indicates a frame format version
	// outside the supported range.
	KindUnsupportedVersion
	// KindTransformExecution indicates a user-supplied
	// encoder or decoder returned an error.
	KindTransformExecution
)

func (k Kind) String() string {
	switch k {
	case KindAllocation:
		return "allocation"
	case KindLogicError:
		return "logic_error"
	case KindGraphTypeMismatch:
		return "graph_type_mismatch"
	case KindNodeInvalidInput:
		return "node_invalid_input"
	case KindCodecExecution:
		return "codec_executionFailure"
	case KindUnknownCodec:
		return "unknown_codec"
	case KindCorruption:
		return "corruption"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindTransformExecution:
		return "transform_executionFailure"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is the error type returned by compression
// and decompression entry points. It tags an
// underlying cause with a Kind and the operation
// that produced it.
type Error struct {
	Kind Kind
	Op   string // operation that failed, for diagnostics
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		if e.Op == "" {
			return "zdag: " + e.Kind.String()
		}
		return "zdag: " + e.Op + ": " + e.Kind.String()
	}
	if e.Op == "" {
		return "zdag: " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "zdag: " + e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind returns whether err or any error it wraps
// is an *Error with the given Kind.
func IsKind(err error, k Kind) bool {
	var ze *Error
	return errors.As(err, &ze) && ze.Kind == k
}

// ErrorKind extracts the Kind from err, if err or any
// error it wraps is an *Error.
func ErrorKind(err error) (Kind, bool) {
	var ze *Error
	if errors.As(err, &ze) {
		return ze.Kind, true
	}
	return 0, false
}

// errf produces a tagged error from a format string.
func errf(k Kind, op, format string, args ...any) error {
	return &Error{Kind: k, Op: op, Err: fmt.Errorf(format, args...)}
}

// mkerr tags err with k unless it already carries a Kind,
// in which case the original tag is preserved so that
// errors bubble up unchanged.
func mkerr(k Kind, op string, err error) error {
	if err == nil {
		return &Error{Kind: k, Op: op}
	}
	var ze *Error
	if errors.As(err, &ze) {
		return err
	}
	return &Error{Kind: k, Op: op, Err: err}
}
