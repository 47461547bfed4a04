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
	"fmt"

	"golang.org/x/exp/slices"
)

// Param identifies a global (per-call) compression parameter.
type Param uint8

const (
	// ParamFormatVersion selects the frame format version;
	// it must lie in [MinFormatVersion, MaxFormatVersion].
	ParamFormatVersion Param = iota + 1
	// ParamCompressionLevel tunes the compress-generic terminal:
	// 2 and above select zstd's stronger encoder, lower values its
	// default one. The other terminals ignore it.
	ParamCompressionLevel
	// ParamDecompressionLevel tunes decompression; currently
	// only recorded, reserved for backends with speed knobs.
	ParamDecompressionLevel
	// ParamContentChecksum toggles hashing of the logical input
	// content into the frame footer (nonzero = on).
	ParamContentChecksum
	// ParamCompressedChecksum toggles hashing of the frame body
	// into the frame footer (nonzero = on).
	ParamCompressedChecksum
	// ParamMinStreamSize forces the store path for any work item
	// whose total payload is below this many bytes.
	ParamMinStreamSize
	// ParamPermissive converts codec_executionFailure and
	// transform_executionFailure inside a subtree into a store
	// fallback for that subtree. All other error kinds remain
	// fatal.
	ParamPermissive
	// ParamStickyParams keeps parameters set on a context across
	// calls; when off, parameters reset to defaults after each
	// call.
	ParamStickyParams
)

func (p Param) String() string {
	switch p {
	case ParamFormatVersion:
		return "format-version"
	case ParamCompressionLevel:
		return "compression-level"
	case ParamDecompressionLevel:
		return "decompression-level"
	case ParamContentChecksum:
		return "content-checksum"
	case ParamCompressedChecksum:
		return "compressed-checksum"
	case ParamMinStreamSize:
		return "min-stream-size"
	case ParamPermissive:
		return "permissive"
	case ParamStickyParams:
		return "sticky-params"
	default:
		return fmt.Sprintf("Param(%d)", uint8(p))
	}
}

// globalParams is the resolved per-call parameter set.
type globalParams struct {
	version       int
	level         int
	dlevel        int
	minStreamSize int
	contentCk     bool
	compressedCk  bool
	permissive    bool
	sticky        bool
}

func defaultParams() globalParams {
	return globalParams{version: DefaultFormatVersion}
}

func (g *globalParams) set(p Param, v int) error {
	switch p {
	case ParamFormatVersion:
		if v < MinFormatVersion || v > MaxFormatVersion {
			return errf(KindUnsupportedVersion, "SetParam",
				"format version %d outside supported range [%d, %d]", v, MinFormatVersion, MaxFormatVersion)
		}
		g.version = v
	case ParamCompressionLevel:
		g.level = v
	case ParamDecompressionLevel:
		g.dlevel = v
	case ParamContentChecksum:
		g.contentCk = v != 0
	case ParamCompressedChecksum:
		g.compressedCk = v != 0
	case ParamMinStreamSize:
		if v < 0 {
			return errf(KindLogicError, "SetParam", "negative min-stream-size %d", v)
		}
		g.minStreamSize = v
	case ParamPermissive:
		g.permissive = v != 0
	case ParamStickyParams:
		g.sticky = v != 0
	default:
		return errf(KindLogicError, "SetParam", "unknown parameter %d", p)
	}
	return nil
}

func (g *globalParams) get(p Param) (int, error) {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	switch p {
	case ParamFormatVersion:
		return g.version, nil
	case ParamCompressionLevel:
		return g.level, nil
	case ParamDecompressionLevel:
		return g.dlevel, nil
	case ParamContentChecksum:
		return b2i(g.contentCk), nil
	case ParamCompressedChecksum:
		return b2i(g.compressedCk), nil
	case ParamMinStreamSize:
		return g.minStreamSize, nil
	case ParamPermissive:
		return b2i(g.permissive), nil
	case ParamStickyParams:
		return b2i(g.sticky), nil
	}
	return 0, errf(KindLogicError, "Param", "unknown parameter %d", p)
}

// LocalParams is the sparse int-keyed parameter store attached to
// a node. Values are either small integers or byte blobs. A node
// owns its LocalParams after registration; clones inherit and may
// override any subset.
type LocalParams struct {
	ints  map[int]int
	blobs map[int][]byte
}

// SetInt sets an integer-valued parameter.
func (p *LocalParams) SetInt(key, value int) *LocalParams {
	if p.ints == nil {
		p.ints = make(map[int]int)
	}
	p.ints[key] = value
	return p
}

// SetBlob sets a byte-blob parameter; the blob is copied.
func (p *LocalParams) SetBlob(key int, blob []byte) *LocalParams {
	if p.blobs == nil {
		p.blobs = make(map[int][]byte)
	}
	p.blobs[key] = append([]byte(nil), blob...)
	return p
}

// Int looks up an integer-valued parameter.
func (p *LocalParams) Int(key int) (int, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.ints[key]
	return v, ok
}

// Blob looks up a byte-blob parameter.
func (p *LocalParams) Blob(key int) ([]byte, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.blobs[key]
	return v, ok
}

func (p *LocalParams) empty() bool {
	return p == nil || (len(p.ints) == 0 && len(p.blobs) == 0)
}

// clone produces an independent copy; overrides from over
// replace entries with matching keys.
func (p *LocalParams) clone(over *LocalParams) *LocalParams {
	out := &LocalParams{}
	if p != nil {
		for k, v := range p.ints {
			out.SetInt(k, v)
		}
		for k, v := range p.blobs {
			out.SetBlob(k, v)
		}
	}
	if over != nil {
		for k, v := range over.ints {
			out.SetInt(k, v)
		}
		for k, v := range over.blobs {
			out.SetBlob(k, v)
		}
	}
	return out
}

// appendWire serializes the parameter set in a canonical order
// (sorted keys) so equal sets serialize identically.
func (p *LocalParams) appendWire(dst []byte) []byte {
	ikeys := make([]int, 0, len(p.ints))
	for k := range p.ints {
		ikeys = append(ikeys, k)
	}
	slices.Sort(ikeys)
	dst = binary.AppendUvarint(dst, uint64(len(ikeys)))
	for _, k := range ikeys {
		dst = binary.AppendVarint(dst, int64(k))
		dst = binary.AppendVarint(dst, int64(p.ints[k]))
	}
	bkeys := make([]int, 0, len(p.blobs))
	for k := range p.blobs {
		bkeys = append(bkeys, k)
	}
	slices.Sort(bkeys)
	dst = binary.AppendUvarint(dst, uint64(len(bkeys)))
	for _, k := range bkeys {
		dst = binary.AppendVarint(dst, int64(k))
		b := p.blobs[k]
		dst = binary.AppendUvarint(dst, uint64(len(b)))
		dst = append(dst, b...)
	}
	return dst
}

// parseLocalParams is the inverse of appendWire.
func parseLocalParams(src []byte) (*LocalParams, []byte, error) {
	p := &LocalParams{}
	nint, src, err := wireUvarint(src)
	if err != nil {
		return nil, nil, err
	}
	for i := uint64(0); i < nint; i++ {
		var k, v int64
		k, src, err = wireVarint(src)
		if err != nil {
			return nil, nil, err
		}
		v, src, err = wireVarint(src)
		if err != nil {
			return nil, nil, err
		}
		p.SetInt(int(k), int(v))
	}
	nblob, src, err := wireUvarint(src)
	if err != nil {
		return nil, nil, err
	}
	for i := uint64(0); i < nblob; i++ {
		var k int64
		k, src, err = wireVarint(src)
		if err != nil {
			return nil, nil, err
		}
		var n uint64
		n, src, err = wireUvarint(src)
		if err != nil {
			return nil, nil, err
		}
		if uint64(len(src)) < n {
			return nil, nil, errf(KindCorruption, "frame", "truncated parameter blob")
		}
		p.SetBlob(int(k), src[:n])
		src = src[n:]
	}
	return p, src, nil
}
