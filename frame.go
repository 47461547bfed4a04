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
	"encoding/binary"
)

// frameMagic is the (little-endian) magic number that begins
// every frame.
var frameMagic = []byte{0xC4, 'z', 'd', 'g'}

// IsMagic returns true if x begins with the 4-byte frame magic
// number, or false otherwise.
func IsMagic(x []byte) bool {
	return len(x) >= 4 && bytes.Equal(x[:4], frameMagic)
}

// Format versions. Each version is a distinct dialect of the
// inner layout; frames do not round-trip across versions.
//
//	v3: no local-parameter table; trace entries carry no
//	    parameter index.
//	v4: a deduplicated local-parameter table sits between the
//	    inputs descriptor and the trace, and each trace entry
//	    carries an index+1 reference into it (0 = none).
const (
	MinFormatVersion     = 3
	MaxFormatVersion     = 4
	DefaultFormatVersion = 4
)

const (
	flagContentCk    = 1 << 0
	flagCompressedCk = 1 << 1
	flagsKnown       = flagContentCk | flagCompressedCk
)

// OutputInfo describes one decompressed output of a frame: the
// shape of one original input stream.
type OutputInfo struct {
	Type        Type
	EltWidth    int
	NumElts     int
	ContentSize int
}

// FrameInfo is the introspectable prefix of a frame: its format
// version and the layout of its outputs. It is obtained without
// decompressing.
type FrameInfo struct {
	FormatVersion int
	Outputs       []OutputInfo
}

// ReadFrameInfo parses the header of a frame and returns its
// format version and per-output layout. Only the frame prefix
// through the inputs descriptor is examined.
func ReadFrameInfo(src []byte) (*FrameInfo, error) {
	fi, _, _, err := parseHeader(src)
	return fi, err
}

func parseHeader(src []byte) (*FrameInfo, []byte, byte, error) {
	if !IsMagic(src) {
		return nil, nil, 0, errf(KindCorruption, "frame", "bad magic number")
	}
	src = src[4:]
	v, src, err := wireUvarint(src)
	if err != nil {
		return nil, nil, 0, err
	}
	if v < MinFormatVersion || v > MaxFormatVersion {
		return nil, nil, 0, errf(KindUnsupportedVersion, "frame",
			"format version %d outside supported range [%d, %d]", v, MinFormatVersion, MaxFormatVersion)
	}
	if len(src) < 1 {
		return nil, nil, 0, errf(KindCorruption, "frame", "truncated flags")
	}
	flags := src[0]
	src = src[1:]
	if flags&^byte(flagsKnown) != 0 {
		return nil, nil, 0, errf(KindCorruption, "frame", "unknown flag bits %#x", flags)
	}
	nout, src, err := wireUvarint(src)
	if err != nil {
		return nil, nil, 0, err
	}
	if nout == 0 || nout > 1<<20 {
		return nil, nil, 0, errf(KindCorruption, "frame", "implausible output count %d", nout)
	}
	fi := &FrameInfo{FormatVersion: int(v), Outputs: make([]OutputInfo, nout)}
	for i := range fi.Outputs {
		if len(src) < 1 {
			return nil, nil, 0, errf(KindCorruption, "frame", "truncated inputs descriptor")
		}
		t := Type(src[0])
		src = src[1:]
		if !t.valid() {
			return nil, nil, 0, errf(KindCorruption, "frame", "output %d has invalid type %d", i, t)
		}
		var w, n, sz uint64
		w, src, err = wireUvarint(src)
		if err != nil {
			return nil, nil, 0, err
		}
		n, src, err = wireUvarint(src)
		if err != nil {
			return nil, nil, 0, err
		}
		sz, src, err = wireUvarint(src)
		if err != nil {
			return nil, nil, 0, err
		}
		if !validWidth(t, int(w)) {
			return nil, nil, 0, errf(KindCorruption, "frame", "output %d has invalid width %d for %s", i, w, t)
		}
		if t.fixedWidth() && n*w != sz {
			return nil, nil, 0, errf(KindCorruption, "frame",
				"output %d: %d elements of width %d do not make %d bytes", i, n, w, sz)
		}
		fi.Outputs[i] = OutputInfo{Type: t, EltWidth: int(w), NumElts: int(n), ContentSize: int(sz)}
	}
	return fi, src, flags, nil
}

// parsedFrame is a fully-validated frame, ready for replay.
type parsedFrame struct {
	info      *FrameInfo
	flags     byte
	paramSets []*LocalParams
	entries   []centry
	headers   [][]byte
	blobs     [][]byte
	contentCk uint32
	nstreams  int
}

func parseFrame(src []byte) (*parsedFrame, error) {
	full := src
	fi, rest, flags, err := parseHeader(src)
	if err != nil {
		return nil, err
	}
	pf := &parsedFrame{info: fi, flags: flags}
	src = rest
	if fi.FormatVersion >= 4 {
		var nsets uint64
		nsets, src, err = wireUvarint(src)
		if err != nil {
			return nil, err
		}
		if nsets > 1<<16 {
			return nil, errf(KindCorruption, "frame", "implausible parameter table size %d", nsets)
		}
		pf.paramSets = make([]*LocalParams, nsets)
		for i := range pf.paramSets {
			pf.paramSets[i], src, err = parseLocalParams(src)
			if err != nil {
				return nil, err
			}
		}
	}
	nent, src, err := wireUvarint(src)
	if err != nil {
		return nil, err
	}
	if nent > 1<<24 {
		return nil, errf(KindCorruption, "frame", "implausible trace length %d", nent)
	}
	pf.entries = make([]centry, nent)
	nstreams := len(fi.Outputs)
	nblobs := 0
	for i := range pf.entries {
		e := &pf.entries[i]
		var v uint64
		v, src, err = wireUvarint(src)
		if err != nil {
			return nil, err
		}
		e.codec = CodecID(v)
		if fi.FormatVersion >= 4 {
			v, src, err = wireUvarint(src)
			if err != nil {
				return nil, err
			}
			if v > uint64(len(pf.paramSets)) {
				return nil, errf(KindCorruption, "frame", "trace entry %d references parameter set %d of %d", i, v, len(pf.paramSets))
			}
			e.paramsIdx = int(v)
		}
		if len(src) < 1 {
			return nil, errf(KindCorruption, "frame", "truncated trace entry %d", i)
		}
		eflags := src[0]
		src = src[1:]
		if eflags&^byte(1) != 0 {
			return nil, errf(KindCorruption, "frame", "trace entry %d has unknown flags %#x", i, eflags)
		}
		e.terminal = eflags&1 != 0
		var nin uint64
		nin, src, err = wireUvarint(src)
		if err != nil {
			return nil, err
		}
		if nin == 0 || nin > 1<<20 {
			return nil, errf(KindCorruption, "frame", "trace entry %d has implausible input count %d", i, nin)
		}
		e.inputs = make([]int, nin)
		for j := range e.inputs {
			v, src, err = wireUvarint(src)
			if err != nil {
				return nil, err
			}
			e.inputs[j] = int(v)
		}
		v, src, err = wireUvarint(src)
		if err != nil {
			return nil, err
		}
		if v > 1<<20 {
			return nil, errf(KindCorruption, "frame", "trace entry %d has implausible output count %d", i, v)
		}
		e.nout = int(v)
		if e.terminal {
			if e.nout != 0 {
				return nil, errf(KindCorruption, "frame", "terminal trace entry %d declares %d outputs", i, e.nout)
			}
			v, src, err = wireUvarint(src)
			if err != nil {
				return nil, err
			}
			if v > 1<<20 {
				return nil, errf(KindCorruption, "frame", "trace entry %d has implausible blob count %d", i, v)
			}
			e.nblobs = int(v)
			nblobs += e.nblobs
		} else if e.nout == 0 {
			return nil, errf(KindCorruption, "frame", "interior trace entry %d declares no outputs", i)
		}
		nstreams += e.nout
	}
	// input references must point at streams that exist
	for i := range pf.entries {
		for _, id := range pf.entries[i].inputs {
			if id < 0 || id >= nstreams {
				return nil, errf(KindCorruption, "frame", "trace entry %d references stream %d of %d", i, id, nstreams)
			}
		}
	}
	pf.nstreams = nstreams
	pf.headers = make([][]byte, nent)
	for i := range pf.headers {
		var n uint64
		n, src, err = wireUvarint(src)
		if err != nil {
			return nil, err
		}
		if uint64(len(src)) < n {
			return nil, errf(KindCorruption, "frame", "truncated codec header %d", i)
		}
		pf.headers[i] = src[:n]
		src = src[n:]
	}
	var nb uint64
	nb, src, err = wireUvarint(src)
	if err != nil {
		return nil, err
	}
	if int(nb) != nblobs {
		return nil, errf(KindCorruption, "frame", "blob section holds %d blobs, trace expects %d", nb, nblobs)
	}
	pf.blobs = make([][]byte, nb)
	for i := range pf.blobs {
		var n uint64
		n, src, err = wireUvarint(src)
		if err != nil {
			return nil, err
		}
		if uint64(len(src)) < n {
			return nil, errf(KindCorruption, "frame", "truncated terminal blob %d", i)
		}
		pf.blobs[i] = src[:n]
		src = src[n:]
	}
	if flags&flagContentCk != 0 {
		if len(src) < 4 {
			return nil, errf(KindCorruption, "frame", "truncated content checksum")
		}
		pf.contentCk = binary.LittleEndian.Uint32(src)
		src = src[4:]
	}
	if flags&flagCompressedCk != 0 {
		if len(src) < 4 {
			return nil, errf(KindCorruption, "frame", "truncated frame checksum")
		}
		want := binary.LittleEndian.Uint32(src)
		got := bodyChecksum(full[:len(full)-len(src)])
		if want != got {
			return nil, errf(KindCorruption, "frame", "frame checksum mismatch: %#x != %#x", got, want)
		}
		src = src[4:]
	}
	if len(src) != 0 {
		return nil, errf(KindCorruption, "frame", "%d trailing bytes after frame", len(src))
	}
	return pf, nil
}

// appendFrame serializes the engine's event record into a frame.
func (cs *cstate) appendFrame(dst []byte, ins []*Stream) ([]byte, error) {
	base := len(dst)
	dst = append(dst, frameMagic...)
	dst = binary.AppendUvarint(dst, uint64(cs.params.version))
	flags := byte(0)
	if cs.params.contentCk {
		flags |= flagContentCk
	}
	if cs.params.compressedCk {
		flags |= flagCompressedCk
	}
	dst = append(dst, flags)
	dst = binary.AppendUvarint(dst, uint64(len(ins)))
	for _, s := range ins {
		dst = append(dst, byte(s.Type()))
		dst = binary.AppendUvarint(dst, uint64(s.EltWidth()))
		dst = binary.AppendUvarint(dst, uint64(s.NumElts()))
		dst = binary.AppendUvarint(dst, uint64(s.ContentSize()))
	}
	if cs.params.version >= 4 {
		dst = binary.AppendUvarint(dst, uint64(len(cs.paramSets)))
		for _, p := range cs.paramSets {
			dst = p.appendWire(dst)
		}
	}
	dst = binary.AppendUvarint(dst, uint64(len(cs.entries)))
	for i := range cs.entries {
		e := &cs.entries[i]
		dst = binary.AppendUvarint(dst, uint64(e.codec))
		if cs.params.version >= 4 {
			dst = binary.AppendUvarint(dst, uint64(e.paramsIdx))
		}
		eflags := byte(0)
		if e.terminal {
			eflags |= 1
		}
		dst = append(dst, eflags)
		dst = binary.AppendUvarint(dst, uint64(len(e.inputs)))
		for _, id := range e.inputs {
			dst = binary.AppendUvarint(dst, uint64(id))
		}
		dst = binary.AppendUvarint(dst, uint64(e.nout))
		if e.terminal {
			dst = binary.AppendUvarint(dst, uint64(e.nblobs))
		}
	}
	for _, h := range cs.headers {
		dst = binary.AppendUvarint(dst, uint64(len(h)))
		dst = append(dst, h...)
	}
	dst = binary.AppendUvarint(dst, uint64(len(cs.blobs)))
	for _, b := range cs.blobs {
		dst = binary.AppendUvarint(dst, uint64(len(b)))
		dst = append(dst, b...)
	}
	if cs.params.contentCk {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], contentChecksum(ins))
		dst = append(dst, tmp[:]...)
	}
	if cs.params.compressedCk {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], bodyChecksum(dst[base:]))
		dst = append(dst, tmp[:]...)
	}
	return dst, nil
}

// wireUvarint reads one unsigned varint off the front of src.
func wireUvarint(src []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(src)
	if n <= 0 {
		return 0, nil, errf(KindCorruption, "frame", "truncated varint")
	}
	return v, src[n:], nil
}

// wireVarint reads one signed varint off the front of src.
func wireVarint(src []byte) (int64, []byte, error) {
	v, n := binary.Varint(src)
	if n <= 0 {
		return 0, nil, errf(KindCorruption, "frame", "truncated varint")
	}
	return v, src[n:], nil
}
