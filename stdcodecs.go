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
	"math"

	"github.com/SnellerInc/zdag/compr"
	"github.com/SnellerInc/zdag/zlow"
)

// LevelParamKey is the node-local integer parameter the
// compress-generic terminal consults to override the global
// compression level; the other block-backed terminals ignore it.
const LevelParamKey = 0

// terminal metadata headers record the shape of each stream a
// terminal codec consumed, so that mid-graph terminals can
// reconstruct streams without the frame's inputs descriptor

func appendStreamMeta(dst []byte, s *Stream) []byte {
	dst = append(dst, byte(s.Type()))
	dst = binary.AppendUvarint(dst, uint64(s.EltWidth()))
	dst = binary.AppendUvarint(dst, uint64(s.NumElts()))
	return dst
}

type streamMeta struct {
	typ   Type
	width int
	nelts int
	csize int // nelts*width; for strings, filled in from the lengths
}

func parseStreamMeta(src []byte) (streamMeta, []byte, error) {
	var m streamMeta
	if len(src) < 1 {
		return m, nil, fmt.Errorf("truncated stream metadata")
	}
	m.typ = Type(src[0])
	src = src[1:]
	if !m.typ.valid() {
		return m, nil, fmt.Errorf("invalid stream type %d", m.typ)
	}
	w, src, err := wireUvarint(src)
	if err != nil {
		return m, nil, err
	}
	n, src, err := wireUvarint(src)
	if err != nil {
		return m, nil, err
	}
	m.width, m.nelts = int(w), int(n)
	if !validWidth(m.typ, m.width) {
		return m, nil, fmt.Errorf("invalid width %d for %s", m.width, m.typ)
	}
	m.csize = m.nelts * m.width
	return m, src, nil
}

func appendLensBlob(dst []byte, lens []uint32) []byte {
	for _, n := range lens {
		dst = binary.AppendUvarint(dst, uint64(n))
	}
	return dst
}

func parseLensBlob(src []byte, lens []uint32) error {
	for i := range lens {
		v, n := binary.Uvarint(src)
		if n <= 0 {
			return fmt.Errorf("truncated length array at element %d", i)
		}
		if v > math.MaxUint32 {
			return fmt.Errorf("string length %d overflows 32 bits", v)
		}
		lens[i] = uint32(v)
		src = src[n:]
	}
	if len(src) != 0 {
		return fmt.Errorf("%d trailing bytes after length array", len(src))
	}
	return nil
}

// blockLevel resolves the backend for a block-compressing
// terminal from the local and global level parameters.
func blockLevel(env *EncodeEnv, base string) compr.Compressor {
	if base != "zstd" {
		return compr.Compression(base)
	}
	level := env.Level()
	if v, ok := env.IntParam(LevelParamKey); ok {
		level = v
	}
	if level >= 2 {
		return compr.Compression("zstd-better")
	}
	return compr.Compression("zstd")
}

// blockEncode implements the block-backed terminal codecs
// (store when comp is nil): one metadata header entry per input,
// a raw varint length blob plus a block-coded content blob for
// strings, and a single block-coded content blob otherwise.
func blockEncode(env *EncodeEnv, ins []*Stream, comp compr.Compressor) error {
	var hdr []byte
	hdr = binary.AppendUvarint(hdr, uint64(len(ins)))
	for _, s := range ins {
		hdr = appendStreamMeta(hdr, s)
		if s.Type() == TypeString {
			lens, err := s.Lens()
			if err != nil {
				return err
			}
			if err := env.EmitBlob(appendLensBlob(nil, lens)); err != nil {
				return err
			}
		}
		b, err := s.Bytes()
		if err != nil {
			return err
		}
		if comp == nil {
			err = env.EmitBlob(b)
		} else {
			err = env.EmitBlob(comp.Compress(b, nil))
		}
		if err != nil {
			return err
		}
	}
	env.EmitHeader(hdr)
	return nil
}

func blockDecode(env *DecodeEnv, ins []*Stream, dec compr.Decompressor) error {
	hdr := env.Header()
	n, hdr, err := wireUvarint(hdr)
	if err != nil {
		return err
	}
	bi := 0
	for i := uint64(0); i < n; i++ {
		var m streamMeta
		m, hdr, err = parseStreamMeta(hdr)
		if err != nil {
			return err
		}
		var lens []uint32
		if m.typ == TypeString {
			if bi >= len(ins) {
				return fmt.Errorf("missing length blob for stream %d", i)
			}
			lb, err := ins[bi].Bytes()
			if err != nil {
				return err
			}
			bi++
			if m.nelts > len(lb) {
				// every length is at least one varint byte
				return fmt.Errorf("%d lengths cannot fit in a %d-byte blob", m.nelts, len(lb))
			}
			lens = make([]uint32, m.nelts)
			if err := parseLensBlob(lb, lens); err != nil {
				return err
			}
			m.csize = 0
			for _, ln := range lens {
				m.csize += int(ln)
			}
		}
		capElts := m.nelts
		if m.typ == TypeString {
			capElts = m.csize
		}
		out, err := env.Reserve(m.typ, m.width, capElts)
		if err != nil {
			return err
		}
		if m.typ == TypeString {
			if err := out.SetLens(lens); err != nil {
				return err
			}
		}
		if bi >= len(ins) {
			return fmt.Errorf("missing content blob for stream %d", i)
		}
		body, err := ins[bi].Bytes()
		bi++
		if err != nil {
			return err
		}
		buf, err := out.Writable()
		if err != nil {
			return err
		}
		if dec == nil {
			if len(body) != m.csize {
				return fmt.Errorf("stored blob is %d bytes, metadata says %d", len(body), m.csize)
			}
			copy(buf, body)
		} else if err := dec.Decompress(body, buf[:m.csize]); err != nil {
			return err
		}
		if err := out.Commit(m.nelts); err != nil {
			return err
		}
	}
	if bi != len(ins) {
		return fmt.Errorf("%d blobs consumed, trace entry holds %d", bi, len(ins))
	}
	if len(hdr) != 0 {
		return fmt.Errorf("%d trailing header bytes", len(hdr))
	}
	return nil
}

// constant verifies its input holds a single repeated element
// and encodes it entirely in the codec header.

func constantEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	w := s.EltWidth()
	for off := w; off+w <= len(b); off += w {
		if string(b[off:off+w]) != string(b[:w]) {
			return fmt.Errorf("input is not constant at element %d", off/w)
		}
	}
	var hdr []byte
	hdr = appendStreamMeta(hdr, s)
	if s.NumElts() > 0 {
		hdr = append(hdr, b[:w]...)
	}
	env.EmitHeader(hdr)
	return nil
}

func constantDecode(env *DecodeEnv, ins []*Stream) error {
	if len(ins) != 0 {
		return fmt.Errorf("constant carries no blobs, got %d", len(ins))
	}
	m, hdr, err := parseStreamMeta(env.Header())
	if err != nil {
		return err
	}
	out, err := env.Reserve(m.typ, m.width, m.nelts)
	if err != nil {
		return err
	}
	buf, err := out.Writable()
	if err != nil {
		return err
	}
	if m.nelts > 0 {
		if len(hdr) != m.width {
			return fmt.Errorf("constant value is %d bytes, width is %d", len(hdr), m.width)
		}
		for i := 0; i < m.nelts; i++ {
			copy(buf[i*m.width:], hdr)
		}
	}
	return out.Commit(m.nelts)
}

// entropy terminals: FSE blocks, and huff0 with the code table
// riding in the codec header

func fseEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	blob, err := compr.EncodeFSE(b, nil)
	if err != nil {
		return err
	}
	env.EmitHeader(appendStreamMeta(nil, s))
	return env.EmitBlob(blob)
}

func fseDecode(env *DecodeEnv, ins []*Stream) error {
	if len(ins) != 1 {
		return fmt.Errorf("fse expects one blob, got %d", len(ins))
	}
	m, _, err := parseStreamMeta(env.Header())
	if err != nil {
		return err
	}
	out, err := env.Reserve(m.typ, m.width, m.nelts)
	if err != nil {
		return err
	}
	body, err := ins[0].Bytes()
	if err != nil {
		return err
	}
	buf, err := out.Writable()
	if err != nil {
		return err
	}
	if err := compr.DecodeFSE(body, buf[:m.csize]); err != nil {
		return err
	}
	return out.Commit(m.nelts)
}

func huffEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	table, data, err := compr.EncodeHuff(b)
	if err != nil {
		return err
	}
	env.EmitHeader(append(appendStreamMeta(nil, s), table...))
	return env.EmitBlob(data)
}

func huffDecode(env *DecodeEnv, ins []*Stream) error {
	if len(ins) != 1 {
		return fmt.Errorf("huffman expects one blob, got %d", len(ins))
	}
	m, table, err := parseStreamMeta(env.Header())
	if err != nil {
		return err
	}
	out, err := env.Reserve(m.typ, m.width, m.nelts)
	if err != nil {
		return err
	}
	body, err := ins[0].Bytes()
	if err != nil {
		return err
	}
	buf, err := out.Writable()
	if err != nil {
		return err
	}
	if err := compr.DecodeHuff(table, body, buf[:m.csize]); err != nil {
		return err
	}
	return out.Commit(m.nelts)
}

// interior transforms

func deltaEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	out, err := env.Reserve(TypeNumeric, s.EltWidth(), s.NumElts())
	if err != nil {
		return err
	}
	b, _ := s.Bytes()
	buf, _ := out.Writable()
	zlow.DeltaEncode(s.EltWidth(), b, buf)
	return out.Commit(s.NumElts())
}

func deltaDecode(env *DecodeEnv, ins []*Stream) error {
	s := ins[0]
	out, err := env.Reserve(TypeNumeric, s.EltWidth(), s.NumElts())
	if err != nil {
		return err
	}
	b, _ := s.Bytes()
	buf, _ := out.Writable()
	zlow.DeltaDecode(s.EltWidth(), b, buf)
	return out.Commit(s.NumElts())
}

func zigzagEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	out, err := env.Reserve(TypeNumeric, s.EltWidth(), s.NumElts())
	if err != nil {
		return err
	}
	b, _ := s.Bytes()
	buf, _ := out.Writable()
	zlow.ZigzagEncode(s.EltWidth(), b, buf)
	return out.Commit(s.NumElts())
}

func zigzagDecode(env *DecodeEnv, ins []*Stream) error {
	s := ins[0]
	out, err := env.Reserve(TypeNumeric, s.EltWidth(), s.NumElts())
	if err != nil {
		return err
	}
	b, _ := s.Bytes()
	buf, _ := out.Writable()
	zlow.ZigzagDecode(s.EltWidth(), b, buf)
	return out.Commit(s.NumElts())
}

func bitpackEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, _ := s.Bytes()
	w := s.EltWidth()
	bits := zlow.BitsFor(zlow.MaxValue(w, b))
	packed := zlow.PackedSize(s.NumElts(), bits)
	out, err := env.Reserve(TypeSerial, 1, packed)
	if err != nil {
		return err
	}
	buf, _ := out.Writable()
	zlow.PackBits(w, bits, b, buf)
	var hdr []byte
	hdr = binary.AppendUvarint(hdr, uint64(w))
	hdr = binary.AppendUvarint(hdr, uint64(bits))
	hdr = binary.AppendUvarint(hdr, uint64(s.NumElts()))
	env.EmitHeader(hdr)
	return out.Commit(packed)
}

func bitpackDecode(env *DecodeEnv, ins []*Stream) error {
	hdr := env.Header()
	w, hdr, err := wireUvarint(hdr)
	if err != nil {
		return err
	}
	bits, hdr, err := wireUvarint(hdr)
	if err != nil {
		return err
	}
	nelts, _, err := wireUvarint(hdr)
	if err != nil {
		return err
	}
	if !validWidth(TypeNumeric, int(w)) {
		return fmt.Errorf("invalid packed element width %d", w)
	}
	out, err := env.Reserve(TypeNumeric, int(w), int(nelts))
	if err != nil {
		return err
	}
	b, _ := ins[0].Bytes()
	buf, _ := out.Writable()
	if err := zlow.UnpackBits(int(w), int(bits), int(nelts), b, buf); err != nil {
		return err
	}
	return out.Commit(int(nelts))
}

func transposeEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, _ := s.Bytes()
	w := s.EltWidth()
	planes := make([][]byte, w)
	outs := make([]*Stream, w)
	for i := 0; i < w; i++ {
		out, err := env.Reserve(TypeSerial, 1, s.NumElts())
		if err != nil {
			return err
		}
		outs[i] = out
		planes[i], _ = out.Writable()
	}
	zlow.TransposeSplit(w, b, planes)
	for _, out := range outs {
		if err := out.Commit(s.NumElts()); err != nil {
			return err
		}
	}
	env.EmitHeader(appendStreamMeta(nil, s))
	return nil
}

func transposeDecode(env *DecodeEnv, ins []*Stream) error {
	m, _, err := parseStreamMeta(env.Header())
	if err != nil {
		return err
	}
	if len(ins) != m.width {
		return fmt.Errorf("%d byte planes for records of width %d", len(ins), m.width)
	}
	planes := make([][]byte, m.width)
	for i, s := range ins {
		b, err := s.Bytes()
		if err != nil {
			return err
		}
		if len(b) != m.nelts {
			return fmt.Errorf("plane %d is %d bytes, want %d", i, len(b), m.nelts)
		}
		planes[i] = b
	}
	out, err := env.Reserve(m.typ, m.width, m.nelts)
	if err != nil {
		return err
	}
	buf, _ := out.Writable()
	zlow.TransposeJoin(planes, buf[:m.csize])
	return out.Commit(m.nelts)
}

func tokenizeEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, _ := s.Bytes()
	w := s.EltWidth()
	alphabet, indices := zlow.TokenizeNum(w, b)
	nalpha := len(alphabet) / w
	alpha, err := env.Reserve(TypeNumeric, w, nalpha)
	if err != nil {
		return err
	}
	abuf, _ := alpha.Writable()
	copy(abuf, alphabet)
	if err := alpha.Commit(nalpha); err != nil {
		return err
	}
	iw := zlow.ByteWidth(nalpha)
	idx, err := env.Reserve(TypeNumeric, iw, len(indices))
	if err != nil {
		return err
	}
	ibuf, _ := idx.Writable()
	for i, v := range indices {
		writeIdx(iw, ibuf, i, v)
	}
	return idx.Commit(len(indices))
}

func writeIdx(width int, dst []byte, i int, v uint32) {
	switch width {
	case 1:
		dst[i] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	default:
		binary.LittleEndian.PutUint32(dst[i*4:], v)
	}
}

func readIdx(width int, src []byte, i int) uint32 {
	switch width {
	case 1:
		return uint32(src[i])
	case 2:
		return uint32(binary.LittleEndian.Uint16(src[i*2:]))
	default:
		return binary.LittleEndian.Uint32(src[i*4:])
	}
}

func tokenizeDecode(env *DecodeEnv, ins []*Stream) error {
	alpha, idx := ins[0], ins[1]
	ab, _ := alpha.Bytes()
	ib, _ := idx.Bytes()
	iw := idx.EltWidth()
	indices := make([]uint32, idx.NumElts())
	for i := range indices {
		indices[i] = readIdx(iw, ib, i)
	}
	w := alpha.EltWidth()
	out, err := env.Reserve(TypeNumeric, w, len(indices))
	if err != nil {
		return err
	}
	buf, _ := out.Writable()
	if err := zlow.DetokenizeNum(w, ab, indices, buf); err != nil {
		return err
	}
	return out.Commit(len(indices))
}

func tokenizeStrEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, _ := s.Bytes()
	lens, err := s.Lens()
	if err != nil {
		return err
	}
	alphaContent, alphaLens, indices := zlow.TokenizeStr(b, lens)
	alpha, err := env.Reserve(TypeString, 1, len(alphaContent))
	if err != nil {
		return err
	}
	abuf, _ := alpha.Writable()
	copy(abuf, alphaContent)
	if err := alpha.SetLens(alphaLens); err != nil {
		return err
	}
	if err := alpha.Commit(len(alphaLens)); err != nil {
		return err
	}
	iw := zlow.ByteWidth(len(alphaLens))
	idx, err := env.Reserve(TypeNumeric, iw, len(indices))
	if err != nil {
		return err
	}
	ibuf, _ := idx.Writable()
	for i, v := range indices {
		writeIdx(iw, ibuf, i, v)
	}
	return idx.Commit(len(indices))
}

func tokenizeStrDecode(env *DecodeEnv, ins []*Stream) error {
	alpha, idx := ins[0], ins[1]
	ab, _ := alpha.Bytes()
	alphaLens, err := alpha.Lens()
	if err != nil {
		return err
	}
	ib, _ := idx.Bytes()
	iw := idx.EltWidth()
	indices := make([]uint32, idx.NumElts())
	total := 0
	for i := range indices {
		v := readIdx(iw, ib, i)
		if int(v) >= len(alphaLens) {
			return fmt.Errorf("token index %d out of range (alphabet has %d entries)", v, len(alphaLens))
		}
		indices[i] = v
		total += int(alphaLens[v])
	}
	out, err := env.Reserve(TypeString, 1, total)
	if err != nil {
		return err
	}
	lens, err := out.ReserveLens(len(indices))
	if err != nil {
		return err
	}
	buf, _ := out.Writable()
	if _, err := zlow.DetokenizeStr(ab, alphaLens, indices, buf, lens); err != nil {
		return err
	}
	return out.Commit(len(indices))
}

// varintMax is the worst-case LEB128 size for one element.
func varintMax(width int) int {
	switch width {
	case 1:
		return 2
	case 2:
		return 3
	case 4:
		return 5
	default:
		return 10
	}
}

func varintEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	b, _ := s.Bytes()
	w := s.EltWidth()
	enc := zlow.VarintEncode(w, b, nil)
	out, err := env.Reserve(TypeSerial, 1, s.NumElts()*varintMax(w))
	if err != nil {
		return err
	}
	buf, _ := out.Writable()
	copy(buf, enc)
	var hdr []byte
	hdr = binary.AppendUvarint(hdr, uint64(w))
	hdr = binary.AppendUvarint(hdr, uint64(s.NumElts()))
	env.EmitHeader(hdr)
	return out.Commit(len(enc))
}

func varintDecode(env *DecodeEnv, ins []*Stream) error {
	hdr := env.Header()
	w, hdr, err := wireUvarint(hdr)
	if err != nil {
		return err
	}
	nelts, _, err := wireUvarint(hdr)
	if err != nil {
		return err
	}
	if !validWidth(TypeNumeric, int(w)) {
		return fmt.Errorf("invalid varint element width %d", w)
	}
	out, err := env.Reserve(TypeNumeric, int(w), int(nelts))
	if err != nil {
		return err
	}
	b, _ := ins[0].Bytes()
	buf, _ := out.Writable()
	if err := zlow.VarintDecode(int(w), int(nelts), b, buf); err != nil {
		return err
	}
	return out.Commit(int(nelts))
}

func floatEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	w := s.EltWidth()
	if w != 4 && w != 8 {
		return errf(KindNodeInvalidInput, "float-deconstruct",
			"element width %d; floats are 4 or 8 bytes", w)
	}
	b, _ := s.Bytes()
	expo, err := env.Reserve(TypeNumeric, 2, s.NumElts())
	if err != nil {
		return err
	}
	fw := zlow.FloatFracWidth(w)
	frac, err := env.Reserve(TypeStruct, fw, s.NumElts())
	if err != nil {
		return err
	}
	ebuf, _ := expo.Writable()
	fbuf, _ := frac.Writable()
	zlow.FloatDeconstruct(w, b, ebuf, fbuf)
	if err := expo.Commit(s.NumElts()); err != nil {
		return err
	}
	return frac.Commit(s.NumElts())
}

func floatDecode(env *DecodeEnv, ins []*Stream) error {
	expo, frac := ins[0], ins[1]
	w := 4
	if frac.EltWidth() == 7 {
		w = 8
	} else if frac.EltWidth() != 3 {
		return fmt.Errorf("mantissa plane width %d; want 3 or 7", frac.EltWidth())
	}
	if expo.NumElts() != frac.NumElts() {
		return fmt.Errorf("%d exponents for %d mantissas", expo.NumElts(), frac.NumElts())
	}
	out, err := env.Reserve(TypeNumeric, w, frac.NumElts())
	if err != nil {
		return err
	}
	eb, _ := expo.Bytes()
	fb, _ := frac.Bytes()
	buf, _ := out.Writable()
	zlow.FloatReconstruct(w, eb, fb, buf)
	return out.Commit(frac.NumElts())
}

func prefixEncode(env *EncodeEnv, ins []*Stream) error {
	s := ins[0]
	lens, err := s.Lens()
	if err != nil {
		return err
	}
	ls, err := env.Reserve(TypeNumeric, 4, len(lens))
	if err != nil {
		return err
	}
	lbuf, _ := ls.Writable()
	for i, n := range lens {
		binary.LittleEndian.PutUint32(lbuf[i*4:], n)
	}
	if err := ls.Commit(len(lens)); err != nil {
		return err
	}
	content, err := env.Reserve(TypeSerial, 1, s.ContentSize())
	if err != nil {
		return err
	}
	b, _ := s.Bytes()
	cbuf, _ := content.Writable()
	copy(cbuf, b)
	return content.Commit(s.ContentSize())
}

func prefixDecode(env *DecodeEnv, ins []*Stream) error {
	ls, content := ins[0], ins[1]
	if ls.EltWidth() != 4 {
		return fmt.Errorf("length stream width %d; want 4", ls.EltWidth())
	}
	lb, _ := ls.Bytes()
	cb, _ := content.Bytes()
	lens := make([]uint32, ls.NumElts())
	total := 0
	for i := range lens {
		lens[i] = binary.LittleEndian.Uint32(lb[i*4:])
		total += int(lens[i])
	}
	if total != len(cb) {
		return fmt.Errorf("lengths sum to %d, content is %d bytes", total, len(cb))
	}
	out, err := env.Reserve(TypeString, 1, total)
	if err != nil {
		return err
	}
	if err := out.SetLens(lens); err != nil {
		return err
	}
	buf, _ := out.Writable()
	copy(buf, cb)
	return out.Commit(len(lens))
}

// standard roster

var fixedWidthMask = MaskOf(TypeSerial, TypeStruct, TypeNumeric)

func stdCodecs() []*CodecDesc {
	return []*CodecDesc{
		{
			ID: CodecStore, Name: "store", Terminal: true,
			Inputs: []TypeMask{AnyType}, VariadicInput: true,
			Encode: func(env *EncodeEnv, ins []*Stream) error {
				return blockEncode(env, ins, nil)
			},
		},
		{
			ID: CodecCompressGeneric, Name: "compress-generic", Terminal: true,
			Inputs: []TypeMask{AnyType}, VariadicInput: true,
			Encode: func(env *EncodeEnv, ins []*Stream) error {
				return blockEncode(env, ins, blockLevel(env, "zstd"))
			},
		},
		{
			ID: CodecCompressFast, Name: "compress-fast", Terminal: true,
			Inputs: []TypeMask{AnyType}, VariadicInput: true,
			Encode: func(env *EncodeEnv, ins []*Stream) error {
				return blockEncode(env, ins, compr.Compression("s2"))
			},
		},
		{
			ID: CodecFieldLZ, Name: "field-lz", Terminal: true,
			Inputs: []TypeMask{AnyType}, VariadicInput: true,
			Encode: func(env *EncodeEnv, ins []*Stream) error {
				return blockEncode(env, ins, compr.Compression("lz4"))
			},
		},
		{
			ID: CodecConstant, Name: "constant", Terminal: true,
			Inputs: []TypeMask{fixedWidthMask},
			Encode: constantEncode,
		},
		{
			ID: CodecEntropyFSE, Name: "entropy-fse", Terminal: true,
			Inputs: []TypeMask{fixedWidthMask},
			Encode: fseEncode,
		},
		{
			ID: CodecEntropyHuffman, Name: "entropy-huffman", Terminal: true,
			Inputs: []TypeMask{fixedWidthMask},
			Encode: huffEncode,
		},
		{
			ID: CodecDelta, Name: "delta",
			Inputs:     []TypeMask{TypeNumeric.Mask()},
			Singletons: []Type{TypeNumeric},
			Encode:     deltaEncode,
		},
		{
			ID: CodecZigzag, Name: "zigzag",
			Inputs:     []TypeMask{TypeNumeric.Mask()},
			Singletons: []Type{TypeNumeric},
			Encode:     zigzagEncode,
		},
		{
			ID: CodecBitpack, Name: "bitpack",
			Inputs:     []TypeMask{TypeNumeric.Mask()},
			Singletons: []Type{TypeSerial},
			Encode:     bitpackEncode,
		},
		{
			ID: CodecTransposeSplit, Name: "transpose-split",
			Inputs:   []TypeMask{MaskOf(TypeNumeric, TypeStruct)},
			Variable: TypeSerial,
			Encode:   transposeEncode,
		},
		{
			ID: CodecTokenize, Name: "tokenize",
			Inputs:     []TypeMask{TypeNumeric.Mask()},
			Singletons: []Type{TypeNumeric, TypeNumeric},
			Encode:     tokenizeEncode,
		},
		{
			ID: CodecTokenizeStr, Name: "tokenize-string",
			Inputs:     []TypeMask{TypeString.Mask()},
			Singletons: []Type{TypeString, TypeNumeric},
			Encode:     tokenizeStrEncode,
		},
		{
			ID: CodecVarint, Name: "varint",
			Inputs:     []TypeMask{TypeNumeric.Mask()},
			Singletons: []Type{TypeSerial},
			Encode:     varintEncode,
		},
		{
			ID: CodecFloatDeconstruct, Name: "float-deconstruct",
			Inputs:     []TypeMask{TypeNumeric.Mask()},
			Singletons: []Type{TypeNumeric, TypeStruct},
			Encode:     floatEncode,
		},
		{
			ID: CodecPrefix, Name: "prefix",
			Inputs:     []TypeMask{TypeString.Mask()},
			Singletons: []Type{TypeNumeric, TypeSerial},
			Encode:     prefixEncode,
		},
	}
}

func registerStandard(c *Compressor) {
	for _, d := range stdCodecs() {
		nid, err := c.registerCodec(d)
		if err != nil {
			panic(err)
		}
		if d.Terminal {
			if _, err := c.NewStaticGraph(d.Name, nid); err != nil {
				panic(err)
			}
		}
	}
}

func registerStandardDecoders(dc *DCtx) {
	std := []struct {
		id     CodecID
		name   string
		decode DecodeFunc
	}{
		{CodecStore, "store", func(env *DecodeEnv, ins []*Stream) error {
			return blockDecode(env, ins, nil)
		}},
		{CodecCompressGeneric, "compress-generic", func(env *DecodeEnv, ins []*Stream) error {
			return blockDecode(env, ins, compr.Decompression("zstd"))
		}},
		{CodecCompressFast, "compress-fast", func(env *DecodeEnv, ins []*Stream) error {
			return blockDecode(env, ins, compr.Decompression("s2"))
		}},
		{CodecFieldLZ, "field-lz", func(env *DecodeEnv, ins []*Stream) error {
			return blockDecode(env, ins, compr.Decompression("lz4"))
		}},
		{CodecConstant, "constant", constantDecode},
		{CodecEntropyFSE, "entropy-fse", fseDecode},
		{CodecEntropyHuffman, "entropy-huffman", huffDecode},
		{CodecDelta, "delta", deltaDecode},
		{CodecZigzag, "zigzag", zigzagDecode},
		{CodecBitpack, "bitpack", bitpackDecode},
		{CodecTransposeSplit, "transpose-split", transposeDecode},
		{CodecTokenize, "tokenize", tokenizeDecode},
		{CodecTokenizeStr, "tokenize-string", tokenizeStrDecode},
		{CodecVarint, "varint", varintDecode},
		{CodecFloatDeconstruct, "float-deconstruct", floatDecode},
		{CodecPrefix, "prefix", prefixDecode},
	}
	for _, d := range std {
		dc.decoders[d.id] = &DecoderDesc{ID: d.id, Name: d.name, Decode: d.decode}
	}
}
