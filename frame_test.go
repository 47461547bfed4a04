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

func TestFrameIntrospection(t *testing.T) {
	ins := []*Stream{
		NumericOf([]uint32{1, 2, 3}),
		RefSerial([]byte("hello")),
	}
	frame, err := NewCCtx(NewCompressor()).CompressStreams(nil, ins...)
	if err != nil {
		t.Fatal(err)
	}
	if !IsMagic(frame) {
		t.Fatal("frame does not start with the magic number")
	}
	fi, err := ReadFrameInfo(frame)
	if err != nil {
		t.Fatal(err)
	}
	if fi.FormatVersion != DefaultFormatVersion {
		t.Errorf("version %d", fi.FormatVersion)
	}
	want := []OutputInfo{
		{Type: TypeNumeric, EltWidth: 4, NumElts: 3, ContentSize: 12},
		{Type: TypeSerial, EltWidth: 1, NumElts: 5, ContentSize: 5},
	}
	if len(fi.Outputs) != len(want) {
		t.Fatalf("%d outputs", len(fi.Outputs))
	}
	for i := range want {
		if fi.Outputs[i] != want[i] {
			t.Errorf("output %d: %+v, want %+v", i, fi.Outputs[i], want[i])
		}
	}
}

func TestFrameBadMagic(t *testing.T) {
	if _, err := ReadFrameInfo([]byte("not a frame at all")); !IsKind(err, KindCorruption) {
		t.Errorf("bad magic: %v", err)
	}
	if _, err := ReadFrameInfo(nil); !IsKind(err, KindCorruption) {
		t.Errorf("empty input: %v", err)
	}
	if _, err := NewDCtx().Decompress([]byte("junk")); !IsKind(err, KindCorruption) {
		t.Errorf("decompressing junk: %v", err)
	}
}

func TestFrameUnsupportedVersion(t *testing.T) {
	frame, err := Compress(nil, []byte("versioned"))
	if err != nil {
		t.Fatal(err)
	}
	// the version varint sits right after the 4-byte magic
	bad := append([]byte(nil), frame...)
	bad[4] = MaxFormatVersion + 13
	if _, err := ReadFrameInfo(bad); !IsKind(err, KindUnsupportedVersion) {
		t.Errorf("future version: %v", err)
	}
	if _, err := NewDCtx().Decompress(bad); !IsKind(err, KindUnsupportedVersion) {
		t.Errorf("future version: %v", err)
	}
}

func TestFrameTruncation(t *testing.T) {
	frame, err := Compress(nil, bytes.Repeat([]byte("truncate me "), 50))
	if err != nil {
		t.Fatal(err)
	}
	dc := NewDCtx()
	for _, n := range []int{5, 6, 8, len(frame) / 2, len(frame) - 1} {
		if _, err := dc.Decompress(frame[:n]); err == nil {
			t.Errorf("frame truncated to %d bytes decompressed", n)
		}
	}
	// trailing garbage is also rejected
	if _, err := dc.Decompress(append(append([]byte(nil), frame...), 0)); !IsKind(err, KindCorruption) {
		t.Errorf("trailing garbage: %v", err)
	}
}

func TestCompressedChecksum(t *testing.T) {
	cc := NewCCtx(NewCompressor())
	if err := cc.SetParam(ParamCompressedChecksum, 1); err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("checksummed "), 64)
	frame, err := cc.CompressStreams(nil, RefSerial(payload))
	if err != nil {
		t.Fatal(err)
	}
	dc := NewDCtx()
	if _, err := dc.Decompress(frame); err != nil {
		t.Fatal(err)
	}
	// flipping any single byte of the body must be rejected;
	// bytes before the flags byte can also surface as bad magic
	// or an unsupported version
	for off := 0; off < len(frame)-4; off++ {
		bad := append([]byte(nil), frame...)
		bad[off] ^= 0x10
		_, err := dc.Decompress(bad)
		if err == nil {
			t.Fatalf("flip at offset %d went unnoticed", off)
		}
		if off >= 5 && !IsKind(err, KindCorruption) {
			t.Fatalf("flip at offset %d: %v", off, err)
		}
	}
}

func TestContentChecksum(t *testing.T) {
	const copyID = CodecID(0x8010)
	mkEncoder := func() *CodecDesc {
		return &CodecDesc{
			ID: copyID, Name: "copy",
			Inputs:     []TypeMask{TypeSerial.Mask()},
			Singletons: []Type{TypeSerial},
			Encode: func(env *EncodeEnv, ins []*Stream) error {
				b, _ := ins[0].Bytes()
				out, err := env.Reserve(TypeSerial, 1, len(b))
				if err != nil {
					return err
				}
				buf, _ := out.Writable()
				copy(buf, b)
				return out.Commit(len(b))
			},
		}
	}
	mkDecoder := func(flip int) *DecoderDesc {
		return &DecoderDesc{
			ID: copyID, Name: "copy",
			Decode: func(env *DecodeEnv, ins []*Stream) error {
				b, _ := ins[0].Bytes()
				out, err := env.Reserve(TypeSerial, 1, len(b))
				if err != nil {
					return err
				}
				buf, _ := out.Writable()
				copy(buf, b)
				if flip >= 0 {
					buf[flip] ^= 1
				}
				return out.Commit(len(b))
			},
		}
	}
	payload := bytes.Repeat([]byte("guard the content "), 40)
	c := NewCompressor()
	nid, err := c.RegisterCustomCodec(mkEncoder())
	if err != nil {
		t.Fatal(err)
	}
	g, err := c.NewStaticGraph("", nid, mustGraphName(t, c, "store"))
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	cc := NewCCtx(c)
	if err := cc.SetParam(ParamContentChecksum, 1); err != nil {
		t.Fatal(err)
	}
	frame, err := cc.CompressStreams(nil, RefSerial(payload))
	if err != nil {
		t.Fatal(err)
	}

	// an honest decoder passes the checksum
	dc := NewDCtx()
	if err := dc.RegisterDecoder(mkDecoder(-1)); err != nil {
		t.Fatal(err)
	}
	outs, err := dc.Decompress(frame)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := outs[0].Bytes()
	if !bytes.Equal(got, payload) {
		t.Fatal("round-trip mismatch")
	}

	// a decoder that corrupts any single output byte must be
	// caught by the content checksum
	for _, flip := range []int{0, 1, len(payload) / 2, len(payload) - 1} {
		dc := NewDCtx()
		if err := dc.RegisterDecoder(mkDecoder(flip)); err != nil {
			t.Fatal(err)
		}
		if _, err := dc.Decompress(frame); !IsKind(err, KindCorruption) {
			t.Errorf("flip at %d: %v", flip, err)
		}
	}
}

func FuzzDecompress(f *testing.F) {
	seed := func(build func() []byte) {
		f.Add(build())
	}
	seed(func() []byte {
		frame, err := Compress(nil, []byte("fuzz seed one"))
		if err != nil {
			f.Fatal(err)
		}
		return frame
	})
	seed(func() []byte {
		c := NewCompressor()
		g, ok := c.GraphByName("constant")
		if !ok {
			f.Fatal("no constant graph")
		}
		c.SetStartGraph(g)
		frame, err := NewCCtx(c).CompressStreams(nil, RefSerial(bytes.Repeat([]byte{'z'}, 500)))
		if err != nil {
			f.Fatal(err)
		}
		return frame
	})
	seed(func() []byte {
		cc := NewCCtx(NewCompressor())
		cc.SetParam(ParamCompressedChecksum, 1)
		cc.SetParam(ParamContentChecksum, 1)
		frame, err := cc.CompressStreams(nil, NumericOf([]uint16{1, 2, 3, 1, 2, 3}))
		if err != nil {
			f.Fatal(err)
		}
		return frame
	})
	dc := NewDCtx()
	f.Fuzz(func(t *testing.T, data []byte) {
		// must never panic; errors are fine
		outs, err := dc.Decompress(data)
		if err == nil {
			for _, s := range outs {
				if !s.Committed() {
					t.Fatal("uncommitted output escaped")
				}
			}
		}
	})
}
