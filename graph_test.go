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
	"errors"
	"fmt"
	"testing"
)

func TestGraphTypeMismatch(t *testing.T) {
	c := NewCompressor()
	store := mustGraphName(t, c, "store")
	// delta accepts numeric only
	deltaG, err := c.NewStaticGraph("", mustNodeName(t, c, "delta"), store)
	if err != nil {
		t.Fatal(err)
	}
	// bitpack emits serial; attaching the delta graph must fail
	if _, err := c.NewStaticGraph("", mustNodeName(t, c, "bitpack"), deltaG); !IsKind(err, KindGraphTypeMismatch) {
		t.Errorf("serial into numeric-only successor: %v", err)
	}
	// wrong successor count
	if _, err := c.NewStaticGraph("", mustNodeName(t, c, "tokenize"), store); !IsKind(err, KindGraphTypeMismatch) {
		t.Errorf("one successor for a two-output node: %v", err)
	}
}

func TestNodeInvalidInputAtRuntime(t *testing.T) {
	c := NewCompressor()
	store := mustGraphName(t, c, "store")
	g, err := c.NewStaticGraph("", mustNodeName(t, c, "delta"), store)
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	// a serial input reaching a numeric-only head fails at
	// runtime with node_invalid_input
	_, err = NewCCtx(c).CompressStreams(nil, RefSerial([]byte("abc")))
	if !IsKind(err, KindNodeInvalidInput) {
		t.Errorf("serial into delta: %v", err)
	}
}

func TestAnchorNames(t *testing.T) {
	c := NewCompressor()
	delta := mustNodeName(t, c, "delta")
	if _, err := c.CloneNode(delta, "!mine", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CloneNode(delta, "!mine", nil); !IsKind(err, KindLogicError) {
		t.Errorf("duplicate anchor accepted: %v", err)
	}
	// non-anchor duplicates get a disambiguation suffix
	id1, err := c.CloneNode(delta, "dup", nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := c.CloneNode(delta, "dup", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.NodeName(id1) != "dup" || c.NodeName(id2) != "dup#2" {
		t.Errorf("names %q and %q", c.NodeName(id1), c.NodeName(id2))
	}
}

func TestCloneSharesCodec(t *testing.T) {
	c := NewCompressor()
	base := mustNodeName(t, c, "compress-generic")
	params := (&LocalParams{}).SetInt(LevelParamKey, 3)
	clone, err := c.CloneNode(base, "generic-better", params)
	if err != nil {
		t.Fatal(err)
	}
	if c.NodeCodec(clone) != c.NodeCodec(base) {
		t.Error("clone does not share the base codec ID")
	}
	// the clone is usable as a graph head and its parameters
	// reach the codec
	g, err := c.NewStaticGraph("", clone)
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	in := RefSerial(bytes.Repeat([]byte("levels "), 300))
	roundtrip(t, c, in)
}

func TestCustomCodecRoundtrip(t *testing.T) {
	const xorID = CodecID(0x8001)
	const key = 0x5a
	enc := &CodecDesc{
		ID: xorID, Name: "xor-mask",
		Inputs:     []TypeMask{TypeSerial.Mask()},
		Singletons: []Type{TypeSerial},
		Encode: func(env *EncodeEnv, ins []*Stream) error {
			b, _ := ins[0].Bytes()
			out, err := env.Reserve(TypeSerial, 1, len(b))
			if err != nil {
				return err
			}
			buf, _ := out.Writable()
			for i := range b {
				buf[i] = b[i] ^ key
			}
			return out.Commit(len(b))
		},
	}
	c := NewCompressor()
	nid, err := c.RegisterCustomCodec(enc)
	if err != nil {
		t.Fatal(err)
	}
	g, err := c.NewStaticGraph("", nid, mustGraphName(t, c, "store"))
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	in := RefSerial([]byte("custom codec payload"))
	frame, err := NewCCtx(c).CompressStreams(nil, in)
	if err != nil {
		t.Fatal(err)
	}

	// without the decoder registered, decompression must fail
	// with unknown_codec
	if _, err := NewDCtx().Decompress(frame); !IsKind(err, KindUnknownCodec) {
		t.Fatalf("missing decoder: %v", err)
	}

	dc := NewDCtx()
	err = dc.RegisterDecoder(&DecoderDesc{
		ID: xorID, Name: "xor-mask",
		Decode: func(env *DecodeEnv, ins []*Stream) error {
			b, _ := ins[0].Bytes()
			out, err := env.Reserve(TypeSerial, 1, len(b))
			if err != nil {
				return err
			}
			buf, _ := out.Writable()
			for i := range b {
				buf[i] = b[i] ^ key
			}
			return out.Commit(len(b))
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	outs, err := dc.Decompress(frame)
	if err != nil {
		t.Fatal(err)
	}
	checkStreamEqual(t, in, outs[0])
}

func TestCustomCodecIDRange(t *testing.T) {
	c := NewCompressor()
	_, err := c.RegisterCustomCodec(&CodecDesc{
		ID: CodecDelta, Name: "impostor",
		Inputs:     []TypeMask{TypeSerial.Mask()},
		Singletons: []Type{TypeSerial},
		Encode:     func(env *EncodeEnv, ins []*Stream) error { return nil },
	})
	if !IsKind(err, KindLogicError) {
		t.Errorf("custom codec in the standard ID range: %v", err)
	}
}

func TestTransformExecutionFailure(t *testing.T) {
	boom := errors.New("boom")
	c := NewCompressor()
	nid, err := c.RegisterCustomCodec(&CodecDesc{
		ID: 0x8002, Name: "failing",
		Inputs:     []TypeMask{TypeSerial.Mask()},
		Singletons: []Type{TypeSerial},
		Encode: func(env *EncodeEnv, ins []*Stream) error {
			return boom
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	g, err := c.NewStaticGraph("", nid, mustGraphName(t, c, "store"))
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	in := RefSerial([]byte("doomed"))
	_, err = NewCCtx(c).CompressStreams(nil, in)
	if !IsKind(err, KindTransformExecution) {
		t.Fatalf("custom encoder failure: %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("cause not preserved through the error chain")
	}

	// permissive compression downgrades the failure to a store
	// fallback for the subtree
	cc := NewCCtx(c)
	if err := cc.SetParam(ParamPermissive, 1); err != nil {
		t.Fatal(err)
	}
	frame, err := cc.CompressStreams(nil, in)
	if err != nil {
		t.Fatalf("permissive compression: %v", err)
	}
	outs, err := NewDCtx().Decompress(frame)
	if err != nil {
		t.Fatal(err)
	}
	checkStreamEqual(t, in, outs[0])
}

func TestCodecArityViolation(t *testing.T) {
	c := NewCompressor()
	nid, err := c.RegisterCustomCodec(&CodecDesc{
		ID: 0x8003, Name: "over-producer",
		Inputs:     []TypeMask{TypeSerial.Mask()},
		Singletons: []Type{TypeSerial},
		Encode: func(env *EncodeEnv, ins []*Stream) error {
			for i := 0; i < 2; i++ {
				out, err := env.Reserve(TypeSerial, 1, 1)
				if err != nil {
					return err
				}
				if err := out.Commit(0); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	g, err := c.NewStaticGraph("", nid, mustGraphName(t, c, "store"))
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	_, err = NewCCtx(c).CompressStreams(nil, RefSerial([]byte("x")))
	if !IsKind(err, KindCodecExecution) {
		t.Fatalf("over-producing codec: %v", err)
	}
}

func TestFunctionGraph(t *testing.T) {
	c := NewCompressor()
	store := mustGraphName(t, c, "store")
	generic := mustGraphName(t, c, "compress-generic")
	delta := mustNodeName(t, c, "delta")
	fn := func(env *GraphEnv, edges []*Edge) error {
		// first input goes through delta, second straight to
		// generic compression
		outs, err := env.Apply(delta, edges[0])
		if err != nil {
			return err
		}
		if err := outs[0].SetDestination(store); err != nil {
			return err
		}
		return edges[1].SetDestination(generic)
	}
	g, err := c.NewFunctionGraph("route", []TypeMask{TypeNumeric.Mask(), TypeNumeric.Mask()}, fn, &FunctionGraphOpts{
		AllowedNodes:  []NodeID{delta},
		AllowedGraphs: []GraphID{store, generic},
	})
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	a := NumericOf([]uint32{10, 20, 30, 40})
	b := NumericOf([]uint64{5, 5, 5})
	roundtrip(t, c, a, b)
}

func TestFunctionGraphUnroutedEdge(t *testing.T) {
	c := NewCompressor()
	fn := func(env *GraphEnv, edges []*Edge) error {
		return nil // leaves the edge dangling
	}
	g, err := c.NewFunctionGraph("", []TypeMask{AnyType}, fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	_, err = NewCCtx(c).CompressStreams(nil, RefSerial([]byte("x")))
	if !IsKind(err, KindLogicError) {
		t.Errorf("unrouted edge: %v", err)
	}
}

func TestFunctionGraphAllowedSets(t *testing.T) {
	c := NewCompressor()
	store := mustGraphName(t, c, "store")
	generic := mustGraphName(t, c, "compress-generic")
	fn := func(env *GraphEnv, edges []*Edge) error {
		return edges[0].SetDestination(generic)
	}
	g, err := c.NewFunctionGraph("", []TypeMask{AnyType}, fn, &FunctionGraphOpts{
		AllowedGraphs: []GraphID{store}, // generic is not allowed
	})
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	_, err = NewCCtx(c).CompressStreams(nil, RefSerial([]byte("x")))
	if !IsKind(err, KindLogicError) {
		t.Errorf("destination outside the allowed set: %v", err)
	}
}

func TestMinStreamSize(t *testing.T) {
	// below the threshold the engine forces the store path, so
	// the frame holds the raw bytes
	in := RefSerial(bytes.Repeat([]byte("tiny"), 8))
	c := NewCompressor() // starts at compress-generic
	cc := NewCCtx(c)
	if err := cc.SetParam(ParamMinStreamSize, 1<<20); err != nil {
		t.Fatal(err)
	}
	frame, err := cc.CompressStreams(nil, in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(frame, bytes.Repeat([]byte("tiny"), 8)) {
		t.Error("expected raw stored bytes in the frame")
	}
	outs, err := NewDCtx().Decompress(frame)
	if err != nil {
		t.Fatal(err)
	}
	checkStreamEqual(t, in, outs[0])
}

func TestStickyParams(t *testing.T) {
	c := NewCompressor()
	cc := NewCCtx(c)
	if err := cc.SetParam(ParamContentChecksum, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := cc.CompressStreams(nil, RefSerial([]byte("abc"))); err != nil {
		t.Fatal(err)
	}
	// without sticky params the toggle resets after the call
	if v, _ := cc.Param(ParamContentChecksum); v != 0 {
		t.Error("parameter survived a non-sticky call")
	}

	cc = NewCCtx(c)
	cc.SetParam(ParamStickyParams, 1)
	cc.SetParam(ParamContentChecksum, 1)
	if _, err := cc.CompressStreams(nil, RefSerial([]byte("abc"))); err != nil {
		t.Fatal(err)
	}
	if v, _ := cc.Param(ParamContentChecksum); v != 1 {
		t.Error("sticky parameter did not survive the call")
	}
}

func TestSelectorErrorPropagation(t *testing.T) {
	c := NewCompressor()
	store := mustGraphName(t, c, "store")
	g, err := c.NewSelectorGraph("", AnyType, func(env *SelectorEnv, in *Stream, cand []GraphID) (GraphID, error) {
		return 0, fmt.Errorf("cannot decide")
	}, store)
	if err != nil {
		t.Fatal(err)
	}
	c.SetStartGraph(g)
	_, err = NewCCtx(c).CompressStreams(nil, RefSerial([]byte("x")))
	if !IsKind(err, KindTransformExecution) {
		t.Errorf("selector error: %v", err)
	}
}
