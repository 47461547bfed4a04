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

// buildDescribed sets up a compressor with a cloned node, a
// static graph, and a selector, returning it with the selector
// callback used.
func buildDescribed(t *testing.T) (*Compressor, SelectorFunc) {
	t.Helper()
	c := NewCompressor()
	base := mustNodeName(t, c, "compress-generic")
	clone, err := c.CloneNode(base, "!generic-max", (&LocalParams{}).SetInt(LevelParamKey, 9))
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := c.NewStaticGraph("!generic-max", clone)
	if err != nil {
		t.Fatal(err)
	}
	dl, err := c.NewStaticGraph("!delta-then-max", mustNodeName(t, c, "delta"), leaf)
	if err != nil {
		t.Fatal(err)
	}
	sel := func(env *SelectorEnv, in *Stream, cand []GraphID) (GraphID, error) {
		if in.NumElts() > 16 {
			return cand[0], nil
		}
		return cand[1], nil
	}
	store := mustGraphName(t, c, "store")
	g, err := c.NewSelectorGraph("!pick", TypeNumeric.Mask(), sel, dl, store)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetStartGraph(g); err != nil {
		t.Fatal(err)
	}
	return c, sel
}

func TestDescribeRoundtrip(t *testing.T) {
	c, sel := buildDescribed(t)
	desc, err := c.Describe()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(desc, []byte("!pick")) {
		t.Errorf("description does not mention the selector:\n%s", desc)
	}

	// without the selector provider, rebuilding fails
	if _, err := ParseDescription(desc, nil); !IsKind(err, KindLogicError) {
		t.Fatalf("missing provider: %v", err)
	}

	c2, err := ParseDescription(desc, &Providers{
		Selectors: map[string]SelectorFunc{"!pick": sel},
	})
	if err != nil {
		t.Fatal(err)
	}

	// both compressors must produce identical frames
	vals := make([]uint32, 200)
	for i := range vals {
		vals[i] = uint32(i * 7)
	}
	in := NumericOf(vals)
	f1, err := NewCCtx(c).CompressStreams(nil, in)
	if err != nil {
		t.Fatal(err)
	}
	f2, err := NewCCtx(c2).CompressStreams(nil, in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f1, f2) {
		t.Error("rebuilt compressor produces different frames")
	}
	outs, err := NewDCtx().Decompress(f2)
	if err != nil {
		t.Fatal(err)
	}
	checkStreamEqual(t, in, outs[0])
}

func TestDescribeDeclaresCustomCodecs(t *testing.T) {
	const myID = CodecID(0x8020)
	desc := &CodecDesc{
		ID: myID, Name: "notch", Terminal: true,
		Inputs: []TypeMask{TypeSerial.Mask()},
		Encode: func(env *EncodeEnv, ins []*Stream) error {
			b, _ := ins[0].Bytes()
			env.EmitHeader(appendStreamMeta(nil, ins[0]))
			return env.EmitBlob(b)
		},
	}
	c := NewCompressor()
	if _, err := c.RegisterCustomCodec(desc); err != nil {
		t.Fatal(err)
	}
	g, ok := c.GraphByName("notch")
	if !ok {
		t.Fatal("custom terminal did not get a leaf graph")
	}
	c.SetStartGraph(g)
	out, err := c.Describe()
	if err != nil {
		t.Fatal(err)
	}
	// the requirement block must name the codec dependency
	if !bytes.Contains(out, []byte("codecs")) {
		t.Errorf("description does not declare codec requirements:\n%s", out)
	}
	if _, err := ParseDescription(out, nil); !IsKind(err, KindLogicError) {
		t.Fatalf("missing codec provider: %v", err)
	}
	c2, err := ParseDescription(out, &Providers{
		Codecs: map[CodecID]*CodecDesc{myID: desc},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c2.StartGraph() == 0 {
		t.Error("start graph not restored")
	}
}
