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

package compr

import (
	"bytes"
	"math/rand"
	"testing"
)

func testRoundtrip(t *testing.T, name string, src []byte) {
	t.Helper()
	comp := Compression(name)
	if comp == nil {
		t.Fatalf("no compressor %q", name)
	}
	dec := Decompression(name)
	if dec == nil {
		t.Fatalf("no decompressor %q", name)
	}
	cmp := comp.Compress(src, nil)
	dst := make([]byte, len(src))
	if err := dec.Decompress(cmp, dst); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if !bytes.Equal(src, dst) {
		t.Fatalf("%s: round-trip mismatch", name)
	}
	// appending to a non-empty destination must preserve the prefix
	pre := []byte("prefix")
	cmp2 := comp.Compress(src, append([]byte(nil), pre...))
	if !bytes.Equal(cmp2[:len(pre)], pre) {
		t.Fatalf("%s: prefix clobbered", name)
	}
	if err := dec.Decompress(cmp2[len(pre):], dst); err != nil {
		t.Fatalf("%s after prefix: %v", name, err)
	}
	if !bytes.Equal(src, dst) {
		t.Fatalf("%s after prefix: round-trip mismatch", name)
	}
}

func TestBlockRoundtrips(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	compressible := bytes.Repeat([]byte("the quick brown fox "), 500)
	random := make([]byte, 10000)
	r.Read(random)
	for _, name := range []string{"zstd", "zstd-better", "s2", "lz4"} {
		t.Run(name, func(t *testing.T) {
			testRoundtrip(t, name, compressible)
			testRoundtrip(t, name, random)
			testRoundtrip(t, name, []byte{})
			testRoundtrip(t, name, []byte{42})
		})
	}
}

func TestCompressionRatio(t *testing.T) {
	src := bytes.Repeat([]byte("abcdefgh"), 4096)
	for _, name := range []string{"zstd", "zstd-better", "s2", "lz4"} {
		cmp := Compression(name).Compress(src, nil)
		if len(cmp) >= len(src) {
			t.Errorf("%s: %d bytes compressed to %d", name, len(src), len(cmp))
		}
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	src := bytes.Repeat([]byte("xyz"), 300)
	for _, name := range []string{"zstd", "s2", "lz4"} {
		cmp := Compression(name).Compress(src, nil)
		short := make([]byte, len(src)-1)
		if err := Decompression(name).Decompress(cmp, short); err == nil {
			t.Errorf("%s: expected error for short destination", name)
		}
	}
}

func TestUnknownAlgorithm(t *testing.T) {
	if Compression("nope") != nil {
		t.Error("Compression should return nil for unknown names")
	}
	if Decompression("nope") != nil {
		t.Error("Decompression should return nil for unknown names")
	}
}
