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

// Package zdag is a graph-structured compression framework.
//
// Instead of treating input as an opaque byte stream, zdag
// models compression as a directed acyclic graph of typed
// transforms terminating in entropy/LZ backends. A Compressor
// holds the graph; a compression context walks it over a set of
// typed input streams, records the path taken, and writes a
// self-describing frame. The decompression context replays the
// recorded path in reverse; it never needs the original graph.
//
// The simplest use compresses one byte buffer through the
// default graph:
//
//	frame, err := zdag.Compress(nil, data)
//	...
//	back, err := zdag.Decompress(frame)
//
// Structured data does better with a purpose-built graph:
//
//	c := zdag.NewCompressor()
//	generic, _ := c.GraphByName("compress-generic")
//	tok, _ := c.NodeByName("tokenize")
//	g, err := c.NewStaticGraph("", tok, generic, generic)
//	...
//	c.SetStartGraph(g)
//	cc := zdag.NewCCtx(c)
//	frame, err := cc.CompressStreams(nil, zdag.NumericOf(vals))
//
// Streams are typed (serial bytes, fixed-width structs,
// little-endian integers, or variable-length strings) and either
// own their buffers or borrow caller memory. Graphs come in
// three variants: static (a node wired to successor graphs),
// selector (a callback picks one candidate at runtime, with
// trial compression available), and function (a callback routes
// edges imperatively). Custom codecs register an encoder half
// into a Compressor and a decoder half into a DCtx, keyed by a
// stable codec ID that travels in the frame.
//
// A Compressor is safe for concurrent read-only use from many
// contexts; contexts themselves are single-threaded. One
// compression or decompression call runs codecs eagerly,
// depth-first, to completion.
package zdag
