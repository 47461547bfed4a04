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

// DCtx is a decompression context: the registry of decoders
// (standard ones preregistered, custom ones added by the user)
// plus decompression parameters. A DCtx is not safe for
// concurrent use.
type DCtx struct {
	decoders map[CodecID]*DecoderDesc
	dlevel   int
}

// NewDCtx creates a decompression context with the standard
// decoder roster preregistered.
func NewDCtx() *DCtx {
	d := &DCtx{decoders: make(map[CodecID]*DecoderDesc)}
	registerStandardDecoders(d)
	return d
}

// RegisterDecoder installs a custom decoder. The ID must match
// the encoder the frames were produced with and must not collide
// with an already-registered decoder.
func (d *DCtx) RegisterDecoder(desc *DecoderDesc) error {
	if desc.ID == 0 {
		return errf(KindLogicError, "RegisterDecoder", "codec ID 0 is reserved")
	}
	if desc.Decode == nil {
		return errf(KindLogicError, "RegisterDecoder", "decoder %q has no decode function", desc.Name)
	}
	if prev, ok := d.decoders[desc.ID]; ok {
		return errf(KindLogicError, "RegisterDecoder",
			"codec ID %d already registered as %q", desc.ID, prev.Name)
	}
	dd := *desc
	dd.Custom = true
	d.decoders[desc.ID] = &dd
	return nil
}

// SetDecompressionLevel records the decompression speed/effort
// level made visible to decoders.
func (d *DCtx) SetDecompressionLevel(level int) { d.dlevel = level }

// Decompress decompresses a frame, returning one freshly
// allocated stream per original input, in the original order.
func (d *DCtx) Decompress(src []byte) ([]*Stream, error) {
	return d.decompress(src, nil)
}

// DecompressInto decompresses a frame into caller-provided
// write-only streams (see WriteRef and WriteString), one per
// original input. On error the buffers must be treated as
// invalidated.
func (d *DCtx) DecompressInto(src []byte, outs ...*Stream) error {
	if len(outs) == 0 {
		return errf(KindLogicError, "DecompressInto", "no output streams")
	}
	_, err := d.decompress(src, outs)
	return err
}

func (d *DCtx) decompress(src []byte, preout []*Stream) ([]*Stream, error) {
	pf, err := parseFrame(src)
	if err != nil {
		return nil, err
	}
	nroot := len(pf.info.Outputs)
	if preout != nil {
		if len(preout) != nroot {
			return nil, errf(KindLogicError, "DecompressInto",
				"%d output streams provided, frame has %d outputs", len(preout), nroot)
		}
		for i, s := range preout {
			oi := pf.info.Outputs[i]
			if s.Committed() || s.own == refRead {
				return nil, errf(KindLogicError, "DecompressInto", "output %d is not writable", i)
			}
			if s.Type() != oi.Type || s.EltWidth() != oi.EltWidth {
				return nil, errf(KindLogicError, "DecompressInto",
					"output %d is %s/%d, frame holds %s/%d", i, s.Type(), s.EltWidth(), oi.Type, oi.EltWidth)
			}
			if len(s.buf) < oi.ContentSize {
				return nil, errf(KindAllocation, "DecompressInto",
					"output %d has %d bytes of capacity, frame holds %d", i, len(s.buf), oi.ContentSize)
			}
			if oi.Type == TypeString && cap(s.lens) < oi.NumElts {
				return nil, errf(KindAllocation, "DecompressInto",
					"output %d has room for %d lengths, frame holds %d", i, cap(s.lens), oi.NumElts)
			}
		}
	}
	ar := newArena()
	defer ar.release()

	// compute each trace entry's output-stream and blob ranges
	// with a forward scan; outputs are numbered in creation
	// order after the root streams
	outBase := make([]int, len(pf.entries))
	blobBase := make([]int, len(pf.entries))
	next, nextBlob := nroot, 0
	for i := range pf.entries {
		outBase[i] = next
		next += pf.entries[i].nout
		blobBase[i] = nextBlob
		nextBlob += pf.entries[i].nblobs
	}

	// replay the trace in reverse creation order: every entry's
	// encode-outputs were reconstructed by the (later) entries
	// that consumed them, so its decoder can now rebuild its
	// encode-inputs
	streams := make([]*Stream, pf.nstreams)
	for i := len(pf.entries) - 1; i >= 0; i-- {
		e := &pf.entries[i]
		dec, ok := d.decoders[e.codec]
		if !ok {
			return nil, errf(KindUnknownCodec, "decompress", "codec ID %d not registered", e.codec)
		}
		var ins []*Stream
		if e.terminal {
			ins = make([]*Stream, e.nblobs)
			for j := range ins {
				ins[j] = RefSerial(pf.blobs[blobBase[i]+j])
			}
		} else {
			ins = make([]*Stream, e.nout)
			for j := range ins {
				s := streams[outBase[i]+j]
				if s == nil {
					return nil, errf(KindCorruption, "decompress",
						"trace entry %d consumes stream %d, which was never reconstructed", i, outBase[i]+j)
				}
				ins[j] = s
			}
		}
		var pre []*Stream
		if preout != nil {
			pre = make([]*Stream, len(e.inputs))
			for j, id := range e.inputs {
				if id < nroot {
					pre[j] = preout[id]
				}
			}
		}
		var lp *LocalParams
		if e.paramsIdx > 0 {
			lp = pf.paramSets[e.paramsIdx-1]
		}
		env := &DecodeEnv{ar: ar, header: pf.headers[i], params: lp, dlevel: d.dlevel, preout: pre}
		if err := dec.Decode(env, ins); err != nil {
			if dec.Custom {
				return nil, mkerr(KindTransformExecution, dec.Name, err)
			}
			return nil, mkerr(KindCorruption, dec.Name, err)
		}
		if len(env.outs) != len(e.inputs) {
			return nil, errf(KindCorruption, dec.Name,
				"decoder produced %d streams, trace entry %d expects %d", len(env.outs), i, len(e.inputs))
		}
		for j, id := range e.inputs {
			out := env.outs[j]
			if !out.Committed() {
				return nil, errf(KindCodecExecution, dec.Name, "decoder output %d not committed", j)
			}
			if streams[id] != nil {
				return nil, errf(KindCorruption, "decompress", "stream %d reconstructed twice", id)
			}
			streams[id] = out
		}
	}
	// the trace's root outputs must exactly match the frame's
	// inputs descriptor
	roots := streams[:nroot]
	for i, s := range roots {
		oi := pf.info.Outputs[i]
		if s == nil {
			return nil, errf(KindCorruption, "decompress", "output %d was never reconstructed", i)
		}
		if s.Type() != oi.Type || s.EltWidth() != oi.EltWidth ||
			s.NumElts() != oi.NumElts || s.ContentSize() != oi.ContentSize {
			return nil, errf(KindCorruption, "decompress",
				"output %d reconstructed as %s/%d (%d elements, %d bytes); descriptor says %s/%d (%d elements, %d bytes)",
				i, s.Type(), s.EltWidth(), s.NumElts(), s.ContentSize(),
				oi.Type, oi.EltWidth, oi.NumElts, oi.ContentSize)
		}
	}
	if pf.flags&flagContentCk != 0 {
		if got := contentChecksum(roots); got != pf.contentCk {
			return nil, errf(KindCorruption, "decompress",
				"content checksum mismatch: %#x != %#x", got, pf.contentCk)
		}
	}
	return roots, nil
}

// Decompress is the one-shot inverse of Compress: it expects a
// frame holding a single serial stream and returns its contents.
func Decompress(src []byte) ([]byte, error) {
	outs, err := NewDCtx().Decompress(src)
	if err != nil {
		return nil, err
	}
	if len(outs) != 1 || outs[0].Type() != TypeSerial {
		return nil, errf(KindLogicError, "Decompress",
			"frame holds %d outputs; use DCtx.Decompress for typed frames", len(outs))
	}
	return outs[0].Bytes()
}
