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

// CodecID is the stable identifier of an encoder/decoder pair.
// IDs are wire-format identity: a frame records the IDs of the
// codecs that produced it, and the decompressor resolves them
// in its own registry.
type CodecID uint32

// Standard codec IDs. These are part of the wire format and
// never change meaning across versions.
const (
	CodecStore            CodecID = 1
	CodecCompressGeneric  CodecID = 2
	CodecConstant         CodecID = 3
	CodecFieldLZ          CodecID = 4
	CodecEntropyFSE       CodecID = 5
	CodecEntropyHuffman   CodecID = 6
	CodecDelta            CodecID = 7
	CodecZigzag           CodecID = 8
	CodecBitpack          CodecID = 9
	CodecTransposeSplit   CodecID = 10
	CodecTokenize         CodecID = 11
	CodecVarint           CodecID = 12
	CodecFloatDeconstruct CodecID = 13
	CodecPrefix           CodecID = 14
	CodecCompressFast     CodecID = 15
	CodecTokenizeStr      CodecID = 16

	// minCustomCodecID is the first ID available to
	// user-registered codecs.
	minCustomCodecID CodecID = 0x8000
)

// EncodeFunc transforms its input streams into output streams
// reserved through the environment, or, for a terminal codec,
// into frame blobs. Every reserved output must be committed
// before returning.
type EncodeFunc func(env *EncodeEnv, ins []*Stream) error

// DecodeFunc is the inverse of an EncodeFunc: given the
// reconstructed outputs of the original encode call, it must
// reproduce the encoder's inputs, one committed output stream
// per original input, in the original input order.
type DecodeFunc func(env *DecodeEnv, ins []*Stream) error

// CodecDesc describes the encoder half of a codec: its identity,
// its typed I/O contract, and the encode function.
type CodecDesc struct {
	ID   CodecID
	Name string

	// Inputs holds one accepted-type mask per input. If
	// VariadicInput is set, the last mask also covers any
	// number of additional trailing inputs.
	Inputs        []TypeMask
	VariadicInput bool

	// Singletons lists the types of the fixed outputs, in
	// declaration order. Variable, if nonzero, is the type of
	// the single variable-output slot: the codec reports at
	// runtime how many streams of that type it produced.
	Singletons []Type
	Variable   Type

	// Terminal marks codecs whose output goes into the frame's
	// terminal-blobs region instead of feeding successors.
	Terminal bool

	// Custom marks user-registered codecs; their failures
	// surface as transform_executionFailure rather than
	// codec_executionFailure.
	Custom bool

	Encode EncodeFunc
}

// shapeEqual reports whether two descriptors declare the same
// I/O contract, ignoring names and functions.
func (d *CodecDesc) shapeEqual(o *CodecDesc) bool {
	if len(d.Inputs) != len(o.Inputs) ||
		d.VariadicInput != o.VariadicInput ||
		len(d.Singletons) != len(o.Singletons) ||
		d.Variable != o.Variable ||
		d.Terminal != o.Terminal {
		return false
	}
	for i := range d.Inputs {
		if d.Inputs[i] != o.Inputs[i] {
			return false
		}
	}
	for i := range d.Singletons {
		if d.Singletons[i] != o.Singletons[i] {
			return false
		}
	}
	return true
}

func (d *CodecDesc) check() error {
	if d.ID == 0 {
		return errf(KindLogicError, "RegisterCodec", "codec ID 0 is reserved")
	}
	if d.Encode == nil {
		return errf(KindLogicError, "RegisterCodec", "codec %q has no encode function", d.Name)
	}
	if len(d.Inputs) == 0 {
		return errf(KindLogicError, "RegisterCodec", "codec %q declares no inputs", d.Name)
	}
	for i, m := range d.Inputs {
		if m == 0 {
			return errf(KindLogicError, "RegisterCodec", "codec %q input %d accepts no types", d.Name, i)
		}
	}
	if d.Terminal && (len(d.Singletons) != 0 || d.Variable != 0) {
		return errf(KindLogicError, "RegisterCodec", "terminal codec %q cannot declare outputs", d.Name)
	}
	if !d.Terminal && len(d.Singletons) == 0 && d.Variable == 0 {
		return errf(KindLogicError, "RegisterCodec", "non-terminal codec %q declares no outputs", d.Name)
	}
	return nil
}

// accepts checks the runtime inputs against the declared arity
// and type masks.
func (d *CodecDesc) accepts(ins []*Stream) error {
	if d.VariadicInput {
		if len(ins) < len(d.Inputs) {
			return errf(KindNodeInvalidInput, d.Name,
				"%d inputs, need at least %d", len(ins), len(d.Inputs))
		}
	} else if len(ins) != len(d.Inputs) {
		return errf(KindNodeInvalidInput, d.Name,
			"%d inputs, need exactly %d", len(ins), len(d.Inputs))
	}
	for i, s := range ins {
		m := d.Inputs[min(i, len(d.Inputs)-1)]
		if !m.Has(s.Type()) {
			return errf(KindNodeInvalidInput, d.Name,
				"input %d has type %s, accepted mask is %s", i, s.Type(), m)
		}
		if !s.Committed() {
			return errf(KindLogicError, d.Name, "input %d not committed", i)
		}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// DecoderDesc describes the decoder half of a codec. Decoders
// are registered into a DCtx and resolved by CodecID while
// replaying a frame's trace.
type DecoderDesc struct {
	ID     CodecID
	Name   string
	Custom bool
	Decode DecodeFunc
}

// EncodeEnv is the environment handed to an encode function.
// It carries the node-local and global parameters, reserves
// typed outputs, and collects the codec header and terminal
// blobs emitted by the codec.
type EncodeEnv struct {
	cc     *cstate
	desc   *CodecDesc
	params *LocalParams

	outs   []*Stream
	header []byte
	blobs  [][]byte
}

// Reserve allocates the next output stream with the given type,
// element width, and element capacity (bytes of content capacity
// for TypeString). Outputs must be reserved in declaration
// order: singletons first, then any number of variable-slot
// streams.
func (e *EncodeEnv) Reserve(t Type, width, capElts int) (*Stream, error) {
	if e.desc.Terminal {
		return nil, errf(KindCodecExecution, e.desc.Name, "terminal codec cannot reserve outputs")
	}
	slot := len(e.outs)
	var want Type
	if slot < len(e.desc.Singletons) {
		want = e.desc.Singletons[slot]
	} else if e.desc.Variable != 0 {
		want = e.desc.Variable
	} else {
		return nil, errf(KindCodecExecution, e.desc.Name,
			"codec produced more than its declared %d outputs", len(e.desc.Singletons))
	}
	if t != want {
		return nil, errf(KindCodecExecution, e.desc.Name,
			"output %d has type %s, declared type is %s", slot, t, want)
	}
	s, err := e.cc.ar.reserve(t, width, capElts)
	if err != nil {
		return nil, err
	}
	e.outs = append(e.outs, s)
	return s, nil
}

// EmitHeader records the per-invocation codec header that will be
// delivered to the matching decoder. At most one header may be
// emitted per invocation; the bytes are copied.
func (e *EncodeEnv) EmitHeader(h []byte) {
	e.header = append(e.header[:0], h...)
}

// EmitBlob appends a terminal blob to the frame. Only terminal
// codecs may emit blobs.
func (e *EncodeEnv) EmitBlob(b []byte) error {
	if !e.desc.Terminal {
		return errf(KindCodecExecution, e.desc.Name, "non-terminal codec cannot emit blobs")
	}
	e.blobs = append(e.blobs, b)
	return nil
}

// IntParam reads a node-local integer parameter.
func (e *EncodeEnv) IntParam(key int) (int, bool) { return e.params.Int(key) }

// BlobParam reads a node-local blob parameter.
func (e *EncodeEnv) BlobParam(key int) ([]byte, bool) { return e.params.Blob(key) }

// Level returns the global compression level.
func (e *EncodeEnv) Level() int { return e.cc.params.level }

// FormatVersion returns the frame format version in effect.
func (e *EncodeEnv) FormatVersion() int { return e.cc.params.version }

// DecodeEnv is the environment handed to a decode function.
type DecodeEnv struct {
	ar     *arena
	header []byte
	params *LocalParams
	dlevel int

	// preassigned output streams (caller-provided buffers for
	// root outputs); nil entries allocate from the arena.
	preout []*Stream
	outs   []*Stream
}

// Header returns the codec header recorded for this invocation,
// or nil if the encoder emitted none.
func (e *DecodeEnv) Header() []byte { return e.header }

// IntParam reads a node-local integer parameter recorded in the
// frame's parameter table (format v4; absent in v3 frames).
func (e *DecodeEnv) IntParam(key int) (int, bool) { return e.params.Int(key) }

// BlobParam reads a node-local blob parameter from the frame's
// parameter table.
func (e *DecodeEnv) BlobParam(key int) ([]byte, bool) { return e.params.Blob(key) }

// Level returns the decompression level set on the context.
func (e *DecodeEnv) Level() int { return e.dlevel }

// Reserve allocates the next output stream. When the engine has
// preassigned a caller-provided buffer for this output, Reserve
// returns that write-only stream instead; the declared type and
// width must then match the frame's inputs descriptor.
func (e *DecodeEnv) Reserve(t Type, width, capElts int) (*Stream, error) {
	slot := len(e.outs)
	if slot < len(e.preout) && e.preout[slot] != nil {
		s := e.preout[slot]
		if s.Type() != t || s.EltWidth() != width {
			return nil, errf(KindCorruption, "decode",
				"output %d reconstructs as %s/%d but frame declares %s/%d",
				slot, t, width, s.Type(), s.EltWidth())
		}
		e.outs = append(e.outs, s)
		return s, nil
	}
	s, err := e.ar.reserve(t, width, capElts)
	if err != nil {
		return nil, err
	}
	e.outs = append(e.outs, s)
	return s, nil
}
