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

// CCtx is a compression context: a Compressor reference plus the
// global parameters for the next call. A CCtx is not safe for
// concurrent use; create one context per goroutine (they may
// share one Compressor read-only).
type CCtx struct {
	comp   *Compressor
	params globalParams
}

// NewCCtx creates a compression context with default parameters
// and the given Compressor attached.
func NewCCtx(c *Compressor) *CCtx {
	return &CCtx{comp: c, params: defaultParams()}
}

// UseCompressor attaches a different Compressor for subsequent
// calls.
func (c *CCtx) UseCompressor(comp *Compressor) { c.comp = comp }

// SetParam sets a global parameter. Unless sticky parameters are
// enabled, parameters reset to their defaults after each
// compression call.
func (c *CCtx) SetParam(p Param, v int) error {
	return c.params.set(p, v)
}

// Param reads back a global parameter.
func (c *CCtx) Param(p Param) (int, error) {
	return c.params.get(p)
}

// ResetParams restores every global parameter to its default.
func (c *CCtx) ResetParams() { c.params = defaultParams() }

// CompressStreams compresses the typed inputs through the
// Compressor's starting graph, appending the frame to dst and
// returning the extended slice.
func (c *CCtx) CompressStreams(dst []byte, ins ...*Stream) ([]byte, error) {
	if c.comp == nil {
		return nil, errf(KindLogicError, "CompressStreams", "no Compressor attached")
	}
	if len(ins) == 0 {
		return nil, errf(KindLogicError, "CompressStreams", "no inputs")
	}
	start := c.comp.StartGraph()
	if start == 0 {
		return nil, errf(KindLogicError, "CompressStreams", "no starting graph designated")
	}
	cs := &cstate{comp: c.comp, params: c.params, ar: newArena()}
	defer cs.ar.release()
	out, err := cs.compress(dst, ins, start)
	if !c.params.sticky {
		c.ResetParams()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Compress compresses a single opaque byte buffer, appending the
// frame to dst. It is shorthand for CompressStreams with one
// serial input.
func (c *CCtx) Compress(dst, src []byte) ([]byte, error) {
	return c.CompressStreams(dst, RefSerial(src))
}

// Compress is the one-shot entry point: it compresses src with a
// default Compressor (generic compression of one serial input).
func Compress(dst, src []byte) ([]byte, error) {
	return NewCCtx(NewCompressor()).Compress(dst, src)
}
