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

import "sync"

// arena tracks the streams allocated during one compression or
// decompression call. Intermediate streams live here and are
// dropped together when the call returns; final outputs may
// outlive the arena (ownership passes to the caller).
type arena struct {
	streams []*Stream
	nbytes  int
}

var arenaPool = sync.Pool{
	New: func() any { return &arena{} },
}

func newArena() *arena {
	return arenaPool.Get().(*arena)
}

// maxStreamBytes caps a single stream reservation; a frame
// claiming more than this for one stream is treated as
// unsatisfiable rather than attempted.
const maxStreamBytes = 1 << 31

// reserve allocates an owned, uncommitted stream in the arena.
func (a *arena) reserve(t Type, width, capElts int) (*Stream, error) {
	if capElts > 0 && width > 0 && capElts > maxStreamBytes/width {
		return nil, errf(KindAllocation, "reserve",
			"%d elements of width %d exceed the per-stream limit", capElts, width)
	}
	s, err := newOwned(t, width, capElts)
	if err != nil {
		return nil, err
	}
	a.streams = append(a.streams, s)
	a.nbytes += len(s.buf)
	return s, nil
}

// adopt registers an externally-constructed stream so that it is
// accounted to this call.
func (a *arena) adopt(s *Stream) {
	a.streams = append(a.streams, s)
}

// release drops every stream reference and recycles the arena.
// Streams handed to the caller keep their buffers; everything
// else becomes garbage at once.
func (a *arena) release() {
	for i := range a.streams {
		a.streams[i] = nil
	}
	a.streams = a.streams[:0]
	a.nbytes = 0
	arenaPool.Put(a)
}
