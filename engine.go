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

// edge is a stream in motion through the graph: the payload plus
// its global stream number. User inputs take numbers 0..n-1 and
// codec outputs are numbered in creation order; the numbering is
// what ties the serialized trace back together at decompression.
type edge struct {
	s  *Stream
	id int
}

// centry is one recorded codec invocation: one element of the
// trace.
type centry struct {
	codec     CodecID
	paramsIdx int // 0 = no local params, else index+1 into paramSets
	terminal  bool
	inputs    []int
	nout      int
	nblobs    int
}

// cstate is the per-call state of one compression: the walk's
// event record (trace, codec headers, terminal blobs) plus the
// arena the intermediate streams live in. Trial compressions
// run on their own cstate so they cannot disturb the parent.
type cstate struct {
	comp   *Compressor
	params globalParams
	ar     *arena

	entries  []centry
	headers  [][]byte
	blobs    [][]byte
	nstreams int

	paramSets []*LocalParams
	paramIdx  map[string]int

	store GraphID // built-in store leaf, for forced fallbacks
}

// compress runs the graph rooted at start over ins and appends
// the resulting frame to dst.
func (cs *cstate) compress(dst []byte, ins []*Stream, start GraphID) ([]byte, error) {
	g, err := cs.comp.graph(start)
	if err != nil {
		return nil, err
	}
	if err := graphAccepts(g, ins); err != nil {
		return nil, err
	}
	edges := make([]edge, len(ins))
	for i, s := range ins {
		if !s.Committed() {
			return nil, errf(KindLogicError, "compress", "input %d not committed", i)
		}
		edges[i] = edge{s: s, id: i}
	}
	cs.nstreams = len(ins)
	if sg, ok := cs.comp.GraphByName("store"); ok {
		cs.store = sg
	}
	if err := cs.runGraph(edges, start); err != nil {
		return nil, err
	}
	return cs.appendFrame(dst, ins)
}

// graphAccepts checks a set of input streams against a graph's
// declared input masks.
func graphAccepts(g *graphEntry, ins []*Stream) error {
	if g.kind == graphSelector {
		if len(ins) != 1 {
			return errf(KindNodeInvalidInput, g.name, "selector takes exactly one input, got %d", len(ins))
		}
	} else if g.variadic {
		if len(ins) < len(g.masks) {
			return errf(KindNodeInvalidInput, g.name, "%d inputs, need at least %d", len(ins), len(g.masks))
		}
	} else if len(ins) != len(g.masks) {
		return errf(KindNodeInvalidInput, g.name, "%d inputs, need exactly %d", len(ins), len(g.masks))
	}
	for i, s := range ins {
		m := g.masks[min(i, len(g.masks)-1)]
		if !m.Has(s.Type()) {
			return errf(KindNodeInvalidInput, g.name,
				"input %d has type %s, accepted mask is %s", i, s.Type(), m)
		}
	}
	return nil
}

// runGraph processes one work item: a bundle of edges bound to a
// graph. Dispatch is eager and depth-first, so the trace comes
// out in preorder.
func (cs *cstate) runGraph(ins []edge, gid GraphID) error {
	g, err := cs.comp.graph(gid)
	if err != nil {
		return err
	}
	if cs.params.minStreamSize > 0 && gid != cs.store && cs.store != 0 {
		total := 0
		for i := range ins {
			total += ins[i].s.ContentSize()
		}
		if total < cs.params.minStreamSize {
			gid = cs.store
			g, _ = cs.comp.graph(gid)
		}
	}
	cp := cs.checkpoint()
	err = cs.dispatch(ins, g)
	if err != nil && cs.params.permissive && gid != cs.store && cs.store != 0 {
		if k, ok := ErrorKind(err); ok && (k == KindCodecExecution || k == KindTransformExecution) {
			cs.rollback(cp)
			return cs.dispatch(ins, mustGraph(cs.comp, cs.store))
		}
	}
	return err
}

func mustGraph(c *Compressor, id GraphID) *graphEntry {
	g, err := c.graph(id)
	if err != nil {
		panic(err)
	}
	return g
}

type mark struct {
	entries  int
	headers  int
	blobs    int
	nstreams int
	params   int
}

func (cs *cstate) checkpoint() mark {
	return mark{
		entries:  len(cs.entries),
		headers:  len(cs.headers),
		blobs:    len(cs.blobs),
		nstreams: cs.nstreams,
		params:   len(cs.paramSets),
	}
}

// rollback discards every event recorded after the mark; used by
// the permissive-compression fallback to pretend a failing
// subtree never ran.
func (cs *cstate) rollback(m mark) {
	cs.entries = cs.entries[:m.entries]
	cs.headers = cs.headers[:m.headers]
	cs.blobs = cs.blobs[:m.blobs]
	cs.nstreams = m.nstreams
	for _, p := range cs.paramSets[m.params:] {
		delete(cs.paramIdx, string(p.appendWire(nil)))
	}
	cs.paramSets = cs.paramSets[:m.params]
}

func (cs *cstate) dispatch(ins []edge, g *graphEntry) error {
	switch g.kind {
	case graphStatic:
		return cs.runStatic(ins, g)
	case graphSelector:
		return cs.runSelector(ins, g)
	case graphFunction:
		return cs.runFunction(ins, g)
	}
	return errf(KindLogicError, "dispatch", "graph %q has invalid kind %d", g.name, g.kind)
}

func (cs *cstate) runStatic(ins []edge, g *graphEntry) error {
	n, err := cs.comp.node(g.node)
	if err != nil {
		return err
	}
	outs, err := cs.execNode(n, ins)
	if err != nil {
		return err
	}
	nsing := len(n.codec.Singletons)
	for i := range outs {
		succ := g.succs[min(i, nsing)]
		if err := cs.runGraph(outs[i:i+1], succ); err != nil {
			return err
		}
	}
	return nil
}

func (cs *cstate) runSelector(ins []edge, g *graphEntry) error {
	if len(ins) != 1 {
		return errf(KindNodeInvalidInput, g.name, "selector takes exactly one input, got %d", len(ins))
	}
	if !g.masks[0].Has(ins[0].s.Type()) {
		return errf(KindNodeInvalidInput, g.name,
			"input has type %s, accepted mask is %s", ins[0].s.Type(), g.masks[0])
	}
	env := &SelectorEnv{cs: cs}
	cand := append([]GraphID(nil), g.candidates...)
	choice, err := g.sel(env, ins[0].s, cand)
	if err != nil {
		return mkerr(KindTransformExecution, g.name, err)
	}
	ok := false
	for _, c := range g.candidates {
		if c == choice {
			ok = true
			break
		}
	}
	if !ok {
		return errf(KindLogicError, g.name, "selector chose graph %d, which is not a candidate", choice)
	}
	return cs.runGraph(ins, choice)
}

func (cs *cstate) runFunction(ins []edge, g *graphEntry) error {
	if err := graphAccepts(g, streamsOf(ins)); err != nil {
		return err
	}
	env := &GraphEnv{cs: cs, g: g}
	edges := make([]*Edge, len(ins))
	for i := range ins {
		edges[i] = &Edge{env: env, s: ins[i].s, id: ins[i].id}
		env.edges = append(env.edges, edges[i])
	}
	if err := g.fn(env, edges); err != nil {
		return mkerr(KindTransformExecution, g.name, err)
	}
	// drain the work list: every edge still alive must have been
	// routed somewhere by the callback
	for i := 0; i < len(env.edges); i++ {
		e := env.edges[i]
		if e.consumed {
			continue
		}
		if !e.routed {
			return errf(KindLogicError, g.name, "edge %d left without a destination", e.id)
		}
		if err := cs.runGraph([]edge{{s: e.s, id: e.id}}, e.dest); err != nil {
			return err
		}
	}
	return nil
}

func streamsOf(ins []edge) []*Stream {
	out := make([]*Stream, len(ins))
	for i := range ins {
		out[i] = ins[i].s
	}
	return out
}

// execNode runs one codec invocation and records it in the
// trace, numbering its outputs.
func (cs *cstate) execNode(n *nodeEntry, ins []edge) ([]edge, error) {
	d := n.codec
	streams := streamsOf(ins)
	if err := d.accepts(streams); err != nil {
		return nil, err
	}
	env := &EncodeEnv{cc: cs, desc: d, params: n.params}
	if err := d.Encode(env, streams); err != nil {
		if d.Custom {
			return nil, mkerr(KindTransformExecution, n.name, err)
		}
		return nil, mkerr(KindCodecExecution, n.name, err)
	}
	if len(env.outs) < len(d.Singletons) {
		return nil, errf(KindCodecExecution, n.name,
			"codec produced %d outputs, declared %d singletons", len(env.outs), len(d.Singletons))
	}
	for i, o := range env.outs {
		if !o.Committed() {
			return nil, errf(KindCodecExecution, n.name, "output %d not committed", i)
		}
	}
	if d.Terminal && len(env.blobs) == 0 && len(env.header) == 0 {
		return nil, errf(KindCodecExecution, n.name, "terminal codec emitted nothing")
	}
	ent := centry{
		codec:     d.ID,
		paramsIdx: cs.internParams(n.params),
		terminal:  d.Terminal,
		nout:      len(env.outs),
		nblobs:    len(env.blobs),
	}
	ent.inputs = make([]int, len(ins))
	for i := range ins {
		ent.inputs[i] = ins[i].id
	}
	cs.entries = append(cs.entries, ent)
	cs.headers = append(cs.headers, env.header)
	cs.blobs = append(cs.blobs, env.blobs...)
	outs := make([]edge, len(env.outs))
	for i, o := range env.outs {
		outs[i] = edge{s: o, id: cs.nstreams}
		cs.nstreams++
	}
	return outs, nil
}

// internParams deduplicates a node's local parameter set into
// the frame's parameter table. Format v3 has no table, so the
// index is always 0 there.
func (cs *cstate) internParams(p *LocalParams) int {
	if cs.params.version < 4 || p.empty() {
		return 0
	}
	key := string(p.appendWire(nil))
	if i, ok := cs.paramIdx[key]; ok {
		return i + 1
	}
	if cs.paramIdx == nil {
		cs.paramIdx = make(map[string]int)
	}
	cs.paramSets = append(cs.paramSets, p)
	cs.paramIdx[key] = len(cs.paramSets) - 1
	return len(cs.paramSets)
}

// SelectorEnv is the environment handed to selector callbacks.
type SelectorEnv struct {
	cs *cstate
}

// TryGraph runs candidate g over in to completion on a scratch
// context and returns the size in bytes of the frame it would
// produce. It has no effect on the surrounding compression;
// a failing candidate is reported as an error value.
func (e *SelectorEnv) TryGraph(g GraphID, in *Stream) (int, error) {
	sub := &cstate{
		comp:   e.cs.comp,
		params: e.cs.params,
		ar:     newArena(),
	}
	defer sub.ar.release()
	frame, err := sub.compress(nil, []*Stream{in}, g)
	if err != nil {
		return 0, err
	}
	return len(frame), nil
}

// Param reads a global compression parameter.
func (e *SelectorEnv) Param(p Param) (int, error) {
	return e.cs.params.get(p)
}

// GraphEnv is the environment handed to function-graph
// callbacks. It tracks every live edge; edges the callback
// neither consumes (by applying a node) nor routes are an error.
type GraphEnv struct {
	cs    *cstate
	g     *graphEntry
	edges []*Edge
}

// Edge is a stream handle inside a function graph: an
// owning reference to a stream plus the record of where it
// goes next.
type Edge struct {
	env      *GraphEnv
	s        *Stream
	id       int
	dest     GraphID
	routed   bool
	consumed bool
}

// Stream returns the edge's payload.
func (e *Edge) Stream() *Stream { return e.s }

// SetDestination routes the edge to graph g once the callback
// returns.
func (e *Edge) SetDestination(g GraphID) error {
	if e.consumed {
		return errf(KindLogicError, "SetDestination", "edge already consumed by a node")
	}
	if err := e.env.allowedGraph(g); err != nil {
		return err
	}
	ge, err := e.env.cs.comp.graph(g)
	if err != nil {
		return err
	}
	if err := acceptsSingle(ge, e.s.Type()); err != nil {
		return err
	}
	e.dest = g
	e.routed = true
	return nil
}

// Apply executes node n over the given edges immediately and
// returns the output streams as fresh edges. The input edges
// are consumed.
func (env *GraphEnv) Apply(n NodeID, ins ...*Edge) ([]*Edge, error) {
	if err := env.allowedNode(n); err != nil {
		return nil, err
	}
	ne, err := env.cs.comp.node(n)
	if err != nil {
		return nil, err
	}
	raw := make([]edge, len(ins))
	for i, e := range ins {
		if e.consumed {
			return nil, errf(KindLogicError, "Apply", "edge already consumed")
		}
		if e.routed {
			return nil, errf(KindLogicError, "Apply", "edge already routed to a graph")
		}
		raw[i] = edge{s: e.s, id: e.id}
	}
	outs, err := env.cs.execNode(ne, raw)
	if err != nil {
		return nil, err
	}
	for _, e := range ins {
		e.consumed = true
	}
	res := make([]*Edge, len(outs))
	for i := range outs {
		res[i] = &Edge{env: env, s: outs[i].s, id: outs[i].id}
		env.edges = append(env.edges, res[i])
	}
	return res, nil
}

// Param reads a global compression parameter.
func (env *GraphEnv) Param(p Param) (int, error) {
	return env.cs.params.get(p)
}

func (env *GraphEnv) allowedNode(n NodeID) error {
	if env.g.allowedNodes == nil {
		return nil
	}
	for _, a := range env.g.allowedNodes {
		if a == n {
			return nil
		}
	}
	return errf(KindLogicError, env.g.name, "node %d not in the graph's allowed-node set", n)
}

func (env *GraphEnv) allowedGraph(g GraphID) error {
	if env.g.allowedGraphs == nil {
		return nil
	}
	for _, a := range env.g.allowedGraphs {
		if a == g {
			return nil
		}
	}
	return errf(KindLogicError, env.g.name, "graph %d not in the graph's allowed-graph set", g)
}
