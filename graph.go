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

// GraphID is a handle to a graph registered in a Compressor.
// The zero GraphID is invalid.
type GraphID uint32

type graphKind uint8

const (
	graphStatic graphKind = iota
	graphSelector
	graphFunction
)

// SelectorFunc chooses one candidate graph for the runtime
// input. It may measure candidates through env.TryGraph; a
// failing trial is reported back as an error value and does not
// abort the surrounding compression.
type SelectorFunc func(env *SelectorEnv, in *Stream, candidates []GraphID) (GraphID, error)

// FunctionFunc routes each input edge to a downstream graph,
// possibly after applying nodes through the environment. Every
// edge alive when the callback returns must have a destination.
type FunctionFunc func(env *GraphEnv, edges []*Edge) error

// graphEntry is one registered graph. Exactly one of the variant
// field groups is populated, per kind.
type graphEntry struct {
	kind graphKind
	name string

	// input type masks; static graphs inherit the head node's,
	// selectors hold one, function graphs hold one per input
	masks    []TypeMask
	variadic bool

	// static
	node  NodeID
	succs []GraphID

	// selector
	sel        SelectorFunc
	candidates []GraphID

	// function
	fn            FunctionFunc
	allowedNodes  []NodeID
	allowedGraphs []GraphID
}

// NewStaticGraph registers a static graph: head executes first
// and its outputs feed the successor graphs in declaration
// order. There must be exactly one successor per singleton
// output plus one for the variable-output slot if the codec
// declares one; each stream of the variable slot is routed to
// that last successor individually.
func (c *Compressor) NewStaticGraph(name string, head NodeID, succs ...GraphID) (GraphID, error) {
	n, err := c.node(head)
	if err != nil {
		return 0, err
	}
	d := n.codec
	want := len(d.Singletons)
	if d.Variable != 0 {
		want++
	}
	if d.Terminal {
		want = 0
	}
	if len(succs) != want {
		return 0, errf(KindGraphTypeMismatch, "NewStaticGraph",
			"node %q has %d output slots, got %d successors", n.name, want, len(succs))
	}
	for i, gid := range succs {
		g, err := c.graph(gid)
		if err != nil {
			return 0, err
		}
		var out Type
		if i < len(d.Singletons) {
			out = d.Singletons[i]
		} else {
			out = d.Variable
		}
		if err := acceptsSingle(g, out); err != nil {
			return 0, errf(KindGraphTypeMismatch, "NewStaticGraph",
				"output %d of node %q has type %s, successor %q does not accept it",
				i, n.name, out, g.name)
		}
	}
	if name == "" {
		name = n.name
	}
	name, err = uniqueName(c.graphNameTaken, name)
	if err != nil {
		return 0, err
	}
	c.graphs = append(c.graphs, &graphEntry{
		kind:     graphStatic,
		name:     name,
		masks:    d.Inputs,
		variadic: d.VariadicInput,
		node:     head,
		succs:    succs,
	})
	id := GraphID(len(c.graphs))
	c.graphNames[name] = id
	return id, nil
}

// acceptsSingle checks that graph g can be handed one stream of
// type t as its sole input edge.
func acceptsSingle(g *graphEntry, t Type) error {
	if len(g.masks) > 1 && !g.variadic {
		return errf(KindGraphTypeMismatch, "attach", "graph %q needs %d inputs", g.name, len(g.masks))
	}
	if !g.masks[0].Has(t) {
		return errf(KindGraphTypeMismatch, "attach", "graph %q does not accept %s", g.name, t)
	}
	return nil
}

// NewSelectorGraph registers a selector graph. At execution sel
// is invoked with the input stream and picks exactly one of the
// candidates. Each candidate must accept at least one type of
// the selector's input mask.
func (c *Compressor) NewSelectorGraph(name string, mask TypeMask, sel SelectorFunc, candidates ...GraphID) (GraphID, error) {
	if sel == nil {
		return 0, errf(KindLogicError, "NewSelectorGraph", "nil selector function")
	}
	if mask == 0 {
		return 0, errf(KindLogicError, "NewSelectorGraph", "empty input mask")
	}
	if len(candidates) == 0 {
		return 0, errf(KindLogicError, "NewSelectorGraph", "no candidate graphs")
	}
	for _, gid := range candidates {
		g, err := c.graph(gid)
		if err != nil {
			return 0, err
		}
		if len(g.masks) > 1 && !g.variadic {
			return 0, errf(KindGraphTypeMismatch, "NewSelectorGraph",
				"candidate %q needs %d inputs", g.name, len(g.masks))
		}
		if g.masks[0]&mask == 0 {
			return 0, errf(KindGraphTypeMismatch, "NewSelectorGraph",
				"candidate %q accepts %s, selector input is %s", g.name, g.masks[0], mask)
		}
	}
	if name == "" {
		name = "selector"
	}
	name, err := uniqueName(c.graphNameTaken, name)
	if err != nil {
		return 0, err
	}
	c.graphs = append(c.graphs, &graphEntry{
		kind:       graphSelector,
		name:       name,
		masks:      []TypeMask{mask},
		sel:        sel,
		candidates: candidates,
	})
	id := GraphID(len(c.graphs))
	c.graphNames[name] = id
	return id, nil
}

// NewBruteForceSelector registers a selector that trial-compresses
// the input through every candidate and picks the one producing
// the smallest frame. Candidates whose trial fails are skipped;
// if every trial fails, the first candidate's error is returned.
func (c *Compressor) NewBruteForceSelector(name string, mask TypeMask, candidates ...GraphID) (GraphID, error) {
	sel := func(env *SelectorEnv, in *Stream, cand []GraphID) (GraphID, error) {
		best := GraphID(0)
		bestSize := 0
		var firstErr error
		for _, g := range cand {
			size, err := env.TryGraph(g, in)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if best == 0 || size < bestSize {
				best, bestSize = g, size
			}
		}
		if best == 0 {
			return 0, firstErr
		}
		return best, nil
	}
	if name == "" {
		name = "brute-force"
	}
	return c.NewSelectorGraph(name, mask, sel, candidates...)
}

// FunctionGraphOpts constrains what a function graph's callback
// may reference. Nil slices leave the corresponding set
// unconstrained.
type FunctionGraphOpts struct {
	AllowedNodes  []NodeID
	AllowedGraphs []GraphID
}

// NewFunctionGraph registers a function graph: fn receives one
// edge per input and imperatively routes each edge (and any edge
// created by applying nodes) to a downstream graph.
func (c *Compressor) NewFunctionGraph(name string, masks []TypeMask, fn FunctionFunc, opts *FunctionGraphOpts) (GraphID, error) {
	if fn == nil {
		return 0, errf(KindLogicError, "NewFunctionGraph", "nil callback")
	}
	if len(masks) == 0 {
		return 0, errf(KindLogicError, "NewFunctionGraph", "no input masks")
	}
	for i, m := range masks {
		if m == 0 {
			return 0, errf(KindLogicError, "NewFunctionGraph", "input %d accepts no types", i)
		}
	}
	var nodes []NodeID
	var graphs []GraphID
	if opts != nil {
		for _, nid := range opts.AllowedNodes {
			if _, err := c.node(nid); err != nil {
				return 0, err
			}
		}
		for _, gid := range opts.AllowedGraphs {
			if _, err := c.graph(gid); err != nil {
				return 0, err
			}
		}
		nodes = opts.AllowedNodes
		graphs = opts.AllowedGraphs
	}
	if name == "" {
		name = "function"
	}
	name, err := uniqueName(c.graphNameTaken, name)
	if err != nil {
		return 0, err
	}
	c.graphs = append(c.graphs, &graphEntry{
		kind:          graphFunction,
		name:          name,
		masks:         masks,
		fn:            fn,
		allowedNodes:  nodes,
		allowedGraphs: graphs,
	})
	id := GraphID(len(c.graphs))
	c.graphNames[name] = id
	return id, nil
}

// GraphByName looks up a graph handle by its registered name.
// The built-in terminal graphs are registered under their codec
// names ("store", "compress-generic", "field-lz", ...).
func (c *Compressor) GraphByName(name string) (GraphID, bool) {
	id, ok := c.graphNames[name]
	return id, ok
}

// GraphName returns the diagnostic name of a graph.
func (c *Compressor) GraphName(id GraphID) string {
	g, err := c.graph(id)
	if err != nil {
		return ""
	}
	return g.name
}

// Graphs enumerates all registered graph names in registration
// order.
func (c *Compressor) Graphs() []string {
	out := make([]string, len(c.graphs))
	for i := range c.graphs {
		out[i] = c.graphs[i].name
	}
	return out
}

func (c *Compressor) graph(id GraphID) (*graphEntry, error) {
	if id == 0 || int(id) > len(c.graphs) {
		return nil, errf(KindLogicError, "graph", "invalid graph handle %d", id)
	}
	return c.graphs[id-1], nil
}

func (c *Compressor) graphNameTaken(name string) bool {
	_, ok := c.graphNames[name]
	return ok
}
