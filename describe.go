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
	"golang.org/x/exp/slices"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// A Compressor serializes to a portable YAML description listing
// everything registered beyond the standard roster, plus an
// explicit declaration of the custom codecs, selector callbacks,
// and function callbacks the consumer must provide to rebuild
// it. Callbacks themselves are code and do not serialize; the
// description names them and ParseDescription resolves the names
// against a Providers set.

// Description is the portable form of a Compressor.
type Description struct {
	// ID is a fresh identity stamp assigned at Describe time.
	ID    string `json:"id"`
	Start string `json:"start,omitempty"`

	Nodes  []NodeDescription  `json:"nodes,omitempty"`
	Graphs []GraphDescription `json:"graphs,omitempty"`

	Requires Requirements `json:"requires,omitempty"`
}

// NodeDescription is one registered non-standard node: a codec
// reference plus its local parameters.
type NodeDescription struct {
	Name  string      `json:"name"`
	Codec uint32      `json:"codec"`
	Ints  []IntParam  `json:"ints,omitempty"`
	Blobs []BlobParam `json:"blobs,omitempty"`
}

// IntParam is one integer-valued local parameter.
type IntParam struct {
	Key   int `json:"key"`
	Value int `json:"value"`
}

// BlobParam is one blob-valued local parameter.
type BlobParam struct {
	Key  int    `json:"key"`
	Data []byte `json:"data"`
}

// GraphDescription is one registered non-standard graph.
type GraphDescription struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "static", "selector", or "function"

	// static
	Node       string   `json:"node,omitempty"`
	Successors []string `json:"successors,omitempty"`

	// selector and function
	Masks      []uint8  `json:"masks,omitempty"`
	Candidates []string `json:"candidates,omitempty"`

	// function
	AllowedNodes  []string `json:"allowedNodes,omitempty"`
	AllowedGraphs []string `json:"allowedGraphs,omitempty"`
}

// Requirements declares the external dependencies a description
// needs from the consumer's registry.
type Requirements struct {
	// Codecs lists custom codec IDs that must be provided.
	Codecs []uint32 `json:"codecs,omitempty"`
	// Selectors lists selector graphs whose chooser callback
	// must be provided, by graph name.
	Selectors []string `json:"selectors,omitempty"`
	// Functions lists function graphs whose callback must be
	// provided, by graph name.
	Functions []string `json:"functions,omitempty"`
}

// Providers resolves a Description's declared requirements when
// rebuilding a Compressor.
type Providers struct {
	Codecs    map[CodecID]*CodecDesc
	Selectors map[string]SelectorFunc
	Functions map[string]FunctionFunc
}

// Describe serializes the Compressor to its portable YAML
// description.
func (c *Compressor) Describe() ([]byte, error) {
	d := Description{ID: uuid.NewString()}
	if c.start != 0 {
		d.Start = c.GraphName(c.start)
	}
	seenCustom := map[uint32]bool{}
	for _, n := range c.nodes[c.nstdNodes:] {
		nd := NodeDescription{Name: n.name, Codec: uint32(n.codec.ID)}
		if n.params != nil {
			ikeys := make([]int, 0, len(n.params.ints))
			for k := range n.params.ints {
				ikeys = append(ikeys, k)
			}
			slices.Sort(ikeys)
			for _, k := range ikeys {
				nd.Ints = append(nd.Ints, IntParam{Key: k, Value: n.params.ints[k]})
			}
			bkeys := make([]int, 0, len(n.params.blobs))
			for k := range n.params.blobs {
				bkeys = append(bkeys, k)
			}
			slices.Sort(bkeys)
			for _, k := range bkeys {
				nd.Blobs = append(nd.Blobs, BlobParam{Key: k, Data: n.params.blobs[k]})
			}
		}
		if n.codec.Custom && !seenCustom[uint32(n.codec.ID)] {
			seenCustom[uint32(n.codec.ID)] = true
			d.Requires.Codecs = append(d.Requires.Codecs, uint32(n.codec.ID))
		}
		d.Nodes = append(d.Nodes, nd)
	}
	for _, g := range c.graphs[c.nstdGraphs:] {
		gd := GraphDescription{Name: g.name}
		switch g.kind {
		case graphStatic:
			gd.Kind = "static"
			gd.Node = c.NodeName(g.node)
			for _, s := range g.succs {
				gd.Successors = append(gd.Successors, c.GraphName(s))
			}
		case graphSelector:
			gd.Kind = "selector"
			gd.Masks = []uint8{uint8(g.masks[0])}
			for _, s := range g.candidates {
				gd.Candidates = append(gd.Candidates, c.GraphName(s))
			}
			d.Requires.Selectors = append(d.Requires.Selectors, g.name)
		case graphFunction:
			gd.Kind = "function"
			for _, m := range g.masks {
				gd.Masks = append(gd.Masks, uint8(m))
			}
			for _, n := range g.allowedNodes {
				gd.AllowedNodes = append(gd.AllowedNodes, c.NodeName(n))
			}
			for _, s := range g.allowedGraphs {
				gd.AllowedGraphs = append(gd.AllowedGraphs, c.GraphName(s))
			}
			d.Requires.Functions = append(d.Requires.Functions, g.name)
		}
		d.Graphs = append(d.Graphs, gd)
	}
	return yaml.Marshal(&d)
}

// ParseDescription rebuilds a Compressor from its portable
// description. Every requirement the description declares must
// be satisfied by prov; a missing provider is a logic_error.
func ParseDescription(desc []byte, prov *Providers) (*Compressor, error) {
	var d Description
	if err := yaml.Unmarshal(desc, &d); err != nil {
		return nil, mkerr(KindLogicError, "ParseDescription", err)
	}
	c := NewCompressor()
	for _, id := range d.Requires.Codecs {
		var cd *CodecDesc
		if prov != nil {
			cd = prov.Codecs[CodecID(id)]
		}
		if cd == nil {
			return nil, errf(KindLogicError, "ParseDescription",
				"description requires custom codec %d, no provider given", id)
		}
		if _, err := c.RegisterCustomCodec(cd); err != nil {
			return nil, err
		}
	}
	for _, nd := range d.Nodes {
		baseNode, err := c.nodeForCodec(CodecID(nd.Codec))
		if err != nil {
			return nil, err
		}
		if c.NodeName(baseNode) == nd.Name && len(nd.Ints) == 0 && len(nd.Blobs) == 0 {
			continue // the base registration itself
		}
		params := &LocalParams{}
		for _, p := range nd.Ints {
			params.SetInt(p.Key, p.Value)
		}
		for _, p := range nd.Blobs {
			params.SetBlob(p.Key, p.Data)
		}
		if _, err := c.CloneNode(baseNode, nd.Name, params); err != nil {
			return nil, err
		}
	}
	for _, gd := range d.Graphs {
		switch gd.Kind {
		case "static":
			if _, ok := c.GraphByName(gd.Name); ok {
				// leaf graphs for custom terminal codecs are
				// recreated by RegisterCustomCodec
				continue
			}
			nid, ok := c.NodeByName(gd.Node)
			if !ok {
				return nil, errf(KindLogicError, "ParseDescription", "graph %q references unknown node %q", gd.Name, gd.Node)
			}
			succs, err := c.graphsByName(gd.Name, gd.Successors)
			if err != nil {
				return nil, err
			}
			if _, err := c.NewStaticGraph(gd.Name, nid, succs...); err != nil {
				return nil, err
			}
		case "selector":
			var sel SelectorFunc
			if prov != nil {
				sel = prov.Selectors[gd.Name]
			}
			if sel == nil {
				return nil, errf(KindLogicError, "ParseDescription",
					"description requires a selector callback for %q, no provider given", gd.Name)
			}
			if len(gd.Masks) != 1 {
				return nil, errf(KindLogicError, "ParseDescription", "selector %q has %d masks", gd.Name, len(gd.Masks))
			}
			cand, err := c.graphsByName(gd.Name, gd.Candidates)
			if err != nil {
				return nil, err
			}
			if _, err := c.NewSelectorGraph(gd.Name, TypeMask(gd.Masks[0]), sel, cand...); err != nil {
				return nil, err
			}
		case "function":
			var fn FunctionFunc
			if prov != nil {
				fn = prov.Functions[gd.Name]
			}
			if fn == nil {
				return nil, errf(KindLogicError, "ParseDescription",
					"description requires a function callback for %q, no provider given", gd.Name)
			}
			masks := make([]TypeMask, len(gd.Masks))
			for i, m := range gd.Masks {
				masks[i] = TypeMask(m)
			}
			var opts *FunctionGraphOpts
			if gd.AllowedNodes != nil || gd.AllowedGraphs != nil {
				opts = &FunctionGraphOpts{}
				for _, name := range gd.AllowedNodes {
					nid, ok := c.NodeByName(name)
					if !ok {
						return nil, errf(KindLogicError, "ParseDescription", "graph %q allows unknown node %q", gd.Name, name)
					}
					opts.AllowedNodes = append(opts.AllowedNodes, nid)
				}
				var err error
				opts.AllowedGraphs, err = c.graphsByName(gd.Name, gd.AllowedGraphs)
				if err != nil {
					return nil, err
				}
			}
			if _, err := c.NewFunctionGraph(gd.Name, masks, fn, opts); err != nil {
				return nil, err
			}
		default:
			return nil, errf(KindLogicError, "ParseDescription", "graph %q has unknown kind %q", gd.Name, gd.Kind)
		}
	}
	if d.Start != "" {
		g, ok := c.GraphByName(d.Start)
		if !ok {
			return nil, errf(KindLogicError, "ParseDescription", "starting graph %q not found", d.Start)
		}
		if err := c.SetStartGraph(g); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Compressor) graphsByName(owner string, names []string) ([]GraphID, error) {
	out := make([]GraphID, len(names))
	for i, name := range names {
		g, ok := c.GraphByName(name)
		if !ok {
			return nil, errf(KindLogicError, "ParseDescription", "graph %q references unknown graph %q", owner, name)
		}
		out[i] = g
	}
	return out, nil
}

// nodeForCodec returns the first node bound to the codec.
func (c *Compressor) nodeForCodec(id CodecID) (NodeID, error) {
	for i, n := range c.nodes {
		if n.codec.ID == id {
			return NodeID(i + 1), nil
		}
	}
	return 0, errf(KindLogicError, "ParseDescription", "no node bound to codec %d", id)
}
