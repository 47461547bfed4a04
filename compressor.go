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

// Compressor is the registry holding all nodes and graphs plus a
// designated starting graph. A Compressor may be shared
// read-only by any number of compression contexts; registering
// nodes or graphs must not race with compression calls.
type Compressor struct {
	codecs     map[CodecID]*CodecDesc
	nodes      []*nodeEntry
	graphs     []*graphEntry
	nodeNames  map[string]NodeID
	graphNames map[string]GraphID
	start      GraphID

	// boundary between the standard roster and user
	// registrations; only the latter serialize
	nstdNodes  int
	nstdGraphs int
}

// NewCompressor creates a Compressor with the standard codec
// roster preregistered: one node per standard codec (named after
// the codec) and one built-in leaf graph per terminal codec.
// The starting graph defaults to "compress-generic".
func NewCompressor() *Compressor {
	c := &Compressor{
		codecs:     make(map[CodecID]*CodecDesc),
		nodeNames:  make(map[string]NodeID),
		graphNames: make(map[string]GraphID),
	}
	registerStandard(c)
	c.nstdNodes = len(c.nodes)
	c.nstdGraphs = len(c.graphs)
	if g, ok := c.GraphByName("compress-generic"); ok {
		c.start = g
	}
	return c
}

// registerCodec installs a codec descriptor and a node bound to
// it. Registration fails if the ID collides with a codec bearing
// a different I/O contract; re-registering an identical contract
// is a no-op returning the existing node.
func (c *Compressor) registerCodec(d *CodecDesc) (NodeID, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if prev, ok := c.codecs[d.ID]; ok {
		if !prev.shapeEqual(d) {
			return 0, errf(KindLogicError, "RegisterCodec",
				"codec ID %d already registered as %q with a different contract", d.ID, prev.Name)
		}
		id, _ := c.NodeByName(prev.Name)
		return id, nil
	}
	name, err := uniqueName(c.nodeNameTaken, d.Name)
	if err != nil {
		return 0, err
	}
	c.codecs[d.ID] = d
	c.nodes = append(c.nodes, &nodeEntry{codec: d, name: name})
	id := NodeID(len(c.nodes))
	c.nodeNames[name] = id
	return id, nil
}

// RegisterCustomCodec installs a user-supplied encoder and
// returns a node bound to it. Custom codec IDs must not collide
// with the standard roster; failures of custom codecs surface as
// transform_executionFailure.
func (c *Compressor) RegisterCustomCodec(d *CodecDesc) (NodeID, error) {
	if d.ID < minCustomCodecID {
		return 0, errf(KindLogicError, "RegisterCustomCodec",
			"custom codec ID %d collides with the standard range; use IDs >= %d", d.ID, minCustomCodecID)
	}
	dd := *d
	dd.Custom = true
	nid, err := c.registerCodec(&dd)
	if err != nil {
		return 0, err
	}
	// a terminal custom codec also gets a leaf graph
	if dd.Terminal {
		if _, ok := c.GraphByName(dd.Name); !ok {
			if _, err := c.NewStaticGraph(dd.Name, nid); err != nil {
				return 0, err
			}
		}
	}
	return nid, nil
}

// SetStartGraph designates the graph that compression begins at.
func (c *Compressor) SetStartGraph(g GraphID) error {
	if _, err := c.graph(g); err != nil {
		return err
	}
	c.start = g
	return nil
}

// StartGraph returns the designated starting graph.
func (c *Compressor) StartGraph() GraphID { return c.start }

// codec looks up a codec descriptor by ID.
func (c *Compressor) codec(id CodecID) (*CodecDesc, bool) {
	d, ok := c.codecs[id]
	return d, ok
}
