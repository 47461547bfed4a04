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
	"fmt"
	"strings"
)

// NodeID is a handle to a node registered in a Compressor.
// The zero NodeID is invalid.
type NodeID uint32

// nodeEntry binds one registered codec to a set of local
// parameters and a diagnostic name.
type nodeEntry struct {
	codec  *CodecDesc
	params *LocalParams
	name   string
}

// AnchorPrefix marks a node or graph name as an anchor:
// anchor names must be unique, while other names receive a
// disambiguation suffix on collision.
const AnchorPrefix = "!"

// uniqueName resolves name against the taken set, applying the
// anchor discipline. The returned name is not yet inserted.
func uniqueName(taken func(string) bool, name string) (string, error) {
	if strings.HasPrefix(name, AnchorPrefix) {
		if taken(name) {
			return "", errf(KindLogicError, "register", "anchor name %q already in use", name)
		}
		return name, nil
	}
	if !taken(name) {
		return name, nil
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s#%d", name, i)
		if !taken(cand) {
			return cand, nil
		}
	}
}

// CloneNode registers a new node that shares base's codec but
// carries its own local parameters (base's parameters with over
// applied on top) and name. An empty name derives one from the
// base node's name.
func (c *Compressor) CloneNode(base NodeID, name string, over *LocalParams) (NodeID, error) {
	bn, err := c.node(base)
	if err != nil {
		return 0, err
	}
	if name == "" {
		name = bn.name
	}
	name, err = uniqueName(c.nodeNameTaken, name)
	if err != nil {
		return 0, err
	}
	c.nodes = append(c.nodes, &nodeEntry{
		codec:  bn.codec,
		params: bn.params.clone(over),
		name:   name,
	})
	id := NodeID(len(c.nodes))
	c.nodeNames[name] = id
	return id, nil
}

// NodeByName looks up a node handle by its registered name.
func (c *Compressor) NodeByName(name string) (NodeID, bool) {
	id, ok := c.nodeNames[name]
	return id, ok
}

// NodeName returns the diagnostic name of a node.
func (c *Compressor) NodeName(id NodeID) string {
	n, err := c.node(id)
	if err != nil {
		return ""
	}
	return n.name
}

// NodeCodec returns the codec ID a node is bound to.
func (c *Compressor) NodeCodec(id NodeID) CodecID {
	n, err := c.node(id)
	if err != nil {
		return 0
	}
	return n.codec.ID
}

// Nodes enumerates all registered node names in registration
// order.
func (c *Compressor) Nodes() []string {
	out := make([]string, len(c.nodes))
	for i := range c.nodes {
		out[i] = c.nodes[i].name
	}
	return out
}

func (c *Compressor) node(id NodeID) (*nodeEntry, error) {
	if id == 0 || int(id) > len(c.nodes) {
		return nil, errf(KindLogicError, "node", "invalid node handle %d", id)
	}
	return c.nodes[id-1], nil
}

func (c *Compressor) nodeNameTaken(name string) bool {
	_, ok := c.nodeNames[name]
	return ok
}
