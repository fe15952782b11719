// Package scene is a retained scene graph of ordered layers holding keyed
// primitives. Every mutation is journalled so clients can patch a rendered
// copy instead of redrawing it.
package scene

import (
	"maps"
	"slices"
)

type Kind string

const (
	KindPath Kind = "path"
	KindText Kind = "text"
	KindRect Kind = "rect"
)

// Node is one keyed primitive. Keys are unique within a layer.
type Node struct {
	Key   string            `json:"key"`
	Kind  Kind              `json:"kind"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Text  string            `json:"text,omitempty"`
}

func (n Node) clone() Node {
	n.Attrs = maps.Clone(n.Attrs)
	return n
}

// LayerSpec declares a layer at construction time. Layers are painted in
// declaration order.
type LayerSpec struct {
	ID    string
	Clip  bool
	Attrs map[string]string
}

type layer struct {
	spec      LayerSpec
	attrs     map[string]string
	transform string
	hidden    bool
	order     []string
	nodes     map[string]*Node
}

type Op string

const (
	OpEnter     Op = "enter"
	OpRemove    Op = "remove"
	OpClear     Op = "clear"
	OpRaise     Op = "raise"
	OpAttr      Op = "attr"
	OpLayerAttr Op = "layer_attr"
	OpTransform Op = "transform"
	OpHidden    Op = "hidden"
	OpClip      Op = "clip"
)

// Patch is one journalled mutation.
type Patch struct {
	Version uint64 `json:"version"`
	Op      Op     `json:"op"`
	Layer   string `json:"layer,omitempty"`
	Key     string `json:"key,omitempty"`
	Attr    string `json:"attr,omitempty"`
	Value   string `json:"value,omitempty"`
	Node    *Node  `json:"node,omitempty"`
}

// Graph is not safe for concurrent use; its owner serialises access.
type Graph struct {
	layers   []*layer
	byID     map[string]*layer
	clipPath string
	version  uint64
	journal  []Patch
}

func New(specs ...LayerSpec) *Graph {
	g := &Graph{byID: make(map[string]*layer, len(specs))}
	for _, s := range specs {
		l := &layer{
			spec:  s,
			attrs: maps.Clone(s.Attrs),
			nodes: make(map[string]*Node),
		}
		if l.attrs == nil {
			l.attrs = make(map[string]string)
		}
		g.layers = append(g.layers, l)
		g.byID[s.ID] = l
	}
	return g
}

func (g *Graph) record(p Patch) {
	g.version++
	p.Version = g.version
	g.journal = append(g.journal, p)
}

func (g *Graph) Version() uint64 { return g.version }

// Drain returns and forgets the journal.
func (g *Graph) Drain() []Patch {
	out := g.journal
	g.journal = nil
	return out
}

func (g *Graph) HasLayer(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// SetClipPath sets the shared clip outline used by clipped layers.
func (g *Graph) SetClipPath(d string) {
	if g.clipPath == d {
		return
	}
	g.clipPath = d
	g.record(Patch{Op: OpClip, Value: d})
}

func (g *Graph) ClipPath() string { return g.clipPath }

// Enter appends nodes whose keys are not yet present, leaving existing
// nodes untouched. It returns the number of nodes added.
func (g *Graph) Enter(layerID string, nodes ...Node) int {
	l := g.byID[layerID]
	if l == nil {
		return 0
	}
	added := 0
	for _, n := range nodes {
		if _, ok := l.nodes[n.Key]; ok {
			continue
		}
		c := n.clone()
		if c.Attrs == nil {
			c.Attrs = make(map[string]string)
		}
		l.nodes[c.Key] = &c
		l.order = append(l.order, c.Key)
		rec := c.clone()
		g.record(Patch{Op: OpEnter, Layer: layerID, Key: c.Key, Node: &rec})
		added++
	}
	return added
}

// Clear removes every node of a layer and returns how many were removed.
func (g *Graph) Clear(layerID string) int {
	l := g.byID[layerID]
	if l == nil || len(l.order) == 0 {
		return 0
	}
	n := len(l.order)
	l.order = nil
	l.nodes = make(map[string]*Node)
	g.record(Patch{Op: OpClear, Layer: layerID})
	return n
}

func (g *Graph) Remove(layerID, key string) bool {
	l := g.byID[layerID]
	if l == nil {
		return false
	}
	if _, ok := l.nodes[key]; !ok {
		return false
	}
	delete(l.nodes, key)
	l.order = slices.DeleteFunc(l.order, func(k string) bool { return k == key })
	g.record(Patch{Op: OpRemove, Layer: layerID, Key: key})
	return true
}

// Raise moves a node to the end of its layer so it paints above siblings.
func (g *Graph) Raise(layerID, key string) bool {
	l := g.byID[layerID]
	if l == nil {
		return false
	}
	if _, ok := l.nodes[key]; !ok {
		return false
	}
	if l.order[len(l.order)-1] == key {
		return false
	}
	l.order = slices.DeleteFunc(l.order, func(k string) bool { return k == key })
	l.order = append(l.order, key)
	g.record(Patch{Op: OpRaise, Layer: layerID, Key: key})
	return true
}

// SetAttr sets a node attribute; an empty value removes it. Unchanged
// values are not journalled.
func (g *Graph) SetAttr(layerID, key, attr, value string) bool {
	l := g.byID[layerID]
	if l == nil {
		return false
	}
	n, ok := l.nodes[key]
	if !ok {
		return false
	}
	cur, had := n.Attrs[attr]
	if value == "" {
		if !had {
			return false
		}
		delete(n.Attrs, attr)
	} else {
		if had && cur == value {
			return false
		}
		n.Attrs[attr] = value
	}
	g.record(Patch{Op: OpAttr, Layer: layerID, Key: key, Attr: attr, Value: value})
	return true
}

// SetAttrAll applies fn to every node of a layer and sets the returned
// attribute value.
func (g *Graph) SetAttrAll(layerID, attr string, fn func(Node) string) int {
	l := g.byID[layerID]
	if l == nil {
		return 0
	}
	changed := 0
	for _, k := range slices.Clone(l.order) {
		if g.SetAttr(layerID, k, attr, fn(*l.nodes[k])) {
			changed++
		}
	}
	return changed
}

func (g *Graph) SetLayerAttr(layerID, attr, value string) {
	l := g.byID[layerID]
	if l == nil {
		return
	}
	if value == "" {
		if _, ok := l.attrs[attr]; !ok {
			return
		}
		delete(l.attrs, attr)
	} else if l.attrs[attr] == value {
		return
	} else {
		l.attrs[attr] = value
	}
	g.record(Patch{Op: OpLayerAttr, Layer: layerID, Attr: attr, Value: value})
}

func (g *Graph) SetTransform(layerID, transform string) {
	l := g.byID[layerID]
	if l == nil || l.transform == transform {
		return
	}
	l.transform = transform
	g.record(Patch{Op: OpTransform, Layer: layerID, Value: transform})
}

func (g *Graph) SetHidden(layerID string, hidden bool) {
	l := g.byID[layerID]
	if l == nil || l.hidden == hidden {
		return
	}
	l.hidden = hidden
	v := "false"
	if hidden {
		v = "true"
	}
	g.record(Patch{Op: OpHidden, Layer: layerID, Value: v})
}

func (g *Graph) Transform(layerID string) string {
	if l := g.byID[layerID]; l != nil {
		return l.transform
	}
	return ""
}

func (g *Graph) Hidden(layerID string) bool {
	if l := g.byID[layerID]; l != nil {
		return l.hidden
	}
	return false
}

func (g *Graph) Len(layerID string) int {
	if l := g.byID[layerID]; l != nil {
		return len(l.order)
	}
	return 0
}

// Nodes returns copies of a layer's nodes in paint order.
func (g *Graph) Nodes(layerID string) []Node {
	l := g.byID[layerID]
	if l == nil {
		return nil
	}
	out := make([]Node, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.nodes[k].clone())
	}
	return out
}

func (g *Graph) Node(layerID, key string) (Node, bool) {
	l := g.byID[layerID]
	if l == nil {
		return Node{}, false
	}
	n, ok := l.nodes[key]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}
