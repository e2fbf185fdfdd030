// Package diagram lays out and renders UML use-case and class diagrams.
//
// A Graph is built from a design document by the adapter, positioned by one
// of two layout strategies (a force simulation or a deterministic column
// layout), composed into a Scene of glyphs and edge segments, and drawn to
// a Surface (SVG, PNG or a terminal canvas).
package diagram

import (
	"encoding/json"
	"fmt"
)

// Group is the semantic kind of a node. It selects the glyph and the
// layout treatment.
type Group int

const (
	GroupActor Group = iota
	GroupUseCase
	GroupClass
)

var groupNames = [...]string{"actor", "useCase", "class"}

func (g Group) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return fmt.Sprintf("Group(%d)", int(g))
}

// MarshalJSON encodes the group by name.
func (g Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON decodes a group name.
func (g *Group) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for i, name := range groupNames {
		if name == s {
			*g = Group(i)
			return nil
		}
	}
	return fmt.Errorf("unknown node group %q", s)
}

// EdgeType is the relationship type carried by an edge.
type EdgeType int

const (
	EdgeUsage EdgeType = iota
	EdgeAssociation
	EdgeAggregation
	EdgeComposition
	EdgeGeneralization
)

var edgeTypeNames = [...]string{"usage", "association", "aggregation", "composition", "generalization"}

func (t EdgeType) String() string {
	if int(t) < len(edgeTypeNames) {
		return edgeTypeNames[t]
	}
	return fmt.Sprintf("EdgeType(%d)", int(t))
}

// ParseEdgeType maps a relationship name to an EdgeType.
func ParseEdgeType(s string) (EdgeType, bool) {
	for i, name := range edgeTypeNames {
		if name == s {
			return EdgeType(i), true
		}
	}
	return 0, false
}

// MarshalJSON encodes the edge type by name.
func (t EdgeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an edge type name.
func (t *EdgeType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	et, ok := ParseEdgeType(s)
	if !ok {
		return fmt.Errorf("unknown edge type %q", s)
	}
	*t = et
	return nil
}

// Kind is the diagram a graph belongs to.
type Kind int

const (
	KindUseCase Kind = iota
	KindClass
)

func (k Kind) String() string {
	if k == KindClass {
		return "class"
	}
	return "useCase"
}

// ParseKind accepts "class" and "useCase" (case-sensitive, as on the wire)
// plus the "usecase" spelling used in URLs.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "class":
		return KindClass, nil
	case "useCase", "usecase", "use-case":
		return KindUseCase, nil
	}
	return 0, fmt.Errorf("unknown diagram kind %q", s)
}

// NodeData is the semantic payload of a node. Attributes and Methods are
// only meaningful for class nodes.
type NodeData struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes,omitempty"`
	Methods    []string `json:"methods,omitempty"`
}

// Node is one rendering unit. Its position is not part of the node: layout
// results map ids to positions so geometry is always derived.
type Node struct {
	ID    string   `json:"id"`
	Group Group    `json:"group"`
	Data  NodeData `json:"data"`
}

// Edge is a directed relationship between two node ids.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}

// Graph is the node/edge set of one diagram.
type Graph struct {
	Kind  Kind
	Nodes []Node
	Edges []Edge

	index map[string]int
}

// NewGraph builds a graph for the given diagram kind. Edges whose endpoints
// are missing, or whose type and endpoint groups do not belong to this
// kind of diagram, are dropped silently. Nodes with a duplicate id keep the
// first occurrence.
func NewGraph(kind Kind, nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		Kind:  kind,
		Nodes: make([]Node, 0, len(nodes)),
		index: make(map[string]int, len(nodes)),
	}
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := g.index[n.ID]; dup {
			continue
		}
		g.index[n.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, n)
	}

	for _, e := range edges {
		src, okS := g.Node(e.Source)
		dst, okT := g.Node(e.Target)
		if !okS || !okT {
			continue
		}
		if !edgeAllowed(kind, e.Type, src.Group, dst.Group) {
			continue
		}
		g.Edges = append(g.Edges, e)
	}
	return g
}

// edgeAllowed reports whether an edge of type t between the given groups
// belongs in a diagram of the given kind.
func edgeAllowed(kind Kind, t EdgeType, from, to Group) bool {
	switch kind {
	case KindUseCase:
		if from == GroupClass || to == GroupClass {
			return false
		}
		return t == EdgeUsage || t == EdgeGeneralization
	case KindClass:
		if from != GroupClass || to != GroupClass {
			return false
		}
		return t != EdgeUsage
	}
	return false
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Empty reports whether the graph has no nodes.
func (g *Graph) Empty() bool {
	return g == nil || len(g.Nodes) == 0
}
