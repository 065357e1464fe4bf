// Package network holds the in-memory model of a water distribution network:
// junctions, reservoirs and tanks joined by pipes, pumps and valves, together
// with the patterns, curves, controls and options that drive a simulation.
//
// A Network is built once by a loader, validated, and then shared read-only
// by any number of solver runs.
package network

import (
	"fmt"

	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

// Network owns every node and link of a model
type Network struct {
	Title     []string
	Options   Options
	Times     Times
	Energy    Energy
	Reactions []Reaction
	Report    map[string]string
	Controls  []Control
	Rules     []Rule
	// Opaque keeps the raw lines of sections the hydraulic core ignores
	Opaque    map[string][]string

	nodes     []*Node
	links     []*Link
	nodeIndex map[string]int
	linkIndex map[string]int
	incident  map[string][]int

	patterns     map[string]*Pattern
	patternOrder []string
	curves       map[string]*Curve
	curveOrder   []string
}

// New creates an empty network with default options
func New() *Network {
	return &Network{
		Options:   DefaultOptions(),
		Times:     DefaultTimes(),
		Energy:    DefaultEnergy(),
		Report:    map[string]string{},
		Opaque:    map[string][]string{},
		nodeIndex: map[string]int{},
		linkIndex: map[string]int{},
		incident:  map[string][]int{},
		patterns:  map[string]*Pattern{},
		curves:    map[string]*Curve{},
	}
}

// AddNode appends a node. Node ids share one namespace across kinds.
func (n *Network) AddNode(node *Node) error {
	if _, exists := n.nodeIndex[node.ID]; exists {
		return fmt.Errorf("add node %q: %w", node.ID, ErrDuplicateID)
	}
	n.nodeIndex[node.ID] = len(n.nodes)
	n.nodes = append(n.nodes, node)
	return nil
}

// AddLink appends a link. Endpoints are checked by Validate, not here, so a
// loader can report every dangling reference at once.
func (n *Network) AddLink(link *Link) error {
	if _, exists := n.linkIndex[link.ID]; exists {
		return fmt.Errorf("add link %q: %w", link.ID, ErrDuplicateID)
	}
	idx := len(n.links)
	n.linkIndex[link.ID] = idx
	n.links = append(n.links, link)
	n.incident[link.From] = append(n.incident[link.From], idx)
	if link.To != link.From {
		n.incident[link.To] = append(n.incident[link.To], idx)
	}
	return nil
}

// AddPattern adds a pattern, or appends multipliers to an existing one
// (patterns may span several lines).
func (n *Network) AddPattern(id string, multipliers ...float64) *Pattern {
	p, ok := n.patterns[id]
	if !ok {
		p = &Pattern{ID: id}
		n.patterns[id] = p
		n.patternOrder = append(n.patternOrder, id)
	}
	p.Multipliers = append(p.Multipliers, multipliers...)
	return p
}

// AddCurve adds a curve, or appends points to an existing one
func (n *Network) AddCurve(id string, points ...Point) *Curve {
	c, ok := n.curves[id]
	if !ok {
		c = &Curve{ID: id}
		n.curves[id] = c
		n.curveOrder = append(n.curveOrder, id)
	}
	c.Points = append(c.Points, points...)
	return c
}

// Node looks up a node by id
func (n *Network) Node(id string) (*Node, error) {
	i, ok := n.nodeIndex[id]
	if !ok {
		return nil, &NotFoundError{Entity: "node", ID: id}
	}
	return n.nodes[i], nil
}

// Link looks up a link by id
func (n *Network) Link(id string) (*Link, error) {
	i, ok := n.linkIndex[id]
	if !ok {
		return nil, &NotFoundError{Entity: "link", ID: id}
	}
	return n.links[i], nil
}

// Pattern looks up a pattern by id
func (n *Network) Pattern(id string) (*Pattern, error) {
	p, ok := n.patterns[id]
	if !ok {
		return nil, &NotFoundError{Entity: "pattern", ID: id}
	}
	return p, nil
}

// Curve looks up a curve by id
func (n *Network) Curve(id string) (*Curve, error) {
	c, ok := n.curves[id]
	if !ok {
		return nil, &NotFoundError{Entity: "curve", ID: id}
	}
	return c, nil
}

func (n *Network) HasNode(id string) bool    { _, ok := n.nodeIndex[id]; return ok }
func (n *Network) HasLink(id string) bool    { _, ok := n.linkIndex[id]; return ok }
func (n *Network) HasPattern(id string) bool { _, ok := n.patterns[id]; return ok }
func (n *Network) HasCurve(id string) bool   { _, ok := n.curves[id]; return ok }

// NodeIndex returns the dense index of a node, used to size solver arrays
func (n *Network) NodeIndex(id string) (int, bool) {
	i, ok := n.nodeIndex[id]
	return i, ok
}

// LinkIndex returns the dense index of a link
func (n *Network) LinkIndex(id string) (int, bool) {
	i, ok := n.linkIndex[id]
	return i, ok
}

func (n *Network) NodeAt(i int) *Node { return n.nodes[i] }
func (n *Network) LinkAt(i int) *Link { return n.links[i] }
func (n *Network) NumNodes() int      { return len(n.nodes) }
func (n *Network) NumLinks() int      { return len(n.links) }

// Nodes returns all nodes in insertion order. The slice must not be modified.
func (n *Network) Nodes() []*Node { return n.nodes }

// Links returns all links in insertion order. The slice must not be modified.
func (n *Network) Links() []*Link { return n.links }

func (n *Network) nodesOf(kind NodeKind) []*Node {
	out := make([]*Node, 0)
	for _, node := range n.nodes {
		if node.Kind == kind {
			out = append(out, node)
		}
	}
	return out
}

func (n *Network) Junctions() []*Node  { return n.nodesOf(Junction) }
func (n *Network) Reservoirs() []*Node { return n.nodesOf(Reservoir) }
func (n *Network) Tanks() []*Node      { return n.nodesOf(Tank) }

// LinksOf returns the links of one kind in insertion order
func (n *Network) LinksOf(kind LinkKind) []*Link {
	out := make([]*Link, 0)
	for _, link := range n.links {
		if link.Kind == kind {
			out = append(out, link)
		}
	}
	return out
}

// Patterns returns patterns in the order they were first defined
func (n *Network) Patterns() []*Pattern {
	out := make([]*Pattern, len(n.patternOrder))
	for i, id := range n.patternOrder {
		out[i] = n.patterns[id]
	}
	return out
}

// Curves returns curves in the order they were first defined
func (n *Network) Curves() []*Curve {
	out := make([]*Curve, len(n.curveOrder))
	for i, id := range n.curveOrder {
		out[i] = n.curves[id]
	}
	return out
}

// IncidentLinks returns the links that start or end at a node
func (n *Network) IncidentLinks(nodeID string) ([]*Link, error) {
	if !n.HasNode(nodeID) {
		return nil, &NotFoundError{Entity: "node", ID: nodeID}
	}
	idx := n.incident[nodeID]
	out := make([]*Link, len(idx))
	for i, li := range idx {
		out[i] = n.links[li]
	}
	return out, nil
}

// IncidentIndices returns the dense indices of links incident to node i
func (n *Network) IncidentIndices(i int) []int {
	return n.incident[n.nodes[i].ID]
}

// Converter returns the unit converter for the network's flow units
func (n *Network) Converter() *units.Converter {
	c, err := units.NewConverter(n.Options.Units)
	if err != nil {
		return units.MustConverter(units.GPM)
	}
	return c
}

// WithOptions returns a view sharing nodes, links, patterns and curves
// but carrying different options. Scenario runs use it to vary the demand
// multiplier or solver settings without copying the model.
func (n *Network) WithOptions(opts Options) *Network {
	view := *n
	view.Options = opts
	return &view
}
