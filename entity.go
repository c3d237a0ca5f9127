package modelpart

import (
	"fmt"
	"math"
)

// NodeTolerance is the largest Euclidean distance between two coordinate
// triplets that are still considered the same node location.
const NodeTolerance = 1e-15

// Identifiable is implemented by every entity stored in an EntitySet.
type Identifiable interface {
	comparable
	ID() int
}

// A Node is a point of the mesh. Its id is unique within a tree, and two
// requests for the same id must agree on its coordinates.
type Node struct {
	Annotations
	id      int
	x, y, z float64
}

func (n *Node) ID() int    { return n.id }
func (n *Node) X() float64 { return n.x }
func (n *Node) Y() float64 { return n.y }
func (n *Node) Z() float64 { return n.z }

// Coordinates returns the node's location as an (x, y, z) triplet.
func (n *Node) Coordinates() [3]float64 { return [3]float64{n.x, n.y, n.z} }

// Distance returns the Euclidean distance between the node and the given point.
func (n *Node) Distance(x, y, z float64) float64 {
	dx, dy, dz := n.x-x, n.y-y, n.z-z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (n *Node) String() string {
	return fmt.Sprintf("node(%d @ %v, %v, %v)", n.id, n.x, n.y, n.z)
}

// Properties is a bag of material or section parameters (stored as
// annotations) referenced by elements and conditions. Properties are identified
// solely by their id; their contents are never compared.
type Properties struct {
	Annotations
	id int
}

func (p *Properties) ID() int { return p.id }

func (p *Properties) String() string { return fmt.Sprintf("properties(%d)", p.id) }

// Kind distinguishes the two specialisations of GeometricalObject. Elements and
// conditions have independent id spaces.
type Kind uint8

const (
	KindElement Kind = iota + 1
	KindCondition
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindCondition:
		return "condition"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// GeometricalObject is the common part of elements and conditions: a typed,
// ordered list of shared node references bound to shared properties.
//
// The nodes and properties are not owned by the object; they are owned by the
// tree that also contains the object.
type GeometricalObject struct {
	Annotations
	id         int
	kind       Kind
	typeName   string
	nodes      []*Node
	properties *Properties
	hash       EntityHash
}

func (g *GeometricalObject) ID() int                 { return g.id }
func (g *GeometricalObject) Kind() Kind              { return g.kind }
func (g *GeometricalObject) TypeName() string        { return g.typeName }
func (g *GeometricalObject) Properties() *Properties { return g.properties }

// Nodes returns the object's nodes in their defining order. Do not modify the
// returned slice.
func (g *GeometricalObject) Nodes() []*Node { return g.nodes }

// NodeIDs returns the ids of the object's nodes in their defining order.
func (g *GeometricalObject) NodeIDs() []int {
	ids := make([]int, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.id
	}
	return ids
}

// Hash returns the content address of the object's defining content (its kind,
// type name and ordered node ids). Two objects of the same kind are
// structurally identical if and only if their hashes are equal.
func (g *GeometricalObject) Hash() EntityHash { return g.hash }

func (g *GeometricalObject) String() string {
	return fmt.Sprintf("%s(%d %s %v)", g.kind, g.id, g.typeName, g.NodeIDs())
}

// An Element is a GeometricalObject contributing to the domain's equations.
type Element struct {
	GeometricalObject
}

// A Condition is a GeometricalObject imposing boundary contributions.
type Condition struct {
	GeometricalObject
}

func newGeometricalObject(kind Kind, id int, typeName string, nodes []*Node, props *Properties) GeometricalObject {
	g := GeometricalObject{
		id:         id,
		kind:       kind,
		typeName:   typeName,
		nodes:      nodes,
		properties: props,
	}
	g.hash = MustContentAddress(&g)
	return g
}
