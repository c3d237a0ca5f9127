// Package meshsource provides in-memory mesh sources for geometriesio: a main
// mesh holding nodes and geometric entities, and named groups of it.
package meshsource

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/go-digitaltwin/go-modelpart/geometriesio"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrUnknownEntity = errors.New("unknown geometric entity")
	ErrUnknownGroup  = errors.New("unknown group")
)

// A Mesh is a main mesh, or a named group of one. Meshes are immutable; build
// them with a Builder or Decode them.
type Mesh struct {
	main  *Mesh
	name  string
	nodes geometriesio.Nodes
	// entities holds the connectivities of the main mesh, or of the group. The
	// "Node" geometry type is implicit: every node of the mesh is a single-node
	// entity whose origin id is the node id.
	entities geometriesio.Entities
	groups   map[string]*Mesh
}

// Name returns the mesh's name: the main mesh's own, or "main/group".
func (m *Mesh) Name() string {
	if m.main == m {
		return m.name
	}
	return m.main.name + "/" + m.name
}

// Group returns the named group of the main mesh. Groups of a group are the
// main mesh's groups.
func (m *Mesh) Group(name string) (*Mesh, error) {
	g, ok := m.main.groups[name]
	if !ok {
		return nil, fmt.Errorf("%s: group %q: %w", m.main.name, name, ErrUnknownGroup)
	}
	return g, nil
}

// Groups returns the names of the main mesh's groups in ascending order.
func (m *Mesh) Groups() []string {
	return slices.Sorted(maps.Keys(m.main.groups))
}

// NumberOfNodes returns how many nodes the mesh (or group) holds.
func (m *Mesh) NumberOfNodes() int { return len(m.nodes) }

// GetNodesAndGeometricalEntities returns all the nodes of the mesh and the
// connectivities of the requested geometry types it contains. The returned
// maps are copies.
func (m *Mesh) GetNodesAndGeometricalEntities(geometryTypes []string) (geometriesio.Nodes, geometriesio.Entities, error) {
	nodes := maps.Clone(m.nodes)
	if nodes == nil {
		nodes = make(geometriesio.Nodes)
	}
	entities := make(geometriesio.Entities, len(geometryTypes))
	for _, t := range geometryTypes {
		var conns geometriesio.Connectivities
		if t == geometriesio.GeometryNode {
			conns = make(geometriesio.Connectivities, len(m.nodes))
			for id := range m.nodes {
				conns[id] = []int{id}
			}
		} else {
			conns = make(geometriesio.Connectivities, len(m.entities[t]))
			for id, conn := range m.entities[t] {
				conns[id] = slices.Clone(conn)
			}
		}
		if len(conns) != 0 {
			entities[t] = conns
		}
	}
	return nodes, entities, nil
}

// BelongsToSameMainMeshAs reports whether every other source is a Mesh of the
// same main mesh as m.
func (m *Mesh) BelongsToSameMainMeshAs(others ...geometriesio.MeshSource) bool {
	for _, o := range others {
		other, ok := o.(*Mesh)
		if !ok || other.main != m.main {
			return false
		}
	}
	return true
}

func (m *Mesh) String() string {
	return fmt.Sprintf("mesh(%s, %d nodes)", m.Name(), len(m.nodes))
}
