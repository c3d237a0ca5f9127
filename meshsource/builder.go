package meshsource

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"unsafe"

	"github.com/go-digitaltwin/go-modelpart/geometriesio"
)

// A Builder is used to build a Mesh using fluent calls. Problems (such as an
// entity referencing an unknown node) are reported by Build.
// The zero value is ready to use.
// Do not copy a non-zero Builder.
type Builder struct {
	nodes    geometriesio.Nodes
	entities geometriesio.Entities
	groups   map[string]*groupMembers
	// address of receiver - to detect copies by value.
	// see copyCheck below for details.
	addr *Builder
}

type groupMembers struct {
	// origin ids by geometry type; the "Node" geometry type lists node ids.
	members map[string][]int
}

// Node adds a node to the mesh, replacing any previous node with the same id.
func (b *Builder) Node(id int, x, y, z float64) *Builder {
	b.copyCheck()
	if b.nodes == nil {
		b.nodes = make(geometriesio.Nodes)
	}
	b.nodes[id] = geometriesio.Coordinates{x, y, z}
	return b
}

// Entity adds a geometric entity of the given geometry type to the mesh,
// replacing any previous entity of that type with the same origin id.
func (b *Builder) Entity(geometryType string, originID int, nodeIDs ...int) *Builder {
	b.copyCheck()
	if b.entities == nil {
		b.entities = make(geometriesio.Entities)
	}
	if b.entities[geometryType] == nil {
		b.entities[geometryType] = make(geometriesio.Connectivities)
	}
	b.entities[geometryType][originID] = slices.Clone(nodeIDs)
	return b
}

// Group adds the entities of the given geometry type and origin ids to the
// named group, creating the group if needed. With the "Node" geometry type,
// originIDs are node ids.
func (b *Builder) Group(name, geometryType string, originIDs ...int) *Builder {
	b.copyCheck()
	if b.groups == nil {
		b.groups = make(map[string]*groupMembers)
	}
	g := b.groups[name]
	if g == nil {
		g = &groupMembers{members: make(map[string][]int)}
		b.groups[name] = g
	}
	g.members[geometryType] = append(g.members[geometryType], originIDs...)
	return b
}

// Reset resets the Builder to be empty.
func (b *Builder) Reset() {
	b.nodes = nil
	b.entities = nil
	b.groups = nil
	b.addr = nil
}

// Build returns the accumulated mesh under the given name. It fails if an
// entity references an unknown node (ErrUnknownNode), or a group references an
// unknown entity (ErrUnknownEntity). The Builder may be reused afterwards; the
// mesh does not share state with it.
func (b *Builder) Build(name string) (*Mesh, error) {
	main := &Mesh{
		name:     name,
		nodes:    maps.Clone(b.nodes),
		entities: make(geometriesio.Entities, len(b.entities)),
	}
	main.main = main
	if main.nodes == nil {
		main.nodes = make(geometriesio.Nodes)
	}

	var errs []error
	for _, t := range slices.Sorted(maps.Keys(b.entities)) {
		conns := make(geometriesio.Connectivities, len(b.entities[t]))
		for _, origin := range slices.Sorted(maps.Keys(b.entities[t])) {
			conn := b.entities[t][origin]
			for _, id := range conn {
				if _, ok := main.nodes[id]; !ok {
					errs = append(errs, fmt.Errorf("%s %d references node %d: %w", t, origin, id, ErrUnknownNode))
				}
			}
			conns[origin] = slices.Clone(conn)
		}
		main.entities[t] = conns
	}

	main.groups = make(map[string]*Mesh, len(b.groups))
	for _, name := range slices.Sorted(maps.Keys(b.groups)) {
		g, err := main.group(name, b.groups[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		main.groups[name] = g
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("build mesh %q: %w", name, err)
	}
	return main, nil
}

// group resolves the members of a group against the main mesh. A group holds
// its listed entities, the nodes they reference and its listed nodes.
func (m *Mesh) group(name string, g *groupMembers) (*Mesh, error) {
	group := &Mesh{
		main:     m,
		name:     name,
		nodes:    make(geometriesio.Nodes),
		entities: make(geometriesio.Entities),
	}
	var errs []error
	for _, t := range slices.Sorted(maps.Keys(g.members)) {
		for _, origin := range g.members[t] {
			if t == geometriesio.GeometryNode {
				c, ok := m.nodes[origin]
				if !ok {
					errs = append(errs, fmt.Errorf("group %q: node %d: %w", name, origin, ErrUnknownNode))
					continue
				}
				group.nodes[origin] = c
				continue
			}
			conn, ok := m.entities[t][origin]
			if !ok {
				errs = append(errs, fmt.Errorf("group %q: %s %d: %w", name, t, origin, ErrUnknownEntity))
				continue
			}
			if group.entities[t] == nil {
				group.entities[t] = make(geometriesio.Connectivities)
			}
			group.entities[t][origin] = conn
			for _, id := range conn {
				group.nodes[id] = m.nodes[id]
			}
		}
	}
	return group, errors.Join(errs...)
}

// Noescape hides a pointer from escape analysis.
// It is the identity function, but escape analysis does not think the
// output depends on the input.
// This was copied from the runtime; see issues 23382 and 7921 (github.com/golang/go).
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0) //nolint:govet,staticcheck,gosec // copied from the standard library
}

func (b *Builder) copyCheck() {
	if b.addr == nil {
		// This hack works around a failing of Go's escape analysis
		// that was causing b to escape and be heap-allocated.
		// See issue 23382 (github.com/golang/go).
		b.addr = (*Builder)(noescape(unsafe.Pointer(b)))
	} else if b.addr != b {
		panic("meshsource: illegal use of non-zero Builder copied by value")
	}
}
