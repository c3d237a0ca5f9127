package meshsource

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/go-digitaltwin/go-modelpart/geometriesio"
)

// file is the YAML representation of a mesh:
//
//	name: block
//	nodes:
//	  1: [0, 0, 0]
//	  2: [1, 0, 0]
//	  3: [1, 1, 0]
//	entities:
//	  Triangle:
//	    1: [1, 2, 3]
//	groups:
//	  top:
//	    Triangle: [1]
//	    Node: [3]
type file struct {
	Name     string                      `yaml:"name"`
	Nodes    map[int][]float64           `yaml:"nodes"`
	Entities map[string]map[int][]int    `yaml:"entities"`
	Groups   map[string]map[string][]int `yaml:"groups"`
}

// Decode reads a mesh in YAML from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Mesh, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode mesh: empty document")
		}
		return nil, fmt.Errorf("decode mesh: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("decode mesh: missing name")
	}

	var b Builder
	for _, id := range slices.Sorted(maps.Keys(f.Nodes)) {
		c := f.Nodes[id]
		if len(c) != 3 {
			return nil, fmt.Errorf("decode mesh %q: node %d has %d coordinates, want 3", f.Name, id, len(c))
		}
		b.Node(id, c[0], c[1], c[2])
	}
	for _, t := range slices.Sorted(maps.Keys(f.Entities)) {
		for _, origin := range slices.Sorted(maps.Keys(f.Entities[t])) {
			b.Entity(t, origin, f.Entities[t][origin]...)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(f.Groups)) {
		for _, t := range slices.Sorted(maps.Keys(f.Groups[name])) {
			b.Group(name, t, f.Groups[name][t]...)
		}
	}
	return b.Build(f.Name)
}

// Encode writes m's main mesh in YAML to w.
func Encode(w io.Writer, m *Mesh) error {
	main := m.main
	f := file{
		Name:     main.name,
		Nodes:    make(map[int][]float64, len(main.nodes)),
		Entities: make(map[string]map[int][]int, len(main.entities)),
	}
	for id, c := range main.nodes {
		f.Nodes[id] = []float64{c[0], c[1], c[2]}
	}
	for t, conns := range main.entities {
		f.Entities[t] = make(map[int][]int, len(conns))
		for origin, conn := range conns {
			f.Entities[t][origin] = conn
		}
	}
	if len(main.groups) != 0 {
		f.Groups = make(map[string]map[string][]int, len(main.groups))
		for name, g := range main.groups {
			members := make(map[string][]int)
			for t, conns := range g.entities {
				members[t] = slices.Sorted(maps.Keys(conns))
			}
			if len(g.nodes) != 0 {
				members[geometriesio.GeometryNode] = slices.Sorted(maps.Keys(g.nodes))
			}
			f.Groups[name] = members
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode mesh %q: %w", main.name, err)
	}
	return enc.Close()
}
