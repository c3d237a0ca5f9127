package geometriesio_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/go-modelpart"
	. "github.com/go-digitaltwin/go-modelpart/geometriesio"
	"github.com/go-digitaltwin/go-modelpart/modelparttest"
)

// stubSource is a MeshSource reporting fixed nodes and entities.
type stubSource struct {
	main     string
	nodes    Nodes
	entities Entities
	err      error
}

func (s *stubSource) GetNodesAndGeometricalEntities(geometryTypes []string) (Nodes, Entities, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	out := make(Entities)
	for _, t := range geometryTypes {
		if conns, ok := s.entities[t]; ok {
			out[t] = conns
		}
	}
	return s.nodes, out, nil
}

func (s *stubSource) BelongsToSameMainMeshAs(others ...MeshSource) bool {
	for _, o := range others {
		if other, ok := o.(*stubSource); !ok || other.main != s.main {
			return false
		}
	}
	return true
}

func square() *stubSource {
	return &stubSource{
		main: "square",
		nodes: Nodes{
			1: {0, 0, 0},
			2: {1, 0, 0},
			3: {1, 1, 0},
			4: {0, 1, 0},
		},
		entities: Entities{
			GeometryTriangle: {1: {1, 2, 3}},
		},
	}
}

func newRoot(t *testing.T) *modelpart.ModelPart {
	t.Helper()
	root, err := modelpart.NewModelPart("Main")
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func triangles(typeName string, properties int) EntityMapping {
	return EntityMapping{GeometryTriangle: {typeName: properties}}
}

func TestAddMeshes(t *testing.T) {
	root := newRoot(t)
	err := AddMeshes(context.Background(), root, MeshDescription{
		Source:   square(),
		Elements: triangles("Elem3N", 7),
	})
	if err != nil {
		t.Fatal(err)
	}

	if !root.HasProperties(7) {
		t.Error("root does not have properties 7")
	}
	if got := root.NumberOfNodes(); got != 4 {
		t.Errorf("NumberOfNodes() = %d; want 4", got)
	}
	if got := root.NumberOfElements(); got != 1 {
		t.Fatalf("NumberOfElements() = %d; want 1", got)
	}
	e, err := root.GetElement(1)
	if err != nil {
		t.Fatal(err)
	}
	if got := e.TypeName(); got != "Elem3N" {
		t.Errorf("TypeName() = %q; want %q", got, "Elem3N")
	}
	if diff := cmp.Diff([]int{1, 2, 3}, e.NodeIDs()); diff != "" {
		t.Errorf("NodeIDs() mismatch (-want +got):\n%s", diff)
	}
	if got := e.Properties().ID(); got != 7 {
		t.Errorf("Properties().ID() = %d; want 7", got)
	}
}

func TestAddMeshesSharesOverlappingEntities(t *testing.T) {
	root := newRoot(t)
	other := &stubSource{
		main:     "square",
		nodes:    Nodes{1: {0, 0, 0}, 2: {1, 0, 0}, 3: {1, 1, 0}},
		entities: Entities{GeometryTriangle: {1: {1, 2, 3}}},
	}
	err := AddMeshes(context.Background(), root,
		MeshDescription{Source: square(), Elements: triangles("Elem3N", 7)},
		MeshDescription{Source: other, Elements: triangles("Elem3N", 7), ModelPart: "sub"},
	)
	if err != nil {
		t.Fatal(err)
	}

	sub, err := root.GetSubModelPart("sub")
	if err != nil {
		t.Fatal(err)
	}
	if got := root.NumberOfNodes(); got != 4 {
		t.Errorf("root.NumberOfNodes() = %d; want 4", got)
	}
	if got := root.NumberOfElements(); got != 1 {
		t.Errorf("root.NumberOfElements() = %d; want 1", got)
	}
	if got := root.MaxElementID(); got != 1 {
		t.Errorf("root.MaxElementID() = %d; want 1", got)
	}
	want, _ := root.GetElement(1)
	got, err := sub.GetElement(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Error("sub holds a different element object than the root")
	}
	rootProps, _ := root.GetProperties(7)
	if subProps, _ := sub.GetProperties(7); subProps != rootProps {
		t.Error("sub holds different properties 7 than the root")
	}
	modelparttest.Verify(t, root, modelparttest.Invariants()...)
}

func TestAddMeshesPropertiesMismatch(t *testing.T) {
	root := newRoot(t)
	err := AddMeshes(context.Background(), root,
		MeshDescription{Source: square(), Elements: triangles("Elem3N", 7)},
		MeshDescription{Source: square(), Elements: triangles("Elem3N", 9), ModelPart: "other"},
	)
	if !errors.Is(err, ErrPropertiesMismatch) {
		t.Fatalf("AddMeshes() error = %v; want %v", err, ErrPropertiesMismatch)
	}
	var mismatch *PropertiesMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("AddMeshes() error = %T; want *PropertiesMismatchError", err)
	}
	if mismatch.Existing != 7 || mismatch.Requested != 9 {
		t.Errorf("mismatch = %+v; want existing 7 and requested 9", mismatch)
	}
	msg := err.Error()
	if !strings.Contains(msg, "Trying to use properties with Id 9 with an existing element that has properties Id 7") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestAddMeshesReordersCells(t *testing.T) {
	root := newRoot(t)
	hexa := &stubSource{
		main:  "block",
		nodes: Nodes{},
		entities: Entities{
			GeometryHexa: {5: {1, 2, 3, 4, 5, 6, 7, 8}},
		},
	}
	for id := 1; id <= 8; id++ {
		hexa.nodes[id] = Coordinates{float64(id), 0, 0}
	}
	err := AddMeshes(context.Background(), root, MeshDescription{
		Source:   hexa,
		Elements: EntityMapping{GeometryHexa: {"Hexa3D8N": 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	e, err := root.GetElement(1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 4, 3, 2, 5, 8, 7, 6}, e.NodeIDs()); diff != "" {
		t.Errorf("NodeIDs() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddMeshesIDAssignment(t *testing.T) {
	root := newRoot(t)
	source := &stubSource{
		main:  "square",
		nodes: Nodes{1: {0, 0, 0}, 2: {1, 0, 0}, 3: {1, 1, 0}, 4: {0, 1, 0}},
		entities: Entities{
			GeometryTriangle: {20: {1, 3, 4}, 10: {1, 2, 3}},
			GeometryEdge:     {3: {3, 4}, 1: {1, 2}},
		},
	}
	err := AddMeshes(context.Background(), root,
		MeshDescription{
			Source: source,
			Elements: EntityMapping{
				GeometryTriangle: {"Shell3N": 2, "Elem3N": 1},
			},
			Conditions: EntityMapping{
				GeometryEdge: {"Line2N": 3},
			},
			ModelPart: "skin.outer",
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	type entity struct {
		ID    int
		Type  string
		Nodes []int
		Props int
	}
	var elements, conditions []entity
	for e := range root.Elements() {
		elements = append(elements, entity{e.ID(), e.TypeName(), e.NodeIDs(), e.Properties().ID()})
	}
	for c := range root.Conditions() {
		conditions = append(conditions, entity{c.ID(), c.TypeName(), c.NodeIDs(), c.Properties().ID()})
	}
	wantElements := []entity{
		{1, "Elem3N", []int{1, 2, 3}, 1},
		{2, "Elem3N", []int{1, 3, 4}, 1},
		{3, "Shell3N", []int{1, 2, 3}, 2},
		{4, "Shell3N", []int{1, 3, 4}, 2},
	}
	if diff := cmp.Diff(wantElements, elements); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
	wantConditions := []entity{
		{1, "Line2N", []int{1, 2}, 3},
		{2, "Line2N", []int{3, 4}, 3},
	}
	if diff := cmp.Diff(wantConditions, conditions); diff != "" {
		t.Errorf("conditions mismatch (-want +got):\n%s", diff)
	}

	outer, err := root.GetSubModelPartByPath("skin.outer")
	if err != nil {
		t.Fatal(err)
	}
	skin, _ := root.GetSubModelPart("skin")
	for _, p := range []*modelpart.ModelPart{skin, outer} {
		if p.NumberOfElements() != 4 || p.NumberOfConditions() != 2 || p.NumberOfNodes() != 4 {
			t.Errorf("%s has %d nodes, %d elements and %d conditions; want 4, 4 and 2",
				p, p.NumberOfNodes(), p.NumberOfElements(), p.NumberOfConditions())
		}
	}
	if got := outer.NumberOfProperties(); got != 3 {
		t.Errorf("outer.NumberOfProperties() = %d; want 3", got)
	}
	if root.HasProperties(1) {
		t.Error("properties are created on the target model part, not the root")
	}
	modelparttest.Verify(t, root, append(modelparttest.Invariants(), modelparttest.Shape(`Main (nodes=4 elements=4 conditions=2 properties=0)
  skin (nodes=4 elements=4 conditions=2 properties=0)
    outer (nodes=4 elements=4 conditions=2 properties=3)
`))...)
}

func TestAddMeshesPreconditions(t *testing.T) {
	valid := MeshDescription{Source: square(), Elements: triangles("Elem3N", 1)}

	t.Run("non-empty root", func(t *testing.T) {
		root := newRoot(t)
		if _, err := root.CreateNode(1, 0, 0, 0); err != nil {
			t.Fatal(err)
		}
		if err := AddMeshes(context.Background(), root, valid); !errors.Is(err, ErrNonEmptyRoot) {
			t.Errorf("AddMeshes() error = %v; want %v", err, ErrNonEmptyRoot)
		}
	})
	t.Run("not a root", func(t *testing.T) {
		root := newRoot(t)
		sub, _ := root.CreateSubModelPart("sub")
		if err := AddMeshes(context.Background(), sub, valid); !errors.Is(err, ErrNotRoot) {
			t.Errorf("AddMeshes() error = %v; want %v", err, ErrNotRoot)
		}
	})
	t.Run("inconsistent sources", func(t *testing.T) {
		root := newRoot(t)
		elsewhere := square()
		elsewhere.main = "elsewhere"
		err := AddMeshes(context.Background(), root, valid, MeshDescription{Source: elsewhere, Elements: triangles("Elem3N", 1)})
		if !errors.Is(err, ErrInconsistentSources) {
			t.Errorf("AddMeshes() error = %v; want %v", err, ErrInconsistentSources)
		}
		if got := root.NumberOfNodes(); got != 0 {
			t.Errorf("failed preconditions must not touch the tree, got %d nodes", got)
		}
	})
	t.Run("invalid description", func(t *testing.T) {
		root := newRoot(t)
		err := AddMeshes(context.Background(), root, MeshDescription{Elements: triangles("Elem3N", 1)})
		if !errors.Is(err, ErrInvalidDescription) {
			t.Errorf("AddMeshes() error = %v; want %v", err, ErrInvalidDescription)
		}
	})
	t.Run("source failure", func(t *testing.T) {
		root := newRoot(t)
		broken := square()
		broken.err = errors.New("backend unavailable")
		err := AddMeshes(context.Background(), root, MeshDescription{Source: broken, Elements: triangles("Elem3N", 1)})
		if err == nil || !strings.Contains(err.Error(), "backend unavailable") {
			t.Errorf("AddMeshes() error = %v; want the source's error", err)
		}
	})
}

func TestAddMeshesConflictingNode(t *testing.T) {
	root := newRoot(t)
	moved := square()
	moved.nodes = Nodes{1: {0, 0, 1}, 2: {1, 0, 0}, 3: {1, 1, 0}}
	err := AddMeshes(context.Background(), root,
		MeshDescription{Source: square(), Elements: triangles("Elem3N", 1)},
		MeshDescription{Source: moved, Elements: triangles("Elem3N", 1), ModelPart: "moved"},
	)
	if !errors.Is(err, modelpart.ErrConflictingNode) {
		t.Errorf("AddMeshes() error = %v; want %v", err, modelpart.ErrConflictingNode)
	}
}

// A description without mappings only places the source's nodes.
func TestAddMeshesNodesOnly(t *testing.T) {
	root := newRoot(t)
	err := AddMeshes(context.Background(), root, MeshDescription{Source: square(), ModelPart: "pts"})
	if err != nil {
		t.Fatal(err)
	}

	pts, err := root.GetSubModelPart("pts")
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []*modelpart.ModelPart{root, pts} {
		if got := part.NumberOfNodes(); got != 4 {
			t.Errorf("%s.NumberOfNodes() = %d; want 4", part.Name(), got)
		}
		if got := part.NumberOfElements() + part.NumberOfConditions(); got != 0 {
			t.Errorf("%s holds %d elements and conditions; want none", part.Name(), got)
		}
	}
	modelparttest.Verify(t, root, modelparttest.Invariants()...)
}

func TestAddMeshesPropertiesWithoutEntities(t *testing.T) {
	root := newRoot(t)
	err := AddMeshes(context.Background(), root, MeshDescription{
		Source: square(),
		Elements: EntityMapping{
			GeometryTriangle: {"Elem3N": 7},
			GeometryTetra:    {"Tet4N": 8},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []int{7, 8} {
		if !root.HasProperties(id) {
			t.Errorf("root.HasProperties(%d) = false; want true", id)
		}
	}
	if got := root.NumberOfElements(); got != 1 {
		t.Errorf("root.NumberOfElements() = %d; want 1", got)
	}
}

// Properties are created locally, so sibling targets requesting the same id
// each hold their own properties object. A shared element keeps the object it
// was created with.
func TestAddMeshesSiblingProperties(t *testing.T) {
	root := newRoot(t)
	err := AddMeshes(context.Background(), root,
		MeshDescription{Source: square(), Elements: triangles("Elem3N", 7), ModelPart: "a"},
		MeshDescription{Source: square(), Elements: triangles("Elem3N", 7), ModelPart: "b"},
	)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := root.GetSubModelPart("a")
	b, _ := root.GetSubModelPart("b")
	aProps, err := a.GetProperties(7)
	if err != nil {
		t.Fatal(err)
	}
	bProps, err := b.GetProperties(7)
	if err != nil {
		t.Fatal(err)
	}
	if aProps == bProps {
		t.Error("siblings share one properties object; want one each")
	}
	if root.HasProperties(7) {
		t.Error("root.HasProperties(7) = true; want properties held by the targets only")
	}
	e, err := b.GetElement(1)
	if err != nil {
		t.Fatal(err)
	}
	if e.Properties() != aProps {
		t.Error("the shared element does not keep the properties it was created with")
	}
	modelparttest.Verify(t, root, modelparttest.Invariants()...)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		desc MeshDescription
		ok   bool
	}{
		{"elements only", MeshDescription{Source: square(), Elements: triangles("E", 1)}, true},
		{"conditions only", MeshDescription{Source: square(), Conditions: triangles("C", 1)}, true},
		{"nested path", MeshDescription{Source: square(), Elements: triangles("E", 1), ModelPart: "a.b"}, true},
		{"no source", MeshDescription{Elements: triangles("E", 1)}, false},
		{"nothing requested", MeshDescription{Source: square()}, true},
		{"empty type name", MeshDescription{Source: square(), Elements: triangles("", 1)}, false},
		{"zero properties", MeshDescription{Source: square(), Elements: triangles("E", 0)}, false},
		{"empty mapping", MeshDescription{Source: square(), Elements: EntityMapping{GeometryEdge: {}}}, false},
		{"empty path segment", MeshDescription{Source: square(), Elements: triangles("E", 1), ModelPart: "a..b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v; want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidDescription) {
				t.Errorf("Validate() = %v; want %v", err, ErrInvalidDescription)
			}
		})
	}
}
