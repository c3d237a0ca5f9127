package modelpart

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Tree owns every ModelPart of a single hierarchy. Model parts refer to their
// parent and children by position within the tree, so a child never keeps its
// parent alive and is never responsible for the parent's lifetime.
type Tree struct {
	parts []*ModelPart
}

// Root returns the tree's root model part.
func (t *Tree) Root() *ModelPart { return t.parts[0] }

// Len returns the number of model parts in the tree, including the root.
func (t *Tree) Len() int { return len(t.parts) }

const noParent = -1

// ModelPart is a named node of a Tree. It shares subsets of the tree's nodes,
// elements, conditions and properties.
//
// A ModelPart is not safe for concurrent use; callers serialise all operations
// on the same tree.
type ModelPart struct {
	Annotations
	tree     *Tree
	index    int // position within tree.parts
	parent   int // position of the parent within tree.parts, or noParent
	name     string
	children []int
	byName   map[string]int

	nodes      EntitySet[*Node]
	elements   EntitySet[*Element]
	conditions EntitySet[*Condition]
	properties EntitySet[*Properties]
}

// NewModelPart returns the root of a new, empty tree.
func NewModelPart(name string) (*ModelPart, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	t := &Tree{}
	root := &ModelPart{tree: t, index: 0, parent: noParent, name: name}
	t.parts = append(t.parts, root)
	return root, nil
}

// ValidateName checks that name is usable as a model part name: it must be
// non-empty and must not contain the path separator '.'.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("name %q contains '.': %w", name, ErrInvalidName)
	}
	return nil
}

// Name returns the local name of p, unique among its siblings.
func (p *ModelPart) Name() string { return p.name }

// Tree returns the tree owning p and every other part related to it.
func (p *ModelPart) Tree() *Tree { return p.tree }

// IsRoot reports whether p has no parent.
func (p *ModelPart) IsRoot() bool { return p.parent == noParent }

func (p *ModelPart) String() string { return "ModelPart(" + p.FullName() + ")" }

// GetRoot returns the root of the tree p belongs to; the root returns itself.
func (p *ModelPart) GetRoot() *ModelPart { return p.tree.Root() }

// GetParent returns the parent of p, or fails with ErrNoParent if p is the root.
func (p *ModelPart) GetParent() (*ModelPart, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("%q is the root: %w", p.name, ErrNoParent)
	}
	return p.tree.parts[p.parent], nil
}

// FullName returns the dot-joined names of the model parts from the root down
// to p. The root's full name is its own name.
func (p *ModelPart) FullName() string {
	path := p.path()
	names := make([]string, len(path))
	for i, q := range path {
		names[i] = q.name
	}
	return strings.Join(names, ".")
}

// Path returns the model parts from the root down to p, both inclusive.
func (p *ModelPart) Path() []*ModelPart {
	return p.path()
}

func (p *ModelPart) path() []*ModelPart {
	var reversed []*ModelPart
	for q := p; ; q = q.tree.parts[q.parent] {
		reversed = append(reversed, q)
		if q.IsRoot() {
			break
		}
	}
	path := make([]*ModelPart, len(reversed))
	for i, q := range reversed {
		path[len(reversed)-1-i] = q
	}
	return path
}

// ---- sub model parts ----

// CreateSubModelPart creates a child of p. It fails with ErrInvalidName if name
// is empty or contains '.', and with ErrDuplicateName if p already has a child
// with that name.
func (p *ModelPart) CreateSubModelPart(name string) (*ModelPart, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if p.HasSubModelPart(name) {
		return nil, fmt.Errorf("%q already has a sub model part %q: %w", p.FullName(), name, ErrDuplicateName)
	}
	child := &ModelPart{
		tree:   p.tree,
		index:  len(p.tree.parts),
		parent: p.index,
		name:   name,
	}
	p.tree.parts = append(p.tree.parts, child)
	if p.byName == nil {
		p.byName = make(map[string]int)
	}
	p.byName[name] = child.index
	p.children = append(p.children, child.index)
	return child, nil
}

// HasSubModelPart reports whether p has a direct child with the given name.
func (p *ModelPart) HasSubModelPart(name string) bool {
	_, ok := p.byName[name]
	return ok
}

// GetSubModelPart returns the direct child of p with the given name, or fails
// with ErrNotFound.
func (p *ModelPart) GetSubModelPart(name string) (*ModelPart, error) {
	i, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("%q has no sub model part %q: %w", p.FullName(), name, ErrNotFound)
	}
	return p.tree.parts[i], nil
}

// GetSubModelPartByPath walks the dotted path (e.g. "a.b.c") starting from p.
// The empty path denotes p itself.
func (p *ModelPart) GetSubModelPartByPath(path string) (*ModelPart, error) {
	if path == "" {
		return p, nil
	}
	q := p
	for _, name := range strings.Split(path, ".") {
		var err error
		if q, err = q.GetSubModelPart(name); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// GetOrCreateSubModelPartByPath walks the dotted path starting from p, creating
// every missing model part along the way. The empty path denotes p itself.
func (p *ModelPart) GetOrCreateSubModelPartByPath(path string) (*ModelPart, error) {
	if path == "" {
		return p, nil
	}
	q := p
	for _, name := range strings.Split(path, ".") {
		if next, err := q.GetSubModelPart(name); err == nil {
			q = next
			continue
		}
		next, err := q.CreateSubModelPart(name)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
		q = next
	}
	return q, nil
}

// NumberOfSubModelParts returns the number of direct children of p.
func (p *ModelPart) NumberOfSubModelParts() int { return len(p.children) }

// SubModelParts iterates over the direct children of p in creation order.
func (p *ModelPart) SubModelParts() iter.Seq[*ModelPart] {
	return func(yield func(*ModelPart) bool) {
		for _, i := range p.children {
			if !yield(p.tree.parts[i]) {
				return
			}
		}
	}
}

// ---- nodes ----

// CreateNode returns the node with the given id and coordinates, creating it
// if the tree has no such node yet.
//
// Identity is resolved at the root: if the root already has a node with the
// given id, its coordinates must be within NodeTolerance of the requested ones
// (otherwise CreateNode fails with a *ConflictingNodeError) and the existing
// node is reused. The node is then added to every model part from the root
// down to p.
func (p *ModelPart) CreateNode(id int, x, y, z float64) (*Node, error) {
	if id <= 0 {
		return nil, fmt.Errorf("node %d: %w", id, ErrInvalidID)
	}
	root := p.GetRoot()
	node, err := root.nodes.Get(id)
	if err == nil {
		// NaN distances fail the comparison and count as conflicts.
		if !(node.Distance(x, y, z) <= NodeTolerance) {
			return nil, &ConflictingNodeError{
				ID:        id,
				Existing:  node.Coordinates(),
				Requested: [3]float64{x, y, z},
			}
		}
	} else {
		node = &Node{id: id, x: x, y: y, z: z}
	}
	if err := insertAlongPath(p, node, func(q *ModelPart) *EntitySet[*Node] { return &q.nodes }); err != nil {
		return nil, err
	}
	return node, nil
}

// AddNode adds an existing node (usually obtained from another model part of
// the same tree) to p alone. Its content is not validated; AddNode only fails
// with ErrIdConflict if p already has a different node with the same id.
func (p *ModelPart) AddNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("add nil node to %q: %w", p.FullName(), ErrUnknownEntity)
	}
	if err := p.nodes.Insert(node); err != nil {
		return fmt.Errorf("add node to %q: %w", p.FullName(), err)
	}
	return nil
}

// AddNodes adds the root's nodes with the given ids to p. It fails with
// ErrUnknownEntity, without adding anything, if any id is absent at the root.
func (p *ModelPart) AddNodes(ids ...int) error {
	return addByID(p, "nodes", ids, func(q *ModelPart) *EntitySet[*Node] { return &q.nodes })
}

// Node accessors only consider the nodes held by p itself.
func (p *ModelPart) HasNode(id int) bool           { return p.nodes.Contains(id) }
func (p *ModelPart) GetNode(id int) (*Node, error) { return getLocal(p, "node", id, &p.nodes) }
func (p *ModelPart) NumberOfNodes() int            { return p.nodes.Len() }
func (p *ModelPart) Nodes() iter.Seq[*Node]        { return p.nodes.All() }
func (p *ModelPart) NodeIDs() *roaring64.Bitmap    { return p.nodes.IDs() }
func (p *ModelPart) MaxNodeID() int                { return p.nodes.MaxID() }

// ---- elements & conditions ----

// CreateElement returns the element with the given id, creating it if the tree
// has no such element yet.
//
// Identity is resolved at the root: an existing element with the same id must
// have the same type name and the same ordered node ids (otherwise
// CreateElement fails with a *ConflictingEntityError), and is reused as is. A
// new element requires all of its nodes to exist at the root (ErrUnknownNode
// otherwise). The element is then added to every model part from the root down
// to p.
func (p *ModelPart) CreateElement(typeName string, id int, nodeIDs []int, props *Properties) (*Element, error) {
	return createObject(p, KindElement, typeName, id, nodeIDs, props,
		func(q *ModelPart) *EntitySet[*Element] { return &q.elements },
		func(g GeometricalObject) *Element { return &Element{g} },
	)
}

// CreateCondition mirrors CreateElement for conditions, which have their own
// id space.
func (p *ModelPart) CreateCondition(typeName string, id int, nodeIDs []int, props *Properties) (*Condition, error) {
	return createObject(p, KindCondition, typeName, id, nodeIDs, props,
		func(q *ModelPart) *EntitySet[*Condition] { return &q.conditions },
		func(g GeometricalObject) *Condition { return &Condition{g} },
	)
}

// AddElement adds an existing element to p alone, without validating its
// content. It fails with ErrIdConflict if p already has a different element
// with the same id.
func (p *ModelPart) AddElement(e *Element) error {
	if e == nil {
		return fmt.Errorf("add nil element to %q: %w", p.FullName(), ErrUnknownEntity)
	}
	if err := p.elements.Insert(e); err != nil {
		return fmt.Errorf("add element to %q: %w", p.FullName(), err)
	}
	return nil
}

// AddCondition adds an existing condition to p alone, without validating its
// content. It fails with ErrIdConflict if p already has a different condition
// with the same id.
func (p *ModelPart) AddCondition(c *Condition) error {
	if c == nil {
		return fmt.Errorf("add nil condition to %q: %w", p.FullName(), ErrUnknownEntity)
	}
	if err := p.conditions.Insert(c); err != nil {
		return fmt.Errorf("add condition to %q: %w", p.FullName(), err)
	}
	return nil
}

// AddElements adds the root's elements with the given ids to p. It fails with
// ErrUnknownEntity, without adding anything, if any id is absent at the root.
func (p *ModelPart) AddElements(ids ...int) error {
	return addByID(p, "elements", ids, func(q *ModelPart) *EntitySet[*Element] { return &q.elements })
}

// AddConditions adds the root's conditions with the given ids to p. It fails
// with ErrUnknownEntity, without adding anything, if any id is absent at the
// root.
func (p *ModelPart) AddConditions(ids ...int) error {
	return addByID(p, "conditions", ids, func(q *ModelPart) *EntitySet[*Condition] { return &q.conditions })
}

// Element and condition accessors only consider the entities held by p
// itself; the Max*ID methods return 0 when p holds none.
func (p *ModelPart) HasElement(id int) bool                  { return p.elements.Contains(id) }
func (p *ModelPart) GetElement(id int) (*Element, error)     { return getLocal(p, "element", id, &p.elements) }
func (p *ModelPart) NumberOfElements() int                   { return p.elements.Len() }
func (p *ModelPart) Elements() iter.Seq[*Element]            { return p.elements.All() }
func (p *ModelPart) ElementIDs() *roaring64.Bitmap           { return p.elements.IDs() }
func (p *ModelPart) MaxElementID() int                       { return p.elements.MaxID() }
func (p *ModelPart) HasCondition(id int) bool                { return p.conditions.Contains(id) }
func (p *ModelPart) GetCondition(id int) (*Condition, error) { return getLocal(p, "condition", id, &p.conditions) }
func (p *ModelPart) NumberOfConditions() int                 { return p.conditions.Len() }
func (p *ModelPart) Conditions() iter.Seq[*Condition]        { return p.conditions.All() }
func (p *ModelPart) ConditionIDs() *roaring64.Bitmap         { return p.conditions.IDs() }
func (p *ModelPart) MaxConditionID() int                     { return p.conditions.MaxID() }

// ---- properties ----

// CreateProperties creates properties with the given id in p alone. It fails
// with ErrAlreadyExists if p already has properties with that id; ancestors are
// not searched.
func (p *ModelPart) CreateProperties(id int) (*Properties, error) {
	if id <= 0 {
		return nil, fmt.Errorf("properties %d: %w", id, ErrInvalidID)
	}
	if p.properties.Contains(id) {
		return nil, fmt.Errorf("%q already has properties %d: %w", p.FullName(), id, ErrAlreadyExists)
	}
	props := &Properties{id: id}
	if err := p.properties.Insert(props); err != nil {
		return nil, err
	}
	return props, nil
}

// HasProperties reports whether p itself has properties with the given id.
func (p *ModelPart) HasProperties(id int) bool {
	return p.properties.Contains(id)
}

// RecursivelyHasProperties reports whether p or any of its ancestors has
// properties with the given id.
func (p *ModelPart) RecursivelyHasProperties(id int) bool {
	_, ok := p.findProperties(id)
	return ok
}

// GetProperties returns the properties with the given id. If p does not have
// them but an ancestor does, the ancestor's properties are added to p (sharing
// the same object) and returned. Otherwise GetProperties fails with
// ErrNotFound.
func (p *ModelPart) GetProperties(id int) (*Properties, error) {
	props, ok := p.findProperties(id)
	if !ok {
		return nil, fmt.Errorf("%q has no properties %d: %w", p.FullName(), id, ErrNotFound)
	}
	if err := p.properties.Insert(props); err != nil {
		return nil, err
	}
	return props, nil
}

// findProperties searches p, then its ancestors, closest first.
func (p *ModelPart) findProperties(id int) (*Properties, bool) {
	for q := p; ; q = q.tree.parts[q.parent] {
		if props, err := q.properties.Get(id); err == nil {
			return props, true
		}
		if q.IsRoot() {
			return nil, false
		}
	}
}

// NumberOfProperties and Properties cover the properties held by p, not those
// it can reach through its ancestors.
func (p *ModelPart) NumberOfProperties() int           { return p.properties.Len() }
func (p *ModelPart) Properties() iter.Seq[*Properties] { return p.properties.All() }

// ---- helpers ----

// insertAlongPath inserts v into the set selected by sel of every model part
// from the root down to p, in that order.
func insertAlongPath[T Identifiable](p *ModelPart, v T, sel func(*ModelPart) *EntitySet[T]) error {
	for _, q := range p.path() {
		if err := sel(q).Insert(v); err != nil {
			return fmt.Errorf("model part %q: %w", q.FullName(), err)
		}
	}
	return nil
}

func getLocal[T Identifiable](p *ModelPart, what string, id int, set *EntitySet[T]) (T, error) {
	v, err := set.Get(id)
	if err != nil {
		return v, fmt.Errorf("%q has no %s %d: %w", p.FullName(), what, id, ErrNotFound)
	}
	return v, nil
}

func addByID[T Identifiable](p *ModelPart, what string, ids []int, sel func(*ModelPart) *EntitySet[T]) error {
	root := sel(p.GetRoot())
	found := make([]T, 0, len(ids))
	var missing []int
	for _, id := range ids {
		v, err := root.Get(id)
		if err != nil {
			missing = append(missing, id)
			continue
		}
		found = append(found, v)
	}
	if len(missing) != 0 {
		return fmt.Errorf("add to %q: no %s with ids %v at the root: %w", p.FullName(), what, missing, ErrUnknownEntity)
	}
	set := sel(p)
	var errs []error
	for _, v := range found {
		if err := set.Insert(v); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("add to %q: %w", p.FullName(), err)
	}
	return nil
}

// geometrical is implemented by *Element and *Condition through their embedded
// GeometricalObject.
type geometrical interface {
	Identifiable
	geometry() *GeometricalObject
}

func (g *GeometricalObject) geometry() *GeometricalObject { return g }

func createObject[T geometrical](
	p *ModelPart,
	kind Kind,
	typeName string,
	id int,
	nodeIDs []int,
	props *Properties,
	sel func(*ModelPart) *EntitySet[T],
	wrap func(GeometricalObject) T,
) (T, error) {
	var zero T
	if id <= 0 {
		return zero, fmt.Errorf("%s %d: %w", kind, id, ErrInvalidID)
	}
	root := p.GetRoot()
	obj, err := sel(root).Get(id)
	if err == nil {
		existing := obj.geometry()
		if existing.hash != connectivityAddress(kind, typeName, nodeIDs) {
			return zero, &ConflictingEntityError{
				Kind:           kind,
				ID:             id,
				ExistingType:   existing.typeName,
				ExistingNodes:  existing.NodeIDs(),
				RequestedType:  typeName,
				RequestedNodes: append([]int(nil), nodeIDs...),
			}
		}
	} else {
		if props == nil {
			return zero, fmt.Errorf("%s %d: %w", kind, id, ErrMissingProperties)
		}
		nodes := make([]*Node, len(nodeIDs))
		var missing []int
		for i, nid := range nodeIDs {
			n, err := root.nodes.Get(nid)
			if err != nil {
				missing = append(missing, nid)
				continue
			}
			nodes[i] = n
		}
		if len(missing) != 0 {
			return zero, fmt.Errorf("%s %d references nodes %v absent from %q: %w", kind, id, missing, root.name, ErrUnknownNode)
		}
		obj = wrap(newGeometricalObject(kind, id, typeName, nodes, props))
	}
	if err := insertAlongPath(p, obj, sel); err != nil {
		return zero, err
	}
	return obj, nil
}
