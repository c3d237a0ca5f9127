// Package geometriesio populates a model part tree from meshes held by
// external mesh sources.
//
// A merge takes several mesh descriptions, each naming a mesh source, the
// elements and conditions to create from its geometric entities, and the model
// part receiving them. Nodes keep the ids reported by the mesh sources.
// Elements and conditions get fresh, consecutive ids, and a geometric entity
// requested as the same entity type by several descriptions becomes one shared
// entity placed in every requesting model part.
package geometriesio

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-digitaltwin/go-modelpart"
)

// AddMeshes merges the given mesh descriptions into root, in order.
//
// The root must be the root of its tree and must not have any nodes yet
// (ErrNotRoot, ErrNonEmptyRoot). Every description must be valid
// (ErrInvalidDescription), and with more than one description, all mesh
// sources must belong to the same main mesh (ErrInconsistentSources).
//
// Within a call, an origin geometry requested again as the same type name is
// reused instead of recreated, and must then be requested with the same
// properties id (*PropertiesMismatchError). Geometry types, type names and
// origin ids are processed in ascending order, so that the ids assigned to
// elements and conditions only depend on the descriptions.
//
// AddMeshes does not roll back: after a failure the tree holds everything
// merged before it.
func AddMeshes(ctx context.Context, root *modelpart.ModelPart, descriptions ...MeshDescription) (err error) {
	ctx, span := tracer.Start(ctx, "geometriesio.AddMeshes", trace.WithAttributes(
		attribute.String(rootModelPartName, root.Name()),
		attribute.Int("descriptions", len(descriptions)),
	))
	defer span.End()

	defer func(start time.Time) {
		success := err == nil
		elapsed := time.Since(start)
		measureMerge(ctx, root.Name(), success, elapsed)
		if !success {
			span.SetStatus(codes.Error, err.Error())
		}
	}(time.Now())

	logger := component.Logger(ctx).With(slog.String(rootModelPartName, root.Name()))
	ctx = component.InjectLogger(ctx, logger)

	if err := checkPreconditions(root, descriptions); err != nil {
		return err
	}

	m := newMerger(root)
	for i, d := range descriptions {
		if err := m.merge(ctx, d); err != nil {
			return fmt.Errorf("mesh description %d (model part %q): %w", i, d.ModelPart, err)
		}
	}
	logger.Info("Meshes merged",
		slog.Int("descriptions", len(descriptions)),
		slog.Int("nodes", root.NumberOfNodes()),
		slog.Int("elements", root.NumberOfElements()),
		slog.Int("conditions", root.NumberOfConditions()),
		slog.Int("model_parts", root.Tree().Len()),
	)
	return nil
}

func checkPreconditions(root *modelpart.ModelPart, descriptions []MeshDescription) error {
	if !root.IsRoot() {
		return fmt.Errorf("%s: %w", root, ErrNotRoot)
	}
	if n := root.NumberOfNodes(); n != 0 {
		return fmt.Errorf("%s has %d nodes: %w", root, n, ErrNonEmptyRoot)
	}
	for i, d := range descriptions {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("mesh description %d: %w", i, err)
		}
	}
	if len(descriptions) > 1 {
		others := make([]MeshSource, 0, len(descriptions)-1)
		for _, d := range descriptions[1:] {
			others = append(others, d.Source)
		}
		if !descriptions[0].Source.BelongsToSameMainMeshAs(others...) {
			return ErrInconsistentSources
		}
	}
	return nil
}

// merger holds the state of a single AddMeshes call.
type merger struct {
	root       *modelpart.ModelPart
	elements   *registry[*modelpart.Element]
	conditions *registry[*modelpart.Condition]
}

func newMerger(root *modelpart.ModelPart) *merger {
	return &merger{
		root: root,
		elements: &registry[*modelpart.Element]{
			kind:    modelpart.KindElement,
			created: make(map[string]map[int]*modelpart.Element),
			maxID:   (*modelpart.ModelPart).MaxElementID,
			create:  (*modelpart.ModelPart).CreateElement,
		},
		conditions: &registry[*modelpart.Condition]{
			kind:    modelpart.KindCondition,
			created: make(map[string]map[int]*modelpart.Condition),
			maxID:   (*modelpart.ModelPart).MaxConditionID,
			create:  (*modelpart.ModelPart).CreateCondition,
		},
	}
}

func (m *merger) merge(ctx context.Context, d MeshDescription) error {
	logger := component.Logger(ctx)

	part, err := m.root.GetOrCreateSubModelPartByPath(d.ModelPart)
	if err != nil {
		return err
	}
	nodes, entities, err := d.Source.GetNodesAndGeometricalEntities(d.geometryTypes())
	if err != nil {
		return fmt.Errorf("read mesh source: %w", err)
	}
	logger.Debug("Mesh source read",
		slog.String("target", part.FullName()),
		slog.Int("nodes", len(nodes)),
		slog.Int("geometry_types", len(entities)),
	)

	for _, id := range slices.Sorted(maps.Keys(nodes)) {
		c := nodes[id]
		if _, err := part.CreateNode(id, c[0], c[1], c[2]); err != nil {
			return err
		}
	}
	if err := mergeMapping(ctx, m.root, part, m.elements, d.Elements, entities); err != nil {
		return err
	}
	return mergeMapping(ctx, m.root, part, m.conditions, d.Conditions, entities)
}

func mergeMapping[T geometricalObject](ctx context.Context, root, part *modelpart.ModelPart, r *registry[T], mapping EntityMapping, entities Entities) error {
	logger := component.Logger(ctx)
	for _, geometryType := range slices.Sorted(maps.Keys(mapping)) {
		connectivities := entities[geometryType]
		if len(connectivities) == 0 {
			logger.Warn("Mesh source has no entities of a requested geometry type",
				slog.String("target", part.FullName()),
				slog.String("geometry_type", geometryType),
			)
		}
		targets := mapping[geometryType]
		for _, typeName := range slices.Sorted(maps.Keys(targets)) {
			// Properties are resolved even when there is nothing to place.
			props, err := resolveProperties(part, targets[typeName])
			if err != nil {
				return err
			}
			if len(connectivities) == 0 {
				continue
			}
			created, reused, err := r.place(root, part, geometryType, typeName, props, connectivities)
			if err != nil {
				return err
			}
			countEntities(ctx, r.kind.String(), "created", created)
			countEntities(ctx, r.kind.String(), "reused", reused)
			logger.Debug("Entities placed",
				slog.String("target", part.FullName()),
				slog.String("kind", r.kind.String()),
				slog.String("geometry_type", geometryType),
				slog.String("type_name", typeName),
				slog.Int("properties", props.ID()),
				slog.Int("created", created),
				slog.Int("reused", reused),
			)
		}
	}
	return nil
}

// resolveProperties returns the properties with the given id as seen from
// part, creating them on part if neither part nor any of its ancestors has
// them.
func resolveProperties(part *modelpart.ModelPart, id int) (*modelpart.Properties, error) {
	if part.RecursivelyHasProperties(id) {
		return part.GetProperties(id)
	}
	return part.CreateProperties(id)
}

type geometricalObject interface {
	ID() int
	TypeName() string
	NodeIDs() []int
	Properties() *modelpart.Properties
}

// registry tracks the elements (or conditions) created during one merge, by
// type name and origin geometry id.
type registry[T geometricalObject] struct {
	kind    modelpart.Kind
	created map[string]map[int]T
	maxID   func(*modelpart.ModelPart) int
	create  func(p *modelpart.ModelPart, typeName string, id int, nodeIDs []int, props *modelpart.Properties) (T, error)
}

// place puts one entity of the given type name per connectivity into part,
// reusing the entities created earlier in the merge for the same origin ids.
func (r *registry[T]) place(root, part *modelpart.ModelPart, geometryType, typeName string, props *modelpart.Properties, connectivities Connectivities) (created, reused int, err error) {
	byOrigin := r.created[typeName]
	if byOrigin == nil {
		byOrigin = make(map[int]T)
		r.created[typeName] = byOrigin
	}
	for _, origin := range slices.Sorted(maps.Keys(connectivities)) {
		if existing, ok := byOrigin[origin]; ok {
			if got := existing.Properties().ID(); got != props.ID() {
				return created, reused, &PropertiesMismatchError{
					Kind:      r.kind,
					TypeName:  typeName,
					OriginID:  origin,
					Existing:  got,
					Requested: props.ID(),
				}
			}
			// Creating with the same id and connectivity resolves to the existing
			// entity and adds it to every model part down to part.
			if _, err := r.create(part, typeName, existing.ID(), existing.NodeIDs(), existing.Properties()); err != nil {
				return created, reused, err
			}
			reused++
			continue
		}
		nodeIDs, err := Reorder(geometryType, connectivities[origin])
		if err != nil {
			return created, reused, fmt.Errorf("origin %d: %w", origin, err)
		}
		entity, err := r.create(part, typeName, r.maxID(root)+1, nodeIDs, props)
		if err != nil {
			return created, reused, err
		}
		byOrigin[origin] = entity
		created++
	}
	return created, reused, nil
}
