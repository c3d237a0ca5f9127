package geometriesio

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-digitaltwin/go-modelpart"
)

// EntityMapping maps a geometry type to the entities that should be created
// for each of its geometric entities: target type name -> properties id.
//
// For example, {"Triangle": {"Element2D3N": 1, "ShellThinElement3D3N": 2}}
// creates two elements for every triangle of the mesh.
type EntityMapping map[string]map[string]int

// MeshDescription declares how one mesh source contributes to a tree: which
// elements and conditions to create from which geometry types, and the dotted
// path (relative to the root, empty for the root itself) of the model part
// receiving them.
type MeshDescription struct {
	Source     MeshSource
	Elements   EntityMapping
	Conditions EntityMapping
	ModelPart  string
}

// Validate reports whether d is well-formed. It fails with
// ErrInvalidDescription describing every problem found.
func (d MeshDescription) Validate() error {
	var errs []error
	if d.Source == nil {
		errs = append(errs, errors.New("no mesh source"))
	}
	errs = append(errs, validateMapping("elements", d.Elements)...)
	errs = append(errs, validateMapping("conditions", d.Conditions)...)
	if d.ModelPart != "" {
		for _, name := range strings.Split(d.ModelPart, ".") {
			if err := modelpart.ValidateName(name); err != nil {
				errs = append(errs, fmt.Errorf("model part %q: %w", d.ModelPart, err))
				break
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}
	return nil
}

func validateMapping(what string, m EntityMapping) []error {
	var errs []error
	for _, geometryType := range slices.Sorted(maps.Keys(m)) {
		targets := m[geometryType]
		if geometryType == "" {
			errs = append(errs, fmt.Errorf("%s: empty geometry type", what))
		}
		if len(targets) == 0 {
			errs = append(errs, fmt.Errorf("%s: geometry type %q maps to nothing", what, geometryType))
		}
		for _, typeName := range slices.Sorted(maps.Keys(targets)) {
			if typeName == "" {
				errs = append(errs, fmt.Errorf("%s: geometry type %q maps to an empty type name", what, geometryType))
			}
			if id := targets[typeName]; id <= 0 {
				errs = append(errs, fmt.Errorf("%s: %q uses non-positive properties id %d", what, typeName, id))
			}
		}
	}
	return errs
}

// geometryTypes returns the sorted union of the geometry types that d requests
// elements or conditions for.
func (d MeshDescription) geometryTypes() []string {
	set := make(map[string]struct{}, len(d.Elements)+len(d.Conditions))
	for t := range d.Elements {
		set[t] = struct{}{}
	}
	for t := range d.Conditions {
		set[t] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
