package geometriesio

import (
	"errors"
	"fmt"

	"github.com/go-digitaltwin/go-modelpart"
)

// The kinds of failures reported by AddMeshes, in addition to those of the
// modelpart package. Compare against them with errors.Is.
var (
	ErrNotRoot             = errors.New("model part is not a root")
	ErrNonEmptyRoot        = errors.New("root model part already has nodes")
	ErrInconsistentSources = errors.New("mesh sources belong to different main meshes")
	ErrInvalidDescription  = errors.New("invalid mesh description")
	ErrInvalidConnectivity = errors.New("invalid connectivity")
	ErrPropertiesMismatch  = errors.New("properties mismatch")
)

// PropertiesMismatchError reports that the same origin geometry was requested
// as the same entity type with two different properties ids within one merge.
type PropertiesMismatchError struct {
	Kind      modelpart.Kind
	TypeName  string
	OriginID  int
	Existing  int // properties id of the entity created first
	Requested int
}

func (e *PropertiesMismatchError) Error() string {
	return fmt.Sprintf("Trying to use properties with Id %d with an existing %s that has properties Id %d (%s of origin geometry %d)",
		e.Requested, e.Kind, e.Existing, e.TypeName, e.OriginID)
}

func (e *PropertiesMismatchError) Unwrap() error { return ErrPropertiesMismatch }
