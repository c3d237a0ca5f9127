package modelpart

import (
	"errors"
	"fmt"
)

// The kinds of failures reported by model-part operations. Callers should
// compare against them with errors.Is; most are wrapped with a message naming
// the offending id or name.
var (
	ErrKeyNotFound       = errors.New("annotation key not found")
	ErrAnnotationType    = errors.New("annotation has unexpected type")
	ErrInvalidName       = errors.New("invalid model part name")
	ErrDuplicateName     = errors.New("duplicate model part name")
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("id must be positive")
	ErrNoParent          = errors.New("model part has no parent")
	ErrConflictingNode   = errors.New("conflicting node")
	ErrConflictingEntity = errors.New("conflicting entity")
	ErrUnknownNode       = errors.New("unknown node")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrIdConflict        = errors.New("id conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrMissingProperties = errors.New("missing properties")
)

// ConflictingNodeError reports an attempt to create a node with an existing id
// but with different coordinates. Both coordinate triplets are reported exactly.
type ConflictingNodeError struct {
	ID        int
	Existing  [3]float64
	Requested [3]float64
}

func (e *ConflictingNodeError) Error() string {
	return fmt.Sprintf("a node with id %d already exists at (%v, %v, %v); cannot create it at (%v, %v, %v)",
		e.ID,
		e.Existing[0], e.Existing[1], e.Existing[2],
		e.Requested[0], e.Requested[1], e.Requested[2],
	)
}

func (e *ConflictingNodeError) Unwrap() error { return ErrConflictingNode }

// ConflictingEntityError reports an attempt to create an element or condition
// with an existing id but with a different type name or connectivity.
type ConflictingEntityError struct {
	Kind           Kind
	ID             int
	ExistingType   string
	ExistingNodes  []int
	RequestedType  string
	RequestedNodes []int
}

func (e *ConflictingEntityError) Error() string {
	return fmt.Sprintf("%s %d already exists as %q with nodes %v; cannot create it as %q with nodes %v",
		e.Kind, e.ID, e.ExistingType, e.ExistingNodes, e.RequestedType, e.RequestedNodes)
}

func (e *ConflictingEntityError) Unwrap() error { return ErrConflictingEntity }
