// Package mdpa reads and writes model part trees in the solver's line-oriented
// text format.
//
// A document is a sequence of blocks, each opened by "Begin <Section> [args]"
// and closed by "End <Section>":
//
//	Begin ModelPartData
//	  GRAVITY [3] (0.0, 0.0, -9.81)
//	End ModelPartData
//
//	Begin Properties 1
//	  DENSITY 7850.0
//	End Properties
//
//	Begin Nodes
//	  1 0.0000000000 0.0000000000 0.0000000000
//	End Nodes
//
//	Begin Elements Element2D3N
//	  1 1 1 2 3
//	End Elements
//
//	Begin NodalData TEMPERATURE
//	  1 293.15
//	End NodalData
//
//	Begin SubModelPart inlet
//	  Begin SubModelPartNodes
//	    1
//	  End SubModelPartNodes
//	End SubModelPart
//
// Element and condition lines list the entity id, its properties id, then its
// node ids. ModelPartData, Properties, SubModelPartData and the NodalData,
// ElementalData and ConditionalData blocks carry annotations, whose values may
// be ints, floats, bools, quoted strings or vectors of floats.
//
// Blank lines and text following "//" are ignored.
package mdpa

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax           = errors.New("mdpa: syntax error")
	ErrUnsupportedValue = errors.New("mdpa: unsupported annotation value")
	ErrNotEmpty         = errors.New("mdpa: model part is not empty")
)

// A SyntaxError reports a malformed line of a document.
type SyntaxError struct {
	Line int
	Msg  string
	Err  error // underlying cause, if any
}

func (e *SyntaxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mdpa: line %d: %s: %v", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("mdpa: line %d: %s", e.Line, e.Msg)
}

// Unwrap returns ErrSyntax and the underlying cause, so that errors.Is matches
// both (e.g. a modelpart.ErrConflictingNode raised while reading).
func (e *SyntaxError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSyntax, e.Err}
	}
	return []error{ErrSyntax}
}
