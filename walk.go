package modelpart

import (
	"fmt"
	"strings"
)

// A Visitor defines a Visit method invoked for each ModelPart encountered by
// Walk. If the result visitor w is not nil, Walk visits each sub model part of
// the part with the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(part *ModelPart) (w Visitor)
}

// Walk traverses a tree of model parts in depth-first order: It starts by
// calling v.Visit(part). If the visitor w returned by v.Visit(part) is not nil,
// Walk is invoked recursively with visitor w for each sub model part, in
// creation order, followed by a call of w.Visit(nil).
func Walk(v Visitor, part *ModelPart) {
	// Start by calling v.Visit(part).
	if v = v.Visit(part); v == nil {
		return
	}
	// Then traverse the sub model parts, depth-first.
	for child := range part.SubModelParts() {
		Walk(v, child)
	}
	// Finally, call v.Visit(nil).
	v.Visit(nil)
}

type inspector func(part *ModelPart) bool

func (f inspector) Visit(part *ModelPart) Visitor {
	if f(part) {
		return f
	}
	return nil
}

// Inspect traverses a tree of model parts in depth-first order: It starts by
// calling f(part). If f returns true, Inspect invokes f recursively for each
// sub model part, followed by a call of f(nil).
func Inspect(part *ModelPart, f func(part *ModelPart) bool) {
	Walk(inspector(f), part)
}

// Format returns a human-readable outline of the given model part and all its
// descendants, one model part per line, with entity counts. The indent string
// is prepended once per nesting level.
func Format(part *ModelPart, indent string) string {
	var (
		b     strings.Builder
		depth int
	)
	Inspect(part, func(p *ModelPart) bool {
		if p == nil {
			depth--
			return false
		}
		fmt.Fprintf(&b, "%s%s (nodes=%d elements=%d conditions=%d properties=%d)\n",
			strings.Repeat(indent, depth), p.Name(),
			p.NumberOfNodes(), p.NumberOfElements(), p.NumberOfConditions(), p.NumberOfProperties())
		depth++
		return true
	})
	return b.String()
}
