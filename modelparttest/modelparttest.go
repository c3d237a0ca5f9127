/*
Package modelparttest provides checks of the structural invariants of model part
trees, for tests of code that populates trees (e.g. mesh mergers and readers).

Call Verify at the end of such a test:

	func TestMerge(t *testing.T) {
		root, _ := modelpart.NewModelPart("Main")
		// Populate the tree under test.
		modelparttest.Verify(t, root, modelparttest.Invariants()...)
	}

Checks report problems as plain sentences; Verify turns each of them into a test
error, so a single run reports every violated invariant.
*/
package modelparttest

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/go-modelpart"
)

// A Check is any function that returns unexpected problems with the tree rooted
// at the given model part.
type Check func(root *modelpart.ModelPart) (problems []string)

// Verify runs the checks against the tree of root and reports every problem
// found as a test error.
func Verify(t testing.TB, root *modelpart.ModelPart, checks ...Check) {
	t.Helper()
	for _, check := range checks {
		for _, problem := range check(root) {
			t.Errorf("Check %s: %s", root, problem)
		}
	}
}

// Invariants returns the checks every tree must pass, however it was built.
func Invariants() []Check {
	return []Check{SubsetAlongPath(), NodesAtRoot(), PropertiesHeld()}
}

// SubsetAlongPath checks that every node, element and condition of a sub model
// part is also, as the very same object, in its parent.
func SubsetAlongPath() Check {
	return func(root *modelpart.ModelPart) (problems []string) {
		eachPart(root, func(p *modelpart.ModelPart) {
			parent, err := p.GetParent()
			if err != nil {
				return // the root
			}
			for n := range p.Nodes() {
				if got, err := parent.GetNode(n.ID()); err != nil || got != n {
					problems = append(problems, fmt.Sprintf("%s has %v but its parent %s does not", p, n, parent))
				}
			}
			for e := range p.Elements() {
				if got, err := parent.GetElement(e.ID()); err != nil || got != e {
					problems = append(problems, fmt.Sprintf("%s has %v but its parent %s does not", p, e, parent))
				}
			}
			for c := range p.Conditions() {
				if got, err := parent.GetCondition(c.ID()); err != nil || got != c {
					problems = append(problems, fmt.Sprintf("%s has %v but its parent %s does not", p, c, parent))
				}
			}
		})
		return problems
	}
}

// NodesAtRoot checks that the nodes of every element and condition of the tree
// are the root's nodes.
func NodesAtRoot() Check {
	return func(root *modelpart.ModelPart) (problems []string) {
		check := func(what fmt.Stringer, nodes []*modelpart.Node) {
			for _, n := range nodes {
				if got, err := root.GetNode(n.ID()); err != nil || got != n {
					problems = append(problems, fmt.Sprintf("%v uses %v, which is not a node of the root", what, n))
				}
			}
		}
		for e := range root.Elements() {
			check(e, e.Nodes())
		}
		for c := range root.Conditions() {
			check(c, c.Nodes())
		}
		return problems
	}
}

// PropertiesHeld checks that every element and condition of the tree uses
// properties held by some model part of the tree.
func PropertiesHeld() Check {
	return func(root *modelpart.ModelPart) (problems []string) {
		held := make(map[*modelpart.Properties]bool)
		eachPart(root, func(p *modelpart.ModelPart) {
			for props := range p.Properties() {
				held[props] = true
			}
		})
		for e := range root.Elements() {
			if !held[e.Properties()] {
				problems = append(problems, fmt.Sprintf("%v uses %v, which no model part has", e, e.Properties()))
			}
		}
		for c := range root.Conditions() {
			if !held[c.Properties()] {
				problems = append(problems, fmt.Sprintf("%v uses %v, which no model part has", c, c.Properties()))
			}
		}
		return problems
	}
}

// Shape checks that the tree has exactly the given structure, as formatted by
// modelpart.Format with a two-space indent.
func Shape(want string) Check {
	return func(root *modelpart.ModelPart) []string {
		if diff := cmp.Diff(want, modelpart.Format(root, "  ")); diff != "" {
			return []string{fmt.Sprintf("shape mismatch (-want +got):\n%s", diff)}
		}
		return nil
	}
}

func eachPart(root *modelpart.ModelPart, f func(*modelpart.ModelPart)) {
	modelpart.Inspect(root, func(p *modelpart.ModelPart) bool {
		if p != nil {
			f(p)
		}
		return true
	})
}
