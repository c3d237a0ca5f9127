package mdpa

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"iter"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/go-digitaltwin/go-modelpart"
)

// DefaultPrecision is the number of decimals written for node coordinates.
const DefaultPrecision = 10

// An Option configures Write.
type Option func(*writer)

// WithPrecision sets the number of decimals written for node coordinates.
func WithPrecision(decimals int) Option {
	return func(w *writer) { w.precision = decimals }
}

// WithIndent sets the string written once per nesting level in front of every
// line; the default is two spaces.
func WithIndent(indent string) Option {
	return func(w *writer) { w.indent = indent }
}

// Write writes part and all of its sub model parts to out. The part's own name
// is not part of the format.
//
// Every properties object of the tree is written once, at the top level, in
// ascending id order; when sibling model parts hold distinct properties with the
// same id, the first one met depth-first wins. Entities are written in
// insertion order, elements and conditions grouped by type name.
func Write(out io.Writer, part *modelpart.ModelPart, opts ...Option) error {
	w := &writer{
		w:         bufio.NewWriter(out),
		precision: DefaultPrecision,
		indent:    "  ",
	}
	for _, opt := range opts {
		opt(w)
	}
	w.root(part)
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("mdpa: write: %w", err)
	}
	return nil
}

type writer struct {
	w         *bufio.Writer
	precision int
	indent    string
	depth     int
	// err is the first annotation that could not be written; write errors are
	// reported by the final Flush.
	err error
}

func (w *writer) line(format string, args ...any) {
	for range w.depth {
		w.w.WriteString(w.indent)
	}
	fmt.Fprintf(w.w, format, args...)
	w.w.WriteByte('\n')
}

func (w *writer) begin(section string, args ...string) {
	w.line("%s", strings.Join(append([]string{"Begin", section}, args...), " "))
	w.depth++
}

func (w *writer) end(section string) {
	w.depth--
	w.line("End %s", section)
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) root(p *modelpart.ModelPart) {
	w.begin("ModelPartData")
	w.annotations(&p.Annotations)
	w.end("ModelPartData")
	w.w.WriteByte('\n')

	for _, props := range distinctProperties(p) {
		w.begin("Properties", strconv.Itoa(props.ID()))
		w.annotations(&props.Annotations)
		w.end("Properties")
		w.w.WriteByte('\n')
	}

	w.begin("Nodes")
	for n := range p.Nodes() {
		w.line("%d %.*f %.*f %.*f", n.ID(), w.precision, n.X(), w.precision, n.Y(), w.precision, n.Z())
	}
	w.end("Nodes")
	w.w.WriteByte('\n')

	writeObjects(w, "Elements", p.Elements())
	writeObjects(w, "Conditions", p.Conditions())

	writeData(w, "NodalData", p.Nodes())
	writeData(w, "ElementalData", p.Elements())
	writeData(w, "ConditionalData", p.Conditions())

	for sub := range p.SubModelParts() {
		w.subModelPart(sub)
		w.w.WriteByte('\n')
	}
}

func (w *writer) subModelPart(p *modelpart.ModelPart) {
	w.begin("SubModelPart", p.Name())

	w.begin("SubModelPartData")
	w.annotations(&p.Annotations)
	w.end("SubModelPartData")

	w.begin("SubModelPartProperties")
	for props := range p.Properties() {
		w.line("%d", props.ID())
	}
	w.end("SubModelPartProperties")

	writeIDs(w, "SubModelPartNodes", p.Nodes())
	writeIDs(w, "SubModelPartElements", p.Elements())
	writeIDs(w, "SubModelPartConditions", p.Conditions())

	for sub := range p.SubModelParts() {
		w.subModelPart(sub)
	}
	w.end("SubModelPart")
}

func (w *writer) annotations(a *modelpart.Annotations) {
	for _, key := range a.Keys() {
		v, _ := a.Get(key)
		s, err := formatValue(v)
		if err != nil {
			w.fail(fmt.Errorf("mdpa: annotation %q: %w", key, err))
			continue
		}
		w.line("%s %s", key, s)
	}
}

type object interface {
	ID() int
	TypeName() string
	NodeIDs() []int
	Properties() *modelpart.Properties
}

func writeObjects[T object](w *writer, section string, all iter.Seq[T]) {
	var types []string
	byType := make(map[string][]T)
	for o := range all {
		t := o.TypeName()
		if _, ok := byType[t]; !ok {
			types = append(types, t)
		}
		byType[t] = append(byType[t], o)
	}
	for _, t := range types {
		w.begin(section, t)
		for _, o := range byType[t] {
			ids := o.NodeIDs()
			fields := make([]string, 0, 2+len(ids))
			fields = append(fields, strconv.Itoa(o.ID()), strconv.Itoa(o.Properties().ID()))
			for _, id := range ids {
				fields = append(fields, strconv.Itoa(id))
			}
			w.line("%s", strings.Join(fields, " "))
		}
		w.end(section)
		w.w.WriteByte('\n')
	}
}

type annotated interface {
	ID() int
	Keys() []string
	Get(key string) (any, error)
}

// writeData writes one block per annotation key found on any of the entities,
// keys in ascending order.
func writeData[T annotated](w *writer, section string, all iter.Seq[T]) {
	keys := make(map[string]struct{})
	var entities []T
	for e := range all {
		for _, k := range e.Keys() {
			keys[k] = struct{}{}
		}
		entities = append(entities, e)
	}
	for _, key := range slices.Sorted(maps.Keys(keys)) {
		w.begin(section, key)
		for _, e := range entities {
			v, err := e.Get(key)
			if err != nil {
				continue
			}
			s, err := formatValue(v)
			if err != nil {
				w.fail(fmt.Errorf("mdpa: %s %q of %d: %w", section, key, e.ID(), err))
				continue
			}
			w.line("%d %s", e.ID(), s)
		}
		w.end(section)
		w.w.WriteByte('\n')
	}
}

func writeIDs[T interface{ ID() int }](w *writer, section string, all iter.Seq[T]) {
	w.begin(section)
	for e := range all {
		w.line("%d", e.ID())
	}
	w.end(section)
}

// distinctProperties collects the properties of the whole tree, one per id.
func distinctProperties(root *modelpart.ModelPart) []*modelpart.Properties {
	seen := make(map[int]*modelpart.Properties)
	modelpart.Inspect(root, func(p *modelpart.ModelPart) bool {
		if p == nil {
			return false
		}
		for props := range p.Properties() {
			if _, ok := seen[props.ID()]; !ok {
				seen[props.ID()] = props
			}
		}
		return true
	})
	return slices.SortedFunc(maps.Values(seen), func(a, b *modelpart.Properties) int {
		return cmp.Compare(a.ID(), b.ID())
	})
}
