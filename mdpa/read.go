package mdpa

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-digitaltwin/go-modelpart"
)

// Read parses a document from r into root, which must be an empty root model
// part (ErrNotEmpty otherwise). Malformed documents fail with a *SyntaxError
// naming the offending line; unknown sections are rejected.
//
// Properties blocks all become properties of root; sub model parts then share
// them through their SubModelPartProperties listings.
func Read(r io.Reader, root *modelpart.ModelPart) error {
	if !root.IsRoot() || root.NumberOfNodes() != 0 || root.NumberOfElements() != 0 ||
		root.NumberOfConditions() != 0 || root.NumberOfProperties() != 0 || root.NumberOfSubModelParts() != 0 {
		return fmt.Errorf("read into %s: %w", root, ErrNotEmpty)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	p := &parser{sc: sc, root: root}
	if err := p.document(); err != nil {
		return err
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("mdpa: read: %w", err)
	}
	return nil
}

type parser struct {
	sc   *bufio.Scanner
	line int
	root *modelpart.ModelPart
}

// next returns the next meaningful line, split into fields, and the line
// itself without comments and surrounding spaces.
func (p *parser) next() (fields []string, text string, ok bool) {
	for p.sc.Scan() {
		p.line++
		text = strings.TrimSpace(stripComment(p.sc.Text()))
		if text == "" {
			continue
		}
		return strings.Fields(text), text, true
	}
	return nil, "", false
}

func (p *parser) errorf(cause error, format string, args ...any) error {
	return &SyntaxError{Line: p.line, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func (p *parser) document() error {
	for {
		fields, text, ok := p.next()
		if !ok {
			return nil
		}
		if len(fields) < 2 || fields[0] != "Begin" {
			return p.errorf(nil, "expected a block, got %q", text)
		}
		var err error
		switch section, args := fields[1], fields[2:]; section {
		case "ModelPartData":
			err = p.annotations(section, &p.root.Annotations)
		case "Properties":
			err = p.properties(args)
		case "Nodes":
			err = p.nodes()
		case "Elements":
			err = objects(p, section, args, p.root.CreateElement)
		case "Conditions":
			err = objects(p, section, args, p.root.CreateCondition)
		case "NodalData":
			err = p.data(section, args, func(id int) (*modelpart.Annotations, error) {
				n, err := p.root.GetNode(id)
				if err != nil {
					return nil, err
				}
				return &n.Annotations, nil
			})
		case "ElementalData":
			err = p.data(section, args, func(id int) (*modelpart.Annotations, error) {
				e, err := p.root.GetElement(id)
				if err != nil {
					return nil, err
				}
				return &e.Annotations, nil
			})
		case "ConditionalData":
			err = p.data(section, args, func(id int) (*modelpart.Annotations, error) {
				c, err := p.root.GetCondition(id)
				if err != nil {
					return nil, err
				}
				return &c.Annotations, nil
			})
		case "SubModelPart":
			err = p.subModelPart(p.root, args)
		default:
			return p.errorf(nil, "unknown block %q", section)
		}
		if err != nil {
			return err
		}
	}
}

// body calls fn for every line up to "End <section>".
func (p *parser) body(section string, fn func(fields []string, text string) error) error {
	start := p.line
	for {
		fields, text, ok := p.next()
		if !ok {
			return p.errorf(nil, "block %s opened on line %d is never closed", section, start)
		}
		if fields[0] == "End" {
			if len(fields) != 2 || fields[1] != section {
				return p.errorf(nil, "expected End %s, got %q", section, text)
			}
			return nil
		}
		if fields[0] == "Begin" {
			return p.errorf(nil, "unexpected block %q inside %s", text, section)
		}
		if err := fn(fields, text); err != nil {
			return err
		}
	}
}

func (p *parser) annotations(section string, a *modelpart.Annotations) error {
	return p.body(section, func(fields []string, text string) error {
		v, err := parseValue(strings.TrimSpace(strings.TrimPrefix(text, fields[0])))
		if err != nil {
			return p.errorf(err, "annotation %q", fields[0])
		}
		a.Set(fields[0], v)
		return nil
	})
}

func (p *parser) properties(args []string) error {
	ids, err := p.ints(args, 1, 1)
	if err != nil {
		return err
	}
	props, err := p.root.CreateProperties(ids[0])
	if err != nil {
		return p.errorf(err, "Properties %d", ids[0])
	}
	return p.annotations("Properties", &props.Annotations)
}

func (p *parser) nodes() error {
	return p.body("Nodes", func(fields []string, _ string) error {
		if len(fields) != 4 {
			return p.errorf(nil, "node lines need an id and 3 coordinates, got %d fields", len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return p.errorf(err, "node id")
		}
		var c [3]float64
		for i := range c {
			if c[i], err = strconv.ParseFloat(fields[1+i], 64); err != nil {
				return p.errorf(err, "node %d coordinate", id)
			}
		}
		if _, err := p.root.CreateNode(id, c[0], c[1], c[2]); err != nil {
			return p.errorf(err, "node %d", id)
		}
		return nil
	})
}

func objects[T any](p *parser, section string, args []string, create func(typeName string, id int, nodeIDs []int, props *modelpart.Properties) (T, error)) error {
	if len(args) != 1 {
		return p.errorf(nil, "%s needs exactly one type name", section)
	}
	typeName := args[0]
	return p.body(section, func(fields []string, _ string) error {
		ids, err := p.ints(fields, 3, -1)
		if err != nil {
			return err
		}
		props, err := p.root.GetProperties(ids[1])
		if err != nil {
			return p.errorf(err, "%s %d", typeName, ids[0])
		}
		if _, err := create(typeName, ids[0], ids[2:], props); err != nil {
			return p.errorf(err, "%s %d", typeName, ids[0])
		}
		return nil
	})
}

func (p *parser) data(section string, args []string, lookup func(id int) (*modelpart.Annotations, error)) error {
	if len(args) != 1 {
		return p.errorf(nil, "%s needs exactly one key", section)
	}
	key := args[0]
	return p.body(section, func(fields []string, text string) error {
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return p.errorf(err, "%s %s id", section, key)
		}
		a, err := lookup(id)
		if err != nil {
			return p.errorf(err, "%s %s", section, key)
		}
		v, err := parseValue(strings.TrimSpace(strings.TrimPrefix(text, fields[0])))
		if err != nil {
			return p.errorf(err, "%s %s of %d", section, key, id)
		}
		a.Set(key, v)
		return nil
	})
}

func (p *parser) subModelPart(parent *modelpart.ModelPart, args []string) error {
	if len(args) != 1 {
		return p.errorf(nil, "SubModelPart needs exactly one name")
	}
	part, err := parent.CreateSubModelPart(args[0])
	if err != nil {
		return p.errorf(err, "SubModelPart %q", args[0])
	}
	start := p.line
	for {
		fields, text, ok := p.next()
		if !ok {
			return p.errorf(nil, "SubModelPart %q opened on line %d is never closed", args[0], start)
		}
		if fields[0] == "End" {
			if len(fields) != 2 || fields[1] != "SubModelPart" {
				return p.errorf(nil, "expected End SubModelPart, got %q", text)
			}
			return nil
		}
		if len(fields) < 2 || fields[0] != "Begin" {
			return p.errorf(nil, "expected a block, got %q", text)
		}
		switch section := fields[1]; section {
		case "SubModelPartData":
			err = p.annotations(section, &part.Annotations)
		case "SubModelPartProperties":
			err = p.idList(section, func(ids []int) error {
				for _, id := range ids {
					if _, err := part.GetProperties(id); err != nil {
						return err
					}
				}
				return nil
			})
		case "SubModelPartNodes":
			err = p.idList(section, func(ids []int) error { return part.AddNodes(ids...) })
		case "SubModelPartElements":
			err = p.idList(section, func(ids []int) error { return part.AddElements(ids...) })
		case "SubModelPartConditions":
			err = p.idList(section, func(ids []int) error { return part.AddConditions(ids...) })
		case "SubModelPart":
			err = p.subModelPart(part, fields[2:])
		default:
			return p.errorf(nil, "unknown block %q in SubModelPart %q", section, args[0])
		}
		if err != nil {
			return err
		}
	}
}

// idList reads a block of ids, one or more per line, and hands them to add.
func (p *parser) idList(section string, add func(ids []int) error) error {
	var ids []int
	err := p.body(section, func(fields []string, _ string) error {
		line, err := p.ints(fields, 1, -1)
		ids = append(ids, line...)
		return err
	})
	if err != nil {
		return err
	}
	if err := add(ids); err != nil {
		return p.errorf(err, "%s", section)
	}
	return nil
}

// ints parses fields as ints, requiring at least least and at most most of
// them (no maximum if most < 0).
func (p *parser) ints(fields []string, least, most int) ([]int, error) {
	if len(fields) < least || (most >= 0 && len(fields) > most) {
		return nil, p.errorf(nil, "unexpected number of values %d", len(fields))
	}
	ids := make([]int, len(fields))
	for i, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, p.errorf(err, "value %d", i+1)
		}
		ids[i] = id
	}
	return ids, nil
}

// stripComment removes a "//" comment, unless it appears inside a quoted
// string.
func stripComment(line string) string {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && quoted:
			i++
		case c == '"':
			quoted = !quoted
		case c == '/' && !quoted && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}
