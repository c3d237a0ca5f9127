// Package job runs merge jobs: HCL files naming the mesh files to load, how to
// merge them into a model part tree, and where to write the result.
//
//	model_part = "Structure"
//	output     = "structure.mdpa.zst"
//
//	mesh "block" {
//	  file = "block.yaml"
//	}
//
//	description {
//	  mesh       = "block"
//	  group      = "top"
//	  model_part = "domain.top"
//	  element "Triangle" {
//	    type       = "ShellThinElement3D3N"
//	    properties = 1
//	  }
//	  condition "Edge" {
//	    type       = "LineLoadCondition3D2N"
//	    properties = 1
//	  }
//	}
//
// Mesh files and the output are keys of blob buckets. Keys ending in ".zst"
// are zstd-compressed.
package job

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/go-digitaltwin/go-modelpart/geometriesio"
	"github.com/go-digitaltwin/go-modelpart/meshsource"
)

var ErrInvalidJob = errors.New("invalid job")

// Job is a decoded job file.
type Job struct {
	ModelPart    string        `hcl:"model_part"`
	Output       string        `hcl:"output"`
	Meshes       []Mesh        `hcl:"mesh,block"`
	Descriptions []Description `hcl:"description,block"`
}

// Mesh names a mesh file of the input bucket.
type Mesh struct {
	Name string `hcl:"name,label"`
	File string `hcl:"file"`
}

// Description is the job file form of a geometriesio.MeshDescription, using a
// whole mesh or one of its groups as source.
type Description struct {
	Mesh       string    `hcl:"mesh"`
	Group      string    `hcl:"group,optional"`
	ModelPart  string    `hcl:"model_part,optional"`
	Elements   []Mapping `hcl:"element,block"`
	Conditions []Mapping `hcl:"condition,block"`
}

// Mapping requests one entity of the given type for every geometric entity of
// a geometry type.
type Mapping struct {
	GeometryType string `hcl:"geometry_type,label"`
	Type         string `hcl:"type"`
	Properties   int    `hcl:"properties"`
}

// Parse decodes and checks a job file. The filename is only used in
// diagnostics.
func Parse(src []byte, filename string) (*Job, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse job file %s: %w", filename, diags)
	}
	var j Job
	if diags := gohcl.DecodeBody(file.Body, nil, &j); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode job file %s: %w", filename, diags)
	}
	if err := j.validate(); err != nil {
		return nil, fmt.Errorf("job file %s: %w", filename, err)
	}
	return &j, nil
}

func (j *Job) validate() error {
	var errs []error
	if j.ModelPart == "" {
		errs = append(errs, errors.New("model_part is empty"))
	}
	if j.Output == "" {
		errs = append(errs, errors.New("output is empty"))
	}
	files := make(map[string]bool, len(j.Meshes))
	for _, m := range j.Meshes {
		if files[m.Name] {
			errs = append(errs, fmt.Errorf("mesh %q is declared twice", m.Name))
		}
		files[m.Name] = true
		if m.File == "" {
			errs = append(errs, fmt.Errorf("mesh %q has no file", m.Name))
		}
	}
	if len(j.Descriptions) == 0 {
		errs = append(errs, errors.New("no description"))
	}
	for i, d := range j.Descriptions {
		if !files[d.Mesh] {
			errs = append(errs, fmt.Errorf("description %d uses undeclared mesh %q", i, d.Mesh))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return nil
}

// MeshDescriptions resolves the job's descriptions against the loaded meshes,
// keyed by mesh name.
func (j *Job) MeshDescriptions(meshes map[string]*meshsource.Mesh) ([]geometriesio.MeshDescription, error) {
	descriptions := make([]geometriesio.MeshDescription, 0, len(j.Descriptions))
	for i, d := range j.Descriptions {
		mesh, ok := meshes[d.Mesh]
		if !ok {
			return nil, fmt.Errorf("description %d: mesh %q is not loaded: %w", i, d.Mesh, ErrInvalidJob)
		}
		source := mesh
		if d.Group != "" {
			var err error
			if source, err = mesh.Group(d.Group); err != nil {
				return nil, fmt.Errorf("description %d: %w", i, err)
			}
		}
		descriptions = append(descriptions, geometriesio.MeshDescription{
			Source:     source,
			Elements:   entityMapping(d.Elements),
			Conditions: entityMapping(d.Conditions),
			ModelPart:  d.ModelPart,
		})
	}
	return descriptions, nil
}

func entityMapping(mappings []Mapping) geometriesio.EntityMapping {
	if len(mappings) == 0 {
		return nil
	}
	m := make(geometriesio.EntityMapping)
	for _, mapping := range mappings {
		if m[mapping.GeometryType] == nil {
			m[mapping.GeometryType] = make(map[string]int)
		}
		m[mapping.GeometryType][mapping.Type] = mapping.Properties
	}
	return m
}
