package job

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/go-digitaltwin/go-modelpart"
	"github.com/go-digitaltwin/go-modelpart/geometriesio"
	"github.com/go-digitaltwin/go-modelpart/mdpa"
	"github.com/go-digitaltwin/go-modelpart/meshsource"
	"github.com/go-digitaltwin/go-modelpart/modelparttest"
)

const plateYAML = `
name: plate
nodes:
  1: [0, 0, 0]
  2: [1, 0, 0]
  3: [1, 1, 0]
  4: [0, 1, 0]
entities:
  Triangle:
    1: [1, 2, 3]
    2: [1, 3, 4]
  Edge:
    1: [1, 2]
groups:
  bottom:
    Edge: [1]
`

const plateJob = `
model_part = "Structure"
output     = "structure.mdpa"

mesh "plate" {
  file = "plate.yaml"
}

description {
  mesh       = "plate"
  model_part = "plate"
  element "Triangle" {
    type       = "ShellThinElement3D3N"
    properties = 1
  }
}

description {
  mesh       = "plate"
  group      = "bottom"
  model_part = "plate.supports"
  condition "Edge" {
    type       = "LineLoadCondition3D2N"
    properties = 1
  }
}
`

const plateTree = `Structure (nodes=4 elements=2 conditions=1 properties=0)
  plate (nodes=4 elements=2 conditions=1 properties=1)
    supports (nodes=2 elements=0 conditions=1 properties=1)
`

func TestParse(t *testing.T) {
	j, err := Parse([]byte(plateJob), "plate.hcl")
	if err != nil {
		t.Fatal(err)
	}
	want := &Job{
		ModelPart: "Structure",
		Output:    "structure.mdpa",
		Meshes:    []Mesh{{Name: "plate", File: "plate.yaml"}},
		Descriptions: []Description{
			{
				Mesh:      "plate",
				ModelPart: "plate",
				Elements:  []Mapping{{GeometryType: "Triangle", Type: "ShellThinElement3D3N", Properties: 1}},
			},
			{
				Mesh:       "plate",
				Group:      "bottom",
				ModelPart:  "plate.supports",
				Conditions: []Mapping{{GeometryType: "Edge", Type: "LineLoadCondition3D2N", Properties: 1}},
			},
		},
	}
	if diff := cmp.Diff(want, j, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		invalid bool
	}{
		{name: "syntax", src: `model_part = `},
		{name: "missing output", src: `model_part = "m"`},
		{name: "unknown attribute", src: "model_part = \"m\"\noutput = \"o\"\nformat = \"x\"\n"},
		{
			name:    "no description",
			src:     "model_part = \"m\"\noutput = \"o\"\n",
			invalid: true,
		},
		{
			name:    "undeclared mesh",
			src:     "model_part = \"m\"\noutput = \"o\"\ndescription {\n  mesh = \"x\"\n}\n",
			invalid: true,
		},
		{
			name:    "duplicate mesh",
			src:     "model_part = \"m\"\noutput = \"o\"\nmesh \"a\" {\n  file = \"a\"\n}\nmesh \"a\" {\n  file = \"b\"\n}\ndescription {\n  mesh = \"a\"\n}\n",
			invalid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.hcl")
			if err == nil {
				t.Fatal("Parse() succeeded; want an error")
			}
			if got := errors.Is(err, ErrInvalidJob); got != tt.invalid {
				t.Errorf("errors.Is(%v, ErrInvalidJob) = %v; want %v", err, got, tt.invalid)
			}
		})
	}
}

func TestMeshDescriptions(t *testing.T) {
	j, err := Parse([]byte(plateJob), "plate.hcl")
	if err != nil {
		t.Fatal(err)
	}
	plate, err := meshsource.Decode(strings.NewReader(plateYAML))
	if err != nil {
		t.Fatal(err)
	}
	descriptions, err := j.MeshDescriptions(map[string]*meshsource.Mesh{"plate": plate})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(descriptions); got != 2 {
		t.Fatalf("got %d descriptions; want 2", got)
	}
	if descriptions[0].Source != geometriesio.MeshSource(plate) {
		t.Error("the first description does not use the whole mesh")
	}
	bottom, _ := plate.Group("bottom")
	if descriptions[1].Source != geometriesio.MeshSource(bottom) {
		t.Error("the second description does not use the bottom group")
	}
	want := geometriesio.EntityMapping{"Edge": {"LineLoadCondition3D2N": 1}}
	if diff := cmp.Diff(want, descriptions[1].Conditions); diff != "" {
		t.Errorf("conditions mismatch (-want +got):\n%s", diff)
	}

	j.Descriptions[1].Group = "top"
	if _, err := j.MeshDescriptions(map[string]*meshsource.Mesh{"plate": plate}); !errors.Is(err, meshsource.ErrUnknownGroup) {
		t.Errorf("MeshDescriptions() error = %v; want %v", err, meshsource.ErrUnknownGroup)
	}
}

func newBucket(t *testing.T, blobs map[string][]byte) *blob.Bucket {
	t.Helper()
	b := memblob.OpenBucket(nil)
	t.Cleanup(func() { b.Close() })
	for key, data := range blobs {
		if err := b.WriteAll(context.Background(), key, data, nil); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestRunner(t *testing.T) {
	ctx := context.Background()
	r := &Runner{
		Input: newBucket(t, map[string][]byte{
			"jobs/plate.hcl": []byte(plateJob),
			"plate.yaml":     []byte(plateYAML),
		}),
		Output: newBucket(t, nil),
	}
	j, err := r.Load(ctx, "jobs/plate.hcl")
	if err != nil {
		t.Fatal(err)
	}
	root, err := r.Run(ctx, j)
	if err != nil {
		t.Fatal(err)
	}
	modelparttest.Verify(t, root, append(modelparttest.Invariants(), modelparttest.Shape(plateTree))...)

	written, err := r.Output.ReadAll(ctx, "structure.mdpa")
	if err != nil {
		t.Fatal(err)
	}
	var want bytes.Buffer
	if err := mdpa.Write(&want, root); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want.String(), string(written)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunnerCompressed(t *testing.T) {
	ctx := context.Background()
	job := strings.NewReplacer(`"structure.mdpa"`, `"structure.mdpa.zst"`, `"plate.yaml"`, `"plate.yaml.zst"`).Replace(plateJob)
	r := &Runner{
		Input: newBucket(t, map[string][]byte{
			"plate.hcl.zst":  compress(t, []byte(job)),
			"plate.yaml.zst": compress(t, []byte(plateYAML)),
		}),
		Output:      newBucket(t, nil),
		Concurrency: 1,
		Precision:   3,
	}
	j, err := r.Load(ctx, "plate.hcl.zst")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, j); err != nil {
		t.Fatal(err)
	}

	rc, err := open(ctx, r.Output, "structure.mdpa.zst")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	root, _ := modelpart.NewModelPart("Structure")
	if err := mdpa.Read(rc, root); err != nil {
		t.Fatal(err)
	}
	if got := root.NumberOfElements(); got != 2 {
		t.Errorf("read back %d elements; want 2", got)
	}
	n, err := root.GetNode(3)
	if err != nil {
		t.Fatal(err)
	}
	if got := n.Coordinates(); got != [3]float64{1, 1, 0} {
		t.Errorf("node 3 at %v; want [1 1 0]", got)
	}
}

func TestRunnerMissingMesh(t *testing.T) {
	ctx := context.Background()
	r := &Runner{
		Input:  newBucket(t, nil),
		Output: newBucket(t, nil),
	}
	j, err := Parse([]byte(plateJob), "plate.hcl")
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Run(ctx, j)
	if err == nil || !strings.Contains(err.Error(), "load meshes") {
		t.Errorf("Run() error = %v; want a mesh loading failure", err)
	}
	if ok, _ := r.Output.Exists(ctx, "structure.mdpa"); ok {
		t.Error("a failed run must not write its output")
	}
}

func TestRun(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	for name, data := range map[string]string{"plate.hcl": plateJob, "plate.yaml": plateYAML} {
		if err := os.WriteFile(filepath.Join(in, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	err := Run(context.Background(), Config{
		InputURL:  "file://" + filepath.ToSlash(in),
		OutputURL: "file://" + filepath.ToSlash(out),
		JobKey:    "plate.hcl",
	})
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(filepath.Join(out, "structure.mdpa"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	root, _ := modelpart.NewModelPart("Structure")
	if err := mdpa.Read(f, root); err != nil {
		t.Fatal(err)
	}
	if got := root.NumberOfConditions(); got != 1 {
		t.Errorf("read back %d conditions; want 1", got)
	}
}
