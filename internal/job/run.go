package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	"golang.org/x/sync/errgroup"

	"github.com/go-digitaltwin/go-modelpart"
	"github.com/go-digitaltwin/go-modelpart/geometriesio"
	"github.com/go-digitaltwin/go-modelpart/mdpa"
	"github.com/go-digitaltwin/go-modelpart/meshsource"
)

// Config locates a job and the buckets it reads from and writes to.
type Config struct {
	// InputURL and OutputURL are bucket URLs, e.g. "file:///data/meshes".
	InputURL  string
	OutputURL string
	// JobKey is the key of the job file in the input bucket.
	JobKey string
	// Concurrency bounds how many mesh files are loaded at once; 0 means no
	// limit.
	Concurrency int
	// Precision is the number of decimals written for node coordinates.
	Precision int
}

// Run opens the configured buckets and runs the job found in the input bucket.
func Run(ctx context.Context, cfg Config) error {
	input, err := blob.OpenBucket(ctx, cfg.InputURL)
	if err != nil {
		return fmt.Errorf("open input bucket: %w", err)
	}
	defer input.Close()
	output, err := blob.OpenBucket(ctx, cfg.OutputURL)
	if err != nil {
		return fmt.Errorf("open output bucket: %w", err)
	}
	defer output.Close()

	r := &Runner{
		Input:       input,
		Output:      output,
		Concurrency: cfg.Concurrency,
		Precision:   cfg.Precision,
	}
	j, err := r.Load(ctx, cfg.JobKey)
	if err != nil {
		return err
	}
	_, err = r.Run(ctx, j)
	return err
}

// A Runner runs jobs against a pair of buckets.
type Runner struct {
	Input       *blob.Bucket
	Output      *blob.Bucket
	Concurrency int
	Precision   int
}

// Load reads and parses the job file with the given key of the input bucket.
func (r *Runner) Load(ctx context.Context, key string) (*Job, error) {
	src, err := readAll(ctx, r.Input, key)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return Parse(src, key)
}

// Run loads the job's meshes, merges them into a new tree and writes the tree
// to the output bucket. It returns the merged tree.
func (r *Runner) Run(ctx context.Context, j *Job) (*modelpart.ModelPart, error) {
	logger := component.Logger(ctx).With(slog.String("model_part", j.ModelPart))
	ctx = component.InjectLogger(ctx, logger)
	start := time.Now()

	meshes, err := r.loadMeshes(ctx, j.Meshes)
	if err != nil {
		return nil, fmt.Errorf("load meshes: %w", err)
	}
	descriptions, err := j.MeshDescriptions(meshes)
	if err != nil {
		return nil, fmt.Errorf("describe meshes: %w", err)
	}

	root, err := modelpart.NewModelPart(j.ModelPart)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := geometriesio.AddMeshes(ctx, root, descriptions...); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if err := r.write(ctx, j.Output, root); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	logger.Info("Job done",
		slog.String("output", j.Output),
		slog.Int("meshes", len(meshes)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return root, nil
}

func (r *Runner) loadMeshes(ctx context.Context, meshes []Mesh) (map[string]*meshsource.Mesh, error) {
	logger := component.Logger(ctx)
	loaded := make([]*meshsource.Mesh, len(meshes))

	g, ctx := errgroup.WithContext(ctx)
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i, m := range meshes {
		g.Go(func() error {
			logger.Debug("Loading mesh...", slog.String("mesh", m.Name), slog.String("file", m.File))
			rc, err := open(ctx, r.Input, m.File)
			if err != nil {
				return fmt.Errorf("mesh %q: %w", m.Name, err)
			}
			defer rc.Close()
			mesh, err := meshsource.Decode(rc)
			if err != nil {
				return fmt.Errorf("mesh %q: %w", m.Name, err)
			}
			loaded[i] = mesh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string]*meshsource.Mesh, len(meshes))
	for i, m := range meshes {
		byName[m.Name] = loaded[i]
	}
	return byName, nil
}

func (r *Runner) write(ctx context.Context, key string, root *modelpart.ModelPart) (err error) {
	w, err := r.Output.NewWriter(ctx, key, nil)
	if err != nil {
		return err
	}
	defer func() {
		// Closing commits the blob; on failure nothing is written.
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
	}()

	var out io.Writer = w
	if compressed(key) {
		enc, encErr := zstd.NewWriter(w)
		if encErr != nil {
			return encErr
		}
		defer func() {
			if closeErr := enc.Close(); err == nil {
				err = closeErr
			}
		}()
		out = enc
	}

	var opts []mdpa.Option
	if r.Precision > 0 {
		opts = append(opts, mdpa.WithPrecision(r.Precision))
	}
	return mdpa.Write(out, root, opts...)
}

// open returns a reader of the blob with the given key, decompressing it if
// needed.
func open(ctx context.Context, b *blob.Bucket, key string) (io.ReadCloser, error) {
	rc, err := b.NewReader(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	if !compressed(key) {
		return rc, nil
	}
	dec, err := zstd.NewReader(rc)
	if err != nil {
		return nil, errors.Join(err, rc.Close())
	}
	return &decompressor{Decoder: dec, blob: rc}, nil
}

func readAll(ctx context.Context, b *blob.Bucket, key string) ([]byte, error) {
	rc, err := open(ctx, b, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func compressed(key string) bool { return strings.HasSuffix(key, ".zst") }

// decompressor closes both the zstd decoder and the underlying blob.
type decompressor struct {
	*zstd.Decoder
	blob io.Closer
}

func (d *decompressor) Close() error {
	d.Decoder.Close()
	return d.blob.Close()
}
