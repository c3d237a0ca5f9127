package geometriesio

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-modelpart/geometriesio")
var meter = otel.Meter("github.com/go-digitaltwin/go-modelpart/geometriesio")

const (
	// rootModelPartName is the attribute key associating each record with the
	// name of the root model part being populated.
	rootModelPartName = "model_part"
	// entityKind is the attribute key distinguishing element records from
	// condition records.
	entityKind = "kind"
	// entityOutcome is the attribute key telling whether an entity was created
	// or reused from an earlier mesh description.
	entityOutcome = "outcome"
)

var (
	// mergeDuration measures the duration of a single successful AddMeshes call,
	// including the time spent in the mesh sources.
	//
	// Each record is associated with the rootModelPartName.
	mergeDuration metric.Float64Histogram
	// mergeFailures measures the number of failed AddMeshes calls.
	//
	// Each record is associated with the rootModelPartName.
	mergeFailures metric.Int64Counter
	// mergedEntities counts the elements and conditions placed into model parts,
	// labelled with entityKind and entityOutcome.
	mergedEntities metric.Int64Counter
)

func init() {
	var err error
	mergeDuration, err = meter.Float64Histogram(
		"geometriesio.add_meshes.duration",
		metric.WithDescription("The duration of a single merge of mesh descriptions into a model part tree."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("geometriesio: failed to init 'geometriesio.add_meshes.duration' instrument")
	}

	mergeFailures, err = meter.Int64Counter(
		"geometriesio.add_meshes.failures",
		metric.WithDescription("The number of merges that have failed."),
	)
	if err != nil {
		panic("geometriesio: failed to init 'geometriesio.add_meshes.failures' instrument")
	}

	mergedEntities, err = meter.Int64Counter(
		"geometriesio.add_meshes.entities",
		metric.WithDescription("The number of elements and conditions placed into model parts, either newly created or reused."),
	)
	if err != nil {
		panic("geometriesio: failed to init 'geometriesio.add_meshes.entities' instrument")
	}
}

// measureMerge records the duration of a successful merge, or increments the
// failure counter if it failed. Each record is labelled with the root model
// part's name.
func measureMerge(ctx context.Context, rootName string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(rootModelPartName, rootName))
	if succeeded {
		// Floating-point division keeps sub-millisecond precision.
		duration := float64(d) / float64(time.Millisecond)
		mergeDuration.Record(ctx, duration, metric.WithAttributeSet(attrs))
	} else {
		mergeFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}

func countEntities(ctx context.Context, kind, outcome string, n int) {
	if n == 0 {
		return
	}
	attrs := attribute.NewSet(
		attribute.String(entityKind, kind),
		attribute.String(entityOutcome, outcome),
	)
	mergedEntities.Add(ctx, int64(n), metric.WithAttributeSet(attrs))
}
