// Command meshmerge runs a merge job: it loads the mesh files named by an HCL
// job file, merges them into a model part tree and writes the tree in the mdpa
// format.
//
// Every flag may also be set with an environment variable prefixed with
// MESHMERGE_ (e.g. MESHMERGE_INPUT), or in a plain config file given with
// -config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielorbach/go-component"
	"github.com/peterbourgon/ff/v3"

	"github.com/go-digitaltwin/go-modelpart/internal/job"
	"github.com/go-digitaltwin/go-modelpart/mdpa"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "meshmerge:", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("meshmerge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		input       = fs.String("input", "file://.", "URL of the bucket holding the job and mesh files")
		output      = fs.String("output", "", "URL of the bucket receiving the result (default: the input bucket)")
		jobKey      = fs.String("job", "job.hcl", "key of the job file in the input bucket")
		concurrency = fs.Int("concurrency", 4, "maximum number of mesh files loaded at once (0 for no limit)")
		precision   = fs.Int("precision", mdpa.DefaultPrecision, "decimals written for node coordinates")
		logFormat   = fs.String("log-format", "text", "log format: text or json")
		logLevel    = fs.String("log-level", "info", "log level: debug, info, warn or error")
		_           = fs.String("config", "", "config file (optional)")
	)
	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("MESHMERGE"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err != nil {
		return err
	}

	logger, err := newLogger(stderr, *logFormat, *logLevel)
	if err != nil {
		return err
	}
	if *output == "" {
		*output = *input
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = component.InjectLogger(ctx, logger)

	logger.Debug("Running merge job...",
		slog.String("input", *input),
		slog.String("output", *output),
		slog.String("job", *jobKey),
	)
	return job.Run(ctx, job.Config{
		InputURL:    *input,
		OutputURL:   *output,
		JobKey:      *jobKey,
		Concurrency: *concurrency,
		Precision:   *precision,
	})
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid -log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: l}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid -log-format %q: want text or json", format)
	}
}
