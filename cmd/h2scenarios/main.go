package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"h2scenarios/internal/category"
	"h2scenarios/internal/config"
	"h2scenarios/internal/export"
	"h2scenarios/internal/metrics"
	"h2scenarios/internal/metrics/datadog"
	"h2scenarios/internal/pipeline"

	// register all backends with the storage factory.
	// the sink flag picks one at runtime, so every driver is built in.
	_ "h2scenarios/internal/storage/all"
)

const usage = "usage: h2scenarios [flags] <input_dir>"

type runner interface {
	Run(ctx context.Context, opt pipeline.Options) (pipeline.Result, error)
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(path string) (config.Run, error)
	loadGroups  func(path string) (category.Groups, error)
	newRunner   func(groups category.Groups, logger pipeline.Logger) runner
	initMetrics func(ctx context.Context, m config.Metrics) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig: config.Load,
		loadGroups: category.LoadGroups,
		newRunner: func(g category.Groups, l pipeline.Logger) runner {
			return pipeline.NewDefaultRunner(g, l)
		},
		initMetrics: initMetrics,
	}
}

// main converts a directory of scenario CSV files into one NetCDF file or
// one relation per data kind, and prints where the result went.
func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// runMain returns the process exit code: 0 on success, 1 when the run
// fails, 2 for usage and configuration problems.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("h2scenarios", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath    = fs.String("config", "", "run config (JSON, or YAML by .yaml/.yml extension)")
		output     = fs.String("o", "", "output file or DSN (default: next to input_dir, or $"+export.DSNEnv+")")
		sink       = fs.String("sink", "", "output sink: "+strings.Join(export.SinkNames(), ", ")+" (default array-file)")
		groupsPath = fs.String("groups", "", "component group mapping (JSON or YAML); built-in table if empty")
		encoding   = fs.String("encoding", "", "source encoding: utf-8, windows-1252, latin1, iso-8859-15")
		comma      = fs.String("comma", "", "field delimiter (default ,)")
		batchSize  = fs.Int("batch-size", 0, "rows per INSERT for relational sinks")
		metricsFlg = fs.String("metrics-backend", "", "metrics backend (datadog, none); overrides $METRICS_BACKEND")
		verbose    = fs.Bool("v", false, "enable verbose logs")
		validate   = fs.Bool("validate", false, "validate the configuration and exit")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	cfg := config.Default()
	if strings.TrimSpace(*cfgPath) != "" {
		var err error
		if cfg, err = deps.loadConfig(*cfgPath); err != nil {
			fmt.Fprintf(stderr, "read config: %v\n", err)
			return 2
		}
	}

	// Flags override the file, but only when given.
	if fs.NArg() == 1 {
		cfg.InputDir = fs.Arg(0)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.Output = *output
		case "sink":
			cfg.Sink = *sink
		case "groups":
			cfg.ComponentGroupsFile = *groupsPath
		case "encoding":
			cfg.CSV.Encoding = *encoding
		case "comma":
			cfg.CSV.Comma = *comma
		case "batch-size":
			cfg.BatchSize = *batchSize
		case "metrics-backend":
			cfg.Metrics.Backend = *metricsFlg
		}
	})
	if cfg.Metrics.Backend == "" {
		cfg.Metrics.Backend = os.Getenv("METRICS_BACKEND")
	}

	if strings.TrimSpace(cfg.InputDir) == "" {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	issues := config.Validate(cfg, export.KnownSink)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return 2
	}

	target, err := resolveTarget(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	if *validate {
		fmt.Fprintf(stderr, "configuration is valid: sink=%s output=%s\n", target.Sink, target.Output)
		return 0
	}

	groups := category.DefaultGroups()
	if cfg.ComponentGroupsFile != "" {
		if groups, err = deps.loadGroups(cfg.ComponentGroupsFile); err != nil {
			fmt.Fprintf(stderr, "component groups: %v\n", err)
			return 2
		}
	}

	cleanup, err := deps.initMetrics(ctx, cfg.Metrics)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	var logger pipeline.Logger
	if *verbose {
		logger = log.New(stderr, "", log.LstdFlags)
	}

	r := deps.newRunner(groups, logger)
	if _, err := r.Run(ctx, pipeline.Options{
		InputDir: cfg.InputDir,
		CSV:      cfg.CSVOptions(),
		Target:   target,
	}); err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, target.Output)
	return 0
}

// resolveTarget picks the sink and output location. An unknown sink or a
// server sink without a DSN fails here, before any I/O.
func resolveTarget(cfg config.Run) (export.Target, error) {
	s, err := export.ParseSink(cfg.Sink)
	if err != nil {
		return export.Target{}, err
	}
	out := export.ResolveOutput(cfg.Output, cfg.InputDir, s)
	if out == "" {
		return export.Target{}, fmt.Errorf("sink %s needs -o <dsn> or $%s", s, export.DSNEnv)
	}
	return export.Target{
		Sink:      s,
		Output:    out,
		BatchSize: cfg.BatchSize,
		Attrs:     map[string]string{"source": cfg.InputDir},
	}, nil
}

type metricsBackend interface {
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = log.Printf
)

// initMetrics installs the configured backend. The returned cleanup is never
// nil and is safe to call once.
func initMetrics(ctx context.Context, m config.Metrics) (func(), error) {
	switch strings.ToLower(m.Backend) {
	case "datadog", "dd":
		// Datadog buffers and submits once a minute, then a final time on Close.
		job := m.Job
		if job == "" {
			job = "h2scenarios"
		}
		tags := append(append([]string(nil), m.Tags...), datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)

		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return func() {}, fmt.Errorf("datadog: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	case "", "none", "noop":
		return func() {}, nil

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q (want none|datadog)", m.Backend)
	}
}
