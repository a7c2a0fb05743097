// Package pipeline runs one scenario conversion end to end: discover the
// files, read and reshape each one, build one table per data kind and hand
// the result to an exporter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"h2scenarios/internal/category"
	"h2scenarios/internal/colname"
	"h2scenarios/internal/dataset"
	"h2scenarios/internal/export"
	"h2scenarios/internal/filename"
	"h2scenarios/internal/frame"
	"h2scenarios/internal/metrics"
	"h2scenarios/internal/parser/csv"
)

// ErrNoInput is returned when the input root holds no data files.
var ErrNoInput = errors.New("no csv files found")

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Options configure one run.
type Options struct {
	InputDir string
	CSV      csv.Options
	Target   export.Target
}

// Result summarizes a successful run.
type Result struct {
	Files  int
	Tables []dataset.Category
	Output string
}

// Runner wires the stages together. The function fields are seams for tests.
type Runner struct {
	Reshaper *category.Reshaper
	Logger   Logger

	ReadFile func(path string, opt csv.Options) (*csv.Table, error)
	Export   func(ctx context.Context, t export.Target, tables []dataset.Category, ds *dataset.Dataset, l export.Logger) error
}

// NewDefaultRunner returns a runner reading from disk and exporting for real.
func NewDefaultRunner(groups category.Groups, logger Logger) *Runner {
	return &Runner{
		Reshaper: &category.Reshaper{Groups: groups, Logger: logger},
		Logger:   logger,
		ReadFile: csv.ReadFile,
		Export:   export.Export,
	}
}

type loaded struct {
	src   SourceFile
	meta  filename.Meta
	table *csv.Table
}

type reshaped struct {
	path  string
	frame *frame.Frame
}

// Run executes every stage. Any error aborts the run; the array sink is
// only written once every category has been built and merged.
func (r *Runner) Run(ctx context.Context, opt Options) (Result, error) {
	start := time.Now()

	files, err := r.discover(opt.InputDir)
	if err != nil {
		return Result{}, err
	}
	inputs, err := r.readAll(ctx, files, opt.CSV)
	if err != nil {
		return Result{}, err
	}
	byKind, err := r.reshapeAll(ctx, inputs)
	if err != nil {
		return Result{}, err
	}
	tables, err := r.build(byKind)
	if err != nil {
		return Result{}, err
	}

	var ds *dataset.Dataset
	if opt.Target.Sink.NeedsDataset() {
		if ds, err = r.merge(tables); err != nil {
			return Result{}, err
		}
	}

	stepStart := time.Now()
	err = r.Export(ctx, opt.Target, tables, ds, r.Logger)
	metrics.RecordStep("export", stepStart, err)
	if err != nil {
		return Result{}, err
	}

	r.logf("stage=run ok files=%d tables=%d output=%s duration=%s",
		len(files), len(tables), opt.Target.Output, time.Since(start).Truncate(time.Millisecond))
	return Result{Files: len(files), Tables: tables, Output: opt.Target.Output}, nil
}

func (r *Runner) discover(root string) (files []SourceFile, err error) {
	defer func(t time.Time) { metrics.RecordStep("discover", t, err) }(time.Now())

	files, err = Discover(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoInput)
	}
	r.logf("stage=discover ok root=%s files=%d", root, len(files))
	return files, nil
}

// readAll parses every file name and reads every file before any reshaping.
// Each file is opened, read fully and closed before the next.
func (r *Runner) readAll(ctx context.Context, files []SourceFile, opt csv.Options) (out []loaded, err error) {
	defer func(t time.Time) { metrics.RecordStep("read", t, err) }(time.Now())

	out = make([]loaded, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, err := filename.Parse(filepath.Base(f.Path))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Rel, err)
		}
		tbl, err := r.ReadFile(f.Path, opt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Rel, err)
		}
		out = append(out, loaded{src: f, meta: meta, table: tbl})
	}
	r.logf("stage=read ok files=%d", len(out))
	return out, nil
}

func (r *Runner) reshapeAll(ctx context.Context, inputs []loaded) (byKind map[category.Kind][]reshaped, err error) {
	defer func(t time.Time) { metrics.RecordStep("reshape", t, err) }(time.Now())

	byKind = make(map[category.Kind][]reshaped)
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, f, err := r.Reshaper.Reshape(category.Input{
			Path:      in.src.Rel,
			SysConfig: in.src.SysConfig,
			Meta:      in.meta,
			RowIndex:  in.table.RowIndex,
			Frame:     in.table.Frame,
		})
		if err != nil {
			return nil, err
		}
		l := metrics.Labels{"kind": kind.String()}
		metrics.IncCounter(metrics.FilesTotal, 1, l)
		metrics.IncCounter(metrics.RecordsTotal, float64(f.Len()), l)
		byKind[kind] = append(byKind[kind], reshaped{path: in.src.Rel, frame: f})
	}
	return byKind, nil
}

// build concatenates the files of each kind and canonicalizes data column
// names. Tables come back in category.Kinds order, skipping absent kinds.
func (r *Runner) build(byKind map[category.Kind][]reshaped) (out []dataset.Category, err error) {
	defer func(t time.Time) { metrics.RecordStep("concat", t, err) }(time.Now())

	for _, kind := range category.Kinds() {
		parts := byKind[kind]
		if len(parts) == 0 {
			continue
		}
		if err := checkKeyShape(parts); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		frames := make([]*frame.Frame, len(parts))
		for i, p := range parts {
			frames[i] = p.frame
		}
		f, err := frame.Concat(frames...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		if err := colname.NormalizeFrame(f); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		r.logf("stage=concat ok kind=%s files=%d rows=%d columns=%d", kind, len(parts), f.Len(), len(f.Columns()))
		out = append(out, dataset.Category{Name: kind.String(), Frame: f})
	}
	return out, nil
}

// checkKeyShape names the first file whose key columns differ from the
// first file of the same kind.
func checkKeyShape(parts []reshaped) error {
	want := sortedIndex(parts[0].frame)
	for _, p := range parts[1:] {
		if got := sortedIndex(p.frame); got != want {
			return fmt.Errorf("%s: %w: key (%s), %s has (%s)", p.path, frame.ErrKeyShape, got, parts[0].path, want)
		}
	}
	return nil
}

func sortedIndex(f *frame.Frame) string {
	idx := f.Index()
	sort.Strings(idx)
	return strings.Join(idx, ", ")
}

func (r *Runner) merge(tables []dataset.Category) (ds *dataset.Dataset, err error) {
	defer func(t time.Time) { metrics.RecordStep("merge", t, err) }(time.Now())

	ds, err = dataset.Merge(tables, dataset.Aux{Column: category.ColComponentGroups, Dim: category.ColComponent})
	if err != nil {
		return nil, err
	}
	r.logf("stage=merge ok dims=%d vars=%d", len(ds.Dims), len(ds.Vars))
	return ds, nil
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
