package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"h2scenarios/internal/category"
	"h2scenarios/internal/config"
	"h2scenarios/internal/export"
	"h2scenarios/internal/metrics/datadog"
	"h2scenarios/internal/pipeline"
)

// fakeRunner records the options it was given and returns a fixed error.
type fakeRunner struct {
	err   error
	calls atomic.Int64

	mu      sync.Mutex
	lastOpt pipeline.Options
}

func (r *fakeRunner) Run(ctx context.Context, opt pipeline.Options) (pipeline.Result, error) {
	_ = ctx
	r.calls.Add(1)
	r.mu.Lock()
	r.lastOpt = opt
	r.mu.Unlock()
	return pipeline.Result{Output: opt.Target.Output}, r.err
}

type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

// fatalDeps fails the test if any side-effecting seam is reached.
func fatalDeps(t *testing.T) appDeps {
	return appDeps{
		loadConfig: func(string) (config.Run, error) {
			t.Fatalf("loadConfig must not be called")
			return config.Run{}, nil
		},
		loadGroups: func(string) (category.Groups, error) {
			t.Fatalf("loadGroups must not be called")
			return category.Groups{}, nil
		},
		newRunner: func(category.Groups, pipeline.Logger) runner {
			t.Fatalf("newRunner must not be called")
			return &fakeRunner{}
		},
		initMetrics: func(context.Context, config.Metrics) (func(), error) {
			t.Fatalf("initMetrics must not be called")
			return func() {}, nil
		},
	}
}

func TestRunMain_UsageErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name          string
		args          []string
		wantStderrSub string
	}{
		{name: "missing_input_dir", args: []string{}, wantStderrSub: "usage: h2scenarios"},
		{name: "too_many_args", args: []string{dir, dir}, wantStderrSub: "usage: h2scenarios"},
		{name: "unknown_flag", args: []string{"-nope"}, wantStderrSub: "flag provided but not defined"},
		{name: "unknown_sink", args: []string{"-sink", "parquet", dir}, wantStderrSub: `error: sink: unknown sink "parquet"`},
		{name: "input_not_a_dir", args: []string{filepath.Join(dir, "missing")}, wantStderrSub: "error: input_dir:"},
		{name: "bad_encoding", args: []string{"-encoding", "ebcdic", dir}, wantStderrSub: "error: csv.encoding:"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr, fatalDeps(t))
			if code != 2 {
				t.Fatalf("exit code=%d, want 2; stderr=%q", code, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
		})
	}
}

func TestRunMain_ValidateOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"-validate", "-sink", "relational-A", dir}, &stdout, &stderr, fatalDeps(t))
	if code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "configuration is valid: sink=sqlite") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}

func TestRunMain_ConfigMetricsRun_FullFlow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name             string
		loadErr          error
		initMetricsErr   error
		runErr           error
		wantCode         int
		wantStderrSub    string
		wantRunnerCalls  int64
		wantCleanupCalls int64
	}{
		{
			name:          "load_config_error",
			loadErr:       errors.New("no such file"),
			wantCode:      2,
			wantStderrSub: "read config:",
		},
		{
			name:           "init_metrics_error",
			initMetricsErr: errors.New("metrics unavailable"),
			wantCode:       1,
			wantStderrSub:  "init metrics:",
		},
		{
			name:             "runner_error_runs_cleanup",
			runErr:           errors.New("timedep_alk_50_low_high_rep_pipe.csv: unknown data kind"),
			wantCode:         1,
			wantStderrSub:    "run: timedep_alk_50_low_high_rep_pipe.csv",
			wantRunnerCalls:  1,
			wantCleanupCalls: 1,
		},
		{
			name:             "success",
			wantCode:         0,
			wantRunnerCalls:  1,
			wantCleanupCalls: 1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			fr := &fakeRunner{err: tc.runErr}
			var cleanupCalls atomic.Int64

			deps := appDeps{
				loadConfig: func(path string) (config.Run, error) {
					if path != "run.yaml" {
						t.Fatalf("loadConfig path=%q, want run.yaml", path)
					}
					r := config.Default()
					r.InputDir = dir
					r.Sink = "array-file"
					r.Metrics.Job = "job1"
					r.CSV.Comma = ";"
					return r, tc.loadErr
				},
				loadGroups: func(string) (category.Groups, error) {
					t.Fatalf("loadGroups must not be called without -groups")
					return category.Groups{}, nil
				},
				initMetrics: func(_ context.Context, m config.Metrics) (func(), error) {
					if m.Job != "job1" {
						t.Fatalf("job=%q, want job1", m.Job)
					}
					if tc.initMetricsErr != nil {
						return func() {}, tc.initMetricsErr
					}
					return func() { cleanupCalls.Add(1) }, nil
				},
				newRunner: func(category.Groups, pipeline.Logger) runner { return fr },
			}

			// -sink overrides the file; -o is given explicitly.
			out := filepath.Join(dir, "out.sqlite")
			code := runMain(context.Background(),
				[]string{"-config", "run.yaml", "-sink", "sqlite", "-o", out, "-metrics-backend", "none"},
				&stdout, &stderr, deps)

			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if got := fr.calls.Load(); got != tc.wantRunnerCalls {
				t.Fatalf("runner calls=%d, want %d", got, tc.wantRunnerCalls)
			}
			if got := cleanupCalls.Load(); got != tc.wantCleanupCalls {
				t.Fatalf("cleanup calls=%d, want %d", got, tc.wantCleanupCalls)
			}

			if tc.wantCode != 0 {
				if stdout.Len() != 0 {
					t.Fatalf("stdout=%q, want empty", stdout.String())
				}
				return
			}
			if got := stdout.String(); got != out+"\n" {
				t.Fatalf("stdout=%q, want resolved output", got)
			}
			fr.mu.Lock()
			defer fr.mu.Unlock()
			if fr.lastOpt.Target.Sink != export.SinkSQLite || fr.lastOpt.CSV.Comma != ';' {
				t.Fatalf("runner options=%+v", fr.lastOpt)
			}
		})
	}
}

func TestRunMain_DefaultOutputIsSiblingNetCDF(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	in := filepath.Join(parent, "scenarios")
	if err := os.Mkdir(in, 0o755); err != nil {
		t.Fatal(err)
	}

	fr := &fakeRunner{}
	deps := fatalDeps(t)
	deps.newRunner = func(category.Groups, pipeline.Logger) runner { return fr }
	deps.initMetrics = func(context.Context, config.Metrics) (func(), error) { return func() {}, nil }

	var stdout, stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"-metrics-backend", "none", in}, &stdout, &stderr, deps); code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	want := filepath.Join(parent, "scenarios.nc")
	if got := strings.TrimSpace(stdout.String()); got != want {
		t.Fatalf("output=%q, want %q", got, want)
	}
}

func TestInitMetrics_None(t *testing.T) {
	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()
	setMetricsBackend = func(any) {
		t.Fatalf("setMetricsBackend must not be called for none")
	}

	for _, name := range []string{"", "none", "noop"} {
		cleanup, err := initMetrics(context.Background(), config.Metrics{Backend: name})
		if err != nil {
			t.Fatalf("initMetrics(%q) err=%v", name, err)
		}
		if cleanup == nil {
			t.Fatalf("cleanup=nil, want non-nil")
		}
		cleanup()
	}
}

func TestInitMetrics_Datadog_WiresBackendAndCloses(t *testing.T) {
	b := &fakeMetricsBackend{}

	var (
		newCalls atomic.Int64
		setCalls atomic.Int64
		gotOpts  datadog.Options
	)

	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() {
		newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog
	}()

	newDatadogBackend = func(_ context.Context, opts datadog.Options) (metricsBackend, error) {
		newCalls.Add(1)
		gotOpts = opts
		return b, nil
	}
	setMetricsBackend = func(any) { setCalls.Add(1) }

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	t.Setenv("METRICS_TAGS", "team:energy")
	cleanup, err := initMetrics(context.Background(), config.Metrics{Backend: "datadog", Tags: []string{"run:nightly"}})
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}

	if gotOpts.JobName != "h2scenarios" {
		t.Fatalf("JobName=%q, want default h2scenarios", gotOpts.JobName)
	}
	if strings.Join(gotOpts.Tags, ",") != "run:nightly,team:energy" {
		t.Fatalf("Tags=%v", gotOpts.Tags)
	}
	if newCalls.Load() != 1 || setCalls.Load() != 1 {
		t.Fatalf("new=%d set=%d, want 1 each", newCalls.Load(), setCalls.Load())
	}

	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_Datadog_CloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}

	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() {
		newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog
	}()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) { return b, nil }
	setMetricsBackend = func(any) {}

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	cleanup, err := initMetrics(context.Background(), config.Metrics{Backend: "dd"})
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	cleanup()

	if !strings.Contains(logged.String(), "metrics: datadog close error") || !strings.Contains(logged.String(), "flush failed") {
		t.Fatalf("log=%q", logged.String())
	}
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	t.Parallel()

	cleanup, err := initMetrics(context.Background(), config.Metrics{Backend: "nope"})
	if err == nil {
		t.Fatalf("initMetrics err=nil, want error")
	}
	if cleanup == nil {
		t.Fatalf("cleanup=nil, want non-nil")
	}
	cleanup()
	if !strings.Contains(err.Error(), "unknown metrics backend") || !strings.Contains(err.Error(), "none|datadog") {
		t.Fatalf("err=%q", err.Error())
	}
}
