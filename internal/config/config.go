// Package config holds the run configuration for the scenario pipeline.
//
// A run can be described entirely by CLI flags; a config file (JSON or
// YAML) supplies defaults that flags then override.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"h2scenarios/internal/parser/csv"
)

// Run is the full configuration of one pipeline run.
type Run struct {
	InputDir            string  `json:"input_dir" yaml:"input_dir"`
	Output              string  `json:"output" yaml:"output"`
	Sink                string  `json:"sink" yaml:"sink"`
	CSV                 CSV     `json:"csv" yaml:"csv"`
	ComponentGroupsFile string  `json:"component_groups_file" yaml:"component_groups_file"`
	BatchSize           int     `json:"batch_size" yaml:"batch_size"`
	Metrics             Metrics `json:"metrics" yaml:"metrics"`
}

// CSV controls how source files are decoded.
type CSV struct {
	// Comma is a single-character delimiter; empty means ",".
	Comma    string `json:"comma" yaml:"comma"`
	Encoding string `json:"encoding" yaml:"encoding"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend string   `json:"backend" yaml:"backend"`
	Job     string   `json:"job" yaml:"job"`
	Tags    []string `json:"tags" yaml:"tags"`
}

// Default returns the configuration used when no file is given.
func Default() Run {
	return Run{
		Sink: "array-file",
		CSV:  CSV{Comma: ",", Encoding: "utf-8"},
	}
}

// Load reads a config file on top of Default. The format is chosen by
// extension: .yaml/.yml is YAML, anything else is JSON.
func Load(path string) (Run, error) {
	r := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &r)
	default:
		err = json.Unmarshal(b, &r)
	}
	if err != nil {
		return r, fmt.Errorf("decode config %s: %w", path, err)
	}
	return r, nil
}

// CSVOptions converts the csv section into reader options.
func (r Run) CSVOptions() csv.Options {
	opt := csv.DefaultOptions()
	if c, _ := utf8.DecodeRuneInString(r.CSV.Comma); c != utf8.RuneError {
		opt.Comma = c
	}
	if r.CSV.Encoding != "" {
		opt.Encoding = r.CSV.Encoding
	}
	return opt
}

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks r for problems detectable before any I/O. sinkKnown
// reports whether a sink selector is recognised; it is passed in so this
// package does not depend on the exporters.
func Validate(r Run, sinkKnown func(string) bool) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(r.InputDir) == "" {
		add(SeverityError, "input_dir", "is required")
	} else if st, err := os.Stat(r.InputDir); err != nil {
		add(SeverityError, "input_dir", "%v", err)
	} else if !st.IsDir() {
		add(SeverityError, "input_dir", "%s is not a directory", r.InputDir)
	}

	if r.Sink == "" {
		add(SeverityError, "sink", "is required")
	} else if sinkKnown != nil && !sinkKnown(r.Sink) {
		add(SeverityError, "sink", "unknown sink %q", r.Sink)
	}

	if n := utf8.RuneCountInString(r.CSV.Comma); n > 1 {
		add(SeverityError, "csv.comma", "must be a single character, got %q", r.CSV.Comma)
	} else if r.CSV.Comma == "\n" || r.CSV.Comma == "\r" || r.CSV.Comma == "\"" {
		add(SeverityError, "csv.comma", "invalid delimiter %q", r.CSV.Comma)
	}
	if err := csv.CheckEncoding(r.CSV.Encoding); err != nil {
		add(SeverityError, "csv.encoding", "%v", err)
	}

	if r.BatchSize < 0 {
		add(SeverityError, "batch_size", "must be >= 0, got %d", r.BatchSize)
	} else if r.BatchSize > 10000 {
		add(SeverityWarning, "batch_size", "%d rows per statement will be split further by backend parameter limits", r.BatchSize)
	}

	if r.ComponentGroupsFile != "" {
		if _, err := os.Stat(r.ComponentGroupsFile); err != nil {
			add(SeverityError, "component_groups_file", "%v", err)
		}
	}

	switch strings.ToLower(r.Metrics.Backend) {
	case "", "none", "noop", "datadog", "dd":
	default:
		add(SeverityError, "metrics.backend", "unknown backend %q (want none|datadog)", r.Metrics.Backend)
	}
	for i, t := range r.Metrics.Tags {
		if !strings.Contains(t, ":") {
			add(SeverityWarning, fmt.Sprintf("metrics.tags[%d]", i), "tag %q is not key:value", t)
		}
	}
	return out
}
