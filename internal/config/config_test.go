package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_JSONAndYAMLAgree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	js := writeFile(t, dir, "run.json", `{
  "input_dir": "data/scenarios",
  "sink": "relational-A",
  "csv": {"comma": ";", "encoding": "windows-1252"},
  "batch_size": 250,
  "metrics": {"backend": "datadog", "job": "h2", "tags": ["team:energy"]}
}`)
	ym := writeFile(t, dir, "run.yaml", `
input_dir: data/scenarios
sink: relational-A
csv:
  comma: ";"
  encoding: windows-1252
batch_size: 250
metrics:
  backend: datadog
  job: h2
  tags: [team:energy]
`)

	a, err := Load(js)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	b, err := Load(ym)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("json vs yaml (-json +yaml):\n%s", diff)
	}
	if a.CSVOptions().Comma != ';' || a.CSVOptions().Encoding != "windows-1252" {
		t.Fatalf("CSVOptions = %+v", a.CSVOptions())
	}
}

func TestLoad_KeepsDefaultsForOmittedFields(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "run.json", `{"input_dir": "x"}`)
	r, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if r.Sink != "array-file" || r.CSV.Comma != "," {
		t.Fatalf("defaults lost: %+v", r)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "run.json", `{"input_dir": `)
	if _, err := Load(p); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	known := func(s string) bool { return s == "array-file" }

	good := Default()
	good.InputDir = dir
	if issues := Validate(good, known); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}

	bad := Default()
	bad.Sink = "parquet"
	bad.CSV.Comma = ";;"
	bad.CSV.Encoding = "ebcdic"
	bad.BatchSize = -1
	bad.Metrics.Backend = "statsd"

	issues := Validate(bad, known)
	if !HasErrors(issues) {
		t.Fatal("expected errors")
	}
	got := map[string]Severity{}
	for _, iss := range issues {
		got[iss.Path] = iss.Severity
	}
	want := map[string]Severity{
		"input_dir":       SeverityError,
		"sink":            SeverityError,
		"csv.comma":       SeverityError,
		"csv.encoding":    SeverityError,
		"batch_size":      SeverityError,
		"metrics.backend": SeverityError,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issue paths (-want +got):\n%s", diff)
	}
}
