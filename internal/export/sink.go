// Package export writes category tables, or the merged dataset, to a sink.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownSink is returned for a sink selector that names no exporter.
var ErrUnknownSink = errors.New("unknown sink")

// Sink selects an output format.
type Sink string

const (
	// SinkArrayFile is a NetCDF file holding the merged dataset.
	SinkArrayFile Sink = "array-file"
	// SinkSQLite is the file-based relational store ("relational-A").
	SinkSQLite Sink = "sqlite"
	// SinkPostgres is the server relational store ("relational-B").
	SinkPostgres Sink = "postgres"
	SinkMSSQL    Sink = "mssql"
	SinkMySQL    Sink = "mysql"
	// SinkXLSX writes one worksheet per category.
	SinkXLSX Sink = "xlsx"
)

var sinkAliases = map[string]Sink{
	"array-file":   SinkArrayFile,
	"netcdf":       SinkArrayFile,
	"nc":           SinkArrayFile,
	"relational-a": SinkSQLite,
	"sqlite":       SinkSQLite,
	"relational-b": SinkPostgres,
	"postgres":     SinkPostgres,
	"postgresql":   SinkPostgres,
	"mssql":        SinkMSSQL,
	"sqlserver":    SinkMSSQL,
	"mysql":        SinkMySQL,
	"mariadb":      SinkMySQL,
	"xlsx":         SinkXLSX,
	"excel":        SinkXLSX,
}

// ParseSink resolves a selector or one of its aliases (case-insensitive).
func ParseSink(s string) (Sink, error) {
	if k, ok := sinkAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownSink, s, strings.Join(SinkNames(), ", "))
}

// KnownSink reports whether s parses.
func KnownSink(s string) bool {
	_, err := ParseSink(s)
	return err == nil
}

// SinkNames lists every accepted selector, sorted.
func SinkNames() []string {
	out := make([]string, 0, len(sinkAliases))
	for k := range sinkAliases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Relational reports whether the sink writes one relation per category
// through internal/storage.
func (s Sink) Relational() bool {
	switch s {
	case SinkSQLite, SinkPostgres, SinkMSSQL, SinkMySQL:
		return true
	}
	return false
}

// NeedsDataset reports whether the sink consumes the merged dataset rather
// than the per-category tables.
func (s Sink) NeedsDataset() bool { return s == SinkArrayFile }

// StorageKind is the internal/storage backend for a relational sink.
func (s Sink) StorageKind() string { return string(s) }

// DSNEnv is consulted for server sinks when no output is given.
const DSNEnv = "H2SCENARIOS_DSN"

// DefaultOutput derives the output location when none is given. File sinks
// write next to the input directory, named after it. Server sinks read
// their DSN from $H2SCENARIOS_DSN and return "" when it is unset.
func DefaultOutput(inputDir string, s Sink) string {
	dir := filepath.Clean(inputDir)
	if b := filepath.Base(dir); b == "." || b == ".." {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	base := filepath.Join(filepath.Dir(dir), filepath.Base(dir))
	switch s {
	case SinkArrayFile:
		return base + ".nc"
	case SinkSQLite:
		return base + ".sqlite"
	case SinkXLSX:
		return base + ".xlsx"
	default:
		return os.Getenv(DSNEnv)
	}
}

// ResolveOutput expands environment references in an explicit output and
// falls back to DefaultOutput.
func ResolveOutput(output, inputDir string, s Sink) string {
	if strings.TrimSpace(output) == "" {
		return DefaultOutput(inputDir, s)
	}
	return os.ExpandEnv(output)
}
