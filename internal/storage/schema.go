// Package storage holds the backend-agnostic table model and the registry of
// relational backends. Backends live in sub-packages and register themselves
// from init().
package storage

import (
	"fmt"
	"math"
	"strings"

	"h2scenarios/internal/frame"
)

// Type is the logical column type; each backend maps it to a SQL type.
type Type string

const (
	TypeText   Type = "text"
	TypeBigInt Type = "bigint"
	TypeDouble Type = "double"
	TypeBool   Type = "bool"
)

// TableSpec describes a table to (re)create.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec is one column of a TableSpec.
type ColumnSpec struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ColumnNames returns the column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TableFromFrame flattens an indexed frame into a table spec and its rows.
// Index columns come first and are NOT NULL; there is no primary key.
// NaN cells become nil.
func TableFromFrame(name string, f *frame.Frame) (TableSpec, [][]any, error) {
	if strings.TrimSpace(name) == "" {
		return TableSpec{}, nil, fmt.Errorf("storage: table name is empty")
	}

	cols, rows := f.Records()
	spec := TableSpec{Name: name, Columns: make([]ColumnSpec, len(cols))}
	for j, c := range cols {
		spec.Columns[j] = ColumnSpec{
			Name:     c,
			Type:     typeOf(f.Column(c)),
			Nullable: !f.IsIndex(c),
		}
	}

	for _, r := range rows {
		for j, v := range r {
			if x, ok := v.(float64); ok && math.IsNaN(x) {
				r[j] = nil
				v = nil
			}
			if v == nil && !spec.Columns[j].Nullable {
				return TableSpec{}, nil, fmt.Errorf("storage: %s: key column %q has an empty cell", name, cols[j])
			}
		}
	}
	return spec, rows, nil
}

func typeOf(vals []any) Type {
	switch frame.KindOf(vals) {
	case frame.KindString:
		return TypeText
	case frame.KindInt:
		return TypeBigInt
	case frame.KindBool:
		return TypeBool
	default:
		return TypeDouble
	}
}

// Batches splits rows into chunks that keep every statement at or below
// maxParams bind parameters and batchSize rows.
func Batches(rows [][]any, ncols, batchSize, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	n := batchSize
	if n <= 0 {
		n = DefaultBatchSize
	}
	if ncols > 0 && maxParams > 0 && n*ncols > maxParams {
		n = maxParams / ncols
	}
	if n < 1 {
		n = 1
	}

	out := make([][][]any, 0, (len(rows)+n-1)/n)
	for i := 0; i < len(rows); i += n {
		end := i + n
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[i:end])
	}
	return out
}
