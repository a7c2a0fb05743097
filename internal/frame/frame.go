// Package frame is a small in-memory labeled table: ordered, named columns of
// scalar cells plus an ordered composite index drawn from those columns.
//
// Cells are one of string, int64, float64, bool or nil (missing). Frames are
// built per source file, concatenated per data kind and handed to the sinks;
// nothing here is safe for concurrent mutation.
package frame

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrKeyShape is returned when frames with different composite keys are
// concatenated.
var ErrKeyShape = errors.New("composite key mismatch")

// ErrDuplicateKey is returned when a composite key value occurs more than once
// where uniqueness is required.
var ErrDuplicateKey = errors.New("duplicate composite key")

// Frame is a column-oriented table with an optional composite index.
type Frame struct {
	names []string
	cols  map[string][]any
	index []string
	n     int
}

// New returns an empty frame with n rows and no columns.
func New(n int) *Frame {
	return &Frame{cols: make(map[string][]any), n: n}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Columns returns every column name in order, index columns included.
func (f *Frame) Columns() []string { return append([]string(nil), f.names...) }

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the cells of a column, or nil when it does not exist.
// The returned slice is shared with the frame.
func (f *Frame) Column(name string) []any { return f.cols[name] }

// AddColumn appends a new column. vals must have exactly Len() cells.
func (f *Frame) AddColumn(name string, vals []any) error {
	if name == "" {
		return fmt.Errorf("frame: empty column name")
	}
	if f.Has(name) {
		return fmt.Errorf("frame: column %q already exists", name)
	}
	if len(vals) != f.n {
		return fmt.Errorf("frame: column %q has %d cells, frame has %d rows", name, len(vals), f.n)
	}
	f.names = append(f.names, name)
	f.cols[name] = vals
	return nil
}

// SetColumn replaces the cells of an existing column or appends a new one.
func (f *Frame) SetColumn(name string, vals []any) error {
	if !f.Has(name) {
		return f.AddColumn(name, vals)
	}
	if len(vals) != f.n {
		return fmt.Errorf("frame: column %q has %d cells, frame has %d rows", name, len(vals), f.n)
	}
	f.cols[name] = vals
	return nil
}

// Broadcast sets column name to v on every row (file-level metadata).
func (f *Frame) Broadcast(name string, v any) error {
	vals := make([]any, f.n)
	for i := range vals {
		vals[i] = v
	}
	return f.SetColumn(name, vals)
}

// Drop removes a column. Dropping an index column removes it from the index.
func (f *Frame) Drop(name string) {
	if !f.Has(name) {
		return
	}
	delete(f.cols, name)
	f.names = remove(f.names, name)
	f.index = remove(f.index, name)
}

// Rename renames a column in place, keeping its position (and its position in
// the index, if it is part of it).
func (f *Frame) Rename(old, new string) error {
	if old == new {
		return nil
	}
	if !f.Has(old) {
		return fmt.Errorf("frame: rename: no column %q", old)
	}
	if f.Has(new) {
		return fmt.Errorf("frame: rename %q: column %q already exists", old, new)
	}
	f.cols[new] = f.cols[old]
	delete(f.cols, old)
	replace(f.names, old, new)
	replace(f.index, old, new)
	return nil
}

// SetIndex promotes the named columns, in order, to the composite index.
// A previous index is discarded (its columns stay as data columns).
func (f *Frame) SetIndex(names ...string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !f.Has(n) {
			return fmt.Errorf("frame: set index: no column %q", n)
		}
		if seen[n] {
			return fmt.Errorf("frame: set index: column %q listed twice", n)
		}
		seen[n] = true
	}
	f.index = append([]string(nil), names...)
	return nil
}

// Index returns the composite index column names in order.
func (f *Frame) Index() []string { return append([]string(nil), f.index...) }

// IsIndex reports whether name is part of the composite index.
func (f *Frame) IsIndex(name string) bool {
	for _, n := range f.index {
		if n == name {
			return true
		}
	}
	return false
}

// DataColumns returns the non-index columns in order.
func (f *Frame) DataColumns() []string {
	out := make([]string, 0, len(f.names))
	for _, n := range f.names {
		if !f.IsIndex(n) {
			out = append(out, n)
		}
	}
	return out
}

// Key returns the composite index values of row i.
func (f *Frame) Key(i int) []any {
	out := make([]any, len(f.index))
	for j, n := range f.index {
		out[j] = f.cols[n][i]
	}
	return out
}

// CheckUniqueKey returns ErrDuplicateKey if two rows share a composite key.
func (f *Frame) CheckUniqueKey() error {
	seen := make(map[string]int, f.n)
	for i := 0; i < f.n; i++ {
		k := KeyString(f.Key(i)...)
		if prev, ok := seen[k]; ok {
			return fmt.Errorf("%w: rows %d and %d share key %v", ErrDuplicateKey, prev, i, f.Key(i))
		}
		seen[k] = i
	}
	return nil
}

// Records flattens the frame into plain rows: index columns first, then data
// columns. This is the relational view of the table (no index preserved).
func (f *Frame) Records() (columns []string, rows [][]any) {
	columns = append(f.Index(), f.DataColumns()...)
	rows = make([][]any, f.n)
	for i := 0; i < f.n; i++ {
		r := make([]any, len(columns))
		for j, c := range columns {
			r[j] = f.cols[c][i]
		}
		rows[i] = r
	}
	return columns, rows
}

// Concat row-unions frames that share the same composite key columns.
//
// Behavior:
//   - Every row of every input is kept, in input order (no dedupe).
//   - The index column set must be identical across inputs; the result uses
//     the first frame's index order.
//   - Data columns are outer-joined by name in first-seen order; cells of a
//     column absent from an input are missing (nil).
//
// Errors:
//   - Returns an error wrapping ErrKeyShape on index mismatch.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("frame: concat of zero frames")
	}

	first := frames[0]
	want := sortedCopy(first.index)
	total := 0
	for i, fr := range frames {
		if got := sortedCopy(fr.index); !equalStrings(want, got) {
			return nil, fmt.Errorf("%w: frame %d has key [%s], frame 0 has [%s]",
				ErrKeyShape, i, strings.Join(fr.index, ", "), strings.Join(first.index, ", "))
		}
		total += fr.n
	}

	order := append([]string(nil), first.index...)
	for _, fr := range frames {
		for _, c := range fr.DataColumns() {
			if !contains(order, c) {
				order = append(order, c)
			}
		}
	}

	out := New(total)
	for _, c := range order {
		vals := make([]any, 0, total)
		for _, fr := range frames {
			src, ok := fr.cols[c]
			if !ok {
				vals = append(vals, make([]any, fr.n)...)
				continue
			}
			vals = append(vals, src...)
		}
		if err := out.AddColumn(c, vals); err != nil {
			return nil, err
		}
	}
	if err := out.SetIndex(first.index...); err != nil {
		return nil, err
	}
	return out, nil
}

func remove(ss []string, v string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func replace(ss []string, old, new string) {
	for i := range ss {
		if ss[i] == old {
			ss[i] = new
		}
	}
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
