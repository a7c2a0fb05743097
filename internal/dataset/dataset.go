// Package dataset merges the per-category tables into one labeled
// multi-dimensional dataset: a set of named dimensions with sorted coordinate
// labels and dense float variables over subsets of those dimensions.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"h2scenarios/internal/frame"
)

var (
	// ErrConflict is returned when two categories disagree about a variable
	// or an auxiliary coordinate.
	ErrConflict = errors.New("merge conflict")
	// ErrMissingLabel is returned for a key cell with no value.
	ErrMissingLabel = errors.New("missing key value")
)

// Category is one indexed table to merge, tagged with its category name.
type Category struct {
	Name  string
	Frame *frame.Frame
}

// Aux declares a string data column that is carried as a coordinate along a
// key dimension instead of as a variable (for example the infrastructure
// group of each component).
type Aux struct {
	Column string
	Dim    string
}

// Dim is one dimension of the dataset.
type Dim struct {
	Name   string
	Kind   frame.Kind
	Labels []any
}

// Variable is a dense array over Dims in row-major order. Missing cells are
// NaN.
type Variable struct {
	Name     string
	Category string
	Dims     []string
	Shape    []int
	Values   []float64
}

// AuxCoord is a one-dimensional string coordinate along Dim.
type AuxCoord struct {
	Name   string
	Dim    string
	Values []string
}

// Dataset is the merged result.
type Dataset struct {
	Dims []Dim
	Vars []Variable
	Aux  []AuxCoord

	dimPos   map[string]int
	labelPos map[string]map[string]int
	varPos   map[string]int
}

// Merge builds a dataset from the category tables.
//
// Behavior:
//   - The dimensions are the union of all index columns, in first-seen order.
//   - Each dimension's labels are the sorted union of its values across every
//     category that uses it, so no key combination is ever dropped.
//   - Each data column becomes a variable over its own category's index,
//     with NaN where a label combination has no row.
//   - A variable name used by two categories must have the same dimensions;
//     values are combined where the other side is NaN.
//
// Errors:
//   - frame.ErrDuplicateKey if a category repeats a key.
//   - ErrConflict on diverging variables, dimensions or auxiliary values.
//   - ErrMissingLabel if a key cell is empty.
func Merge(cats []Category, aux ...Aux) (*Dataset, error) {
	auxByCol := make(map[string]Aux, len(aux))
	for _, a := range aux {
		auxByCol[a.Column] = a
	}

	ds := &Dataset{
		dimPos:   make(map[string]int),
		labelPos: make(map[string]map[string]int),
		varPos:   make(map[string]int),
	}

	if err := ds.collectDims(cats); err != nil {
		return nil, err
	}

	for _, c := range cats {
		if err := c.Frame.CheckUniqueKey(); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		for _, col := range c.Frame.DataColumns() {
			var err error
			if a, ok := auxByCol[col]; ok {
				err = ds.addAux(c, a)
			} else {
				err = ds.addVar(c, col)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

func (ds *Dataset) collectDims(cats []Category) error {
	type acc struct {
		seen   map[string]bool
		labels []any
	}
	var order []string
	byDim := make(map[string]*acc)

	for _, c := range cats {
		for _, d := range c.Frame.Index() {
			a, ok := byDim[d]
			if !ok {
				a = &acc{seen: make(map[string]bool)}
				byDim[d] = a
				order = append(order, d)
			}
			for _, v := range c.Frame.Column(d) {
				if frame.IsMissing(v) {
					return fmt.Errorf("%w: %s.%s", ErrMissingLabel, c.Name, d)
				}
				k := frame.KeyString(v)
				if !a.seen[k] {
					a.seen[k] = true
					a.labels = append(a.labels, v)
				}
			}
		}
	}

	for _, d := range order {
		labels := byDim[d].labels
		sort.SliceStable(labels, func(i, j int) bool { return frame.Less(labels[i], labels[j]) })

		kind := frame.KindOf(labels)
		for _, l := range labels {
			if frame.KindOf([]any{l}) != kind {
				return fmt.Errorf("%w: dimension %q mixes %s and %s labels",
					ErrConflict, d, kind, frame.KindOf([]any{l}))
			}
		}

		pos := make(map[string]int, len(labels))
		for i, l := range labels {
			pos[frame.KeyString(l)] = i
		}
		ds.dimPos[d] = len(ds.Dims)
		ds.labelPos[d] = pos
		ds.Dims = append(ds.Dims, Dim{Name: d, Kind: kind, Labels: labels})
	}
	return nil
}

func (ds *Dataset) addVar(c Category, col string) error {
	dims := c.Frame.Index()
	shape := make([]int, len(dims))
	size := 1
	for i, d := range dims {
		shape[i] = len(ds.Dims[ds.dimPos[d]].Labels)
		size *= shape[i]
	}

	i, exists := ds.varPos[col]
	if !exists {
		vals := make([]float64, size)
		for j := range vals {
			vals[j] = math.NaN()
		}
		i = len(ds.Vars)
		ds.varPos[col] = i
		ds.Vars = append(ds.Vars, Variable{
			Name: col, Category: c.Name, Dims: dims, Shape: shape, Values: vals,
		})
	}
	v := &ds.Vars[i]
	if exists && !sameDims(v.Dims, dims) {
		return fmt.Errorf("%w: variable %q is over %v in %s and %v in %s",
			ErrConflict, col, v.Dims, v.Category, dims, c.Name)
	}

	cells := c.Frame.Column(col)
	for r := 0; r < c.Frame.Len(); r++ {
		x, ok := frame.ToFloat(cells[r])
		if !ok {
			return fmt.Errorf("%s: column %q row %d: %v is not numeric", c.Name, col, r, cells[r])
		}
		if math.IsNaN(x) {
			continue
		}
		off := 0
		for j, d := range v.Dims {
			off = off*v.Shape[j] + ds.labelPos[d][frame.KeyString(c.Frame.Column(d)[r])]
		}
		if prev := v.Values[off]; !math.IsNaN(prev) && prev != x {
			return fmt.Errorf("%w: variable %q has %v in %s and %v in %s",
				ErrConflict, col, prev, v.Category, x, c.Name)
		}
		v.Values[off] = x
	}
	return nil
}

func (ds *Dataset) addAux(c Category, a Aux) error {
	if !c.Frame.IsIndex(a.Dim) {
		return fmt.Errorf("%s: auxiliary %q needs dimension %q in the key", c.Name, a.Column, a.Dim)
	}

	var ac *AuxCoord
	for i := range ds.Aux {
		if ds.Aux[i].Name == a.Column {
			ac = &ds.Aux[i]
		}
	}
	if ac == nil {
		ds.Aux = append(ds.Aux, AuxCoord{
			Name:   a.Column,
			Dim:    a.Dim,
			Values: make([]string, len(ds.Dims[ds.dimPos[a.Dim]].Labels)),
		})
		ac = &ds.Aux[len(ds.Aux)-1]
	}

	set := make(map[int]bool)
	labels := c.Frame.Column(a.Dim)
	for r, v := range c.Frame.Column(a.Column) {
		s := ""
		if !frame.IsMissing(v) {
			s = fmt.Sprint(v)
		}
		p := ds.labelPos[a.Dim][frame.KeyString(labels[r])]
		if set[p] && ac.Values[p] != s {
			return fmt.Errorf("%w: %s of %v is both %q and %q",
				ErrConflict, a.Column, labels[r], ac.Values[p], s)
		}
		set[p] = true
		ac.Values[p] = s
	}
	return nil
}

// Dim returns the named dimension.
func (ds *Dataset) Dim(name string) (Dim, bool) {
	i, ok := ds.dimPos[name]
	if !ok {
		return Dim{}, false
	}
	return ds.Dims[i], true
}

// Var returns the named variable.
func (ds *Dataset) Var(name string) (Variable, bool) {
	i, ok := ds.varPos[name]
	if !ok {
		return Variable{}, false
	}
	return ds.Vars[i], true
}

// Value looks up one cell of a variable by coordinate labels. Every
// dimension of the variable must be given. The bool is false when the
// variable or a label is unknown; a known but empty cell returns NaN, true.
func (ds *Dataset) Value(name string, coords map[string]any) (float64, bool) {
	v, ok := ds.Var(name)
	if !ok {
		return 0, false
	}
	off := 0
	for j, d := range v.Dims {
		l, ok := coords[d]
		if !ok {
			return 0, false
		}
		p, ok := ds.labelPos[d][frame.KeyString(l)]
		if !ok {
			return 0, false
		}
		off = off*v.Shape[j] + p
	}
	return v.Values[off], true
}

func sameDims(a, b []string) bool {
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
