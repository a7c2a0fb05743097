package category

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"h2scenarios/internal/filename"
	"h2scenarios/internal/frame"
)

// Logger is the minimal logging seam used by the reshaper.
type Logger interface {
	Printf(format string, args ...any)
}

// Input is one parsed source file.
type Input struct {
	// Path is used in diagnostics only.
	Path string
	// SysConfig is the first directory below the input root.
	SysConfig string
	// Meta are the fields decoded from the file name.
	Meta filename.Meta
	// RowIndex is the leading index column of the file, as raw strings.
	RowIndex []string
	// Frame holds the typed data columns. Reshape takes ownership of it.
	Frame *frame.Frame
}

// Reshaper builds the indexed table of one file.
type Reshaper struct {
	Groups Groups
	Logger Logger
}

// NewReshaper returns a reshaper with the built-in component groups and the
// standard logger.
func NewReshaper() *Reshaper {
	return &Reshaper{Groups: DefaultGroups(), Logger: log.Default()}
}

// Reshape resolves the data kind of one file and indexes its table.
//
// Behavior:
//   - File-level metadata (sysconfig, technology, distance, bound_eco,
//     bound_tech, rep_pipe) is broadcast to every row and joins the key.
//   - SystemCosts: the component identifier column becomes "component" and
//     joins the key; "component_groups" is added from the group lookup.
//   - TimeDepCosts: the row index is parsed as an integer "year" key.
//   - SimpOutputResults: the row index is discarded.
//   - Integer data columns are widened to float64. Text or boolean data
//     columns are promoted into the key and logged.
//
// Errors:
//   - ErrUnknownKind for an unrecognized which_data tag.
//   - A SystemCosts table without data columns, or a TimeDepCosts row index
//     that is not an integer.
func (r *Reshaper) Reshape(in Input) (Kind, *frame.Frame, error) {
	kind, err := ParseKind(in.Meta.WhichData)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", in.Path, err)
	}
	f := in.Frame
	if f == nil {
		return 0, nil, fmt.Errorf("%s: no table", in.Path)
	}

	key := KeyPolicy(kind)
	aux := map[string]bool{}

	switch kind {
	case SystemCosts:
		if err := r.addComponent(f); err != nil {
			return 0, nil, fmt.Errorf("%s: %w", in.Path, err)
		}
		aux[ColComponentGroups] = true
	case TimeDepCosts:
		years, err := parseYears(in.RowIndex, f.Len())
		if err != nil {
			return 0, nil, fmt.Errorf("%s: %w", in.Path, err)
		}
		if err := f.SetColumn(ColYear, years); err != nil {
			return 0, nil, fmt.Errorf("%s: %w", in.Path, err)
		}
	case SimpOutputResults:
	}

	meta := []struct {
		name string
		v    any
	}{
		{ColSysConfig, in.SysConfig},
		{ColTechnology, in.Meta.Technology},
		{ColDistance, in.Meta.Distance},
		{ColBoundEco, in.Meta.BoundEco},
		{ColBoundTech, in.Meta.BoundTech},
		{ColRepPipe, in.Meta.RepPipe()},
	}
	for _, m := range meta {
		if err := f.Broadcast(m.name, m.v); err != nil {
			return 0, nil, fmt.Errorf("%s: %w", in.Path, err)
		}
	}

	inKey := make(map[string]bool, len(key))
	for _, k := range key {
		inKey[k] = true
	}
	for _, c := range f.Columns() {
		if inKey[c] || aux[c] {
			continue
		}
		vals := f.Column(c)
		if frame.KindOf(vals).Numeric() {
			if err := f.SetColumn(c, widen(vals)); err != nil {
				return 0, nil, fmt.Errorf("%s: %w", in.Path, err)
			}
			continue
		}
		r.logf("reshape: %s: non-numeric column %q promoted to key", in.Path, c)
		key = append(key, c)
		inKey[c] = true
	}

	if err := f.SetIndex(key...); err != nil {
		return 0, nil, fmt.Errorf("%s: %w", in.Path, err)
	}
	return kind, f, nil
}

// addComponent renames the component identifier column and attaches its
// infrastructure group. The identifier is always the first data column;
// other columns mentioning "component" are ordinary data.
func (r *Reshaper) addComponent(f *frame.Frame) error {
	id := ""
	for _, c := range f.Columns() {
		if c != ColComponentGroups {
			id = c
			break
		}
	}
	if id == "" {
		return fmt.Errorf("system costs table has no component column")
	}
	if err := f.Rename(id, ColComponent); err != nil {
		return err
	}

	comps := f.Column(ColComponent)
	groups := make([]any, len(comps))
	for i, c := range comps {
		name := ""
		if !frame.IsMissing(c) {
			name = fmt.Sprint(c)
		}
		groups[i] = r.Groups.Lookup(name)
	}
	return f.SetColumn(ColComponentGroups, groups)
}

func (r *Reshaper) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

func parseYears(idx []string, n int) ([]any, error) {
	if len(idx) != n {
		return nil, fmt.Errorf("row index has %d entries, table has %d rows", len(idx), n)
	}
	out := make([]any, n)
	for i, s := range idx {
		y, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: year %q is not an integer", i+1, s)
		}
		out[i] = y
	}
	return out, nil
}

func widen(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		f, _ := frame.ToFloat(v)
		out[i] = f
	}
	return out
}
