package dataset

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"h2scenarios/internal/frame"
)

func indexed(t *testing.T, n int, order []string, cols map[string][]any, index ...string) *frame.Frame {
	t.Helper()
	f := frame.New(n)
	for _, c := range order {
		if err := f.AddColumn(c, cols[c]); err != nil {
			t.Fatalf("AddColumn(%s): %v", c, err)
		}
	}
	if err := f.SetIndex(index...); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	return f
}

func TestMerge_UnionsLabelsWithoutDroppingKeys(t *testing.T) {
	t.Parallel()

	costs := indexed(t, 2,
		[]string{"sysconfig", "rep_pipe", "component", "capex"},
		map[string][]any{
			"sysconfig": {"C-ON", "C-ON"},
			"rep_pipe":  {false, true},
			"component": {"WT", "WT"},
			"capex":     {10.0, 7.0},
		},
		"sysconfig", "rep_pipe", "component",
	)
	results := indexed(t, 1,
		[]string{"sysconfig", "rep_pipe", "lcoh"},
		map[string][]any{
			"sysconfig": {"D-OFF"},
			"rep_pipe":  {false},
			"lcoh":      {4.2},
		},
		"sysconfig", "rep_pipe",
	)

	ds, err := Merge([]Category{{"system_costs", costs}, {"simp_output_results", results}})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	sc, _ := ds.Dim("sysconfig")
	if diff := cmp.Diff([]any{"C-ON", "D-OFF"}, sc.Labels); diff != "" {
		t.Fatalf("sysconfig labels (-want +got):\n%s", diff)
	}
	rp, _ := ds.Dim("rep_pipe")
	if diff := cmp.Diff([]any{false, true}, rp.Labels); diff != "" {
		t.Fatalf("rep_pipe labels (-want +got):\n%s", diff)
	}

	for _, rep := range []bool{false, true} {
		want := 10.0
		if rep {
			want = 7.0
		}
		got, ok := ds.Value("capex", map[string]any{"sysconfig": "C-ON", "rep_pipe": rep, "component": "WT"})
		if !ok || got != want {
			t.Fatalf("capex rep_pipe=%v = %v,%v want %v", rep, got, ok, want)
		}
	}

	got, ok := ds.Value("capex", map[string]any{"sysconfig": "D-OFF", "rep_pipe": false, "component": "WT"})
	if !ok || !math.IsNaN(got) {
		t.Fatalf("expected NaN fill for absent combination, got %v,%v", got, ok)
	}
	if _, ok := ds.Value("capex", map[string]any{"sysconfig": "X", "rep_pipe": false, "component": "WT"}); ok {
		t.Fatalf("expected unknown label to miss")
	}

	v, _ := ds.Var("lcoh")
	if diff := cmp.Diff([]string{"sysconfig", "rep_pipe"}, v.Dims); diff != "" {
		t.Fatalf("lcoh dims (-want +got):\n%s", diff)
	}
}

func TestMerge_DuplicateKey(t *testing.T) {
	t.Parallel()

	f := indexed(t, 2, []string{"k", "v"}, map[string][]any{"k": {"a", "a"}, "v": {1.0, 2.0}}, "k")
	if _, err := Merge([]Category{{"x", f}}); !errors.Is(err, frame.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestMerge_ConflictingVariable(t *testing.T) {
	t.Parallel()

	a := indexed(t, 1, []string{"k", "v"}, map[string][]any{"k": {"a"}, "v": {1.0}}, "k")
	b := indexed(t, 1, []string{"k", "v"}, map[string][]any{"k": {"a"}, "v": {2.0}}, "k")
	if _, err := Merge([]Category{{"a", a}, {"b", b}}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for diverging values, got %v", err)
	}

	c := indexed(t, 1, []string{"k", "j", "v"}, map[string][]any{"k": {"b"}, "j": {"z"}, "v": {3.0}}, "k", "j")
	if _, err := Merge([]Category{{"a", a}, {"c", c}}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for diverging dims, got %v", err)
	}

	same := indexed(t, 1, []string{"k", "v"}, map[string][]any{"k": {"b"}, "v": {5.0}}, "k")
	ds, err := Merge([]Category{{"a", a}, {"same", same}})
	if err != nil {
		t.Fatalf("compatible merge: %v", err)
	}
	if got, _ := ds.Value("v", map[string]any{"k": "b"}); got != 5.0 {
		t.Fatalf("v[b] = %v", got)
	}
}

func TestMerge_AuxCoordinate(t *testing.T) {
	t.Parallel()

	f := indexed(t, 3,
		[]string{"component", "component_groups", "capex"},
		map[string][]any{
			"component":        {"WT", "Foo", "WT"},
			"component_groups": {"Wind farm", "", "Wind farm"},
			"capex":            {1.0, 2.0, 3.0},
		},
		"component",
	)
	// WT repeats, so add a second key column.
	if err := f.AddColumn("rep_pipe", []any{false, false, true}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetIndex("component", "rep_pipe"); err != nil {
		t.Fatal(err)
	}

	ds, err := Merge([]Category{{"system_costs", f}}, Aux{Column: "component_groups", Dim: "component"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, ok := ds.Var("component_groups"); ok {
		t.Fatalf("aux column must not become a variable")
	}
	if len(ds.Aux) != 1 {
		t.Fatalf("expected one aux coordinate, got %d", len(ds.Aux))
	}
	// Labels sort as Foo, WT.
	if diff := cmp.Diff([]string{"", "Wind farm"}, ds.Aux[0].Values); diff != "" {
		t.Fatalf("aux values (-want +got):\n%s", diff)
	}
}

func TestMerge_MissingLabel(t *testing.T) {
	t.Parallel()

	f := indexed(t, 1, []string{"k", "v"}, map[string][]any{"k": {nil}, "v": {1.0}}, "k")
	if _, err := Merge([]Category{{"x", f}}); !errors.Is(err, ErrMissingLabel) {
		t.Fatalf("expected ErrMissingLabel, got %v", err)
	}
}
