package storage

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"h2scenarios/internal/frame"
)

func TestTableFromFrame_IndexFirstAndNaNToNull(t *testing.T) {
	t.Parallel()

	f := frame.New(2)
	_ = f.AddColumn("capex", []any{1.5, math.NaN()})
	_ = f.AddColumn("component", []any{"WT", "Foo"})
	_ = f.AddColumn("distance", []any{int64(50), int64(50)})
	_ = f.AddColumn("rep_pipe", []any{true, false})
	if err := f.SetIndex("component", "distance", "rep_pipe"); err != nil {
		t.Fatal(err)
	}

	spec, rows, err := TableFromFrame("system_costs", f)
	if err != nil {
		t.Fatalf("TableFromFrame: %v", err)
	}

	want := []ColumnSpec{
		{Name: "component", Type: TypeText},
		{Name: "distance", Type: TypeBigInt},
		{Name: "rep_pipe", Type: TypeBool},
		{Name: "capex", Type: TypeDouble, Nullable: true},
	}
	if diff := cmp.Diff(want, spec.Columns); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
	if rows[1][3] != nil {
		t.Fatalf("NaN must become NULL, got %#v", rows[1][3])
	}
}

func TestTableFromFrame_EmptyKeyCell(t *testing.T) {
	t.Parallel()

	f := frame.New(1)
	_ = f.AddColumn("k", []any{nil})
	_ = f.AddColumn("v", []any{1.0})
	_ = f.SetIndex("k")

	if _, _, err := TableFromFrame("t", f); err == nil {
		t.Fatalf("expected error for empty key cell")
	}
}

func TestBatches_RespectsParamLimit(t *testing.T) {
	t.Parallel()

	rows := make([][]any, 10)
	for i := range rows {
		rows[i] = []any{i, i, i}
	}

	got := Batches(rows, 3, 100, 9)
	if len(got) != 4 {
		t.Fatalf("expected 4 batches of <=3 rows, got %d", len(got))
	}
	if len(got[3]) != 1 {
		t.Fatalf("last batch = %d rows, want 1", len(got[3]))
	}
	if Batches(nil, 3, 100, 9) != nil {
		t.Fatalf("expected nil for no rows")
	}
}

type fakeRepo struct{ closed int }

func (f *fakeRepo) Close() { f.closed++ }
func (f *fakeRepo) ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

func TestRegistry(t *testing.T) {
	var gotBatch int
	Register("fake-registry-test", func(ctx context.Context, cfg Config) (Repository, error) {
		gotBatch = cfg.BatchSize
		return &fakeRepo{}, nil
	})

	r, err := New(context.Background(), Config{Kind: "fake-registry-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	if gotBatch != DefaultBatchSize {
		t.Fatalf("batch size = %d, want default %d", gotBatch, DefaultBatchSize)
	}

	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("fake-registry-test", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
}
