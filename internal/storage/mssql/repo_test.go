package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"h2scenarios/internal/storage"
)

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

type fakeTx struct {
	stmts      []string
	failOn     string
	committed  bool
	rolledBack bool
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.stmts = append(f.stmts, query)
	if f.failOn != "" && strings.HasPrefix(query, f.failOn) {
		return nil, errors.New("boom")
	}
	return fakeResult{n: int64(strings.Count(query, "(@p"))}, nil
}

func (f *fakeTx) Commit() error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback() error {
	f.rolledBack = true
	return nil
}

type fakeDB struct{ tx *fakeTx }

func (f *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) { return f.tx, nil }
func (f *fakeDB) Close() error                                                     { return nil }

func spec() storage.TableSpec {
	return storage.TableSpec{
		Name: "dbo.simp_output_results",
		Columns: []storage.ColumnSpec{
			{Name: "sysconfig", Type: storage.TypeText},
			{Name: "rep_pipe", Type: storage.TypeBool},
			{Name: "LCOH_Euro_per_kg", Type: storage.TypeDouble, Nullable: true},
		},
	}
}

func TestReplaceTable_DropCreateInsertCommit(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	r := &Repo{db: &fakeDB{tx: tx}, batchSize: 1}

	rows := [][]any{{"C-ON", false, 4.2}, {"C-ON", true, nil}}
	n, err := r.ReplaceTable(context.Background(), spec(), rows)
	if err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}
	if len(tx.stmts) != 4 {
		t.Fatalf("expected drop, create and two inserts, got %d statements", len(tx.stmts))
	}
	if !strings.HasPrefix(tx.stmts[0], "IF OBJECT_ID(N'dbo.simp_output_results', N'U') IS NOT NULL DROP TABLE [dbo].[simp_output_results]") {
		t.Fatalf("unexpected drop: %s", tx.stmts[0])
	}
	if !strings.Contains(tx.stmts[1], "[rep_pipe] BIT NOT NULL") || !strings.Contains(tx.stmts[1], "[LCOH_Euro_per_kg] FLOAT NULL") {
		t.Fatalf("unexpected create: %s", tx.stmts[1])
	}
	if !tx.committed {
		t.Fatalf("expected commit")
	}
}

func TestReplaceTable_FailedInsertDoesNotCommit(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{failOn: "INSERT"}
	r := &Repo{db: &fakeDB{tx: tx}}

	if _, err := r.ReplaceTable(context.Background(), spec(), [][]any{{"C-ON", false, 1.0}}); err == nil {
		t.Fatalf("expected error")
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback without commit (committed=%v rolledBack=%v)", tx.committed, tx.rolledBack)
	}
}

func TestBuildBulkInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildBulkInsertSQL("t", []string{"a]b", "c"}, [][]any{{1, 2}, {3, 4}})
	want := "INSERT INTO [t] ([a]]b], [c]) VALUES (@p1, @p2), (@p3, @p4);"
	if q != want {
		t.Fatalf("sql:\n got %s\nwant %s", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %d", len(args))
	}
}
