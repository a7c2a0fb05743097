package postgres

import (
	"strings"
	"testing"

	"h2scenarios/internal/storage"
)

func TestBuildCreateSQL_SchemaQualified(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name: "scenarios.time_dep_costs",
		Columns: []storage.ColumnSpec{
			{Name: "year", Type: storage.TypeBigInt},
			{Name: "rep_pipe", Type: storage.TypeBool},
			{Name: "OPEX_Euro", Type: storage.TypeDouble, Nullable: true},
		},
	}

	schemaSQL, createSQL, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "scenarios";` {
		t.Fatalf("unexpected schema SQL: %q", schemaSQL)
	}
	for _, want := range []string{
		`CREATE TABLE "scenarios"."time_dep_costs"`,
		`"year" BIGINT NOT NULL`,
		`"rep_pipe" BOOLEAN NOT NULL`,
		`"OPEX_Euro" DOUBLE PRECISION)`,
	} {
		if !strings.Contains(createSQL, want) {
			t.Fatalf("createSQL missing %q: %q", want, createSQL)
		}
	}
	if strings.Contains(createSQL, "PRIMARY KEY") {
		t.Fatalf("no primary key expected: %q", createSQL)
	}
}

func TestBuildCreateSQL_Unqualified(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{Name: "system_costs", Columns: []storage.ColumnSpec{{Name: "a", Type: storage.TypeText}}}
	schemaSQL, _, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != "" {
		t.Fatalf("expected no schema SQL, got %q", schemaSQL)
	}

	if _, _, err := buildCreateSQL(storage.TableSpec{Name: "x"}); err == nil {
		t.Fatalf("expected error for table without columns")
	}
	bad := storage.TableSpec{Name: "x", Columns: []storage.ColumnSpec{{Name: "a", Type: "blob"}}}
	if _, _, err := buildCreateSQL(bad); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestBuildInsertSQL_PlaceholderNumbering(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL("public.t", []string{"a", "b"}, [][]any{{1, 2}, {3, 4}})
	want := `INSERT INTO "public"."t" ("a", "b") VALUES ($1, $2), ($3, $4);`
	if sql != want {
		t.Fatalf("sql:\n got %s\nwant %s", sql, want)
	}
	if len(args) != 4 || args[3] != 4 {
		t.Fatalf("unexpected args: %#v", args)
	}
}
