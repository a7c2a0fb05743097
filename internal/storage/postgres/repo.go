package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"h2scenarios/internal/storage"
)

// maxParams is the Postgres wire-protocol limit on bind parameters.
const maxParams = 65535

/*
Repo implements storage.Repository for Postgres.

Tables may be schema-qualified ("scenarios.system_costs"); the schema is
created on demand. DDL and inserts of one table share a single transaction,
so a failed load leaves the previous table in place.
*/
type Repo struct {
	pool      *pgxpool.Pool
	batchSize int
}

// New creates a Postgres-backed Repo from a pgx connection string.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool, batchSize: cfg.BatchSize}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// ReplaceTable drops, recreates and fills one table in a single transaction.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	schemaSQL, createSQL, err := buildCreateSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if schemaSQL != "" {
		if _, err := tx.Exec(ctx, schemaSQL); err != nil {
			return 0, fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgTableIdent(spec.Name)+";"); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", spec.Name, err)
	}
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	var total int64
	cols := spec.ColumnNames()
	for _, batch := range storage.Batches(rows, len(cols), r.batchSize, maxParams) {
		q, args := buildInsertSQL(spec.Name, cols, batch)
		cmd, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", spec.Name, err)
		}
		total += cmd.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// buildInsertSQL constructs a single INSERT statement and its args for Postgres.
//
// It is pure and deterministic, so placeholder numbering can be unit tested
// without a database.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("$%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(";")
	return b.String(), args
}

// splitQualifiedName splits "schema.table". It only handles a single dot;
// anything else is treated as unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// buildCreateSQL builds the optional CREATE SCHEMA and the CREATE TABLE.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, createSQL string, err error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", "", fmt.Errorf("%s: no columns", t.Name)
	}

	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", "", err
		}
		defs = append(defs, def)
	}

	createSQL = fmt.Sprintf(`CREATE TABLE %s (%s);`, pgTableIdent(t.Name), strings.Join(defs, ", "))
	return schemaSQL, createSQL, nil
}

func buildColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("postgres: column name is empty")
	}
	var typ string
	switch c.Type {
	case storage.TypeText:
		typ = "TEXT"
	case storage.TypeBigInt:
		typ = "BIGINT"
	case storage.TypeDouble:
		typ = "DOUBLE PRECISION"
	case storage.TypeBool:
		typ = "BOOLEAN"
	default:
		return "", fmt.Errorf("postgres: column %s: unsupported type %q", c.Name, c.Type)
	}
	def := pgIdent(c.Name) + " " + typ
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def, nil
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}
