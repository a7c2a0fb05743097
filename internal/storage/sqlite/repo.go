package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"h2scenarios/internal/storage"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER for the modernc build.
const maxParams = 32766

// Repo implements storage.Repository for SQLite.
//
// SQLite has no native boolean; booleans are stored as 0/1 in a BOOLEAN
// (numeric affinity) column, and DOUBLE columns get REAL affinity.
type Repo struct {
	db        *sql.DB
	batchSize int
}

func init() {
	storage.Register("sqlite", New)
}

// New opens (creating if needed) the database file named by cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: empty DSN")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, batchSize: cfg.BatchSize}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ReplaceTable drops, recreates and fills one table in a single transaction.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("create table %s: %w", spec.Name, err)
	}

	var total int64
	cols := spec.ColumnNames()
	for _, batch := range storage.Batches(rows, len(cols), r.batchSize, maxParams) {
		q, args := buildInsertSQL(spec.Name, cols, batch)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", spec.Name, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqlType(t storage.Type) (string, error) {
	switch t {
	case storage.TypeText:
		return "TEXT", nil
	case storage.TypeBigInt:
		return "INTEGER", nil
	case storage.TypeDouble:
		return "REAL", nil
	case storage.TypeBool:
		return "BOOLEAN", nil
	default:
		return "", fmt.Errorf("sqlite: unsupported column type %q", t)
	}
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		typ, err := sqlType(c.Type)
		if err != nil {
			return "", err
		}
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), typ)
		if !c.Nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

// buildInsertSQL builds one multi-row INSERT with ? placeholders.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}
