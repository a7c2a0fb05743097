package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"h2scenarios/internal/storage"
)

const maxParams = 65535

// stagingSuffix names the table rows are loaded into before the swap.
const stagingSuffix = "__load"

// Repo implements storage.Repository for MySQL / MariaDB.
//
// MySQL commits DDL implicitly, so a transaction cannot cover DROP and
// CREATE. Rows are loaded into a staging table first; the target is only
// replaced (DROP + RENAME) once every insert has succeeded.
type Repo struct {
	db        *sql.DB
	batchSize int
}

func init() {
	storage.Register("mysql", New)
}

// New opens a MySQL connection from a go-sql-driver DSN
// ("user:pass@tcp(host:3306)/dbname").
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	if mc.DBName == "" {
		return nil, fmt.Errorf("mysql: dsn has no database name")
	}
	// utf8mb4 so every Unicode label round-trips.
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	if _, ok := mc.Params["charset"]; !ok {
		mc.Params["charset"] = "utf8mb4"
	}

	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, batchSize: cfg.BatchSize}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ReplaceTable loads rows into a staging table and swaps it in.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	staging := spec
	staging.Name = spec.Name + stagingSuffix

	createSQL, err := buildCreateSQL(staging)
	if err != nil {
		return 0, err
	}

	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+myIdent(staging.Name)); err != nil {
		return 0, fmt.Errorf("mysql: drop staging %s: %w", staging.Name, err)
	}
	if _, err := r.db.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("mysql: create staging %s: %w", staging.Name, err)
	}

	total, err := r.insertAll(ctx, staging, rows)
	if err != nil {
		_, _ = r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+myIdent(staging.Name))
		return 0, err
	}

	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+myIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("mysql: drop table %s: %w", spec.Name, err)
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("RENAME TABLE %s TO %s", myIdent(staging.Name), myIdent(spec.Name))); err != nil {
		return 0, fmt.Errorf("mysql: rename %s: %w", staging.Name, err)
	}
	return total, nil
}

func (r *Repo) insertAll(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	cols := spec.ColumnNames()
	for _, batch := range storage.Batches(rows, len(cols), r.batchSize, maxParams) {
		q, args := buildInsertSQL(spec.Name, cols, batch)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mysql: insert into %s: %w", spec.Name, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mysql: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mysql: %s: no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		var typ string
		switch c.Type {
		case storage.TypeText:
			typ = "TEXT"
		case storage.TypeBigInt:
			typ = "BIGINT"
		case storage.TypeDouble:
			typ = "DOUBLE"
		case storage.TypeBool:
			typ = "BOOLEAN"
		default:
			return "", fmt.Errorf("mysql: column %s: unsupported type %q", c.Name, c.Type)
		}
		def := myIdent(c.Name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s) DEFAULT CHARSET=utf8mb4", myIdent(t.Name), strings.Join(parts, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, len(columns))
	for i, c := range columns {
		colList[i] = myIdent(c)
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(myIdent(table))
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

func myIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
