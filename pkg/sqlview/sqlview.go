// Package sqlview exposes a loaded workbook table to ad-hoc SQL through an
// in-memory SQLite database.
package sqlview

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/auditlens/pkg/workbook"
	_ "modernc.org/sqlite"
)

// TableName is the table every loaded row lands in.
const TableName = "audits"

// View is an in-memory database holding one table.
type View struct {
	db      *sql.DB
	columns []string
}

// Result is the outcome of a query; NULL is rendered as "".
type Result struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Open loads t into a fresh in-memory database. Every column is TEXT; empty
// cells are NULL.
func Open(ctx context.Context, t *workbook.Table) (*View, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlview: %w", err)
	}
	// Each connection of :memory: is its own database.
	db.SetMaxOpenConns(1)

	v := &View{db: db, columns: t.Columns}
	if err := v.load(ctx, t); err != nil {
		db.Close()
		return nil, err
	}
	return v, nil
}

// Close releases the database.
func (v *View) Close() error { return v.db.Close() }

// Columns returns the table columns in load order.
func (v *View) Columns() []string { return v.columns }

func (v *View) load(ctx context.Context, t *workbook.Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("sqlview: table has no columns")
	}
	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(defs, ", "))
	if _, err := v.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = quoteIdent(c)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		TableName, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			if val, ok := r.Get(c); ok {
				args[i] = val
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", r.Index, err)
		}
	}
	return tx.Commit()
}

// Query runs a read query against the table.
func (v *View) Query(ctx context.Context, query string) (*Result, error) {
	rows, err := v.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	res := &Result{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, x := range vals {
			row[i] = render(x)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

func render(x any) string {
	switch v := x.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
