// CLAUDE:SUMMARY SQLite history of analysis runs (schema on open, record, list).
package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hazyhaar/auditlens/pkg/audit"
	_ "modernc.org/sqlite"
)

// Run is one row of the analysis_runs table.
type Run struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	Size      int64  `json:"size"`
	Sheets    string `json:"sheets"` // comma separated
	Records   int    `json:"records"`
	Completed int    `json:"completed"`
	Warnings  int    `json:"warnings"`
	CreatedAt int64  `json:"created_at"`
}

// NewRun summarizes a freshly loaded dataset.
func NewRun(id Identity, d *audit.Dataset) Run {
	completed := 0
	for _, r := range d.Records {
		if r.Completed() {
			completed++
		}
	}
	return Run{
		ID:        uuid.NewString(),
		FileName:  id.Name,
		Size:      id.Size,
		Sheets:    strings.Join(d.Sheets, ","),
		Records:   len(d.Records),
		Completed: completed,
		Warnings:  len(d.Warnings),
		CreatedAt: time.Now().Unix(),
	}
}

// History manages the analysis_runs SQLite table.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the database at path and ensures the
// analysis_runs table exists.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS analysis_runs (
		run_id     TEXT PRIMARY KEY,
		file_name  TEXT NOT NULL,
		size       INTEGER NOT NULL,
		sheets     TEXT NOT NULL DEFAULT '',
		records    INTEGER NOT NULL,
		completed  INTEGER NOT NULL,
		warnings   INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create analysis_runs table: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record inserts a run.
func (h *History) Record(ctx context.Context, r Run) error {
	_, err := h.db.ExecContext(ctx, `INSERT INTO analysis_runs
		(run_id, file_name, size, sheets, records, completed, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FileName, r.Size, r.Sheets, r.Records, r.Completed, r.Warnings, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// List returns the most recent runs first. limit <= 0 means all.
func (h *History) List(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT run_id, file_name, size, sheets, records, completed, warnings, created_at
		FROM analysis_runs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.FileName, &r.Size, &r.Sheets, &r.Records,
			&r.Completed, &r.Warnings, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns one run by id.
func (h *History) Get(ctx context.Context, id string) (Run, error) {
	var r Run
	err := h.db.QueryRowContext(ctx, `SELECT run_id, file_name, size, sheets, records,
		completed, warnings, created_at FROM analysis_runs WHERE run_id = ?`, id).
		Scan(&r.ID, &r.FileName, &r.Size, &r.Sheets, &r.Records, &r.Completed, &r.Warnings, &r.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}
