// Package reports archives completed research runs in sqlite. The archive is
// a terminal side effect: workflow correctness never depends on it.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a report row does not exist.
var ErrNotFound = errors.New("reports: not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	workflow_id   TEXT PRIMARY KEY,
	query         TEXT NOT NULL,
	short_summary TEXT NOT NULL,
	markdown_path TEXT NOT NULL,
	pdf_path      TEXT,
	status        TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

// Report is one archived run.
type Report struct {
	WorkflowID   string         `db:"workflow_id" json:"workflow_id"`
	Query        string         `db:"query" json:"query"`
	ShortSummary string         `db:"short_summary" json:"short_summary"`
	MarkdownPath string         `db:"markdown_path" json:"markdown_path"`
	PDFPath      sql.NullString `db:"pdf_path" json:"-"`
	Status       string         `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Store wraps the sqlite archive.
type Store struct {
	db *sqlx.DB
}

// Open opens (and migrates) the archive at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open report archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate report archive: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces the archive row for a workflow.
func (s *Store) Save(ctx context.Context, r Report) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO reports
		(workflow_id, query, short_summary, markdown_path, pdf_path, status, created_at)
		VALUES (:workflow_id, :query, :short_summary, :markdown_path, :pdf_path, :status, :created_at)`, r)
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.WorkflowID, err)
	}
	return nil
}

// Get returns one archived run.
func (s *Store) Get(ctx context.Context, workflowID string) (Report, error) {
	var r Report
	err := s.db.GetContext(ctx, &r, `SELECT * FROM reports WHERE workflow_id = ?`, workflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("get report %s: %w", workflowID, err)
	}
	return r, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	var rs []Report
	err := s.db.SelectContext(ctx, &rs, `SELECT * FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return rs, nil
}
