// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists citations and findings in a SQLite database.
// It is the only mutable state in a checking run; the orchestrator's
// single write path per citation goes through here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/citewatch/pkg/types"
)

const dbFile = "citations.db"

// timeFormat is a fixed-width RFC 3339 layout with nine fractional digits.
// last_checked is compared and ordered as text in SQL, so the stored form
// must sort the same way the times do; RFC3339Nano trims trailing zeros
// and breaks that.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the citations and findings database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at dataDir/citations.db and
// creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS citations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'en',
			number INTEGER NOT NULL,
			raw_text TEXT NOT NULL,
			doi TEXT,
			title TEXT,
			authors TEXT,
			journal TEXT,
			year INTEGER,
			last_checked TEXT,
			UNIQUE(article, language, number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_last_checked ON citations(last_checked)`,
		`CREATE TABLE IF NOT EXISTS findings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			citation_id INTEGER NOT NULL REFERENCES citations(id),
			article TEXT NOT NULL,
			problem_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			confidence REAL NOT NULL,
			match_method TEXT NOT NULL,
			details TEXT NOT NULL,
			notification_text TEXT,
			status TEXT NOT NULL,
			found_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_status ON findings(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// UpsertCitation inserts a citation or updates the bibliographic fields of
// an existing one, keyed on (article, language, number). A newly created
// citation has no last_checked value and is immediately eligible for
// checking; an updated one keeps its last_checked. Returns the citation ID
// and whether the row was created.
func (s *Store) UpsertCitation(ctx context.Context, c types.Citation) (int64, bool, error) {
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM citations WHERE article = ? AND language = ? AND number = ?`,
		c.Article, c.Language, c.Number,
	).Scan(&existingID)

	if err == nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE citations SET raw_text = ?, doi = ?, title = ?, authors = ?, journal = ?, year = ?
			 WHERE id = ?`,
			c.RawText, nullString(c.DOI), nullString(c.Title), nullString(c.Authors),
			nullString(c.Journal), nullInt(c.Year), existingID,
		)
		if err != nil {
			return 0, false, fmt.Errorf("updating citation: %w", err)
		}
		return existingID, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("looking up citation: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO citations (article, language, number, raw_text, doi, title, authors, journal, year, last_checked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		c.Article, c.Language, c.Number, c.RawText, nullString(c.DOI), nullString(c.Title),
		nullString(c.Authors), nullString(c.Journal), nullInt(c.Year),
	)
	if err != nil {
		return 0, false, fmt.Errorf("inserting citation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("reading citation id: %w", err)
	}
	return id, true, nil
}

// DueCitations returns citations eligible for checking: never checked, or
// last checked before now minus interval. Ordering is deterministic so the
// selection is idempotent: never-checked first, then oldest last_checked,
// with the citation ID as the final tie-break. The result is bounded to
// limit rows.
func (s *Store) DueCitations(ctx context.Context, now time.Time, interval time.Duration, limit int) ([]types.Citation, error) {
	cutoff := now.Add(-interval).UTC().Format(timeFormat)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, article, language, number, raw_text, doi, title, authors, journal, year, last_checked
		 FROM citations
		 WHERE last_checked IS NULL OR last_checked < ?
		 ORDER BY (last_checked IS NULL) DESC, last_checked ASC, id ASC
		 LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying due citations: %w", err)
	}
	defer rows.Close()

	return scanCitations(rows)
}

// GetCitation fetches one citation by ID.
func (s *Store) GetCitation(ctx context.Context, id int64) (types.Citation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, article, language, number, raw_text, doi, title, authors, journal, year, last_checked
		 FROM citations WHERE id = ?`, id)

	c, err := scanCitation(row)
	if err == sql.ErrNoRows {
		return types.Citation{}, fmt.Errorf("citation %d not found", id)
	}
	if err != nil {
		return types.Citation{}, fmt.Errorf("reading citation %d: %w", id, err)
	}
	return c, nil
}

// MarkChecked sets the citation's last_checked timestamp.
func (s *Store) MarkChecked(ctx context.Context, id int64, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE citations SET last_checked = ? WHERE id = ?`,
		t.UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("marking citation %d checked: %w", id, err)
	}
	return nil
}

// ClearLastChecked resets last_checked on every citation. The monthly
// refresh calls this after a successful snapshot rebuild: the reference
// set changed, so every citation is eligible again. Returns the number of
// citations affected.
func (s *Store) ClearLastChecked(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE citations SET last_checked = NULL`)
	if err != nil {
		return 0, fmt.Errorf("clearing last_checked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared citations: %w", err)
	}
	return n, nil
}

func scanCitations(rows *sql.Rows) ([]types.Citation, error) {
	var citations []types.Citation
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCitation(row rowScanner) (types.Citation, error) {
	var (
		c           types.Citation
		doi         sql.NullString
		title       sql.NullString
		authors     sql.NullString
		journal     sql.NullString
		year        sql.NullInt64
		lastChecked sql.NullString
	)
	err := row.Scan(&c.ID, &c.Article, &c.Language, &c.Number, &c.RawText,
		&doi, &title, &authors, &journal, &year, &lastChecked)
	if err != nil {
		return types.Citation{}, err
	}
	c.DOI = doi.String
	c.Title = title.String
	c.Authors = authors.String
	c.Journal = journal.String
	c.Year = int(year.Int64)
	if lastChecked.Valid && lastChecked.String != "" {
		if t, parseErr := time.Parse(time.RFC3339Nano, lastChecked.String); parseErr == nil {
			c.LastChecked = t
		}
	}
	return c, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
