// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refindex

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/citewatch/pkg/types"
)

const snapshotFile = "reference.db"

// ErrModelMismatch is returned by Load when the snapshot was built with a
// different embedding model than the one configured. A mismatched snapshot
// is unusable: query-time vectors would live in a different space, so the
// whole index must be recomputed.
var ErrModelMismatch = errors.New("snapshot embedding model mismatch")

// SnapshotPath returns the snapshot file location under dataDir.
func SnapshotPath(dataDir string) string {
	return filepath.Join(dataDir, snapshotFile)
}

// WriteSnapshot serializes the catalog and its vectors to a fresh snapshot
// under dataDir, replacing any previous one atomically (write to a temp
// file, then rename). works and vectors must be parallel: exactly one
// vector per record. Vectors are normalized before storage so query-time
// dot products equal cosine similarity.
func WriteSnapshot(dataDir, model string, works []types.RetractedWork, vectors [][]float32, builtAt time.Time) error {
	if len(works) != len(vectors) {
		return fmt.Errorf("catalog has %d records but %d vectors", len(works), len(vectors))
	}
	if model == "" {
		return fmt.Errorf("embedding model identifier required")
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmpPath := SnapshotPath(dataDir) + ".tmp"
	os.Remove(tmpPath)

	db, err := sql.Open("sqlite3", tmpPath)
	if err != nil {
		return fmt.Errorf("opening snapshot file: %w", err)
	}

	if err := writeSnapshotDB(db, model, works, vectors, builtAt); err != nil {
		db.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot file: %w", err)
	}

	if err := os.Rename(tmpPath, SnapshotPath(dataDir)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

func writeSnapshotDB(db *sql.DB, model string, works []types.RetractedWork, vectors [][]float32, builtAt time.Time) error {
	statements := []string{
		`CREATE TABLE meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE works (
			id INTEGER PRIMARY KEY,
			doi TEXT,
			title TEXT NOT NULL,
			authors TEXT,
			year INTEGER,
			notice TEXT,
			reason TEXT,
			source TEXT NOT NULL,
			retracted_at TEXT
		)`,
		`CREATE TABLE vectors (
			work_id INTEGER PRIMARY KEY REFERENCES works(id),
			embedding BLOB NOT NULL,
			dims INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating snapshot schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	for _, kv := range [][2]string{
		{"embedder_model", model},
		{"built_at", builtAt.UTC().Format(time.RFC3339)},
		{"records", fmt.Sprintf("%d", len(works))},
	} {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("writing meta %s: %w", kv[0], err)
		}
	}

	workStmt, err := tx.Prepare(
		`INSERT INTO works (id, doi, title, authors, year, notice, reason, source, retracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing works insert: %w", err)
	}
	defer workStmt.Close()

	vecStmt, err := tx.Prepare(
		`INSERT INTO vectors (work_id, embedding, dims) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing vectors insert: %w", err)
	}
	defer vecStmt.Close()

	for i, w := range works {
		retractedAt := ""
		if !w.RetractedAt.IsZero() {
			retractedAt = w.RetractedAt.UTC().Format(time.RFC3339)
		}
		if _, err := workStmt.Exec(
			w.ID, w.DOI, w.Title, w.Authors, w.Year, w.Notice, w.Reason, w.Source, retractedAt,
		); err != nil {
			return fmt.Errorf("inserting work %d: %w", w.ID, err)
		}

		vec := normalize(vectors[i])
		if _, err := vecStmt.Exec(w.ID, vectorToBlob(vec), len(vec)); err != nil {
			return fmt.Errorf("inserting vector for work %d: %w", w.ID, err)
		}
	}

	return tx.Commit()
}

// Load reads the snapshot under dataDir into memory. It fails closed: a
// missing or unreadable snapshot, a record without a vector, or an
// embedding model mismatch (ErrModelMismatch) all return an error and
// leave both lookup tiers unavailable.
//
// embedderModel must be the model the query-time embedder will actually
// use, after defaults are applied. Accepting an empty value here would
// let a snapshot built under one model be queried with another.
func Load(dataDir, embedderModel string) (*Index, error) {
	if embedderModel == "" {
		return nil, fmt.Errorf("expected embedder model required to validate snapshot")
	}

	path := SnapshotPath(dataDir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reference snapshot %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer db.Close()

	meta, err := readMeta(db)
	if err != nil {
		return nil, err
	}
	if meta.model != embedderModel {
		return nil, fmt.Errorf("snapshot built with %q, configured embedder is %q: %w",
			meta.model, embedderModel, ErrModelMismatch)
	}

	ix := &Index{
		byDOI:   make(map[string]*types.RetractedWork),
		vectors: make(map[int64][]float32),
		model:   meta.model,
		builtAt: meta.builtAt,
	}

	rows, err := db.Query(
		`SELECT w.id, w.doi, w.title, w.authors, w.year, w.notice, w.reason, w.source, w.retracted_at,
			v.embedding, v.dims
		 FROM works w LEFT JOIN vectors v ON v.work_id = w.id
		 ORDER BY w.id`)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			w           types.RetractedWork
			doi         sql.NullString
			authors     sql.NullString
			year        sql.NullInt64
			notice      sql.NullString
			reason      sql.NullString
			retractedAt sql.NullString
			blob        []byte
			dims        sql.NullInt64
		)
		if err := rows.Scan(&w.ID, &doi, &w.Title, &authors, &year, &notice, &reason,
			&w.Source, &retractedAt, &blob, &dims); err != nil {
			return nil, fmt.Errorf("scanning snapshot record: %w", err)
		}
		if !dims.Valid || len(blob) == 0 {
			return nil, fmt.Errorf("work %d has no embedding vector", w.ID)
		}

		w.DOI = doi.String
		w.Authors = authors.String
		w.Year = int(year.Int64)
		w.Notice = notice.String
		w.Reason = reason.String
		if retractedAt.Valid && retractedAt.String != "" {
			if t, parseErr := time.Parse(time.RFC3339, retractedAt.String); parseErr == nil {
				w.RetractedAt = t
			}
		}

		ix.works = append(ix.works, w)
		ix.vectors[w.ID] = blobToVector(blob, int(dims.Int64))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot records: %w", err)
	}

	for i := range ix.works {
		if d := ix.works[i].DOI; d != "" {
			ix.byDOI[d] = &ix.works[i]
		}
	}

	return ix, nil
}

type snapshotMeta struct {
	model   string
	builtAt time.Time
}

func readMeta(db *sql.DB) (snapshotMeta, error) {
	var meta snapshotMeta

	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return meta, fmt.Errorf("reading snapshot meta: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return meta, fmt.Errorf("scanning snapshot meta: %w", err)
		}
		switch key {
		case "embedder_model":
			meta.model = value
		case "built_at":
			if t, parseErr := time.Parse(time.RFC3339, value); parseErr == nil {
				meta.builtAt = t
			}
		}
	}
	if err := rows.Err(); err != nil {
		return meta, fmt.Errorf("reading snapshot meta: %w", err)
	}

	if meta.model == "" {
		return meta, fmt.Errorf("snapshot meta missing embedder_model")
	}
	return meta, nil
}
