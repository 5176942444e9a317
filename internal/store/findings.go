// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citewatch/pkg/types"
)

// InsertFinding persists a finding and returns its ID.
func (s *Store) InsertFinding(ctx context.Context, f types.Finding) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO findings (citation_id, article, problem_type, severity, confidence,
			match_method, details, notification_text, status, found_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.CitationID, f.Article, f.ProblemType, string(f.Severity), f.Confidence,
		string(f.Method), f.Details, nullString(f.Notification), string(f.Status),
		f.FoundAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting finding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading finding id: %w", err)
	}
	return id, nil
}

// ListFindings returns findings, newest first, optionally filtered by
// status. An empty status returns all findings.
func (s *Store) ListFindings(ctx context.Context, status types.FindingStatus) ([]types.Finding, error) {
	query := `SELECT id, citation_id, article, problem_type, severity, confidence,
			match_method, details, notification_text, status, found_at
		FROM findings`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY found_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var findings []types.Finding
	for rows.Next() {
		var (
			f            types.Finding
			severity     string
			method       string
			notification sql.NullString
			fStatus      string
			foundAt      string
		)
		if err := rows.Scan(&f.ID, &f.CitationID, &f.Article, &f.ProblemType, &severity,
			&f.Confidence, &method, &f.Details, &notification, &fStatus, &foundAt); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		f.Severity = types.Severity(severity)
		f.Method = types.MatchMethod(method)
		f.Notification = notification.String
		f.Status = types.FindingStatus(fStatus)
		if t, parseErr := time.Parse(time.RFC3339Nano, foundAt); parseErr == nil {
			f.FoundAt = t
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// UpdateFindingStatus transitions one finding to the given status.
func (s *Store) UpdateFindingStatus(ctx context.Context, id int64, status types.FindingStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE findings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating finding %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating finding %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finding %d not found", id)
	}
	return nil
}

// SetNotification stores generated notification text on a finding and
// moves it to pending. Used by the retry path for findings persisted as
// pending_notification.
func (s *Store) SetNotification(ctx context.Context, id int64, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE findings SET notification_text = ?, status = ? WHERE id = ?`,
		text, string(types.StatusPending), id)
	if err != nil {
		return fmt.Errorf("setting notification on finding %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting notification on finding %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finding %d not found", id)
	}
	return nil
}

// ExportFindingsYAML writes findings to w as YAML, optionally filtered by
// status.
func (s *Store) ExportFindingsYAML(ctx context.Context, w io.Writer, status types.FindingStatus) error {
	findings, err := s.ListFindings(ctx, status)
	if err != nil {
		return err
	}

	out := struct {
		Findings []types.Finding `yaml:"findings"`
	}{Findings: findings}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshaling findings: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing findings export: %w", err)
	}
	return nil
}
