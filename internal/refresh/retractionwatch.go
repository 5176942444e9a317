// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refresh rebuilds the retracted-works reference snapshot from
// upstream bibliographic sources. It runs on the monthly cadence and
// never shares state with the daily checking run: a failed refresh
// leaves the previous snapshot in place.
package refresh

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/citewatch/internal/httputil"
	"github.com/pdiddy/citewatch/internal/refindex"
	"github.com/pdiddy/citewatch/pkg/types"
)

// retractionWatchURL is the upstream database CSV export. Declared as a
// var so tests can substitute an httptest server.
var retractionWatchURL = "https://retractionwatch.com/wp-content/uploads/retraction-watch-database.csv"

const sourceRetractionWatch = "retraction_watch"

// DownloadCatalog fetches and parses the upstream retraction database.
// Records without a usable title are dropped; records without a DOI are
// kept, reachable only through the similarity tier.
func DownloadCatalog(ctx context.Context, client *http.Client, cfg types.RefreshConfig) ([]types.RetractedWork, error) {
	url := cfg.DatabaseURL
	if url == "" {
		url = retractionWatchURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("downloading retraction database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retraction database returned HTTP %d", resp.StatusCode)
	}

	return ParseCatalogCSV(resp.Body)
}

// ParseCatalogCSV reads the upstream CSV export. The header row names the
// columns; unknown columns are ignored so upstream additions do not break
// parsing.
func ParseCatalogCSV(r io.Reader) ([]types.RetractedWork, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var works []types.RetractedWork
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing CSV row: %w", err)
		}

		title := field(row, "Title")
		if title == "" {
			continue
		}

		w := types.RetractedWork{
			DOI:     refindex.NormalizeDOI(field(row, "DOI")),
			Title:   title,
			Authors: field(row, "Author"),
			Notice:  field(row, "RetractionNotice"),
			Reason:  strings.Trim(field(row, "Reason"), "+"),
			Source:  sourceRetractionWatch,
		}
		if year := field(row, "Year"); year != "" {
			if n, convErr := strconv.Atoi(year); convErr == nil {
				w.Year = n
			}
		}
		if date := field(row, "RetractionDate"); date != "" {
			w.RetractedAt = parseRetractionDate(date)
		}

		works = append(works, w)
	}
	return works, nil
}

// parseRetractionDate handles the date formats the upstream export has
// used over time. Returns the zero time when none match.
func parseRetractionDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
