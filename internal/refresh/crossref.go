// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/citewatch/internal/httputil"
	"github.com/pdiddy/citewatch/internal/refindex"
	"github.com/pdiddy/citewatch/pkg/types"
)

// crossrefAPIBase is the CrossRef works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works/"

const sourceCrossRef = "crossref"

// CrossRefClient queries the CrossRef API for retraction evidence.
type CrossRefClient struct {
	Client *http.Client

	// Email is included in the User-Agent per the CrossRef politeness
	// policy.
	Email string
}

type crossrefEnvelope struct {
	Status  string       `json:"status"`
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title    []string         `json:"title"`
	Type     string           `json:"type"`
	UpdateTo []crossrefUpdate `json:"update-to"`
}

type crossrefUpdate struct {
	Type string `json:"type"`
}

// CheckRetraction reports whether CrossRef records a retraction for the
// DOI: either an update-to entry whose type names a retraction, or the
// work itself being a retraction notice. Returns nil when the work is not
// retracted according to CrossRef.
func (c *CrossRefClient) CheckRetraction(ctx context.Context, doi string) (*types.RetractedWork, error) {
	normalized := refindex.NormalizeDOI(doi)
	if normalized == "" {
		return nil, fmt.Errorf("invalid DOI %q", doi)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crossrefAPIBase+normalized, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	email := c.Email
	if email == "" {
		email = "contact@example.org"
	}
	req.Header.Set("User-Agent", fmt.Sprintf("citewatch/0.1 (mailto:%s)", email))
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("CrossRef request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CrossRef returned HTTP %d", resp.StatusCode)
	}

	var envelope crossrefEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("parsing CrossRef response: %w", err)
	}
	if envelope.Status != "ok" {
		return nil, fmt.Errorf("CrossRef status %q", envelope.Status)
	}

	work := envelope.Message
	reason := ""
	for _, update := range work.UpdateTo {
		if strings.Contains(strings.ToLower(update.Type), "retraction") {
			reason = fmt.Sprintf("Retraction notice in CrossRef (type: %s)", update.Type)
			break
		}
	}
	if reason == "" && strings.Contains(strings.ToLower(work.Type), "retraction") {
		reason = "Retraction notice identified in CrossRef"
	}
	if reason == "" {
		return nil, nil
	}

	title := ""
	if len(work.Title) > 0 {
		title = work.Title[0]
	}
	return &types.RetractedWork{
		DOI:    normalized,
		Title:  title,
		Reason: reason,
		Source: sourceCrossRef,
	}, nil
}
