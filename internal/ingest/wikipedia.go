// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/citewatch/internal/httputil"
)

// wikiAPIBase is the MediaWiki API endpoint pattern, parameterized by
// language. Declared as a var so tests can substitute an httptest server.
var wikiAPIBase = "https://%s.wikipedia.org/w/api.php"

type wikiResponse struct {
	Query struct {
		Pages []wikiPage `json:"pages"`
	} `json:"query"`
}

type wikiPage struct {
	Title     string `json:"title"`
	Missing   bool   `json:"missing"`
	Revisions []struct {
		Slots struct {
			Main struct {
				Content string `json:"content"`
			} `json:"main"`
		} `json:"slots"`
	} `json:"revisions"`
}

// FetchWikitext retrieves the current wikitext of one article through the
// MediaWiki revisions API.
func FetchWikitext(ctx context.Context, client *http.Client, language, userAgent, article string) (string, error) {
	if language == "" {
		language = "en"
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "revisions")
	params.Set("rvprop", "content")
	params.Set("rvslots", "main")
	params.Set("titles", article)
	params.Set("format", "json")
	params.Set("formatversion", "2")

	endpoint := fmt.Sprintf(wikiAPIBase, language) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return "", fmt.Errorf("MediaWiki request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("MediaWiki API returned HTTP %d", resp.StatusCode)
	}

	var parsed wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parsing MediaWiki response: %w", err)
	}

	if len(parsed.Query.Pages) == 0 {
		return "", fmt.Errorf("article %q: empty API response", article)
	}
	page := parsed.Query.Pages[0]
	if page.Missing {
		return "", fmt.Errorf("article %q does not exist", article)
	}
	if len(page.Revisions) == 0 {
		return "", fmt.Errorf("article %q has no revisions", article)
	}
	return page.Revisions[0].Slots.Main.Content, nil
}
