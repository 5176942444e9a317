// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refresh

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/citewatch/internal/httputil"
	"github.com/pdiddy/citewatch/internal/refindex"
	"github.com/pdiddy/citewatch/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities endpoint. Declared as a var so
// tests can substitute an httptest server.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const sourcePubMed = "pubmed"

// PubMedClient queries the NCBI E-utilities API for retraction notices.
type PubMedClient struct {
	Client *http.Client

	// Email identifies the caller per the E-utilities usage policy.
	Email string
}

type pubmedSearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID             string   `xml:"MedlineCitation>PMID"`
	Title            string   `xml:"MedlineCitation>Article>ArticleTitle"`
	PublicationTypes []string `xml:"MedlineCitation>Article>PublicationTypeList>PublicationType"`
}

// CheckRetraction searches PubMed for a retraction notice covering the
// DOI: an esearch scoped to the retracted-publication type, then an
// efetch confirming the publication type on each hit. Returns nil when
// PubMed records no retraction.
func (c *PubMedClient) CheckRetraction(ctx context.Context, doi string) (*types.RetractedWork, error) {
	normalized := refindex.NormalizeDOI(doi)
	if normalized == "" {
		return nil, fmt.Errorf("invalid DOI %q", doi)
	}

	resp, err := c.get(ctx, "/esearch.fcgi", url.Values{
		"db":      {"pubmed"},
		"term":    {fmt.Sprintf(`retracted publication[pt] AND "%s"[DOI]`, normalized)},
		"retmode": {"json"},
	})
	if err != nil {
		return nil, fmt.Errorf("PubMed search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed returned HTTP %d", resp.StatusCode)
	}

	var search pubmedSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("parsing PubMed search response: %w", err)
	}
	if len(search.ESearchResult.IDList) == 0 {
		return nil, nil
	}

	article, err := c.fetchRetractionNotice(ctx, search.ESearchResult.IDList)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, nil
	}

	return &types.RetractedWork{
		DOI:    normalized,
		Title:  article.Title,
		Reason: fmt.Sprintf("Retraction notice in PubMed (PMID %s)", article.PMID),
		Source: sourcePubMed,
	}, nil
}

// fetchRetractionNotice confirms the publication type on the search hits;
// the search alone can surface comments and errata.
func (c *PubMedClient) fetchRetractionNotice(ctx context.Context, pmids []string) (*pubmedArticle, error) {
	resp, err := c.get(ctx, "/efetch.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	})
	if err != nil {
		return nil, fmt.Errorf("PubMed fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading PubMed response: %w", err)
	}
	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parsing PubMed XML: %w", err)
	}

	for i := range set.Articles {
		for _, pt := range set.Articles[i].PublicationTypes {
			if strings.Contains(strings.ToLower(pt), "retract") {
				return &set.Articles[i], nil
			}
		}
	}
	return nil, nil
}

func (c *PubMedClient) get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	email := c.Email
	if email == "" {
		email = "contact@example.org"
	}
	params.Set("email", email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		pubmedAPIBase+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("citewatch/0.1 (mailto:%s)", email))

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	return httputil.DoWithRetry(ctx, client, req, 0)
}
