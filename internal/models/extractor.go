// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"

	"github.com/pdiddy/citewatch/pkg/types"
)

// Extractor turns raw citation text into structured bibliographic fields.
// Any subset of the fields may come back absent; callers must tolerate a
// partial record.
type Extractor interface {
	ExtractFields(ctx context.Context, rawText string) (types.CitationFields, error)
}

// extractionPromptTmpl instructs the model to pull bibliographic fields
// out of unstructured citation markup and respond with bare JSON.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a bibliographic entity extraction system. Analyze the following raw citation text and extract the work it references.

Extract these fields when present:
- title: the title of the cited work
- authors: the author names as a single string, separated by "; "
- journal: the journal, periodical, or publisher name
- year: the four-digit publication year as an integer

Omit any field you cannot determine. Do not guess. Respond with a single JSON object and no text outside it.

Example response:
{"title": "Efficient Attention Mechanisms for Transformers", "authors": "Smith, J.; Doe, A.", "journal": "Journal of Machine Learning", "year": 2020}

Citation text:
{{.Text}}
`))

// ClaudeExtractor calls the Claude API to extract structured fields from
// raw citation text.
type ClaudeExtractor struct {
	APIKey     string
	Model      string
	MaxRetries int
	Client     *http.Client
}

// ExtractFields sends the raw citation text to the Claude API and parses
// the JSON object it returns.
func (e *ClaudeExtractor) ExtractFields(ctx context.Context, rawText string) (types.CitationFields, error) {
	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, struct{ Text string }{Text: rawText}); err != nil {
		return types.CitationFields{}, fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := callClaudeWithRetry(ctx, e.Client, e.APIKey, e.Model, buf.String(), 1024, e.MaxRetries)
	if err != nil {
		return types.CitationFields{}, err
	}

	var fields types.CitationFields
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil {
		return types.CitationFields{}, fmt.Errorf("parsing extraction response: %w", err)
	}
	return fields, nil
}
