// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify generates the human-readable notification text attached
// to findings. Generation is best-effort and timeout-bounded: a failure
// here never discards a finding, it only defers the text.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

// Generator produces editor-facing notification text for a confirmed match.
type Generator interface {
	Generate(ctx context.Context, verdict types.Verdict, citation types.Citation) (string, error)
}

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const defaultTimeout = 20 * time.Second

// notifyPromptTmpl asks for a short note an encyclopedia editor can act
// on. The model sees the citation context and the matched retraction.
var notifyPromptTmpl = template.Must(template.New("notify").Parse(`You are writing a short notice for encyclopedia editors about a citation that references a retracted publication.

Article: {{.Article}}
Citation number: {{.Number}}
Cited work: {{.WorkTitle}}
{{if .Reason}}Retraction reason: {{.Reason}}
{{end}}Severity: {{.Severity}}
Match confidence: {{printf "%.2f" .Confidence}} ({{.Method}})

Write 2-3 sentences telling editors what was cited, that it was retracted and why, and that the citation should be reviewed. Plain prose, no headings, no markdown.
`))

// ClaudeGenerator calls the Claude API to write notification text.
type ClaudeGenerator struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Client  *http.Client
}

// NewClaudeGenerator builds a generator from config.
func NewClaudeGenerator(cfg types.NotifyConfig) *ClaudeGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ClaudeGenerator{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: timeout,
	}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate writes notification text for one finding. The call is bounded
// by the configured timeout; on timeout or error the caller falls back to
// persisting the finding without text.
func (g *ClaudeGenerator) Generate(ctx context.Context, verdict types.Verdict, citation types.Citation) (string, error) {
	if verdict.Matched == nil {
		return "", fmt.Errorf("verdict has no matched record")
	}

	var buf bytes.Buffer
	err := notifyPromptTmpl.Execute(&buf, struct {
		Article    string
		Number     int
		WorkTitle  string
		Reason     string
		Severity   types.Severity
		Confidence float64
		Method     types.MatchMethod
	}{
		Article:    citation.Article,
		Number:     citation.Number,
		WorkTitle:  verdict.Matched.Title,
		Reason:     verdict.Matched.Reason,
		Severity:   verdict.Severity,
		Confidence: verdict.Confidence,
		Method:     verdict.Method,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	reqBody := claudeRequest{
		Model:     g.Model,
		MaxTokens: 512,
		Messages:  []claudeMessage{{Role: "user", Content: buf.String()}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	for _, block := range cResp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Claude API response")
}
