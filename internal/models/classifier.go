// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package models

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"text/template"

	"github.com/pdiddy/citewatch/pkg/types"
)

// Classifier maps retraction notice text to a coarse severity label.
type Classifier interface {
	ClassifySeverity(ctx context.Context, notice string) (types.Severity, error)
}

// classifierPromptTmpl asks the model for a single severity word. The
// label set mirrors types.Severity.
var classifierPromptTmpl = template.Must(template.New("classifier").Parse(`You are classifying the severity of an academic retraction for encyclopedia editors.

Severity labels:
- critical: fabrication, falsification, or fraudulent data
- major: serious errors, plagiarism, or unreliable results
- minor: authorship disputes, duplicate publication, procedural issues
- corrected: the work was corrected rather than fully retracted
- unknown: the notice does not say why

Respond with exactly one label and nothing else.

Retraction notice:
{{.Notice}}
`))

// ClaudeClassifier calls the Claude API to classify retraction notices.
type ClaudeClassifier struct {
	APIKey     string
	Model      string
	MaxRetries int
	Client     *http.Client
}

// ClassifySeverity sends the notice text to the Claude API. Responses
// outside the label set degrade to SeverityUnknown rather than erroring:
// a bad label is not worth losing the finding over.
func (c *ClaudeClassifier) ClassifySeverity(ctx context.Context, notice string) (types.Severity, error) {
	var buf bytes.Buffer
	if err := classifierPromptTmpl.Execute(&buf, struct{ Notice string }{Notice: notice}); err != nil {
		return types.SeverityUnknown, fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := callClaudeWithRetry(ctx, c.Client, c.APIKey, c.Model, buf.String(), 16, c.MaxRetries)
	if err != nil {
		return types.SeverityUnknown, err
	}

	label := types.Severity(strings.ToLower(strings.TrimSpace(text)))
	if !types.ValidSeverity(label) {
		return types.SeverityUnknown, nil
	}
	return label, nil
}
