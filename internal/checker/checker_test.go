// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pdiddy/citewatch/internal/models"
	"github.com/pdiddy/citewatch/pkg/types"
)

// --- stubs ---

// stubIndex returns canned answers and records which tiers were hit, so
// tests can assert that an identifier miss does not fall through to the
// similarity tier.
type stubIndex struct {
	byDOI map[string]*types.RetractedWork

	nearestRec   *types.RetractedWork
	nearestScore float64

	lookupCalls  int
	nearestCalls int
}

func (s *stubIndex) LookupIdentifier(doi string) (*types.RetractedWork, bool) {
	s.lookupCalls++
	rec, ok := s.byDOI[doi]
	return rec, ok
}

func (s *stubIndex) Nearest(query []float32) (*types.RetractedWork, float64, bool) {
	s.nearestCalls++
	if s.nearestRec == nil {
		return nil, 0, false
	}
	return s.nearestRec, s.nearestScore, true
}

type stubExtractor struct {
	fields types.CitationFields
	err    error
	calls  int
}

func (s *stubExtractor) ExtractFields(_ context.Context, _ string) (types.CitationFields, error) {
	s.calls++
	return s.fields, s.err
}

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func (s *stubEmbedder) ModelID() string { return "stub-model" }

type stubClassifier struct {
	severity types.Severity
	err      error
}

func (s *stubClassifier) ClassifySeverity(_ context.Context, _ string) (types.Severity, error) {
	return s.severity, s.err
}

func fullRegistry() *models.Registry {
	return models.NewRegistryFromParts(
		&stubExtractor{fields: types.CitationFields{Title: "Extracted title"}},
		&stubEmbedder{vec: []float32{1, 0}},
		&stubClassifier{severity: types.SeverityMajor},
	)
}

var retractedRec = &types.RetractedWork{ID: 1, DOI: "10.1234/bad", Title: "A retracted paper", Notice: "Retracted: fabrication"}

// --- identifier tier ---

func TestCheckExactIdentifierHit(t *testing.T) {
	index := &stubIndex{byDOI: map[string]*types.RetractedWork{"10.1234/bad": retractedRec}}
	c := New(index, fullRegistry(), types.CheckConfig{})

	verdict, err := c.Check(context.Background(), types.Citation{DOI: "10.1234/bad"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if !verdict.IsRetracted {
		t.Fatal("expected a retraction verdict")
	}
	if verdict.Method != types.MethodExactIdentifier {
		t.Errorf("Method = %q, want exact_identifier", verdict.Method)
	}
	if verdict.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", verdict.Confidence)
	}
	if verdict.Severity != types.SeverityMajor {
		t.Errorf("Severity = %q, want major", verdict.Severity)
	}
	if index.nearestCalls != 0 {
		t.Error("identifier hit must not touch the similarity tier")
	}
}

func TestCheckIdentifierMissIsAuthoritative(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	registry := models.NewRegistryFromParts(nil, embedder, nil)
	index := &stubIndex{nearestRec: retractedRec, nearestScore: 0.99}
	c := New(index, registry, types.CheckConfig{})

	verdict, err := c.Check(context.Background(), types.Citation{DOI: "10.1234/unlisted", Title: "Fine paper"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if verdict.IsRetracted {
		t.Fatal("identifier miss must be authoritative by default")
	}
	if index.nearestCalls != 0 || embedder.calls != 0 {
		t.Error("identifier miss must not fall through to the similarity tier")
	}
}

func TestCheckIdentifierMissWithFallback(t *testing.T) {
	index := &stubIndex{nearestRec: retractedRec, nearestScore: 0.95}
	c := New(index, fullRegistry(), types.CheckConfig{FuzzyFallbackOnIdentifierMiss: true})

	verdict, err := c.Check(context.Background(), types.Citation{DOI: "10.1234/unlisted", Title: "Suspicious paper"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if !verdict.IsRetracted {
		t.Fatal("fallback should reach the similarity tier")
	}
	if verdict.Method != types.MethodSemanticFuzzy {
		t.Errorf("Method = %q, want semantic_fuzzy", verdict.Method)
	}
}

// --- similarity tier ---

func TestCheckThresholdBoundary(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  bool
	}{
		{name: "exactly at threshold matches", score: 0.85, want: true},
		{name: "just below threshold misses", score: 0.8499, want: false},
		{name: "well above threshold matches", score: 0.99, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &stubIndex{nearestRec: retractedRec, nearestScore: tt.score}
			c := New(index, fullRegistry(), types.CheckConfig{})

			verdict, err := c.Check(context.Background(), types.Citation{Title: "Some paper"})
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if verdict.IsRetracted != tt.want {
				t.Errorf("score %f: IsRetracted = %v, want %v", tt.score, verdict.IsRetracted, tt.want)
			}
			if tt.want && verdict.Confidence != tt.score {
				t.Errorf("Confidence = %f, want %f", verdict.Confidence, tt.score)
			}
		})
	}
}

func TestCheckUsesStructuredFieldsWithoutExtractor(t *testing.T) {
	extractor := &stubExtractor{fields: types.CitationFields{Title: "should not be used"}}
	registry := models.NewRegistryFromParts(extractor, &stubEmbedder{vec: []float32{1, 0}}, nil)
	index := &stubIndex{nearestRec: retractedRec, nearestScore: 0.9}
	c := New(index, registry, types.CheckConfig{})

	if _, err := c.Check(context.Background(), types.Citation{Title: "Already structured"}); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if extractor.calls != 0 {
		t.Error("extractor must not run when the citation already has structured fields")
	}
}

func TestCheckExtractorUnavailableDegrades(t *testing.T) {
	registry := models.NewRegistryFromParts(nil, &stubEmbedder{vec: []float32{1, 0}}, nil)
	c := New(&stubIndex{}, registry, types.CheckConfig{})

	verdict, err := c.Check(context.Background(), types.Citation{RawText: "{{cite journal}}"})
	if err != nil {
		t.Fatalf("degradation must not be an error: %v", err)
	}
	if verdict.IsRetracted {
		t.Error("degraded check must not claim a retraction")
	}
	if !strings.Contains(verdict.Note, "extractor unavailable") {
		t.Errorf("Note = %q, want extractor degradation note", verdict.Note)
	}
}

func TestCheckEmbedderUnavailableDegrades(t *testing.T) {
	registry := models.NewRegistryFromParts(nil, nil, nil)
	c := New(&stubIndex{}, registry, types.CheckConfig{})

	verdict, err := c.Check(context.Background(), types.Citation{Title: "Has fields"})
	if err != nil {
		t.Fatalf("degradation must not be an error: %v", err)
	}
	if !strings.Contains(verdict.Note, "embedder unavailable") {
		t.Errorf("Note = %q, want embedder degradation note", verdict.Note)
	}
}

func TestCheckEmptyExtractionDegrades(t *testing.T) {
	registry := models.NewRegistryFromParts(
		&stubExtractor{fields: types.CitationFields{}},
		&stubEmbedder{vec: []float32{1, 0}},
		nil,
	)
	c := New(&stubIndex{}, registry, types.CheckConfig{})

	verdict, err := c.Check(context.Background(), types.Citation{RawText: "bare url"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.IsRetracted || verdict.Note == "" {
		t.Errorf("empty extraction should degrade with a note, got %+v", verdict)
	}
}

func TestCheckModelErrorsAreReturned(t *testing.T) {
	registry := models.NewRegistryFromParts(
		&stubExtractor{err: fmt.Errorf("api down")},
		&stubEmbedder{vec: []float32{1, 0}},
		nil,
	)
	c := New(&stubIndex{}, registry, types.CheckConfig{})

	if _, err := c.Check(context.Background(), types.Citation{RawText: "raw"}); err == nil {
		t.Fatal("extractor failure should surface as an error")
	}

	registry = models.NewRegistryFromParts(nil, &stubEmbedder{err: fmt.Errorf("embed down")}, nil)
	c = New(&stubIndex{}, registry, types.CheckConfig{})
	if _, err := c.Check(context.Background(), types.Citation{Title: "Has fields"}); err == nil {
		t.Fatal("embedder failure should surface as an error")
	}
}

// --- severity classification ---

func TestClassifierFailureKeepsMatch(t *testing.T) {
	registry := models.NewRegistryFromParts(
		nil,
		&stubEmbedder{vec: []float32{1, 0}},
		&stubClassifier{err: fmt.Errorf("api down")},
	)
	index := &stubIndex{byDOI: map[string]*types.RetractedWork{"10.1234/bad": retractedRec}}
	c := New(index, registry, types.CheckConfig{})

	verdict, err := c.Check(context.Background(), types.Citation{DOI: "10.1234/bad"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.IsRetracted {
		t.Fatal("classification failure must not lose the match")
	}
	if verdict.Severity != types.SeverityUnknown {
		t.Errorf("Severity = %q, want unknown", verdict.Severity)
	}
}

func TestClassifierUnavailableYieldsUnknown(t *testing.T) {
	registry := models.NewRegistryFromParts(nil, nil, nil)
	index := &stubIndex{byDOI: map[string]*types.RetractedWork{"10.1234/bad": retractedRec}}
	c := New(index, registry, types.CheckConfig{})

	verdict, err := c.Check(context.Background(), types.Citation{DOI: "10.1234/bad"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.IsRetracted || verdict.Severity != types.SeverityUnknown {
		t.Errorf("verdict = %+v, want retracted with unknown severity", verdict)
	}
}

func TestCustomThreshold(t *testing.T) {
	index := &stubIndex{nearestRec: retractedRec, nearestScore: 0.7}
	c := New(index, fullRegistry(), types.CheckConfig{SimilarityThreshold: 0.6})

	verdict, err := c.Check(context.Background(), types.Citation{Title: "Some paper"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.IsRetracted {
		t.Error("score above a lowered threshold should match")
	}
}
