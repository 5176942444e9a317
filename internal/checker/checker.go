// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checker decides whether a citation references a retracted work.
// Checking is two-tiered: an O(1) identifier lookup when the citation
// carries a DOI, and a cosine-similarity search over precomputed
// embeddings when it does not. The checker is pure in-memory computation
// apart from the model calls; given the same index and registry state it
// is deterministic.
package checker

import (
	"context"
	"fmt"

	"github.com/pdiddy/citewatch/internal/models"
	"github.com/pdiddy/citewatch/pkg/types"
)

// DefaultSimilarityThreshold is the minimum cosine similarity for a fuzzy
// match when the config leaves it unset.
const DefaultSimilarityThreshold = 0.85

// ReferenceIndex is the catalog surface the checker consumes.
type ReferenceIndex interface {
	LookupIdentifier(doi string) (*types.RetractedWork, bool)
	Nearest(query []float32) (*types.RetractedWork, float64, bool)
}

// Checker matches citations against the retracted-works catalog.
type Checker struct {
	index     ReferenceIndex
	registry  *models.Registry
	threshold float64
	fallback  bool
}

// New builds a checker over the given index and registry. Both are
// read-only for the checker's lifetime.
func New(index ReferenceIndex, registry *models.Registry, cfg types.CheckConfig) *Checker {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Checker{
		index:     index,
		registry:  registry,
		threshold: threshold,
		fallback:  cfg.FuzzyFallbackOnIdentifierMiss,
	}
}

// Check returns the match verdict for one citation.
//
// A citation with a DOI is resolved through the identifier tier: a hit is
// a confidence-1.0 match, and a miss is authoritative (no fuzzy attempt)
// unless FuzzyFallbackOnIdentifierMiss is set. A citation without a DOI
// goes through the similarity tier, which needs the extractor (when the
// citation carries no structured fields) and the embedder; when either is
// unavailable the verdict is not-retracted with a degradation note.
//
// Errors are returned only for failed model calls; the caller decides how
// to isolate them.
func (c *Checker) Check(ctx context.Context, citation types.Citation) (types.Verdict, error) {
	if citation.HasDOI() {
		if rec, ok := c.index.LookupIdentifier(citation.DOI); ok {
			return types.Verdict{
				IsRetracted: true,
				Matched:     rec,
				Confidence:  1.0,
				Method:      types.MethodExactIdentifier,
				Severity:    c.classify(ctx, rec),
			}, nil
		}
		if !c.fallback {
			return types.Verdict{Severity: types.SeverityUnknown}, nil
		}
	}

	fields := types.CitationFields{
		Title:   citation.Title,
		Authors: citation.Authors,
		Journal: citation.Journal,
		Year:    citation.Year,
	}

	if fields.IsEmpty() {
		if !c.registry.Available(models.CapabilityExtractor) {
			return degraded("entity extractor unavailable, skipping fuzzy match"), nil
		}
		extracted, err := c.registry.Extractor().ExtractFields(ctx, citation.RawText)
		if err != nil {
			return types.Verdict{}, fmt.Errorf("extracting citation fields: %w", err)
		}
		fields = extracted
	}

	query := fields.SearchString()
	if query == "" {
		return degraded("no bibliographic fields extracted, skipping fuzzy match"), nil
	}

	if !c.registry.Available(models.CapabilityEmbedder) {
		return degraded("embedder unavailable, skipping fuzzy match"), nil
	}

	vec, err := c.registry.Embedder().Embed(ctx, query)
	if err != nil {
		return types.Verdict{}, fmt.Errorf("embedding search string: %w", err)
	}

	rec, score, ok := c.index.Nearest(vec)
	if !ok || score < c.threshold {
		return types.Verdict{Severity: types.SeverityUnknown}, nil
	}

	return types.Verdict{
		IsRetracted: true,
		Matched:     rec,
		Confidence:  score,
		Method:      types.MethodSemanticFuzzy,
		Severity:    c.classify(ctx, rec),
	}, nil
}

// classify maps the matched record's notice text to a severity label.
// Classifier errors degrade to unknown; a match is never lost over a
// failed classification.
func (c *Checker) classify(ctx context.Context, rec *types.RetractedWork) types.Severity {
	if !c.registry.Available(models.CapabilityClassifier) {
		return types.SeverityUnknown
	}
	text := rec.Notice
	if text == "" {
		text = rec.Reason
	}
	if text == "" {
		return types.SeverityUnknown
	}
	sev, err := c.registry.Classifier().ClassifySeverity(ctx, text)
	if err != nil {
		return types.SeverityUnknown
	}
	return sev
}

func degraded(note string) types.Verdict {
	return types.Verdict{Severity: types.SeverityUnknown, Note: note}
}
