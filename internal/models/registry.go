// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package models owns the lifecycle of the three inference capabilities:
// the entity extractor, the text embedder, and the severity classifier.
// Each capability loads once at registry construction; a load failure
// leaves that capability unavailable for the whole run rather than
// failing startup. Callers branch on Available before use, so every
// degraded path is an explicit, testable condition.
package models

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

// Capability names one of the registry's loadable models.
type Capability string

const (
	CapabilityExtractor  Capability = "entity_extractor"
	CapabilityEmbedder   Capability = "embedder"
	CapabilityClassifier Capability = "severity_classifier"
)

// State is a capability's lifecycle state. There is no reload: a
// capability that starts unavailable stays unavailable for the run.
type State int

const (
	StateUnavailable State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "unavailable"
}

// probeTimeout bounds the embedder reachability check at load time.
var probeTimeout = 10 * time.Second

// Registry holds the loaded capabilities for one run. It is an explicit
// value passed to the checker and orchestrator, never a package global,
// so independent runs and tests get independent registries. Read-only
// after construction and safe for concurrent readers.
type Registry struct {
	extractor  Extractor
	embedder   Embedder
	classifier Classifier
	states     map[Capability]State
}

// NewRegistry loads each capability from config. Load failures are written
// to w as warnings, once, and never returned as errors: the run proceeds
// degraded.
func NewRegistry(ctx context.Context, cfg types.ModelsConfig, w io.Writer) *Registry {
	r := &Registry{states: map[Capability]State{
		CapabilityExtractor:  StateUnavailable,
		CapabilityEmbedder:   StateUnavailable,
		CapabilityClassifier: StateUnavailable,
	}}

	if cfg.Extractor.APIKey != "" && cfg.Extractor.Model != "" {
		r.extractor = &ClaudeExtractor{
			APIKey:     cfg.Extractor.APIKey,
			Model:      cfg.Extractor.Model,
			MaxRetries: cfg.Extractor.MaxRetries,
		}
		r.states[CapabilityExtractor] = StateLoaded
	} else {
		fmt.Fprintf(w, "warning: entity extractor unavailable: api key or model not configured\n")
	}

	if cfg.Classifier.APIKey != "" && cfg.Classifier.Model != "" {
		r.classifier = &ClaudeClassifier{
			APIKey:     cfg.Classifier.APIKey,
			Model:      cfg.Classifier.Model,
			MaxRetries: cfg.Classifier.MaxRetries,
		}
		r.states[CapabilityClassifier] = StateLoaded
	} else {
		fmt.Fprintf(w, "warning: severity classifier unavailable: api key or model not configured\n")
	}

	embedder := NewOllamaEmbedder(cfg.Embedder)
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := embedder.Probe(probeCtx); err != nil {
		fmt.Fprintf(w, "warning: embedder unavailable: %v\n", err)
	} else {
		r.embedder = embedder
		r.states[CapabilityEmbedder] = StateLoaded
	}

	return r
}

// NewRegistryFromParts assembles a registry from prebuilt capability
// implementations. A nil part leaves that capability unavailable. Used by
// tests and by workers that share nothing but the persistence layer.
func NewRegistryFromParts(extractor Extractor, embedder Embedder, classifier Classifier) *Registry {
	r := &Registry{
		extractor:  extractor,
		embedder:   embedder,
		classifier: classifier,
		states: map[Capability]State{
			CapabilityExtractor:  StateUnavailable,
			CapabilityEmbedder:   StateUnavailable,
			CapabilityClassifier: StateUnavailable,
		},
	}
	if extractor != nil {
		r.states[CapabilityExtractor] = StateLoaded
	}
	if embedder != nil {
		r.states[CapabilityEmbedder] = StateLoaded
	}
	if classifier != nil {
		r.states[CapabilityClassifier] = StateLoaded
	}
	return r
}

// Available reports whether the named capability loaded successfully.
func (r *Registry) Available(c Capability) bool {
	return r.states[c] == StateLoaded
}

// Extractor returns the entity extractor, or nil when unavailable.
func (r *Registry) Extractor() Extractor { return r.extractor }

// Embedder returns the text embedder, or nil when unavailable.
func (r *Registry) Embedder() Embedder { return r.embedder }

// Classifier returns the severity classifier, or nil when unavailable.
func (r *Registry) Classifier() Classifier { return r.classifier }
