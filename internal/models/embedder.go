// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

// Embedder turns text into a fixed-length vector. Snapshot-time and
// query-time embeddings must come from the same model; the snapshot is
// versioned by ModelID to enforce this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

const (
	defaultEmbedBaseURL = "http://localhost:11434/api/embed"
	defaultEmbedModel   = "nomic-embed-text"
	embedMaxRetries     = 5
)

// embedBackoffBase controls the backoff between embed retries. Tests
// override this to avoid real sleeps.
var embedBackoffBase = time.Second

// OllamaEmbedder calls an Ollama-compatible /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaEmbedder builds an embedder from config, applying defaults for
// unset fields.
func NewOllamaEmbedder(cfg types.EmbedderConfig) *OllamaEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultEmbedBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultEmbedModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// ModelID returns the embedding model identifier.
func (e *OllamaEmbedder) ModelID() string { return e.model }

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed requests an embedding vector for the given text, retrying server
// errors with exponential backoff.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < embedMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * embedBackoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating embed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("embed request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading embed response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(respBody))
			if resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		var er embedResponse
		if err := json.Unmarshal(respBody, &er); err != nil {
			return nil, fmt.Errorf("decoding embed response: %w", err)
		}
		if len(er.Embeddings) == 0 || len(er.Embeddings[0]) == 0 {
			return nil, fmt.Errorf("embed endpoint returned no embeddings")
		}
		return er.Embeddings[0], nil
	}

	return nil, fmt.Errorf("after %d attempts: %w", embedMaxRetries, lastErr)
}

// Probe checks the endpoint is reachable by embedding a short string. Used
// once at registry construction.
func (e *OllamaEmbedder) Probe(ctx context.Context) error {
	_, err := e.Embed(ctx, "ping")
	return err
}
