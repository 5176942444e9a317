package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citewatch/0.1 (mailto:ops@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for capabilities that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// EmbedderConfig holds settings for the local embedding endpoint.
type EmbedderConfig struct {
	// BaseURL is the Ollama-compatible embed endpoint
	// (default "http://localhost:11434/api/embed").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the embedding model identifier (default "nomic-embed-text").
	// The reference snapshot is versioned by this value: a snapshot built
	// with a different model cannot be loaded.
	Model string `json:"model" yaml:"model"`

	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ModelsConfig groups the three inference capability configurations.
type ModelsConfig struct {
	Extractor  AIConfig       `json:"extractor" yaml:"extractor"`
	Classifier AIConfig       `json:"classifier" yaml:"classifier"`
	Embedder   EmbedderConfig `json:"embedder" yaml:"embedder"`
}

// CheckConfig holds settings for the retraction checker and the daily run.
type CheckConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a fuzzy
	// match (default 0.85). The false-positive/false-negative trade-off
	// is a domain decision, so the threshold is configuration.
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// FuzzyFallbackOnIdentifierMiss controls whether a citation whose DOI
	// is absent from the catalog is additionally tried against the
	// similarity tier. Default false: an identifier miss is authoritative.
	FuzzyFallbackOnIdentifierMiss bool `json:"fuzzy_fallback_on_identifier_miss" yaml:"fuzzy_fallback_on_identifier_miss"`

	// RecheckInterval is how long a checked citation stays fresh (default 720h).
	RecheckInterval time.Duration `json:"recheck_interval" yaml:"recheck_interval"`

	// BatchSize bounds the number of citations per run (default 500).
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// StoreConfig holds settings for citation and finding persistence.
type StoreConfig struct {
	// DataDir is the base directory holding citations.db and reference.db.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// NotifyConfig holds settings for the notification text generator.
type NotifyConfig struct {
	AIConfig `yaml:",inline"`

	// Timeout bounds one generation call (default 20s). On timeout the
	// finding is persisted without text for later retry.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RefreshConfig holds settings for the monthly reference refresh.
type RefreshConfig struct {
	HTTPConfig `yaml:",inline"`

	// DatabaseURL is the upstream retraction database CSV export. Empty
	// uses the built-in Retraction Watch URL.
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"`

	// VerifyWithCrossRef enables per-record CrossRef verification of
	// records whose reason field is empty.
	VerifyWithCrossRef bool `json:"verify_with_crossref" yaml:"verify_with_crossref"`

	// CrossRefEmail is the contact address sent in the polite User-Agent.
	CrossRefEmail string `json:"crossref_email,omitempty" yaml:"crossref_email,omitempty"`

	// VerifyWithPubMed enables per-record PubMed verification of records
	// whose reason field is empty. Consulted after CrossRef when both
	// sources are enabled.
	VerifyWithPubMed bool `json:"verify_with_pubmed" yaml:"verify_with_pubmed"`

	// PubMedEmail is the contact address sent with E-utilities requests.
	// Empty falls back to CrossRefEmail.
	PubMedEmail string `json:"pubmed_email,omitempty" yaml:"pubmed_email,omitempty"`
}

// IngestConfig holds settings for the weekly citation import.
type IngestConfig struct {
	HTTPConfig `yaml:",inline"`

	// Language is the encyclopedia language code (default "en").
	Language string `json:"language" yaml:"language"`

	// Articles lists the article titles to import citations from.
	Articles []string `json:"articles" yaml:"articles"`

	// RequestDelay is the delay between consecutive API requests (default 1s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Store   StoreConfig   `json:"store" yaml:"store"`
	Models  ModelsConfig  `json:"models" yaml:"models"`
	Check   CheckConfig   `json:"check" yaml:"check"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	Refresh RefreshConfig `json:"refresh" yaml:"refresh"`
	Ingest  IngestConfig  `json:"ingest" yaml:"ingest"`
}
