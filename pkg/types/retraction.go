// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RetractedWork is one entry in the reference catalog of retracted
// publications. Records are immutable within a checking run and replaced
// wholesale by the monthly refresh.
type RetractedWork struct {
	// ID is the record's identifier within the current snapshot.
	ID int64 `json:"id" yaml:"id"`

	// DOI is the normalized document identifier. Empty when the upstream
	// record carries none; such records are reachable only through the
	// similarity tier.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title, Authors, and Year are the canonical bibliographic text.
	Title   string `json:"title" yaml:"title"`
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year    int    `json:"year,omitempty" yaml:"year,omitempty"`

	// Notice is the retraction notice text.
	Notice string `json:"notice,omitempty" yaml:"notice,omitempty"`

	// Reason is the upstream retraction reason code (e.g. "Fabrication").
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Source names the upstream database the record came from.
	Source string `json:"source" yaml:"source"`

	// RetractedAt is the retraction date when the upstream provides one.
	RetractedAt time.Time `json:"retracted_at,omitempty" yaml:"retracted_at,omitempty"`
}

// SearchText returns the bibliographic text embedded for the similarity
// tier: title, authors, and year joined with single spaces, skipping
// absent fields.
func (w RetractedWork) SearchText() string {
	f := CitationFields{Title: w.Title, Authors: w.Authors, Year: w.Year}
	return f.SearchString()
}

// MatchMethod identifies which matching tier produced a verdict.
type MatchMethod string

const (
	MethodExactIdentifier MatchMethod = "exact_identifier"
	MethodSemanticFuzzy   MatchMethod = "semantic_fuzzy"
)

// Severity is the coarse retraction severity label produced by the
// classifier capability.
type Severity string

const (
	SeverityCritical  Severity = "critical"
	SeverityMajor     Severity = "major"
	SeverityMinor     Severity = "minor"
	SeverityCorrected Severity = "corrected"
	SeverityUnknown   Severity = "unknown"
)

// ValidSeverity reports whether s is one of the defined labels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor, SeverityCorrected, SeverityUnknown:
		return true
	}
	return false
}

// Verdict is the outcome of checking one citation against the reference
// catalog. It is ephemeral: the orchestrator consumes it immediately.
type Verdict struct {
	// IsRetracted reports whether the citation matched a retracted work.
	IsRetracted bool

	// Matched is the catalog record the citation matched. Nil when
	// IsRetracted is false.
	Matched *RetractedWork

	// Confidence is in [0,1]: 1.0 for identifier matches, the cosine
	// similarity score for fuzzy matches.
	Confidence float64

	// Method identifies the matching tier. Empty when IsRetracted is false.
	Method MatchMethod

	// Severity is the classified severity of the matched retraction.
	Severity Severity

	// Note carries a degradation explanation when a capability needed for
	// the full algorithm was unavailable. Empty on the normal path.
	Note string
}

// FindingStatus tracks a finding through its notification lifecycle.
type FindingStatus string

const (
	// StatusPendingNotification marks findings whose notification text
	// could not be generated; they are retried later.
	StatusPendingNotification FindingStatus = "pending_notification"

	// StatusPending marks findings ready for editor review.
	StatusPending FindingStatus = "pending"

	StatusPosted    FindingStatus = "posted"
	StatusDismissed FindingStatus = "dismissed"
)

// ProblemRetractedCitation is the problem classification recorded on
// findings produced by this tool.
const ProblemRetractedCitation = "retracted_citation"

// Finding is a persisted record of a confirmed retraction match.
type Finding struct {
	ID           int64         `json:"id" yaml:"id"`
	CitationID   int64         `json:"citation_id" yaml:"citation_id"`
	Article      string        `json:"article" yaml:"article"`
	ProblemType  string        `json:"problem_type" yaml:"problem_type"`
	Severity     Severity      `json:"severity" yaml:"severity"`
	Confidence   float64       `json:"confidence" yaml:"confidence"`
	Method       MatchMethod   `json:"match_method" yaml:"match_method"`
	Details      string        `json:"details" yaml:"details"`
	Notification string        `json:"notification_text,omitempty" yaml:"notification_text,omitempty"`
	Status       FindingStatus `json:"status" yaml:"status"`
	FoundAt      time.Time     `json:"found_at" yaml:"found_at"`
}

// RunSummary holds counts from one checking run. Checked counts
// successfully checked citations; Errors counts citations whose check
// failed but were still marked checked.
type RunSummary struct {
	Checked int
	Matched int
	Errors  int
}

// Total returns the number of citations the run attempted.
func (s RunSummary) Total() int { return s.Checked + s.Errors }
