// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strconv"
	"strings"
	"time"
)

// Citation is one reference cited by an encyclopedia article, as produced
// by the weekly import. The core never deletes citations; the only field
// it mutates is LastChecked.
type Citation struct {
	// ID is the stable database identifier.
	ID int64 `json:"id" yaml:"id"`

	// Article is the title of the encyclopedia article that cites the work.
	Article string `json:"article" yaml:"article"`

	// Language is the encyclopedia language code (e.g. "en").
	Language string `json:"language" yaml:"language"`

	// Number is the citation's ordinal position within the article.
	Number int `json:"number" yaml:"number"`

	// RawText is the unparsed citation markup.
	RawText string `json:"raw_text" yaml:"raw_text"`

	// DOI is the normalized document identifier, empty when the citation
	// carries none.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Structured bibliographic fields. Any of them may be empty; the
	// checker treats empty as absent.
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year    int    `json:"year,omitempty" yaml:"year,omitempty"`

	// LastChecked is the time of the most recent retraction check. The
	// zero value means the citation has never been checked.
	LastChecked time.Time `json:"last_checked,omitempty" yaml:"last_checked,omitempty"`
}

// HasDOI reports whether the citation carries a document identifier.
func (c Citation) HasDOI() bool { return c.DOI != "" }

// CitationFields is the optional-field record produced by the entity
// extractor from raw citation text. Each field is present when non-zero.
type CitationFields struct {
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year    int    `json:"year,omitempty" yaml:"year,omitempty"`
}

// IsEmpty reports whether no field was extracted.
func (f CitationFields) IsEmpty() bool {
	return f.Title == "" && f.Authors == "" && f.Journal == "" && f.Year == 0
}

// SearchString joins the present fields into the text embedded for the
// similarity tier. Field order is title, authors, journal, year; absent
// fields are skipped. The join rule is independent of how the fields were
// obtained so it can be tested without a model.
func (f CitationFields) SearchString() string {
	var parts []string
	if f.Title != "" {
		parts = append(parts, f.Title)
	}
	if f.Authors != "" {
		parts = append(parts, f.Authors)
	}
	if f.Journal != "" {
		parts = append(parts, f.Journal)
	}
	if f.Year != 0 {
		parts = append(parts, strconv.Itoa(f.Year))
	}
	return strings.Join(parts, " ")
}
