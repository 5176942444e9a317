// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest imports citations from encyclopedia articles. It fetches
// raw wikitext through the MediaWiki API and extracts citation templates
// into structured Citation records. Imported citations arrive with no
// last_checked value, making them immediately eligible for checking.
package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/citewatch/internal/refindex"
	"github.com/pdiddy/citewatch/pkg/types"
)

// citationTemplates lists the template names treated as citations.
var citationTemplates = []string{
	"cite journal", "cite web", "cite news", "cite book",
	"cite paper", "cite conference", "cite arxiv", "cite pmid",
	"cite doi", "cite pmc",
}

// yearRe matches a 4-digit year.
var yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

// Template is one parsed wikitext template.
type Template struct {
	Name   string
	Params map[string]string
	Raw    string
}

// ExtractCitations scans wikitext for citation templates and returns the
// parsed citations in document order, numbered from 1.
func ExtractCitations(article, language, wikitext string) []types.Citation {
	var citations []types.Citation
	number := 0

	for _, tpl := range parseTemplates(wikitext) {
		if !isCitationTemplate(tpl.Name) {
			continue
		}
		number++
		c := citationFromTemplate(tpl)
		c.Article = article
		c.Language = language
		c.Number = number
		citations = append(citations, c)
	}
	return citations
}

func isCitationTemplate(name string) bool {
	for _, t := range citationTemplates {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

// parseTemplates finds top-level {{...}} templates with balanced braces.
// Nested templates inside parameter values stay part of the raw text and
// are not extracted separately; citation templates do not nest in
// practice.
func parseTemplates(text string) []Template {
	var templates []Template

	for i := 0; i+1 < len(text); i++ {
		if text[i] != '{' || text[i+1] != '{' {
			continue
		}
		end, ok := findTemplateEnd(text, i)
		if !ok {
			break
		}
		raw := text[i:end]
		if tpl, ok := parseTemplate(raw); ok {
			templates = append(templates, tpl)
		}
		i = end - 1
	}
	return templates
}

// findTemplateEnd returns the index just past the matching "}}" for the
// "{{" at start.
func findTemplateEnd(text string, start int) (int, bool) {
	depth := 0
	for i := start; i+1 < len(text); i++ {
		switch {
		case text[i] == '{' && text[i+1] == '{':
			depth++
			i++
		case text[i] == '}' && text[i+1] == '}':
			depth--
			i++
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// parseTemplate splits "{{name |k=v |...}}" into a name and parameter
// map. Pipes inside wiki links ([[a|b]]) and nested templates do not
// split parameters.
func parseTemplate(raw string) (Template, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "{{"), "}}")
	parts := splitTopLevel(inner)
	if len(parts) == 0 {
		return Template{}, false
	}

	tpl := Template{
		Name:   strings.ToLower(strings.TrimSpace(parts[0])),
		Params: make(map[string]string),
		Raw:    raw,
	}

	for _, part := range parts[1:] {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(key))
		if name == "" {
			continue
		}
		// First occurrence wins; cite templates repeat aliases rarely
		// and the leading value is the canonical one.
		if _, exists := tpl.Params[name]; !exists {
			tpl.Params[name] = strings.TrimSpace(value)
		}
	}
	return tpl, true
}

// splitTopLevel splits on '|' at brace/bracket depth zero.
func splitTopLevel(s string) []string {
	var (
		parts     []string
		tplDepth  int
		linkDepth int
		partStart int
	)
	for i := 0; i < len(s); i++ {
		switch {
		case i+1 < len(s) && s[i] == '{' && s[i+1] == '{':
			tplDepth++
			i++
		case i+1 < len(s) && s[i] == '}' && s[i+1] == '}':
			tplDepth--
			i++
		case i+1 < len(s) && s[i] == '[' && s[i+1] == '[':
			linkDepth++
			i++
		case i+1 < len(s) && s[i] == ']' && s[i+1] == ']':
			linkDepth--
			i++
		case s[i] == '|' && tplDepth == 0 && linkDepth == 0:
			parts = append(parts, s[partStart:i])
			partStart = i + 1
		}
	}
	parts = append(parts, s[partStart:])
	return parts
}

// Parameter aliases, following the cite template family conventions.
var (
	titleParams   = []string{"title", "article-title", "chapter"}
	authorParams  = []string{"author", "authors", "author1", "author2", "last", "first"}
	journalParams = []string{"journal", "periodical", "work", "website"}
	yearParams    = []string{"year", "date", "publication-date"}
)

// citationFromTemplate maps template parameters onto a Citation. Fields
// whose parameters are absent stay zero; the checker treats them as
// absent.
func citationFromTemplate(tpl Template) types.Citation {
	c := types.Citation{RawText: tpl.Raw}

	if doi, ok := tpl.Params["doi"]; ok {
		c.DOI = refindex.NormalizeDOI(doi)
	}

	for _, p := range titleParams {
		if v := tpl.Params[p]; v != "" {
			c.Title = v
			break
		}
	}

	var authors []string
	for _, p := range authorParams {
		if v := tpl.Params[p]; v != "" {
			authors = append(authors, v)
		}
	}
	c.Authors = strings.Join(authors, "; ")

	for _, p := range journalParams {
		if v := tpl.Params[p]; v != "" {
			c.Journal = v
			break
		}
	}

	for _, p := range yearParams {
		if v := tpl.Params[p]; v != "" {
			if m := yearRe.FindString(v); m != "" {
				if year, err := strconv.Atoi(m); err == nil {
					c.Year = year
					break
				}
			}
		}
	}

	return c
}
