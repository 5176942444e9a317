// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

// CitationStore persists imported citations.
type CitationStore interface {
	UpsertCitation(ctx context.Context, c types.Citation) (id int64, created bool, err error)
}

// Summary holds counts from a citation-import run.
type Summary struct {
	Articles int
	Added    int
	Updated  int
	Failed   int
}

// Run imports citations from each configured article: fetch the wikitext,
// extract citation templates, and upsert each into the store. A failure
// on one article is logged to w and does not stop the others. New
// citations are stored unchecked; re-imported ones keep their check
// timestamp.
func Run(ctx context.Context, cfg types.IngestConfig, store CitationStore, w io.Writer) (Summary, error) {
	var summary Summary

	if len(cfg.Articles) == 0 {
		return summary, fmt.Errorf("no articles configured")
	}

	language := cfg.Language
	if language == "" {
		language = "en"
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	for i, article := range cfg.Articles {
		if i > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(delay):
			}
		}

		wikitext, err := FetchWikitext(ctx, client, language, cfg.UserAgent, article)
		if err != nil {
			fmt.Fprintf(w, "failed  %q: %v\n", article, err)
			summary.Failed++
			continue
		}

		citations := ExtractCitations(article, language, wikitext)
		added, updated := 0, 0
		for _, c := range citations {
			_, created, err := store.UpsertCitation(ctx, c)
			if err != nil {
				return summary, fmt.Errorf("storing citation %s #%d: %w", article, c.Number, err)
			}
			if created {
				added++
			} else {
				updated++
			}
		}

		summary.Articles++
		summary.Added += added
		summary.Updated += updated
		fmt.Fprintf(w, "scanned %q: %d citation(s), %d new\n", article, len(citations), added)
	}

	fmt.Fprintf(w, "\narticles: %d, added: %d, updated: %d, failed: %d\n",
		summary.Articles, summary.Added, summary.Updated, summary.Failed)
	return summary, nil
}
