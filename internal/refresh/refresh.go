// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refresh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/citewatch/internal/models"
	"github.com/pdiddy/citewatch/internal/refindex"
	"github.com/pdiddy/citewatch/pkg/types"
)

// Summary holds counts from a reference-refresh run.
type Summary struct {
	Downloaded int
	Verified   int
	Embedded   int
	Failed     int
}

// Run rebuilds the reference snapshot under dataDir: download the upstream
// catalog, optionally verify reason-less records against CrossRef and
// PubMed, embed each record's bibliographic text, and write the snapshot
// atomically.
//
// The embedder is mandatory: every record must carry a vector computed
// with the model the snapshot is versioned by. Per-record embedding
// failures are logged to w and drop the record; only a download or
// snapshot-write failure aborts the run, leaving any previous snapshot
// untouched.
func Run(ctx context.Context, cfg types.RefreshConfig, embedder models.Embedder, dataDir string, w io.Writer) (Summary, error) {
	var summary Summary

	if embedder == nil {
		return summary, fmt.Errorf("embedder unavailable: cannot rebuild reference snapshot")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	client := &http.Client{Timeout: timeout}

	works, err := DownloadCatalog(ctx, client, cfg)
	if err != nil {
		return summary, err
	}
	summary.Downloaded = len(works)
	fmt.Fprintf(w, "downloaded %d retraction record(s)\n", len(works))

	if cfg.VerifyWithCrossRef || cfg.VerifyWithPubMed {
		var crossref *CrossRefClient
		var pubmed *PubMedClient
		if cfg.VerifyWithCrossRef {
			crossref = &CrossRefClient{Client: client, Email: cfg.CrossRefEmail}
		}
		if cfg.VerifyWithPubMed {
			email := cfg.PubMedEmail
			if email == "" {
				email = cfg.CrossRefEmail
			}
			pubmed = &PubMedClient{Client: client, Email: email}
		}
		for i := range works {
			if works[i].Reason != "" || works[i].DOI == "" {
				continue
			}
			if rec := verifyRecord(ctx, crossref, pubmed, works[i].DOI, w); rec != nil {
				works[i].Reason = rec.Reason
				summary.Verified++
			}
		}
	}

	var (
		kept    []types.RetractedWork
		vectors [][]float32
	)
	for _, work := range works {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		vec, err := embedder.Embed(ctx, work.SearchText())
		if err != nil {
			fmt.Fprintf(w, "failed  %q: %v\n", work.Title, err)
			summary.Failed++
			continue
		}

		work.ID = int64(len(kept) + 1)
		kept = append(kept, work)
		vectors = append(vectors, vec)
		summary.Embedded++
	}

	if len(kept) == 0 {
		return summary, fmt.Errorf("no records embedded: refusing to write an empty snapshot")
	}

	if err := refindex.WriteSnapshot(dataDir, embedder.ModelID(), kept, vectors, time.Now()); err != nil {
		return summary, fmt.Errorf("writing snapshot: %w", err)
	}

	fmt.Fprintf(w, "\ndownloaded: %d, verified: %d, embedded: %d, failed: %d\n",
		summary.Downloaded, summary.Verified, summary.Embedded, summary.Failed)
	return summary, nil
}

// verifyRecord consults the enabled external sources in order and returns
// the first retraction record found. Lookup failures are warnings:
// verification only enriches records, it never drops them.
func verifyRecord(ctx context.Context, crossref *CrossRefClient, pubmed *PubMedClient, doi string, w io.Writer) *types.RetractedWork {
	if crossref != nil {
		rec, err := crossref.CheckRetraction(ctx, doi)
		if err != nil {
			fmt.Fprintf(w, "warning: CrossRef check for %s: %v\n", doi, err)
		} else if rec != nil {
			return rec
		}
	}
	if pubmed != nil {
		rec, err := pubmed.CheckRetraction(ctx, doi)
		if err != nil {
			fmt.Fprintf(w, "warning: PubMed check for %s: %v\n", doi, err)
		} else if rec != nil {
			return rec
		}
	}
	return nil
}
