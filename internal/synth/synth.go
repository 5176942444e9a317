// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synth drives one checking run: it pulls the scheduler's batch,
// checks each citation, persists findings for confirmed matches, and
// advances staleness markers. One bad citation never aborts the loop;
// only a persistence failure does.
package synth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/citewatch/internal/schedule"
	"github.com/pdiddy/citewatch/internal/store"
	"github.com/pdiddy/citewatch/pkg/types"
)

// CitationChecker is the matching surface the orchestrator consumes.
type CitationChecker interface {
	Check(ctx context.Context, citation types.Citation) (types.Verdict, error)
}

// NotificationGenerator produces editor-facing text for a finding.
// Mirrors notify.Generator; declared here so the orchestrator depends
// only on what it calls.
type NotificationGenerator interface {
	Generate(ctx context.Context, verdict types.Verdict, citation types.Citation) (string, error)
}

// Orchestrator runs the daily checking loop.
type Orchestrator struct {
	store     *store.Store
	scheduler *schedule.Scheduler
	checker   CitationChecker
	generator NotificationGenerator
	now       func() time.Time
}

// New assembles an orchestrator. generator may be nil, in which case all
// findings are persisted as pending_notification for a later retry.
func New(st *store.Store, sched *schedule.Scheduler, chk CitationChecker, gen NotificationGenerator) *Orchestrator {
	return &Orchestrator{
		store:     st,
		scheduler: sched,
		checker:   chk,
		generator: gen,
		now:       time.Now,
	}
}

// Run executes one checking run, writing per-citation progress to w.
//
// Every citation in the batch is marked checked regardless of verdict, so
// unmatched and even permanently malformed citations do not come up again
// until the next interval boundary. Checker errors are logged, counted in
// Errors, and skipped. The run aborts only when the context is cancelled
// (between citations) or a store write fails; either way the summary
// reflects the work already done.
func (o *Orchestrator) Run(ctx context.Context, w io.Writer) (types.RunSummary, error) {
	var summary types.RunSummary

	batch, err := o.scheduler.Due(ctx)
	if err != nil {
		return summary, fmt.Errorf("selecting due citations: %w", err)
	}
	fmt.Fprintf(w, "checking %d citation(s)\n", len(batch))

	noted := make(map[string]bool)

	for _, citation := range batch {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		verdict, err := o.checker.Check(ctx, citation)
		checkedAt := o.now()

		if err != nil {
			fmt.Fprintf(w, "error   %s #%d: %v\n", citation.Article, citation.Number, err)
			summary.Errors++
			if err := o.store.MarkChecked(ctx, citation.ID, checkedAt); err != nil {
				return summary, fmt.Errorf("marking citation %d checked: %w", citation.ID, err)
			}
			continue
		}

		if verdict.Note != "" && !noted[verdict.Note] {
			noted[verdict.Note] = true
			fmt.Fprintf(w, "warning: %s\n", verdict.Note)
		}

		if verdict.IsRetracted {
			if err := o.persistFinding(ctx, w, verdict, citation, checkedAt); err != nil {
				return summary, err
			}
			summary.Matched++
		}

		if err := o.store.MarkChecked(ctx, citation.ID, checkedAt); err != nil {
			return summary, fmt.Errorf("marking citation %d checked: %w", citation.ID, err)
		}
		summary.Checked++
	}

	fmt.Fprintf(w, "\nchecked: %d, matched: %d, errors: %d\n",
		summary.Checked, summary.Matched, summary.Errors)
	return summary, nil
}

// persistFinding stores one confirmed match. Notification text is
// best-effort: a generation failure downgrades the finding to
// pending_notification instead of losing it.
func (o *Orchestrator) persistFinding(ctx context.Context, w io.Writer, verdict types.Verdict, citation types.Citation, foundAt time.Time) error {
	status := types.StatusPendingNotification
	var text string

	if o.generator != nil {
		generated, err := o.generator.Generate(ctx, verdict, citation)
		if err != nil {
			fmt.Fprintf(w, "warning: notification text for %s #%d deferred: %v\n",
				citation.Article, citation.Number, err)
		} else {
			text = generated
			status = types.StatusPending
		}
	}

	finding := types.Finding{
		CitationID:   citation.ID,
		Article:      citation.Article,
		ProblemType:  types.ProblemRetractedCitation,
		Severity:     verdict.Severity,
		Confidence:   verdict.Confidence,
		Method:       verdict.Method,
		Details:      buildDetails(verdict, citation),
		Notification: text,
		Status:       status,
		FoundAt:      foundAt,
	}

	if _, err := o.store.InsertFinding(ctx, finding); err != nil {
		return fmt.Errorf("persisting finding for citation %d: %w", citation.ID, err)
	}

	fmt.Fprintf(w, "matched %s #%d: %s (%.2f, %s)\n",
		citation.Article, citation.Number, verdict.Matched.Title, verdict.Confidence, verdict.Method)
	return nil
}

// buildDetails assembles the structured detail text recorded on a finding.
func buildDetails(verdict types.Verdict, citation types.Citation) string {
	rec := verdict.Matched

	// The evidence named here must match the tier that produced the
	// verdict: a fuzzy match can carry a DOI that missed the catalog.
	var b strings.Builder
	if verdict.Method == types.MethodExactIdentifier {
		fmt.Fprintf(&b, "Cited work with DOI %s was retracted", rec.DOI)
	} else {
		fmt.Fprintf(&b, "Cited work matched retracted publication %q", rec.Title)
	}
	if !rec.RetractedAt.IsZero() {
		fmt.Fprintf(&b, " on %s", rec.RetractedAt.Format("2006-01-02"))
	}
	if rec.Reason != "" {
		fmt.Fprintf(&b, ". Reason: %s", rec.Reason)
	}
	fmt.Fprintf(&b, " (source: %s, method: %s, confidence: %.2f)",
		rec.Source, verdict.Method, verdict.Confidence)
	return b.String()
}
