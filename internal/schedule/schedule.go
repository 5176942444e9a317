// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule selects which citations are due for checking. Three
// independent cadences feed it: the monthly reference refresh (every
// citation becomes eligible), the weekly import (new citations arrive
// never-checked), and the daily run (stale citations come up again). The
// cadences share no locks; selection is a plain bounded query.
package schedule

import (
	"context"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

const (
	// DefaultRecheckInterval is how long a checked citation stays fresh.
	DefaultRecheckInterval = 30 * 24 * time.Hour

	// DefaultBatchSize bounds one run's candidate set.
	DefaultBatchSize = 500
)

// CitationSource is the persistence surface the scheduler reads from.
type CitationSource interface {
	DueCitations(ctx context.Context, now time.Time, interval time.Duration, limit int) ([]types.Citation, error)
	ClearLastChecked(ctx context.Context) (int64, error)
}

// Scheduler yields bounded batches of citations eligible for checking.
// Selection is idempotent: without intervening last_checked updates, two
// calls return the same citations in the same order.
type Scheduler struct {
	source   CitationSource
	interval time.Duration
	batch    int
	now      func() time.Time
}

// New builds a scheduler from config, applying defaults for unset fields.
func New(source CitationSource, cfg types.CheckConfig) *Scheduler {
	interval := cfg.RecheckInterval
	if interval <= 0 {
		interval = DefaultRecheckInterval
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Scheduler{
		source:   source,
		interval: interval,
		batch:    batch,
		now:      time.Now,
	}
}

// Due returns the citations eligible for checking right now: never checked
// first, then those checked longest ago, bounded to the batch size.
func (s *Scheduler) Due(ctx context.Context) ([]types.Citation, error) {
	return s.source.DueCitations(ctx, s.now(), s.interval, s.batch)
}

// MarkReferenceRefreshed makes every citation eligible for rechecking,
// regardless of last_checked recency. The refresh job calls this only
// after a snapshot rebuild succeeds. Returns the number of citations
// affected.
func (s *Scheduler) MarkReferenceRefreshed(ctx context.Context) (int64, error) {
	return s.source.ClearLastChecked(ctx)
}
