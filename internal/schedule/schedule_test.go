// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

// recordingSource captures the query parameters the scheduler passes down.
type recordingSource struct {
	citations []types.Citation

	gotNow      time.Time
	gotInterval time.Duration
	gotLimit    int

	clearCalls int
}

func (r *recordingSource) DueCitations(_ context.Context, now time.Time, interval time.Duration, limit int) ([]types.Citation, error) {
	r.gotNow = now
	r.gotInterval = interval
	r.gotLimit = limit
	return r.citations, nil
}

func (r *recordingSource) ClearLastChecked(_ context.Context) (int64, error) {
	r.clearCalls++
	return int64(len(r.citations)), nil
}

func TestDueAppliesDefaults(t *testing.T) {
	source := &recordingSource{}
	s := New(source, types.CheckConfig{})

	fixed := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if _, err := s.Due(context.Background()); err != nil {
		t.Fatalf("Due: %v", err)
	}

	if !source.gotNow.Equal(fixed) {
		t.Errorf("now = %v, want %v", source.gotNow, fixed)
	}
	if source.gotInterval != DefaultRecheckInterval {
		t.Errorf("interval = %v, want %v", source.gotInterval, DefaultRecheckInterval)
	}
	if source.gotLimit != DefaultBatchSize {
		t.Errorf("limit = %d, want %d", source.gotLimit, DefaultBatchSize)
	}
}

func TestDueUsesConfiguredValues(t *testing.T) {
	source := &recordingSource{}
	s := New(source, types.CheckConfig{
		RecheckInterval: 7 * 24 * time.Hour,
		BatchSize:       50,
	})

	if _, err := s.Due(context.Background()); err != nil {
		t.Fatalf("Due: %v", err)
	}
	if source.gotInterval != 7*24*time.Hour {
		t.Errorf("interval = %v, want 168h", source.gotInterval)
	}
	if source.gotLimit != 50 {
		t.Errorf("limit = %d, want 50", source.gotLimit)
	}
}

func TestDueIsIdempotentWithFixedClock(t *testing.T) {
	source := &recordingSource{citations: []types.Citation{{ID: 2}, {ID: 1}}}
	s := New(source, types.CheckConfig{})

	fixed := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	first, err := s.Due(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Due(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("selection changed size: %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d: %d then %d", i, first[i].ID, second[i].ID)
		}
	}
}

func TestMarkReferenceRefreshed(t *testing.T) {
	source := &recordingSource{citations: []types.Citation{{ID: 1}, {ID: 2}, {ID: 3}}}
	s := New(source, types.CheckConfig{})

	n, err := s.MarkReferenceRefreshed(context.Background())
	if err != nil {
		t.Fatalf("MarkReferenceRefreshed: %v", err)
	}
	if n != 3 {
		t.Errorf("reset %d citations, want 3", n)
	}
	if source.clearCalls != 1 {
		t.Errorf("ClearLastChecked called %d times, want 1", source.clearCalls)
	}
}
