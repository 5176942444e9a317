// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refindex

import (
	"errors"
	"testing"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	builtAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	works := []types.RetractedWork{
		{ID: 1, DOI: "10.1234/one", Title: "First", Authors: "Smith", Year: 2019,
			Notice: "Retracted for fabrication", Reason: "Fabrication", Source: "retraction_watch",
			RetractedAt: time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "Second, no DOI", Source: "retraction_watch"},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 2, 0}}

	if err := WriteSnapshot(dir, "test-model", works, vectors, builtAt); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	ix, err := Load(dir, "test-model")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if ix.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ix.Len())
	}
	if ix.Model() != "test-model" {
		t.Errorf("Model() = %q, want test-model", ix.Model())
	}
	if !ix.BuiltAt().Equal(builtAt) {
		t.Errorf("BuiltAt() = %v, want %v", ix.BuiltAt(), builtAt)
	}

	w, ok := ix.LookupIdentifier("10.1234/one")
	if !ok {
		t.Fatal("expected DOI lookup hit after round trip")
	}
	if w.Title != "First" || w.Reason != "Fabrication" || w.Year != 2019 {
		t.Errorf("record fields lost in round trip: %+v", w)
	}
	if !w.RetractedAt.Equal(works[0].RetractedAt) {
		t.Errorf("RetractedAt = %v, want %v", w.RetractedAt, works[0].RetractedAt)
	}

	// Stored vectors are normalized: a query along the second axis must
	// score 1.0 against record 2.
	nearest, score, ok := ix.Nearest([]float32{0, 5, 0})
	if !ok {
		t.Fatal("expected a nearest record")
	}
	if nearest.ID != 2 {
		t.Errorf("nearest = work %d, want 2", nearest.ID)
	}
	if score < 0.999999 {
		t.Errorf("score = %f, want ~1.0 (vectors must be stored normalized)", score)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	if _, err := Load(t.TempDir(), "test-model"); err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestLoadModelMismatch(t *testing.T) {
	dir := t.TempDir()
	works := []types.RetractedWork{{ID: 1, Title: "Only", Source: "retraction_watch"}}
	if err := WriteSnapshot(dir, "model-a", works, [][]float32{{1}}, time.Now()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	_, err := Load(dir, "model-b")
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("Load error = %v, want ErrModelMismatch", err)
	}
}

func TestLoadRequiresExpectedModel(t *testing.T) {
	dir := t.TempDir()
	works := []types.RetractedWork{{ID: 1, Title: "Only", Source: "retraction_watch"}}
	if err := WriteSnapshot(dir, "model-a", works, [][]float32{{1}}, time.Now()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	// An empty expected model would skip the mismatch check entirely, so
	// the snapshot could be queried with vectors from a different space.
	if _, err := Load(dir, ""); err == nil {
		t.Fatal("Load without an expected model must fail")
	}
}

func TestWriteSnapshotRejectsMismatchedVectors(t *testing.T) {
	works := []types.RetractedWork{{ID: 1, Title: "Only", Source: "x"}}
	if err := WriteSnapshot(t.TempDir(), "m", works, nil, time.Now()); err == nil {
		t.Fatal("expected error for record/vector count mismatch")
	}
}

func TestWriteSnapshotReplacesPrevious(t *testing.T) {
	dir := t.TempDir()

	first := []types.RetractedWork{{ID: 1, DOI: "10.1234/old", Title: "Old", Source: "x"}}
	if err := WriteSnapshot(dir, "m", first, [][]float32{{1}}, time.Now()); err != nil {
		t.Fatalf("first WriteSnapshot: %v", err)
	}

	second := []types.RetractedWork{{ID: 1, DOI: "10.1234/new", Title: "New", Source: "x"}}
	if err := WriteSnapshot(dir, "m", second, [][]float32{{1}}, time.Now()); err != nil {
		t.Fatalf("second WriteSnapshot: %v", err)
	}

	ix, err := Load(dir, "m")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := ix.LookupIdentifier("10.1234/old"); ok {
		t.Error("old catalog record survived snapshot replacement")
	}
	if _, ok := ix.LookupIdentifier("10.1234/new"); !ok {
		t.Error("new catalog record missing after replacement")
	}
}
