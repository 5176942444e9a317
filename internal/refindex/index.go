// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refindex holds the retracted-works catalog and its precomputed
// embedding vectors, answering exact-identifier and cosine-similarity
// queries. The catalog is loaded wholesale from a snapshot produced by the
// monthly refresh and is read-only for the lifetime of a checking run.
package refindex

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pdiddy/citewatch/pkg/types"
)

// Index answers identifier and similarity queries over one snapshot of the
// retracted-works catalog. It is safe for concurrent readers; nothing
// mutates it after Load returns.
type Index struct {
	works   []types.RetractedWork
	byDOI   map[string]*types.RetractedWork
	vectors map[int64][]float32 // work ID -> normalized embedding
	model   string
	builtAt time.Time
}

// LookupIdentifier returns the catalog record whose DOI matches the given
// identifier, after normalization. The second return is false on a miss.
func (ix *Index) LookupIdentifier(doi string) (*types.RetractedWork, bool) {
	normalized := NormalizeDOI(doi)
	if normalized == "" {
		return nil, false
	}
	w, ok := ix.byDOI[normalized]
	return w, ok
}

// Nearest returns the catalog record with the highest cosine similarity to
// the query vector, along with its score. Only the single top candidate is
// considered; on an exact score tie the record with the lower ID wins so
// results are deterministic. The third return is false when the catalog
// holds no comparable vectors.
func (ix *Index) Nearest(query []float32) (*types.RetractedWork, float64, bool) {
	q := normalize(query)

	var (
		bestID    int64 = -1
		bestScore       = math.Inf(-1)
	)
	for i := range ix.works {
		id := ix.works[i].ID
		vec, ok := ix.vectors[id]
		if !ok || len(vec) != len(q) {
			continue
		}
		score := dot(q, vec)
		if score > bestScore || (score == bestScore && id < bestID) {
			bestScore = score
			bestID = id
		}
	}

	if bestID < 0 {
		return nil, 0, false
	}
	for i := range ix.works {
		if ix.works[i].ID == bestID {
			return &ix.works[i], bestScore, true
		}
	}
	return nil, 0, false
}

// Len returns the number of catalog records.
func (ix *Index) Len() int { return len(ix.works) }

// Model returns the embedding model identifier the snapshot was built with.
func (ix *Index) Model() string { return ix.model }

// BuiltAt returns the snapshot build time.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// --- vector math ---

// normalize returns v scaled to unit length, so dot product equals cosine
// similarity. A zero vector normalizes to itself.
func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// --- BLOB serialization ---

func vectorToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToVector(b []byte, dims int) []float32 {
	v := make([]float32, dims)
	for i := 0; i < dims && i*4+4 <= len(b); i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
