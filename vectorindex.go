package examgen

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrDimensionMismatch is returned when a vector added to or searched against
// the index does not match the index's fixed dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrIndexCorrupt is returned when a persisted index and its metadata list
// disagree in length. The pair is written atomically, so a mismatch means the
// artifact was damaged or tampered with.
var ErrIndexCorrupt = errors.New("vector index corrupt: vector count does not match metadata length")

// VectorIndex is a flat L2 nearest-neighbor index over chunk embeddings with
// per-vector metadata. Search is exhaustive and deterministic.
type VectorIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	meta    []ChunkMeta
}

// NewVectorIndex creates an empty index with the given fixed dimension.
func NewVectorIndex(dimension int) *VectorIndex {
	return &VectorIndex{dim: dimension}
}

// Dimension returns the fixed vector dimension of the index.
func (ix *VectorIndex) Dimension() int { return ix.dim }

// Len returns the number of stored vectors.
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Add appends vectors with their metadata. It rejects the whole batch if any
// vector's dimensionality does not match the index, or if the two slices
// differ in length.
func (ix *VectorIndex) Add(vectors [][]float32, metadata []ChunkMeta) error {
	if len(vectors) != len(metadata) {
		return fmt.Errorf("add: %d vectors but %d metadata entries", len(vectors), len(metadata))
	}
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("add vector %d: got dimension %d, index has %d: %w", i, len(v), ix.dim, ErrDimensionMismatch)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors = append(ix.vectors, vectors...)
	ix.meta = append(ix.meta, metadata...)
	return nil
}

// Search returns up to k nearest neighbors of query ordered by ascending L2
// distance. A positive chapterFilter restricts hits to that chapter: the scan
// requests k*3 candidates and discards non-matching metadata in distance
// order until k matches are collected, so it may return fewer than k.
func (ix *VectorIndex) Search(query []float32, k int, chapterFilter int) ([]SearchResult, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("search: got dimension %d, index has %d: %w", len(query), ix.dim, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	candidates := make([]SearchResult, len(ix.vectors))
	for i, v := range ix.vectors {
		candidates[i] = SearchResult{
			Meta:     ix.meta[i],
			Distance: l2Distance(query, v),
			Index:    i,
		}
	}
	// Stable order: ties broken by insertion index so identical queries
	// against identical contents always return identical results.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Index < candidates[j].Index
	})

	searchK := k
	if chapterFilter > 0 {
		searchK = k * 3
	}
	if searchK > len(candidates) {
		searchK = len(candidates)
	}

	results := make([]SearchResult, 0, k)
	for _, c := range candidates[:searchK] {
		if chapterFilter > 0 && c.Meta.ChapterID != chapterFilter {
			continue
		}
		results = append(results, c)
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

func l2Distance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

type indexSnapshot struct {
	Dimension int
	Vectors   [][]float32
	Metadata  []ChunkMeta
}

// Save persists the index structure and metadata list as one atomic pair:
// the snapshot is written to a temp file and renamed into place.
func (ix *VectorIndex) Save(path string) error {
	ix.mu.RLock()
	snap := indexSnapshot{
		Dimension: ix.dim,
		Vectors:   ix.vectors,
		Metadata:  ix.meta,
	}
	ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// LoadVectorIndex reads a persisted index. A snapshot whose vector count and
// metadata length disagree is a fatal inconsistency (ErrIndexCorrupt).
func LoadVectorIndex(path string) (*VectorIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	defer f.Close()

	var snap indexSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}
	if len(snap.Vectors) != len(snap.Metadata) {
		return nil, fmt.Errorf("%s: %d vectors, %d metadata entries: %w", path, len(snap.Vectors), len(snap.Metadata), ErrIndexCorrupt)
	}
	for i, v := range snap.Vectors {
		if len(v) != snap.Dimension {
			return nil, fmt.Errorf("%s: vector %d has dimension %d, expected %d: %w", path, i, len(v), snap.Dimension, ErrIndexCorrupt)
		}
	}
	return &VectorIndex{
		dim:     snap.Dimension,
		vectors: snap.Vectors,
		meta:    snap.Metadata,
	}, nil
}

// IndexStats summarizes the index contents.
type IndexStats struct {
	TotalVectors int `json:"total_vectors"`
	Dimension    int `json:"dimension"`
}

// Stats reports the index size and dimension.
func (ix *VectorIndex) Stats() IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return IndexStats{TotalVectors: len(ix.vectors), Dimension: ix.dim}
}
