package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retrieval_searches_total",
		Help: "Total number of nearest-neighbor searches against the corpus index",
	})
	chunksReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "retrieval_chunks_returned",
		Help:    "Number of chunks returned per search",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	})
)

// ScoredChunk is a chunk annotated with its similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float64
}

// EmbeddedChunk pairs a chunk with its vector, the unit stored in the index
// and the cache.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"vector"`
}

// Index is the in-memory nearest-neighbor store over the document corpus.
// Add is only called during startup; afterwards the index is read-only and
// safe for concurrent searches.
type Index struct {
	mu       sync.RWMutex
	entries  []EmbeddedChunk
	embedder Embedder
}

// NewIndex creates an empty index that embeds queries with the given embedder.
func NewIndex(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Add inserts embedded chunks into the index.
func (ix *Index) Add(chunks []EmbeddedChunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = append(ix.entries, chunks...)
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search embeds the query and returns the k most similar chunks by cosine
// similarity, best first. An empty index returns no chunks, not an error.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	searchesTotal.Inc()

	if ix.Len() == 0 || k <= 0 {
		chunksReturned.Observe(0)
		return nil, nil
	}

	// Embedding is a network call; the lock only guards entries.
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := vectors[0]

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scored := make([]ScoredChunk, 0, len(ix.entries))
	for i := range ix.entries {
		entry := &ix.entries[i]
		score, err := cosineSimilarity(queryVec, entry.Vector)
		if err != nil {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: entry.Chunk, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	chunksReturned.Observe(float64(len(scored)))
	return scored, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
