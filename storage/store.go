package storage

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/blavejr/finadvisor/config"
	"github.com/blavejr/finadvisor/models"
)

// VectorStore persists chunk embeddings and answers nearest-neighbour queries.
type VectorStore interface {
	// Exists reports whether a previously built, non-empty index was found.
	Exists(ctx context.Context) (bool, error)
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	// ReplaceChunks swaps the whole index for chunks. On failure the old
	// chunks stay searchable.
	ReplaceChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, queryEmbedding []float32, limit int) ([]models.SearchResult, error)
	CountChunks(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the vector store selected by cfg.VectorStore.
func Open(cfg *config.Config) (VectorStore, error) {
	switch cfg.VectorStore {
	case "local", "":
		return NewLocalStore(cfg.PersistDir, cfg.Collection)
	case "mongo":
		return NewMongoStore(cfg)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore)
	}
}

// calculate cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank scores every chunk against the query and keeps the best limit results.
// Chunks whose embedding dimension differs from the query are skipped.
func rank(queryEmbedding []float32, chunks []models.Chunk, limit int) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) != len(queryEmbedding) {
			continue
		}
		results = append(results, models.SearchResult{
			Chunk: chunk,
			Score: cosineSimilarity(queryEmbedding, chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
