package services

import (
	"context"
	"fmt"

	"github.com/blavejr/finadvisor/models"
	"github.com/blavejr/finadvisor/storage"
)

// Retriever finds the most relevant chunks for a query
// 1. Converting the query to an embedding (vector)
// 2. Finding chunks with similar embeddings using cosine similarity
// 3. Returning the top-K most similar chunks
type Retriever struct {
	store    storage.VectorStore
	embedder *Embedder
	topK     int
}

func NewRetriever(store storage.VectorStore, embedder *Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
	}
}

// Retrieve returns the top-k chunks for query, most similar first.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.SearchResult, error) {
	queryEmbedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := r.store.Search(ctx, queryEmbedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return results, nil
}
