package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/blavejr/finadvisor/config"
	"github.com/blavejr/finadvisor/models"
	"github.com/blavejr/finadvisor/storage"

	"github.com/google/uuid"
)

// ErrResourcesUnavailable wraps every LoadResources failure.
var ErrResourcesUnavailable = errors.New("resources unavailable")

const embeddingBatchSize = 32

// Resources is the retrieval pipeline built at startup.
type Resources struct {
	cfg       *config.Config
	Store     storage.VectorStore
	Embedder  *Embedder
	Retriever *Retriever
	LLM       *HFChatModel
	Chain     *AdvisorChain

	reindexMu sync.Mutex
}

// LoadResources reads the CSV, opens the vector store and, when no index was
// found, builds and persists one. An existing index is reused as is.
// Failures wrap both ErrResourcesUnavailable and the underlying cause.
func LoadResources(ctx context.Context, cfg *config.Config) (*Resources, error) {
	res, err := loadResources(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourcesUnavailable, err)
	}
	return res, nil
}

func loadResources(ctx context.Context, cfg *config.Config) (*Resources, error) {
	log.Printf("Loading resources (csv: %s, store: %s)", cfg.RawCSV, cfg.VectorStore)
	startTime := time.Now()

	llm := NewHFChatModel(cfg.HFInferenceURL, cfg.HFChatRepo, cfg.HFToken, cfg.HFTemperature)

	docs, err := loadDocuments(cfg.RawCSV)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	exists, err := store.Exists(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to inspect vector store: %w", err)
	}
	if exists {
		log.Printf("Reusing existing index in %s", cfg.PersistDir)
	} else {
		if _, err := indexDocuments(ctx, cfg, store, embedder, docs); err != nil {
			store.Close()
			return nil, err
		}
	}

	retriever := NewRetriever(store, embedder, cfg.TopK)
	chain, err := NewAdvisorChain(llm, retriever, DefaultAdvisorTemplate)
	if err != nil {
		store.Close()
		return nil, err
	}

	log.Printf("Resources loaded in %v", time.Since(startTime))
	return &Resources{
		cfg:       cfg,
		Store:     store,
		Embedder:  embedder,
		Retriever: retriever,
		LLM:       llm,
		Chain:     chain,
	}, nil
}

func newEmbedderFromConfig(cfg *config.Config) (*Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "ollama":
		return NewEmbedder("ollama", cfg.EmbeddingModel, cfg.OllamaURL, "")
	default:
		return NewEmbedder(cfg.EmbeddingProvider, cfg.EmbeddingModel, cfg.HFInferenceURL, cfg.HFToken)
	}
}

func loadDocuments(path string) ([]string, error) {
	loader, err := NewFinancialDataLoader(path)
	if err != nil {
		return nil, err
	}
	records, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return BuildDocuments(records)
}

// indexDocuments chunks, embeds and stores docs, returning the chunk count.
func indexDocuments(ctx context.Context, cfg *config.Config, store storage.VectorStore, embedder *Embedder, docs []string) (int, error) {
	chunks, err := embedDocuments(ctx, cfg, embedder, docs)
	if err != nil {
		return 0, err
	}
	if err := store.InsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	return len(chunks), nil
}

// embedDocuments chunks and embeds docs without touching any store.
func embedDocuments(ctx context.Context, cfg *config.Config, embedder *Embedder, docs []string) ([]models.Chunk, error) {
	chunker := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	texts, positions, err := chunker.ChunkDocuments(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk documents: %w", err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no documents to index in %s", cfg.RawCSV)
	}

	embeddings, err := embedder.GenerateEmbeddingsBatch(ctx, texts, embeddingBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	now := time.Now()
	chunks := make([]models.Chunk, len(texts))
	chunkIndex := 0
	for i, text := range texts {
		if i > 0 && positions[i] != positions[i-1] {
			chunkIndex = 0
		}
		chunks[i] = models.Chunk{
			ID:          uuid.NewString(),
			RecordIndex: positions[i],
			ChunkIndex:  chunkIndex,
			Text:        text,
			Embedding:   embeddings[i],
			Metadata: models.ChunkMetadata{
				Source:         cfg.RawCSV,
				Collection:     cfg.Collection,
				EmbeddingModel: embedder.ModelName(),
				ChunkSize:      len(text),
			},
			CreatedAt: now,
		}
		chunkIndex++
	}
	return chunks, nil
}

// BuildIndex opens the configured store and indexes the CSV into it. With
// rebuild set, existing chunks are replaced; otherwise an existing index
// is left alone and 0 is returned.
func BuildIndex(ctx context.Context, cfg *config.Config, rebuild bool) (int, error) {
	embedder, err := newEmbedderFromConfig(cfg)
	if err != nil {
		return 0, err
	}
	store, err := storage.Open(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	r := &Resources{cfg: cfg, Store: store, Embedder: embedder}
	if rebuild {
		return r.Reindex(ctx)
	}

	count, err := store.CountChunks(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Printf("Index already holds %d chunks, use --rebuild to replace it", count)
		return 0, nil
	}
	docs, err := loadDocuments(cfg.RawCSV)
	if err != nil {
		return 0, err
	}
	return indexDocuments(ctx, cfg, store, embedder, docs)
}

// Reindex replaces the stored chunks with a fresh index of the CSV. The old
// index stays in place until the new one is fully embedded and stored.
func (r *Resources) Reindex(ctx context.Context) (int, error) {
	r.reindexMu.Lock()
	defer r.reindexMu.Unlock()

	docs, err := loadDocuments(r.cfg.RawCSV)
	if err != nil {
		return 0, err
	}
	chunks, err := embedDocuments(ctx, r.cfg, r.Embedder, docs)
	if err != nil {
		return 0, err
	}
	if err := r.Store.ReplaceChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	log.Printf("Reindexed %d chunks from %s", len(chunks), r.cfg.RawCSV)
	return len(chunks), nil
}

func (r *Resources) Close() error {
	return r.Store.Close()
}
