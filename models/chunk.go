package models

import (
	"time"
)

type Chunk struct {
	ID          string        `bson:"_id" json:"id"`
	RecordIndex int           `bson:"record_index" json:"record_index"`
	ChunkIndex  int           `bson:"chunk_index" json:"chunk_index"`
	Text        string        `bson:"text" json:"text"`
	Embedding   []float32     `bson:"embedding" json:"-"`
	Metadata    ChunkMetadata `bson:"metadata" json:"metadata"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
}

type ChunkMetadata struct {
	Source         string `bson:"source" json:"source"`
	Collection     string `bson:"collection" json:"collection"`
	EmbeddingModel string `bson:"embedding_model" json:"embedding_model"`
	ChunkSize      int    `bson:"chunk_size" json:"chunk_size"`
}

type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

type SourceChunk struct {
	ChunkID     string  `json:"chunk_id"`
	RecordIndex int     `json:"record_index"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
}
