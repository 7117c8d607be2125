package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/blavejr/finadvisor/models"

	"github.com/tmc/langchaingo/textsplitter"
)

// columns every advisory record must carry
var requiredColumns = []string{"age", "gender", "Avenue", "Purpose", "Duration"}

// BuildDocuments renders each record as a prompt/response pair.
func BuildDocuments(records []models.Record) ([]string, error) {
	docs := make([]string, 0, len(records))
	for i, record := range records {
		values := make(map[string]string, len(requiredColumns))
		for _, column := range requiredColumns {
			v, ok := record.Get(column)
			if !ok {
				return nil, fmt.Errorf("record %d is missing column %q", i, column)
			}
			values[column] = v
		}

		recommendation, _ := record.Get("recommendation")
		if recommendation == "" {
			recommendation = "No recommendation"
		}

		docs = append(docs, fmt.Sprintf(
			"Prompt: I'm a %s-year-old %s looking to invest in %s for %s over the next %s.\nResponse: %s",
			values["age"], values["gender"], values["Avenue"], values["Purpose"], values["Duration"], recommendation,
		))
	}
	return docs, nil
}

// Chunker splits documents into overlapping windows, preferring paragraph,
// line and word boundaries.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
	splitter     textsplitter.RecursiveCharacter
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}
}

func (c *Chunker) ChunkText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	chunks, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	return chunks, nil
}

// ChunkDocuments splits every document. The returned positions map each
// chunk back to the index of the document it came from.
func (c *Chunker) ChunkDocuments(docs []string) ([]string, []int, error) {
	log.Printf("Starting chunking of %d documents (chunk size: %d, overlap: %d)", len(docs), c.ChunkSize, c.ChunkOverlap)
	startTime := time.Now()

	var chunks []string
	var positions []int
	for i, doc := range docs {
		parts, err := c.ChunkText(doc)
		if err != nil {
			return nil, nil, fmt.Errorf("document %d: %w", i, err)
		}
		for _, part := range parts {
			chunks = append(chunks, part)
			positions = append(positions, i)
		}
	}

	metrics := CalculateMetrics(chunks, strings.Join(docs, "\n\n"))
	log.Printf("Created %d chunks in %v (avg: %.0f, min: %d, max: %d chars)",
		metrics.TotalChunks, time.Since(startTime), metrics.AvgChunkSize, metrics.MinChunkSize, metrics.MaxChunkSize)
	return chunks, positions, nil
}

// ChunkMetrics returns statistics about chunking
type ChunkMetrics struct {
	TotalChunks  int
	AvgChunkSize float64
	MinChunkSize int
	MaxChunkSize int
	OriginalSize int
}

// CalculateMetrics calculates metrics for a set of chunks
func CalculateMetrics(chunks []string, originalText string) ChunkMetrics {
	if len(chunks) == 0 {
		return ChunkMetrics{
			OriginalSize: len(originalText),
		}
	}

	totalSize := 0
	minSize := len(chunks[0])
	maxSize := len(chunks[0])

	for _, chunk := range chunks {
		size := len(chunk)
		totalSize += size

		if size < minSize {
			minSize = size
		}
		if size > maxSize {
			maxSize = size
		}
	}

	return ChunkMetrics{
		TotalChunks:  len(chunks),
		AvgChunkSize: float64(totalSize) / float64(len(chunks)),
		MinChunkSize: minSize,
		MaxChunkSize: maxSize,
		OriginalSize: len(originalText),
	}
}
