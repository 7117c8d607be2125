package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

const simpleEmbeddingDim = 128

// Embedder turns text into fixed-length vectors using one of three providers:
// "huggingface" (HF Inference feature extraction), "ollama" or "simple"
// (offline word hashing).
type Embedder struct {
	Provider string
	Model    string
	BaseURL  string
	Token    string
	Client   *http.Client

	ollama *api.Client
}

func NewEmbedder(provider, model, baseURL, token string) (*Embedder, error) {
	e := &Embedder{
		Provider: provider,
		Model:    model,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Token:    token,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	switch provider {
	case "huggingface", "simple":
	case "ollama":
		u, err := url.Parse(e.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
		}
		e.ollama = api.NewClient(u, e.Client)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
	return e, nil
}

// ModelName identifies the vectors in chunk metadata.
func (e *Embedder) ModelName() string {
	if e.Provider == "simple" {
		return "simple"
	}
	return e.Model
}

func (e *Embedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var (
		embeddings [][]float32
		err        error
	)
	switch e.Provider {
	case "simple":
		embeddings = make([][]float32, len(texts))
		for i, text := range texts {
			embeddings[i] = generateSimpleEmbedding(text)
		}
	case "ollama":
		embeddings, err = e.embedOllama(ctx, texts)
	default:
		embeddings, err = e.embedHuggingFace(ctx, texts)
	}
	if err != nil {
		return nil, err
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("received empty embedding for text %d", i)
		}
	}
	return embeddings, nil
}

type featureExtractionRequest struct {
	Inputs []string `json:"inputs"`
}

func (e *Embedder) embedHuggingFace(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(featureExtractionRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s/pipeline/feature-extraction", e.BaseURL, e.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.Token)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Hugging Face API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("hugging face API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embeddings [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return embeddings, nil
}

func (e *Embedder) embedOllama(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.ollama.Embed(ctx, &api.EmbedRequest{
		Model: e.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama API: %w", err)
	}
	return resp.Embeddings, nil
}

// generateSimpleEmbedding hashes word frequencies into a normalized vector
func generateSimpleEmbedding(text string) []float32 {
	words := strings.Fields(strings.ToLower(text))
	embedding := make([]float32, simpleEmbeddingDim)

	wordCounts := make(map[string]int)
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) > 0 {
			wordCounts[word]++
		}
	}

	for word, count := range wordCounts {
		hash := 0
		for _, char := range word {
			hash = hash*31 + int(char)
		}
		pos := (hash & 0x7FFFFFFF) % simpleEmbeddingDim
		embedding[pos] += float32(count) / float32(len(words))
	}

	var norm float64
	for _, val := range embedding {
		norm += float64(val) * float64(val)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range embedding {
			embedding[i] = float32(float64(embedding[i]) / norm)
		}
	}

	return embedding
}

// GenerateEmbeddingsBatch embeds texts in batches of batchSize, preserving order.
func (e *Embedder) GenerateEmbeddingsBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	log.Printf("Starting batch embedding generation for %d texts (provider: %s, model: %s)", len(texts), e.Provider, e.ModelName())
	startTime := time.Now()
	embeddings := make([][]float32, len(texts))
	if len(texts) == 0 {
		return embeddings, nil
	}

	// simple mode is pure computation, so fan out
	if e.Provider == "simple" {
		var wg sync.WaitGroup
		for i := range texts {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				embeddings[idx] = generateSimpleEmbedding(texts[idx])
			}(i)
		}
		wg.Wait()

		log.Printf("All %d embeddings generated in %v", len(texts), time.Since(startTime))
		return embeddings, nil
	}

	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embed(ctx, texts[start:end])
		if err != nil {
			log.Printf("Failed to generate embeddings for chunks %d-%d: %v", start, end-1, err)
			return nil, fmt.Errorf("failed to generate embeddings for chunks %d-%d: %w", start, end-1, err)
		}
		copy(embeddings[start:end], batch)
		log.Printf("Progress: %d/%d embeddings generated...", end, len(texts))
	}

	totalTime := time.Since(startTime)
	log.Printf("All %d embeddings generated successfully in %v", len(texts), totalTime)
	return embeddings, nil
}
