package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/blavejr/finadvisor/models"
)

// DefaultAdvisorTemplate is the question-answering prompt of the advisor chain.
const DefaultAdvisorTemplate = `You are an expert financial advisor. Use the following historical advice records to answer the question.
If the records do not help, answer from general financial knowledge and say so.

Records:
{context}

Question: {question}

Answer:`

// ContextRetriever returns the chunks relevant to a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Generator produces a chat model continuation.
type Generator interface {
	Generate(ctx context.Context, messages []string, maxNewTokens int) (string, error)
}

// AdvisorChain answers a question by stuffing every retrieved chunk into one prompt.
type AdvisorChain struct {
	retriever ContextRetriever
	llm       Generator
	template  string
}

func NewAdvisorChain(llm Generator, retriever ContextRetriever, template string) (*AdvisorChain, error) {
	if !strings.Contains(template, "{context}") || !strings.Contains(template, "{question}") {
		return nil, fmt.Errorf("advisor template must contain {context} and {question}")
	}
	return &AdvisorChain{
		retriever: retriever,
		llm:       llm,
		template:  template,
	}, nil
}

// AdvisorAnswer is the chain output: the answer plus the chunks it was built from.
type AdvisorAnswer struct {
	Answer  string
	Sources []models.SearchResult
}

func (c *AdvisorChain) BuildPrompt(question string, sources []models.SearchResult) string {
	texts := make([]string, len(sources))
	for i, src := range sources {
		texts[i] = src.Chunk.Text
	}
	return strings.NewReplacer(
		"{context}", strings.Join(texts, "\n\n"),
		"{question}", question,
	).Replace(c.template)
}

func (c *AdvisorChain) Ask(ctx context.Context, question string) (*AdvisorAnswer, error) {
	sources, err := c.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	answer, err := c.llm.Generate(ctx, []string{c.BuildPrompt(question, sources)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &AdvisorAnswer{Answer: answer, Sources: sources}, nil
}

// ToSourceChunks flattens search results for API responses.
func ToSourceChunks(results []models.SearchResult) []models.SourceChunk {
	out := make([]models.SourceChunk, len(results))
	for i, r := range results {
		out[i] = models.SourceChunk{
			ChunkID:     r.Chunk.ID,
			RecordIndex: r.Chunk.RecordIndex,
			Text:        r.Chunk.Text,
			Score:       r.Score,
		}
	}
	return out
}
