package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/blavejr/finadvisor/models"
)

// Asker sends a single prompt to a hosted chat model.
type Asker interface {
	Ask(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// ChatService answers live chat turns. It does not consult the vector store.
type ChatService struct {
	asker Asker
}

func NewChatService(asker Asker) *ChatService {
	return &ChatService{asker: asker}
}

// BuildAdvisorPrompt wraps the user's question in the advisor instructions.
func BuildAdvisorPrompt(question string) string {
	return fmt.Sprintf(`You are an expert financial advisor. Answer the following question in a clear,
professional and helpful way. Give practical advice and detailed explanations.
Answer only within the context of the question asked and in the language of the question.

Question: %s

Answer:`, question)
}

// Respond always yields assistant text: failures are rendered as an error reply.
func (s *ChatService) Respond(ctx context.Context, question string, params models.GenerationParams) string {
	startTime := time.Now()
	answer, err := s.asker.Ask(ctx, BuildAdvisorPrompt(question), params.MaxTokens, params.Temperature)
	if err != nil {
		log.Printf("Chat generation failed: %v", err)
		return fmt.Sprintf("❌ Error while generating the response: %v", err)
	}
	log.Printf("Chat reply generated in %v", time.Since(startTime))
	return answer
}

// HandleTurn submits text to sess and, when accepted, appends the reply.
// It reports false when the input was ignored.
func (s *ChatService) HandleTurn(ctx context.Context, sess *models.Session, text string) (string, bool) {
	turn, ok := sess.Submit(text)
	if !ok {
		return "", false
	}

	reply := s.Respond(ctx, text, sess.Params())
	if err := sess.Reply(turn, reply); err != nil {
		// history was cleared while the reply was in flight
		log.Printf("Dropping reply for session %s: %v", sess.ID, err)
	}
	return reply, true
}
