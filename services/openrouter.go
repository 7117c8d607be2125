package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterClient talks to the OpenAI-compatible OpenRouter chat completions API.
type OpenRouterClient struct {
	Model  string
	client *openai.Client
}

func NewOpenRouterClient(baseURL, apiKey, model string) *OpenRouterClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &OpenRouterClient{
		Model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Ask sends prompt as a single user message. A non-200 answer from the API
// comes back as the text "OpenRouter API error: {status} - {body}" with a nil
// error; transport failures and empty answers are errors.
func (c *OpenRouterClient) Ask(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return fmt.Sprintf("OpenRouter API error: %d - %s", apiErr.HTTPStatusCode, apiErr.Message), nil
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			body := string(reqErr.Body)
			if body == "" && reqErr.Err != nil {
				body = reqErr.Err.Error()
			}
			return fmt.Sprintf("OpenRouter API error: %d - %s", reqErr.HTTPStatusCode, body), nil
		}
		return "", fmt.Errorf("failed to call OpenRouter API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenRouter returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
