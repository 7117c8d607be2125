package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSystemPrompt opens every conversation sent to the HF chat model.
const DefaultSystemPrompt = "You are an expert financial advisor. Answer clearly and professionally. Reply only in the language of the question."

// HFChatModel is a chat adapter over the Hugging Face Inference
// text-generation endpoint for zephyr-style instruction models.
type HFChatModel struct {
	BaseURL      string
	Repo         string
	Token        string
	SystemPrompt string
	Temperature  float32
	MaxNewTokens int
	Client       *http.Client
}

func NewHFChatModel(baseURL, repo, token string, temperature float32) *HFChatModel {
	return &HFChatModel{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Repo:         repo,
		Token:        token,
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  temperature,
		MaxNewTokens: 512,
		Client: &http.Client{
			Timeout: 120 * time.Second, // longer timeout for generation
		},
	}
}

// FormatMessages renders messages with zephyr role markers. The first message
// is wrapped with the system prompt, every later one only appends its content.
func FormatMessages(system string, messages []string) string {
	var sb strings.Builder
	for i, content := range messages {
		if i == 0 {
			fmt.Fprintf(&sb, "<|system|>\n%s\n<|user|>\n%s\n<|assistant|>\n", system, content)
			continue
		}
		fmt.Fprintf(&sb, "%s\n<|assistant|>\n", content)
	}
	return sb.String()
}

type hfGenerateParameters struct {
	Temperature    float32 `json:"temperature"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfGenerateRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters hfGenerateParameters `json:"parameters"`
}

type hfGenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate formats messages and returns the model's continuation.
// maxNewTokens <= 0 uses the model default.
func (m *HFChatModel) Generate(ctx context.Context, messages []string, maxNewTokens int) (string, error) {
	if maxNewTokens <= 0 {
		maxNewTokens = m.MaxNewTokens
	}

	reqBody := hfGenerateRequest{
		Inputs: FormatMessages(m.SystemPrompt, messages),
		Parameters: hfGenerateParameters{
			Temperature:    m.Temperature,
			MaxNewTokens:   maxNewTokens,
			DoSample:       true,
			ReturnFullText: false,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s", m.BaseURL, m.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.Token)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Hugging Face API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("hugging face API error (status %d): %s", resp.StatusCode, string(body))
	}

	var genResp []hfGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(genResp) == 0 {
		return "", fmt.Errorf("received empty response from Hugging Face")
	}

	return strings.TrimSpace(genResp[0].GeneratedText), nil
}
