package models

type ChatRequest struct {
	Message     string   `json:"message" binding:"required"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Reply        string           `json:"reply"`
	Messages     []Message        `json:"messages"`
	MessageCount int              `json:"message_count"`
	Params       GenerationParams `json:"params"`
}

type HistoryResponse struct {
	SessionID    string           `json:"session_id"`
	Messages     []Message        `json:"messages"`
	MessageCount int              `json:"message_count"`
	Pending      string           `json:"pending,omitempty"`
	Params       GenerationParams `json:"params"`
}

type AdviseRequest struct {
	Question string `json:"question" binding:"required"`
}

type AdviseResponse struct {
	Answer           string        `json:"answer"`
	Sources          []SourceChunk `json:"sources"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
}
