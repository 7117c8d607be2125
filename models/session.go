package models

import (
	"errors"
	"math"
	"strings"
	"sync"
	"time"
)

var ErrNoPendingInput = errors.New("no user input is waiting for a reply")

// slider bounds of the settings panel
const (
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
	DefaultTemperature = 0.1

	MinMaxTokens     = 100
	MaxMaxTokens     = 1000
	MaxTokensStep    = 50
	DefaultMaxTokens = 512
)

type Message struct {
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	CreatedAt time.Time `json:"created_at"`
}

type GenerationParams struct {
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func DefaultGenerationParams() GenerationParams {
	return GenerationParams{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// Clamp snaps the params onto the slider grid: temperature in 0.1 steps,
// max tokens in 50 steps. The default 512 is kept as is.
func (p GenerationParams) Clamp() GenerationParams {
	t := float64(p.Temperature)
	if math.IsNaN(t) || t < MinTemperature {
		t = MinTemperature
	}
	if t > MaxTemperature {
		t = MaxTemperature
	}
	t = math.Round(t*10) / 10

	n := p.MaxTokens
	if n < MinMaxTokens {
		n = MinMaxTokens
	}
	if n > MaxMaxTokens {
		n = MaxMaxTokens
	}
	if n != DefaultMaxTokens {
		n = MinMaxTokens + int(math.Round(float64(n-MinMaxTokens)/MaxTokensStep))*MaxTokensStep
	}

	return GenerationParams{Temperature: float32(t), MaxTokens: n}
}

// Session is the conversation state of one browser or terminal.
// Messages alternate user/assistant: Submit only succeeds when no reply is
// pending and Reply only succeeds for the turn that is pending.
type Session struct {
	ID string

	mu       sync.Mutex
	messages []Message
	pending  string
	turn     uint64
	params   GenerationParams
	lastSeen time.Time
}

func NewSession(id string, params GenerationParams) *Session {
	return &Session{
		ID:       id,
		params:   params.Clamp(),
		lastSeen: time.Now(),
	}
}

// Submit appends the user's text, marks it pending and returns its turn id.
// Blank input and input sent while a reply is still pending are ignored.
func (s *Session) Submit(text string) (uint64, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != "" {
		return 0, false
	}
	s.turn++
	s.messages = append(s.messages, Message{Content: text, IsUser: true, CreatedAt: time.Now()})
	s.pending = text
	s.lastSeen = time.Now()
	return s.turn, true
}

// Reply appends the assistant answer to the pending input of turn. A reply
// for any other turn, e.g. one submitted before a Clear, is rejected.
func (s *Session) Reply(turn uint64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == "" || turn != s.turn {
		return ErrNoPendingInput
	}
	s.messages = append(s.messages, Message{Content: content, IsUser: false, CreatedAt: time.Now()})
	s.pending = ""
	s.lastSeen = time.Now()
	return nil
}

// Clear drops the whole history, including a pending input. Turn ids keep
// counting so replies to cleared turns stay stale.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.pending = ""
	s.lastSeen = time.Now()
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Params() GenerationParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Session) SetParams(p GenerationParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p.Clamp()
}

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
