package models

import (
	"errors"
	"testing"
)

func TestSession_AlternatingHistory(t *testing.T) {
	s := NewSession("s1", DefaultGenerationParams())

	questions := []string{"What is an index fund?", "Should I buy bonds?", "How much should I save?"}
	for i, q := range questions {
		turn, ok := s.Submit(q)
		if !ok {
			t.Fatalf("submit %d rejected", i)
		}
		if got := s.MessageCount(); got != 2*i+1 {
			t.Fatalf("after submit %d expected %d messages, got %d", i, 2*i+1, got)
		}
		if s.Pending() != q {
			t.Fatalf("expected pending %q, got %q", q, s.Pending())
		}
		if err := s.Reply(turn, "answer"); err != nil {
			t.Fatalf("reply %d failed: %v", i, err)
		}
		if got := s.MessageCount(); got != 2*i+2 {
			t.Fatalf("after reply %d expected %d messages, got %d", i, 2*i+2, got)
		}
	}

	for i, m := range s.Messages() {
		if m.IsUser != (i%2 == 0) {
			t.Errorf("message %d has IsUser=%v, history must alternate", i, m.IsUser)
		}
	}
}

func TestSession_IgnoresBlankAndDoubleSubmit(t *testing.T) {
	s := NewSession("s1", DefaultGenerationParams())

	if _, ok := s.Submit("   \n\t"); ok {
		t.Error("blank input should be ignored")
	}
	if _, ok := s.Submit("first"); !ok {
		t.Fatal("first submit rejected")
	}
	if _, ok := s.Submit("second"); ok {
		t.Error("submit while a reply is pending should be ignored")
	}
	if s.MessageCount() != 1 {
		t.Errorf("expected 1 message, got %d", s.MessageCount())
	}
}

func TestSession_ReplyWithoutPending(t *testing.T) {
	s := NewSession("s1", DefaultGenerationParams())

	if err := s.Reply(1, "orphan"); !errors.Is(err, ErrNoPendingInput) {
		t.Fatalf("expected ErrNoPendingInput, got %v", err)
	}
	if s.MessageCount() != 0 {
		t.Error("orphan reply must not be stored")
	}
}

func TestSession_Clear(t *testing.T) {
	s := NewSession("s1", DefaultGenerationParams())
	t1, _ := s.Submit("q1")
	s.Reply(t1, "a1")
	t2, _ := s.Submit("q2")

	s.Clear()

	if s.MessageCount() != 0 {
		t.Errorf("expected empty history, got %d", s.MessageCount())
	}
	if s.Pending() != "" {
		t.Error("clear should drop the pending input")
	}
	if err := s.Reply(t2, "late"); !errors.Is(err, ErrNoPendingInput) {
		t.Errorf("late reply after clear should be rejected, got %v", err)
	}
}

func TestSession_StaleReplyAfterClearAndResubmit(t *testing.T) {
	s := NewSession("s1", DefaultGenerationParams())

	gold, _ := s.Submit("q1: should I buy gold?")
	s.Clear()
	bonds, ok := s.Submit("q2: what about bonds?")
	if !ok {
		t.Fatal("submit after clear rejected")
	}
	if gold == bonds {
		t.Fatalf("turn ids must differ across a clear, both are %d", gold)
	}

	if err := s.Reply(gold, "answer about gold"); !errors.Is(err, ErrNoPendingInput) {
		t.Fatalf("reply to the cleared turn should be rejected, got %v", err)
	}
	if s.Pending() != "q2: what about bonds?" || s.MessageCount() != 1 {
		t.Fatalf("stale reply changed the session: pending=%q count=%d", s.Pending(), s.MessageCount())
	}

	if err := s.Reply(bonds, "answer about bonds"); err != nil {
		t.Fatalf("reply to the current turn failed: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[1].Content != "answer about bonds" {
		t.Errorf("unexpected history: %+v", msgs)
	}
}

func TestSession_MessagesIsACopy(t *testing.T) {
	s := NewSession("s1", DefaultGenerationParams())
	s.Submit("q1")

	msgs := s.Messages()
	msgs[0].Content = "changed"

	if s.Messages()[0].Content != "q1" {
		t.Error("mutating the snapshot changed the session")
	}
}

func TestGenerationParams_Clamp(t *testing.T) {
	tests := []struct {
		name string
		in   GenerationParams
		want GenerationParams
	}{
		{"defaults", DefaultGenerationParams(), GenerationParams{0.1, 512}},
		{"too hot", GenerationParams{1.7, 300}, GenerationParams{1.0, 300}},
		{"negative", GenerationParams{-0.5, 300}, GenerationParams{0, 300}},
		{"snap temperature", GenerationParams{0.34, 300}, GenerationParams{0.3, 300}},
		{"too few tokens", GenerationParams{0.1, 10}, GenerationParams{0.1, 100}},
		{"too many tokens", GenerationParams{0.1, 5000}, GenerationParams{0.1, 1000}},
		{"snap tokens", GenerationParams{0.1, 630}, GenerationParams{0.1, 650}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clamp()
			if got.MaxTokens != tt.want.MaxTokens {
				t.Errorf("max tokens = %d, want %d", got.MaxTokens, tt.want.MaxTokens)
			}
			if d := got.Temperature - tt.want.Temperature; d > 1e-6 || d < -1e-6 {
				t.Errorf("temperature = %f, want %f", got.Temperature, tt.want.Temperature)
			}
		})
	}
}
