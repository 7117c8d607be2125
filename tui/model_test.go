package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/blavejr/finadvisor/models"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeResponder struct {
	reply  string
	params models.GenerationParams
}

func (f *fakeResponder) Respond(ctx context.Context, question string, params models.GenerationParams) string {
	f.params = params
	return f.reply
}

func newTestModel(reply string) (Model, *models.Session, *fakeResponder) {
	sess := models.NewSession("terminal", models.DefaultGenerationParams())
	chat := &fakeResponder{reply: reply}
	m := New(context.Background(), chat, sess)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), sess, chat
}

func typeAndEnter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_SubmitAndReply(t *testing.T) {
	m, sess, _ := newTestModel("Buy index funds.")

	m, cmd := typeAndEnter(t, m, "What should I buy?")
	if cmd == nil {
		t.Fatal("submitting should start a reply command")
	}
	if sess.MessageCount() != 1 || sess.Pending() == "" {
		t.Fatalf("user message should be pending, count=%d", sess.MessageCount())
	}

	next, _ := m.Update(cmd())
	m = next.(Model)

	if sess.MessageCount() != 2 || sess.Pending() != "" {
		t.Errorf("reply should be appended, count=%d", sess.MessageCount())
	}
	if !strings.Contains(m.View(), "Buy index funds.") {
		t.Error("view should show the reply")
	}
}

func TestModel_IgnoresBlankAndPendingInput(t *testing.T) {
	m, sess, _ := newTestModel("ok")

	m, cmd := typeAndEnter(t, m, "   ")
	if cmd != nil || sess.MessageCount() != 0 {
		t.Error("blank input should be ignored")
	}

	m, _ = typeAndEnter(t, m, "first")
	_, cmd = typeAndEnter(t, m, "second")
	if cmd != nil || sess.MessageCount() != 1 {
		t.Errorf("input while a reply is pending should be ignored, count=%d", sess.MessageCount())
	}
}

func TestModel_Commands(t *testing.T) {
	m, sess, chat := newTestModel("ok")

	m, _ = typeAndEnter(t, m, "/temp 0.74")
	if sess.Params().Temperature != 0.7 {
		t.Errorf("temperature should snap to 0.7, got %v", sess.Params().Temperature)
	}

	m, _ = typeAndEnter(t, m, "/tokens 5000")
	if sess.Params().MaxTokens != models.MaxMaxTokens {
		t.Errorf("tokens should clamp to %d, got %d", models.MaxMaxTokens, sess.Params().MaxTokens)
	}

	m, cmd := typeAndEnter(t, m, "hello")
	m.Update(cmd())
	if chat.params.Temperature != 0.7 || chat.params.MaxTokens != models.MaxMaxTokens {
		t.Errorf("params not forwarded: %+v", chat.params)
	}

	m, _ = typeAndEnter(t, m, "/clear")
	if sess.MessageCount() != 0 {
		t.Errorf("clear should empty history, got %d", sess.MessageCount())
	}

	m, _ = typeAndEnter(t, m, "/bogus")
	if !strings.Contains(m.status, "Unknown command") {
		t.Errorf("unexpected status: %q", m.status)
	}
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel("ok")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should produce a quit message")
	}
}

func TestModel_DropsReplyFromClearedTurn(t *testing.T) {
	m, sess, _ := newTestModel("answer")

	m, first := typeAndEnter(t, m, "should I buy gold?")
	m, _ = typeAndEnter(t, m, "/clear")
	m, second := typeAndEnter(t, m, "what about bonds?")
	if second == nil {
		t.Fatal("submit after clear should start a reply command")
	}

	next, _ := m.Update(first())
	m = next.(Model)
	if sess.Pending() != "what about bonds?" || sess.MessageCount() != 1 {
		t.Fatalf("stale reply answered the new question: pending=%q count=%d", sess.Pending(), sess.MessageCount())
	}
	if !strings.Contains(m.status, "Reply dropped") {
		t.Errorf("unexpected status: %q", m.status)
	}

	next, _ = m.Update(second())
	m = next.(Model)
	if sess.Pending() != "" || sess.MessageCount() != 2 {
		t.Errorf("current reply should be appended, count=%d", sess.MessageCount())
	}
}
