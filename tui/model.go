package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blavejr/finadvisor/models"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Responder is the TUI-facing subset of the chat service.
type Responder interface {
	Respond(ctx context.Context, question string, params models.GenerationParams) string
}

// replyMsg carries a finished model answer back into Update.
type replyMsg struct {
	turn    uint64
	content string
}

// Model is the Bubble Tea model for the terminal chat.
type Model struct {
	ctx      context.Context
	chat     Responder
	session  *models.Session
	input    textinput.Model
	viewport viewport.Model
	status   string
	ready    bool
}

// New creates a terminal chat bound to session.
func New(ctx context.Context, chat Responder, session *models.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a financial question (/clear, /temp 0.3, /tokens 400)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		chat:     chat,
		session:  session,
		input:    ti,
		viewport: vp,
		status:   "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 3 + ih + ch // header, params, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-1)
		m.refresh()
		return m, nil
	case replyMsg:
		if err := m.session.Reply(msg.turn, msg.content); err != nil {
			m.status = "Reply dropped: history was cleared."
		} else {
			m.status = "Ready."
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if strings.HasPrefix(text, "/") {
				m.runCommand(text)
				m.refresh()
				return m, nil
			}
			turn, ok := m.session.Submit(text)
			if !ok {
				if m.session.Pending() != "" {
					m.status = "Still waiting for the advisor..."
				}
				return m, nil
			}
			m.status = "🤔 The advisor is thinking..."
			m.refresh()
			return m, m.ask(turn, text, m.session.Params())
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(turn uint64, question string, params models.GenerationParams) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{turn: turn, content: m.chat.Respond(m.ctx, question, params)}
	}
}

func (m *Model) runCommand(text string) {
	fields := strings.Fields(text)
	params := m.session.Params()

	switch fields[0] {
	case "/clear":
		m.session.Clear()
		m.status = "History cleared."
	case "/temp":
		if len(fields) < 2 {
			m.status = "Usage: /temp <0.0-1.0>"
			return
		}
		v, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			m.status = "Invalid temperature: " + fields[1]
			return
		}
		params.Temperature = float32(v)
		m.session.SetParams(params)
		m.status = fmt.Sprintf("Temperature set to %.1f", m.session.Params().Temperature)
	case "/tokens":
		if len(fields) < 2 {
			m.status = "Usage: /tokens <100-1000>"
			return
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			m.status = "Invalid token count: " + fields[1]
			return
		}
		params.MaxTokens = v
		m.session.SetParams(params)
		m.status = fmt.Sprintf("Max tokens set to %d", m.session.Params().MaxTokens)
	default:
		m.status = "Unknown command: " + fields[0]
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	messages := m.session.Messages()
	if len(messages) == 0 {
		return "No messages yet."
	}

	width := max(20, m.viewport.Width-2)
	var sb strings.Builder
	for _, msg := range messages {
		if msg.IsUser {
			sb.WriteString(userStyle.Render("👤 You:"))
		} else {
			sb.WriteString(advisorStyle.Render("🤖 Advisor:"))
		}
		sb.WriteString("\n")
		sb.WriteString(lipgloss.NewStyle().Width(width).Render(msg.Content))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	p := m.session.Params()
	header := lipgloss.NewStyle().Bold(true).Render("🤖 Financial Advisor Chatbot")
	params := mutedStyle.Render(fmt.Sprintf("temperature %.1f · max tokens %d · messages %d", p.Temperature, p.MaxTokens, m.session.MessageCount()))
	history := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + params + "\n" + history + "\n" + input + "\n" + status
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	advisorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
