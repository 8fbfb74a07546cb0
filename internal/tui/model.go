package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"memo-rag/internal/config"
	"memo-rag/internal/helper"
	"memo-rag/internal/models"
	"memo-rag/internal/parser"
	"memo-rag/internal/rag"
	"memo-rag/internal/session"
)

const credentialWarning = "Please enter API key"

// Engine is the TUI facing subset of the RAG engine.
type Engine interface {
	Ingest(ctx context.Context, uploads []models.Upload) (int, error)
	Ask(ctx context.Context, sessionID, question string) (*rag.Answer, error)
	Files() []string
	Store() *session.Store
}

// ConnectFunc builds the engine once both keys are known.
type ConnectFunc func(creds config.Credentials) (Engine, error)

type screen int

const (
	credentialScreen screen = iota
	mainScreen
)

// fields of the main screen
const (
	sessionField = iota
	uploadField
	questionField
)

type ingestedMsg struct {
	chunks int
	files  []string
	err    error
}

type answeredMsg struct {
	answer *rag.Answer
	err    error
}

// Model is the Bubble Tea model for the memo tool. Only one interaction
// runs at a time.
type Model struct {
	connect   ConnectFunc
	engine    Engine
	timeout   time.Duration
	defaultID string

	screen   screen
	keys     []textinput.Model
	fields   []textinput.Model
	focus    int
	viewport viewport.Model

	answer  *rag.Answer
	warning string
	status  string
	busy    bool
	ready   bool
}

// New creates the model on the credential screen, prefilled with whatever
// keys came from the environment.
func New(cfg *config.Config, creds config.Credentials, connect ConnectFunc) Model {
	embKey := newInput("Embedding API key: ", "hf_...")
	embKey.EchoMode = textinput.EchoPassword
	embKey.SetValue(creds.EmbeddingKey)
	embKey.Focus()

	llmKey := newInput("LLM API key:       ", "gsk_...")
	llmKey.EchoMode = textinput.EchoPassword
	llmKey.SetValue(creds.LLMKey)

	sessionID := newInput("Session: ", cfg.Session.DefaultID)
	sessionID.SetValue(cfg.Session.DefaultID)
	upload := newInput("Upload:  ", "minutes.pdf other.pdf")
	question := newInput("Ask:     ", "What are the action items?")

	return Model{
		connect:   connect,
		timeout:   cfg.LLM.Timeout,
		defaultID: cfg.Session.DefaultID,
		screen:    credentialScreen,
		keys:      []textinput.Model{embKey, llmKey},
		fields:    []textinput.Model{sessionID, upload, question},
		viewport:  viewport.New(0, 0),
		warning:   credentialWarning,
	}
}

func newInput(prompt, placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = placeholder
	ti.CharLimit = 0
	return ti
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := outputBoxStyle.GetFrameSize()
		reserved := 2 + len(m.fields) + 1 + fh // header, status, inputs, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderOutput())
		return m, nil
	case ingestedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Indexed %d chunks from %s", msg.chunks, strings.Join(msg.files, ", "))
			m.fields[uploadField].Reset()
		}
		m.viewport.SetContent(m.renderOutput())
		return m, nil
	case answeredMsg:
		m.busy = false
		switch {
		case errors.Is(msg.err, rag.ErrNoDocuments):
			m.status = "Please upload PDF documents first"
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.answer = msg.answer
			m.status = "Answered"
			m.fields[questionField].Reset()
		}
		m.viewport.SetContent(m.renderOutput())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab", "shift+tab":
			step := 1
			if msg.String() == "shift+tab" {
				step = -1
			}
			return m, m.moveFocus(step)
		case "enter":
			if m.screen == credentialScreen {
				return m.submitCredentials()
			}
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	inputs := m.inputs()
	var cmd tea.Cmd
	inputs[m.focus], cmd = inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) inputs() []textinput.Model {
	if m.screen == credentialScreen {
		return m.keys
	}
	return m.fields
}

func (m *Model) moveFocus(step int) tea.Cmd {
	inputs := m.inputs()
	inputs[m.focus].Blur()
	m.focus = (m.focus + step + len(inputs)) % len(inputs)
	return inputs[m.focus].Focus()
}

// submitCredentials keeps the operator on the credential screen until both
// keys are present and the engine could be built.
func (m Model) submitCredentials() (tea.Model, tea.Cmd) {
	creds := config.Credentials{
		EmbeddingKey: strings.TrimSpace(m.keys[0].Value()),
		LLMKey:       strings.TrimSpace(m.keys[1].Value()),
	}
	if err := creds.Validate(); err != nil {
		m.warning = credentialWarning
		return m, nil
	}
	engine, err := m.connect(creds)
	if err != nil {
		log.Error().Err(err).Msg("Error creating engine")
		m.warning = "Error: " + err.Error()
		return m, nil
	}

	m.engine = engine
	m.warning = ""
	m.screen = mainScreen
	m.keys[m.focus].Blur()
	m.focus = uploadField
	m.status = "Upload PDF files to start"
	m.viewport.SetContent(m.renderOutput())
	return m, m.fields[m.focus].Focus()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "Busy, please wait"
		return m, nil
	}
	switch m.focus {
	case sessionField:
		m.status = "Session: " + m.sessionID()
		m.viewport.SetContent(m.renderOutput())
		return m, nil
	case uploadField:
		paths := strings.Fields(m.fields[uploadField].Value())
		if len(paths) == 0 {
			m.status = "Please upload PDF documents first"
			return m, nil
		}
		m.busy = true
		m.status = "Indexing..."
		return m, ingestCmd(m.engine, m.timeout, paths)
	default:
		question := strings.TrimSpace(m.fields[questionField].Value())
		if question == "" {
			return m, nil
		}
		m.busy = true
		m.status = "Thinking..."
		return m, askCmd(m.engine, m.timeout, m.sessionID(), question)
	}
}

func (m Model) sessionID() string {
	if id := strings.TrimSpace(m.fields[sessionField].Value()); id != "" {
		return id
	}
	return m.defaultID
}

func ingestCmd(engine Engine, timeout time.Duration, paths []string) tea.Cmd {
	return func() tea.Msg {
		uploads, err := parser.ReadUploads(paths)
		if err != nil {
			return ingestedMsg{err: err}
		}
		ctx, cancel := interactionContext(timeout)
		defer cancel()
		n, err := engine.Ingest(ctx, uploads)
		return ingestedMsg{chunks: n, files: engine.Files(), err: err}
	}
}

// interactionContext bounds one interaction, zero means no deadline.
func interactionContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

func askCmd(engine Engine, timeout time.Duration, sessionID, question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := interactionContext(timeout)
		defer cancel()
		answer, err := engine.Ask(ctx, sessionID, question)
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Error answering question")
		}
		return answeredMsg{answer: answer, err: err}
	}
}

func (m Model) View() string {
	header := headerStyle.Render("Meeting Memo Chat")
	if m.screen == credentialScreen {
		var b strings.Builder
		b.WriteString(header + "\n\n")
		for _, k := range m.keys {
			b.WriteString(inputBoxStyle.Render(k.View()) + "\n")
		}
		if m.warning != "" {
			b.WriteString(warningStyle.Render(m.warning) + "\n")
		}
		b.WriteString(hintStyle.Render("tab: switch  enter: continue  esc: quit"))
		return b.String()
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(header + "\n")
	for _, f := range m.fields {
		b.WriteString(f.View() + "\n")
	}
	b.WriteString(outputBoxStyle.Render(m.viewport.View()) + "\n")
	b.WriteString(statusStyle.Render(m.status))
	return b.String()
}

// renderOutput shows the latest answer, its memo check, the raw session
// store and the transcript of the active session.
func (m Model) renderOutput() string {
	var b strings.Builder
	id := m.sessionID()

	files := "none"
	if m.engine != nil && len(m.engine.Files()) > 0 {
		files = strings.Join(m.engine.Files(), ", ")
	}
	fmt.Fprintf(&b, "Session: %s   Documents: %s\n\n", id, files)

	if a := m.answer; a != nil {
		b.WriteString(titleStyle.Render("Answer") + "\n")
		b.WriteString(a.Content + "\n\n")

		b.WriteString(titleStyle.Render("Memo check") + "\n")
		if err := a.Memo.Validate(); err != nil {
			b.WriteString(warningStyle.Render(err.Error()) + "\n")
		} else {
			b.WriteString("all sections present\n")
		}
		for _, item := range a.Memo.ActionItems {
			fmt.Fprintf(&b, "- %s (owner: %s, deadline: %s)\n", item.Action, item.Owner, item.Deadline)
		}
		b.WriteString("\n")

		b.WriteString(titleStyle.Render("Sources") + "\n")
		if a.StandaloneQuery != a.Query {
			fmt.Fprintf(&b, "standalone question: %s\n", a.StandaloneQuery)
		}
		for i, s := range a.Sources {
			fmt.Fprintf(&b, "[%d] %s p.%d #%d  score=%.3f\n", i+1, s.Source, s.PageNumber, s.ChunkID, s.Similarity)
		}
		b.WriteString("\n")
	}

	if m.engine == nil {
		return b.String()
	}
	snapshot, err := m.engine.Store().Snapshot(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Error reading session store")
		return b.String()
	}
	b.WriteString(titleStyle.Render("Session store") + "\n")
	fmt.Fprintf(&b, "Sessions: %s\n", strings.Join(m.engine.Store().IDs(), ", "))
	b.WriteString(helper.PrettyJSON(snapshot) + "\n\n")
	b.WriteString(titleStyle.Render("Transcript") + "\n")
	for _, t := range snapshot[id] {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	outputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
