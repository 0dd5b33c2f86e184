package tui

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/gsaaad/ag1-researchagent/agent"
	"github.com/gsaaad/ag1-researchagent/session"
)

type chatEntry struct {
	role    string // "user" or "assistant"
	content string
	time    time.Time
}

type activityEntry struct {
	kind string // "call", "result", "warning", "info"
	text string
	time time.Time
}

// Messages for tea updates. Agent callbacks run on a worker goroutine and
// deliver these through the event channel.
type (
	assistantMsg  string
	toolCallMsg   session.ToolCall
	toolResultMsg struct {
		call   session.ToolCall
		result string
	}
	warningMsg  string
	thinkingMsg bool
	turnDoneMsg struct{ err error }
)

const activityLimit = 200

// Model is the bubbletea model for the two-panel interface.
type Model struct {
	textinput textinput.Model
	viewport  viewport.Model
	activity  viewport.Model
	spinner   spinner.Model
	styles    Styles
	renderer  *glamour.TermRenderer

	agent  *agent.Agent
	ctx    context.Context
	events chan tea.Msg

	history      []chatEntry
	activityLog  []activityEntry
	showActivity bool
	isLoading    bool
	err          error
	width        int
	height       int
	ready        bool
}

// New creates the interface model around a configured agent.
func New(ctx context.Context, a *agent.Agent) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask a research question... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Spinner
	ti.TextStyle = styles.UserText

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	av := viewport.New(30, 20)

	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	m := Model{
		textinput:    ti,
		viewport:     vp,
		activity:     av,
		spinner:      sp,
		styles:       styles,
		renderer:     renderer,
		agent:        a,
		ctx:          ctx,
		events:       make(chan tea.Msg, 64),
		showActivity: true,
	}
	m.seedHistory()
	return m
}

// seedHistory replays the loaded session into the conversation pane so a
// resumed session shows its past turns.
func (m *Model) seedHistory() {
	for _, msg := range m.agent.Session.Messages {
		switch msg.Role {
		case "user":
			m.history = append(m.history, chatEntry{role: "user", content: msg.Content})
		case "assistant":
			if msg.Content != "" {
				m.history = append(m.history, chatEntry{role: "assistant", content: msg.Content})
			}
		}
	}
}

// Run starts the interface and blocks until the user exits.
func Run(ctx context.Context, a *agent.Agent) error {
	p := tea.NewProgram(New(ctx, a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// waitForEvent bridges the agent's worker goroutine into the tea loop.
func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForEvent(m.events),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		avCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlL:
			m.showActivity = !m.showActivity
			m.layout()
			return m, nil

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(m.chatWidth()-4),
			)
		}
		m.viewport.SetContent(m.renderHistory())
		m.activity.SetContent(m.renderActivity())

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case assistantMsg:
		m.history = append(m.history, chatEntry{role: "assistant", content: string(msg), time: time.Now()})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, waitForEvent(m.events)

	case toolCallMsg:
		m.addActivity("call", formatToolCall(session.ToolCall(msg), m.agent.Verbosity))
		return m, waitForEvent(m.events)

	case toolResultMsg:
		m.addActivity("result", formatToolResult(msg.call, msg.result, m.agent.Verbosity))
		return m, waitForEvent(m.events)

	case warningMsg:
		m.addActivity("warning", string(msg))
		return m, waitForEvent(m.events)

	case thinkingMsg:
		if bool(msg) {
			m.addActivity("info", "thinking...")
		}
		return m, waitForEvent(m.events)

	case turnDoneMsg:
		m.isLoading = false
		m.err = msg.err
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, waitForEvent(m.events)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	m.activity, avCmd = m.activity.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, avCmd, spCmd)
}

func (m *Model) addActivity(kind, text string) {
	m.activityLog = append(m.activityLog, activityEntry{kind: kind, text: text, time: time.Now()})
	if len(m.activityLog) > activityLimit {
		m.activityLog = m.activityLog[len(m.activityLog)-activityLimit:]
	}
	m.activity.SetContent(m.renderActivity())
	m.activity.GotoBottom()
}

// layout recomputes the pane dimensions after a resize or toggle.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	headerHeight := 2
	footerHeight := 2
	inputHeight := 3
	bodyHeight := m.height - headerHeight - footerHeight - inputHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	m.viewport.Width = m.chatWidth()
	m.viewport.Height = bodyHeight
	m.activity.Width = m.activityWidth()
	m.activity.Height = bodyHeight
	m.textinput.Width = m.width - 6
}

func (m Model) chatWidth() int {
	if m.showActivity {
		return m.width - m.activityWidth() - 2
	}
	return m.width - 2
}

func (m Model) activityWidth() int {
	if !m.showActivity {
		return 0
	}
	w := m.width / 3
	if w < 24 {
		w = 24
	}
	return w
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, chatEntry{role: "user", content: input, time: time.Now()})
	m.textinput.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.isLoading = true
	m.err = nil

	return m, tea.Batch(
		m.spinner.Tick,
		m.processInput(input),
	)
}

// processInput runs the agent turn on a worker goroutine, streaming
// events back through the channel.
func (m Model) processInput(input string) tea.Cmd {
	a := m.agent
	ctx := m.ctx
	events := m.events
	return func() tea.Msg {
		go func() {
			callbacks := agent.ProcessCallbacks{
				OnAssistantMessage: func(message string) {
					events <- assistantMsg(message)
				},
				OnToolCall: func(toolCall session.ToolCall) {
					events <- toolCallMsg(toolCall)
				},
				OnToolResult: func(toolCall session.ToolCall, result string) {
					events <- toolResultMsg{call: toolCall, result: result}
				},
				OnWarning: func(warning string) {
					events <- warningMsg(warning)
				},
				OnThinking: func() {
					events <- thinkingMsg(true)
				},
			}
			err := a.ProcessUserInput(ctx, input, callbacks)
			events <- turnDoneMsg{err: err}
		}()
		return nil
	}
}

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)

	switch parts[0] {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.history = nil
		m.activityLog = nil
		m.agent.Session.Clear()
		if err := m.agent.Session.Save(); err != nil {
			m.err = err
		}
		m.viewport.SetContent("")
		m.activity.SetContent("")
		m.textinput.Reset()
		return m, nil

	case "/help":
		help := `## Commands

| Command | Description |
|---------|-------------|
| /help | Show this help message |
| /clear | Clear the conversation and start fresh |
| /quit, /exit, /q | Exit |

## Keys

| Key | Description |
|-----|-------------|
| Enter | Send message |
| Ctrl+L | Toggle the activity pane |
| Ctrl+C, Esc | Exit |
`
		m.history = append(m.history, chatEntry{role: "assistant", content: help, time: time.Now()})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	default:
		m.history = append(m.history, chatEntry{
			role:    "assistant",
			content: fmt.Sprintf("Unknown command `%s`. Try `/help`.", parts[0]),
			time:    time.Now(),
		})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	}
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.history {
		if msg.role == "user" {
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			sb.WriteString(m.styles.UserText.Render(msg.content))
			sb.WriteString("\n\n")
		} else {
			sb.WriteString(m.styles.AssistantLabel.Render("Assistant") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m Model) renderActivity() string {
	var sb strings.Builder
	sb.WriteString(m.styles.ActivityTitle.Render("Agent activity") + "\n\n")
	for _, e := range m.activityLog {
		stamp := m.styles.Muted.Render(e.time.Format("15:04:05"))
		var line string
		switch e.kind {
		case "call":
			line = m.styles.ToolCall.Render(e.text)
		case "result":
			line = m.styles.ToolResult.Render(e.text)
		case "warning":
			line = m.styles.Warning.Render(e.text)
		default:
			line = m.styles.Muted.Render(e.text)
		}
		sb.WriteString(stamp + " " + line + "\n")
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	chatView := m.viewport.View()
	if m.isLoading {
		chatView += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " Working..."
	}
	if m.err != nil {
		chatView += "\n" + m.styles.Error.Render("Error: "+m.err.Error())
	}

	body := chatView
	if m.showActivity {
		body = lipgloss.JoinHorizontal(
			lipgloss.Top,
			chatView,
			m.styles.ActivityPane.Render(m.activity.View()),
		)
	}

	inputArea := m.styles.InputBox.Render(m.textinput.View())
	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		body,
		inputArea,
		footer,
	)
}

func (m Model) renderHeader() string {
	title := m.styles.AssistantLabel.Render("Research Assistant")
	sess := m.styles.Muted.Render("session: " + m.agent.Session.Name)

	var status string
	if m.isLoading {
		status = m.styles.Warning.Render("● working")
	} else {
		status = m.styles.Spinner.Render("● ready")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", sess, "  ", status)
}

func (m Model) renderFooter() string {
	pane := "activity on"
	if !m.showActivity {
		pane = "activity off"
	}
	return m.styles.Footer.Render(
		fmt.Sprintf("%s • Enter: send • Ctrl+L: toggle activity • /help: commands • Ctrl+C: exit", pane),
	)
}

func formatToolCall(tc session.ToolCall, verbosity agent.ToolVerbosity) string {
	if verbosity == agent.ToolVerbosityAll {
		return fmt.Sprintf("→ %s %v", tc.Name, tc.Args)
	}
	return fmt.Sprintf("→ %s", tc.Name)
}

func formatToolResult(tc session.ToolCall, result string, verbosity agent.ToolVerbosity) string {
	if verbosity != agent.ToolVerbosityAll {
		return fmt.Sprintf("← %s done", tc.Name)
	}
	const max = 200
	summary := strings.ReplaceAll(result, "\n", " ")
	if len(summary) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}
	return fmt.Sprintf("← %s: %s", tc.Name, summary)
}
