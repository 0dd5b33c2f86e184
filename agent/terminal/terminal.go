// Package terminal implements the plain CLI interaction mode: a simple
// read-eval-print loop on stdin/stdout with markdown rendering when the
// output is a terminal. It is the fallback for environments where the
// full-screen TUI is unwanted, like pipes and CI logs.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/gsaaad/ag1-researchagent/agent"
	"github.com/gsaaad/ag1-researchagent/session"
	"golang.org/x/term"
)

// Terminal handles the plain terminal interaction mode for the agent.
type Terminal struct {
	agent    *agent.Agent
	renderer *glamour.TermRenderer
}

// New creates a new Terminal instance. Markdown rendering is enabled only
// when stdout is an interactive terminal.
func New(a *agent.Agent) *Terminal {
	t := &Terminal{agent: a}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		width, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || width <= 0 {
			width = 80
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			t.renderer = renderer
		}
	}
	return t
}

// Run starts the interactive terminal session.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		if err := t.processTurn(ctx, initialPrompt); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			// EOF or read error ends the session
			break
		}

		userInput := strings.TrimSpace(scanner.Text())
		if userInput == "" {
			continue
		}

		switch userInput {
		case "/quit", "/exit":
			return scanner.Err()
		case "/clear":
			t.agent.Session.Clear()
			if err := t.agent.Session.Save(); err != nil {
				fmt.Printf("Warning: failed to save session: %v\n", err)
			}
			fmt.Println("Conversation cleared.")
			continue
		}

		if err := t.processTurn(ctx, userInput); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	return scanner.Err()
}

// processTurn handles a single user input turn.
func (t *Terminal) processTurn(ctx context.Context, userInput string) error {
	callbacks := agent.ProcessCallbacks{
		OnAssistantMessage: func(message string) {
			fmt.Printf("Assistant: %s\n", t.render(message))
		},
		OnToolCall: func(toolCall session.ToolCall) {
			if t.agent.Verbosity == agent.ToolVerbosityAll {
				fmt.Printf("Calling tool `%s` with args: %v\n", toolCall.Name, toolCall.Args)
			} else if t.agent.Verbosity == agent.ToolVerbosityInfo {
				fmt.Printf("Calling tool `%s`\n", toolCall.Name)
			}
		},
		OnToolResult: func(toolCall session.ToolCall, result string) {
			if t.agent.Verbosity == agent.ToolVerbosityAll {
				fmt.Printf("Tool `%s` output: %s\n", toolCall.Name, result)
			}
		},
		ShouldExecuteTool: func(toolCall session.ToolCall) bool {
			if t.agent.Mode == agent.ModePrompt {
				fmt.Printf("Allow tool `%s`? (y/n): ", toolCall.Name)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				return strings.TrimSpace(strings.ToLower(answer)) == "y"
			}
			return true
		},
		OnWarning: func(warning string) {
			fmt.Printf("Warning: %s\n", warning)
		},
	}

	return t.agent.ProcessUserInput(ctx, userInput, callbacks)
}

// render returns the message formatted as markdown when a renderer is
// available, falling back to the raw text.
func (t *Terminal) render(message string) string {
	if t.renderer == nil {
		return message
	}
	out, err := t.renderer.Render(message)
	if err != nil {
		return message
	}
	return strings.TrimSpace(out)
}
