package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gsaaad/ag1-researchagent/config"
	"github.com/gsaaad/ag1-researchagent/errors"
	"github.com/gsaaad/ag1-researchagent/llm"
	"github.com/gsaaad/ag1-researchagent/session"
	"github.com/gsaaad/ag1-researchagent/tools"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModePrompt Mode = "prompt"
)

type ToolVerbosity string

const (
	ToolVerbosityNone ToolVerbosity = "none"
	ToolVerbosityInfo ToolVerbosity = "info"
	ToolVerbosityAll  ToolVerbosity = "all"
)

// Retry tuning for transient provider failures.
const (
	maxRetries        = 5
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2
)

const systemPrompt = `You are a research assistant. You help the user investigate topics by
searching the web, consulting Wikipedia, reading and writing files, doing
arithmetic and keeping notes. Think step by step: gather information with
your tools, then synthesize a clear answer. Cite sources when you can.`

// ProcessCallbacks lets each interaction mode (terminal, TUI, ACP) decide
// how agent events are surfaced. Any callback may be nil.
type ProcessCallbacks struct {
	// OnAssistantMessage is invoked for each assistant text response,
	// including intermediate thoughts between tool calls.
	OnAssistantMessage func(message string)

	// OnToolCall is invoked before a tool executes.
	OnToolCall func(toolCall session.ToolCall)

	// OnToolResult is invoked after a tool executes, with its output or
	// the error text that was reported back to the model.
	OnToolResult func(toolCall session.ToolCall, result string)

	// ShouldExecuteTool gates tool execution in prompt mode. Returning
	// false records a refusal as the tool result.
	ShouldExecuteTool func(toolCall session.ToolCall) bool

	// OnWarning is invoked for non-fatal conditions, like a failed
	// session save or the iteration cap being hit.
	OnWarning func(warning string)

	// OnThinking and OnThinkingDone bracket each LLM round trip so
	// interactive frontends can show progress.
	OnThinking     func()
	OnThinkingDone func()
}

// Agent wires a session, an LLM client and a set of tools into the
// reason-act loop shared by every interaction mode.
type Agent struct {
	Config         *config.Config
	Session        *session.Session
	LLMClient      llm.LLMClient
	AvailableTools []tools.Tool
	Mode           Mode
	Verbosity      ToolVerbosity
}

// New creates an agent using the named toolset from the registry.
func New(cfg *config.Config, sess *session.Session, registry *tools.ToolRegistry, toolset string, mode Mode, client llm.LLMClient, verbosity ToolVerbosity) (*Agent, error) {
	ts, err := cfg.GetToolset(toolset)
	if err != nil {
		return nil, err
	}

	activeTools, err := registry.GetActiveTools(ts)
	if err != nil {
		return nil, err
	}

	if verbosity == "" {
		verbosity = ToolVerbosityInfo
	}

	return &Agent{
		Config:         cfg,
		Session:        sess,
		LLMClient:      client,
		AvailableTools: activeTools,
		Mode:           mode,
		Verbosity:      verbosity,
	}, nil
}

// ProcessUserInput runs the reason-act loop for one user turn: the model
// responds, requested tools are executed and their results fed back, and
// the loop continues until the model answers without tool calls or the
// iteration cap is reached.
func (a *Agent) ProcessUserInput(ctx context.Context, userInput string, callbacks ProcessCallbacks) error {
	a.Session.AddMessage(session.Message{Role: "user", Content: userInput})

	for iteration := 0; iteration < a.Config.MaxIterations; iteration++ {
		assistantResponse, err := a.chatWithRetry(ctx, callbacks)
		if err != nil {
			return errors.Wrapf(err, "LLM chat failed")
		}

		a.Session.AddMessage(*assistantResponse)

		if assistantResponse.Content != "" && callbacks.OnAssistantMessage != nil {
			callbacks.OnAssistantMessage(assistantResponse.Content)
		}

		if len(assistantResponse.ToolCalls) == 0 {
			a.saveSession(callbacks)
			return nil
		}

		for _, toolCall := range assistantResponse.ToolCalls {
			result := a.executeToolCall(ctx, toolCall, callbacks)
			a.Session.AddMessage(session.Message{
				Role:    "tool",
				Content: result,
				ToolCalls: []session.ToolCall{{
					ToolCallID: toolCall.ToolCallID,
					Name:       toolCall.Name,
				}},
			})
		}

		a.saveSession(callbacks)
	}

	// The model kept requesting tools past the cap; surface that instead
	// of looping forever.
	warning := fmt.Sprintf("Stopped after %d tool rounds without a final answer.", a.Config.MaxIterations)
	log.Warn("iteration cap reached", "max_iterations", a.Config.MaxIterations, "session", a.Session.Name)
	if callbacks.OnWarning != nil {
		callbacks.OnWarning(warning)
	}
	a.Session.AddMessage(session.Message{Role: "assistant", Content: warning})
	if callbacks.OnAssistantMessage != nil {
		callbacks.OnAssistantMessage(warning)
	}
	a.saveSession(callbacks)
	return nil
}

// chatWithRetry calls the LLM, retrying transient failures with
// exponential backoff.
func (a *Agent) chatWithRetry(ctx context.Context, callbacks ProcessCallbacks) (*session.Message, error) {
	if callbacks.OnThinking != nil {
		callbacks.OnThinking()
	}
	if callbacks.OnThinkingDone != nil {
		defer callbacks.OnThinkingDone()
	}

	window := a.Session.Window(a.Config.MessageWindow)
	messages := make([]session.Message, 0, len(window)+1)
	messages = append(messages, session.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, window...)

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn("retrying LLM request", "attempt", attempt, "backoff", backoff, "error", lastErr)
			if callbacks.OnWarning != nil {
				callbacks.OnWarning(fmt.Sprintf("provider busy, retrying in %s (attempt %d/%d)", backoff, attempt, maxRetries))
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= backoffMultiplier
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		resp, err := a.LLMClient.Chat(ctx, messages, a.AvailableTools)
		if err == nil {
			return resp, nil
		}
		if !llm.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "giving up after %d retries", maxRetries)
}

// executeToolCall runs a single tool call and returns the text that goes
// back to the model. Execution errors are reported as results rather than
// aborting the turn, so the model can recover.
func (a *Agent) executeToolCall(ctx context.Context, toolCall session.ToolCall, callbacks ProcessCallbacks) string {
	if callbacks.OnToolCall != nil {
		callbacks.OnToolCall(toolCall)
	}

	var tool tools.Tool
	for _, t := range a.AvailableTools {
		if t.Name() == toolCall.Name {
			tool = t
			break
		}
	}

	var result string
	switch {
	case tool == nil:
		result = fmt.Sprintf("Error: tool '%s' is not available", toolCall.Name)
	case a.Mode == ModePrompt && callbacks.ShouldExecuteTool != nil && !callbacks.ShouldExecuteTool(toolCall):
		result = fmt.Sprintf("Tool '%s' execution was declined by the user", toolCall.Name)
	default:
		output, err := tool.Execute(ctx, toolCall.Args)
		if err != nil {
			log.Error("tool execution failed", "tool", toolCall.Name, "error", err)
			result = fmt.Sprintf("Error executing tool '%s': %v", toolCall.Name, err)
		} else {
			result = output
		}
	}

	if callbacks.OnToolResult != nil {
		callbacks.OnToolResult(toolCall, result)
	}
	return result
}

func (a *Agent) saveSession(callbacks ProcessCallbacks) {
	if err := a.Session.Save(); err != nil {
		log.Warn("failed to save session", "session", a.Session.Name, "error", err)
		if callbacks.OnWarning != nil {
			callbacks.OnWarning(fmt.Sprintf("failed to save session: %v", err))
		}
	}
}
