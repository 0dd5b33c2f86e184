package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gsaaad/ag1-researchagent/config"
	"github.com/gsaaad/ag1-researchagent/llm"
	"github.com/gsaaad/ag1-researchagent/session"
	"github.com/gsaaad/ag1-researchagent/tools"
)

// echoTool records its invocations and echoes the "text" argument.
type echoTool struct {
	calls []map[string]interface{}
	err   error
}

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "echoes input" }
func (e *echoTool) Schema() tools.Schema {
	return tools.Schema{
		Required:   []string{"text"},
		Properties: map[string]tools.Property{"text": {Type: "string", Description: "text to echo"}},
	}
}

func (e *echoTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	e.calls = append(e.calls, args)
	if e.err != nil {
		return "", e.err
	}
	return fmt.Sprintf("echo: %v", args["text"]), nil
}

func newTestAgent(t *testing.T, mock *llm.MockLLMClient, tool tools.Tool) *Agent {
	t.Helper()
	t.Chdir(t.TempDir())
	sess, err := session.New("agent-test")
	if err != nil {
		t.Fatal(err)
	}
	return &Agent{
		Config:         &config.Config{MaxIterations: 5, MessageWindow: 40},
		Session:        sess,
		LLMClient:      mock,
		AvailableTools: []tools.Tool{tool},
		Mode:           ModeAuto,
		Verbosity:      ToolVerbosityInfo,
	}
}

func TestProcessUserInputDirectAnswer(t *testing.T) {
	mock := &llm.MockLLMClient{Responses: []*session.Message{
		{Role: "assistant", Content: "Paris is the capital of France."},
	}}
	a := newTestAgent(t, mock, &echoTool{})

	var got []string
	err := a.ProcessUserInput(context.Background(), "capital of France?", ProcessCallbacks{
		OnAssistantMessage: func(msg string) { got = append(got, msg) },
	})
	if err != nil {
		t.Fatalf("ProcessUserInput failed: %v", err)
	}

	if len(got) != 1 || !strings.Contains(got[0], "Paris") {
		t.Errorf("assistant messages = %v", got)
	}
	if mock.Calls != 1 {
		t.Errorf("LLM called %d times, want 1", mock.Calls)
	}
	if n := len(a.Session.Messages); n != 2 {
		t.Errorf("session has %d messages, want user+assistant", n)
	}
}

func TestProcessUserInputToolLoop(t *testing.T) {
	mock := &llm.MockLLMClient{Responses: []*session.Message{
		{Role: "assistant", ToolCalls: []session.ToolCall{{
			ToolCallID: "call_1",
			Name:       "echo",
			Args:       map[string]interface{}{"text": "ping"},
		}}},
		{Role: "assistant", Content: "the tool said ping"},
	}}
	tool := &echoTool{}
	a := newTestAgent(t, mock, tool)

	var toolResults []string
	err := a.ProcessUserInput(context.Background(), "use the tool", ProcessCallbacks{
		OnToolResult: func(tc session.ToolCall, result string) { toolResults = append(toolResults, result) },
	})
	if err != nil {
		t.Fatalf("ProcessUserInput failed: %v", err)
	}

	if len(tool.calls) != 1 || tool.calls[0]["text"] != "ping" {
		t.Fatalf("tool not executed with the model's args: %v", tool.calls)
	}
	if len(toolResults) != 1 || toolResults[0] != "echo: ping" {
		t.Errorf("tool results = %v", toolResults)
	}

	// History: user, assistant(tool call), tool, assistant(answer).
	msgs := a.Session.Messages
	if len(msgs) != 4 {
		t.Fatalf("session has %d messages, want 4", len(msgs))
	}
	toolMsg := msgs[2]
	if toolMsg.Role != "tool" || toolMsg.Content != "echo: ping" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	if len(toolMsg.ToolCalls) != 1 || toolMsg.ToolCalls[0].ToolCallID != "call_1" {
		t.Errorf("tool message missing call ID: %+v", toolMsg)
	}
}

func TestProcessUserInputToolError(t *testing.T) {
	mock := &llm.MockLLMClient{Responses: []*session.Message{
		{Role: "assistant", ToolCalls: []session.ToolCall{{
			ToolCallID: "call_1",
			Name:       "echo",
			Args:       map[string]interface{}{"text": "x"},
		}}},
		{Role: "assistant", Content: "that failed"},
	}}
	tool := &echoTool{err: fmt.Errorf("boom")}
	a := newTestAgent(t, mock, tool)

	var result string
	err := a.ProcessUserInput(context.Background(), "go", ProcessCallbacks{
		OnToolResult: func(tc session.ToolCall, r string) { result = r },
	})
	if err != nil {
		t.Fatalf("tool errors must not abort the turn: %v", err)
	}
	if !strings.Contains(result, "boom") {
		t.Errorf("error not reported to the model: %q", result)
	}
}

func TestProcessUserInputUnknownTool(t *testing.T) {
	mock := &llm.MockLLMClient{Responses: []*session.Message{
		{Role: "assistant", ToolCalls: []session.ToolCall{{
			ToolCallID: "call_1",
			Name:       "nonexistent",
		}}},
		{Role: "assistant", Content: "ok"},
	}}
	a := newTestAgent(t, mock, &echoTool{})

	var result string
	err := a.ProcessUserInput(context.Background(), "go", ProcessCallbacks{
		OnToolResult: func(tc session.ToolCall, r string) { result = r },
	})
	if err != nil {
		t.Fatalf("ProcessUserInput failed: %v", err)
	}
	if !strings.Contains(result, "not available") {
		t.Errorf("result = %q", result)
	}
}

func TestProcessUserInputPromptModeDecline(t *testing.T) {
	mock := &llm.MockLLMClient{Responses: []*session.Message{
		{Role: "assistant", ToolCalls: []session.ToolCall{{
			ToolCallID: "call_1",
			Name:       "echo",
			Args:       map[string]interface{}{"text": "secret"},
		}}},
		{Role: "assistant", Content: "understood"},
	}}
	tool := &echoTool{}
	a := newTestAgent(t, mock, tool)
	a.Mode = ModePrompt

	var result string
	err := a.ProcessUserInput(context.Background(), "go", ProcessCallbacks{
		ShouldExecuteTool: func(tc session.ToolCall) bool { return false },
		OnToolResult:      func(tc session.ToolCall, r string) { result = r },
	})
	if err != nil {
		t.Fatalf("ProcessUserInput failed: %v", err)
	}
	if len(tool.calls) != 0 {
		t.Error("declined tool must not execute")
	}
	if !strings.Contains(result, "declined") {
		t.Errorf("result = %q", result)
	}
}

func TestProcessUserInputIterationCap(t *testing.T) {
	// Every response requests another tool call; the loop must stop at
	// MaxIterations and warn instead of spinning.
	var script []*session.Message
	for i := 0; i < 10; i++ {
		script = append(script, &session.Message{
			Role: "assistant",
			ToolCalls: []session.ToolCall{{
				ToolCallID: fmt.Sprintf("call_%d", i),
				Name:       "echo",
				Args:       map[string]interface{}{"text": "again"},
			}},
		})
	}
	mock := &llm.MockLLMClient{Responses: script}
	a := newTestAgent(t, mock, &echoTool{})
	a.Config.MaxIterations = 3

	var warning, finalMsg string
	err := a.ProcessUserInput(context.Background(), "loop forever", ProcessCallbacks{
		OnWarning:          func(w string) { warning = w },
		OnAssistantMessage: func(m string) { finalMsg = m },
	})
	if err != nil {
		t.Fatalf("ProcessUserInput failed: %v", err)
	}
	if mock.Calls != 3 {
		t.Errorf("LLM called %d times, want 3", mock.Calls)
	}
	if !strings.Contains(warning, "3 tool rounds") {
		t.Errorf("warning = %q", warning)
	}
	if !strings.Contains(finalMsg, "3 tool rounds") {
		t.Errorf("no final assistant message: %q", finalMsg)
	}
	last := a.Session.Messages[len(a.Session.Messages)-1]
	if last.Role != "assistant" || !strings.Contains(last.Content, "tool rounds") {
		t.Errorf("session should end with the stop notice: %+v", last)
	}
}

func TestThinkingCallbacks(t *testing.T) {
	mock := &llm.MockLLMClient{Responses: []*session.Message{
		{Role: "assistant", Content: "done"},
	}}
	a := newTestAgent(t, mock, &echoTool{})

	var started, finished int
	err := a.ProcessUserInput(context.Background(), "hi", ProcessCallbacks{
		OnThinking:     func() { started++ },
		OnThinkingDone: func() { finished++ },
	})
	if err != nil {
		t.Fatalf("ProcessUserInput failed: %v", err)
	}
	if started != 1 || finished != 1 {
		t.Errorf("thinking callbacks: started=%d finished=%d", started, finished)
	}
}

// failThenSucceedClient fails with a retryable error a fixed number of
// times before answering.
type failThenSucceedClient struct {
	failures int
	calls    int
}

func (c *failThenSucceedClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, fmt.Errorf("API error: Overloaded")
	}
	return &session.Message{Role: "assistant", Content: "recovered"}, nil
}

func TestChatRetriesTransientFailures(t *testing.T) {
	client := &failThenSucceedClient{failures: 2}
	a := newTestAgent(t, &llm.MockLLMClient{}, &echoTool{})
	a.LLMClient = client

	var got string
	err := a.ProcessUserInput(context.Background(), "hi", ProcessCallbacks{
		OnAssistantMessage: func(msg string) { got = msg },
	})
	if err != nil {
		t.Fatalf("ProcessUserInput failed: %v", err)
	}
	if got != "recovered" {
		t.Errorf("assistant message = %q", got)
	}
	if client.calls != 3 {
		t.Errorf("LLM called %d times, want 3", client.calls)
	}
}

func TestChatDoesNotRetryFatalErrors(t *testing.T) {
	fatal := &fatalClient{}
	a := newTestAgent(t, &llm.MockLLMClient{}, &echoTool{})
	a.LLMClient = fatal

	err := a.ProcessUserInput(context.Background(), "hi", ProcessCallbacks{})
	if err == nil {
		t.Fatal("expected error")
	}
	if fatal.calls != 1 {
		t.Errorf("fatal error retried: %d calls", fatal.calls)
	}
}

type fatalClient struct{ calls int }

func (c *fatalClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error) {
	c.calls++
	return nil, fmt.Errorf("invalid api key")
}
