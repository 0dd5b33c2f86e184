package acp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gsaaad/ag1-researchagent/agent"
	"github.com/gsaaad/ag1-researchagent/config"
	"github.com/gsaaad/ag1-researchagent/llm"
	"github.com/gsaaad/ag1-researchagent/session"
)

func newTestAgent(t *testing.T, mock *llm.MockLLMClient) *agent.Agent {
	t.Helper()
	t.Chdir(t.TempDir())
	sess, err := session.New("acp-test")
	if err != nil {
		t.Fatal(err)
	}
	sess.Mode = "auto"
	sess.Toolset = "default"
	return &agent.Agent{
		Config:    &config.Config{MaxIterations: 5, MessageWindow: 40},
		Session:   sess,
		LLMClient: mock,
		Mode:      agent.ModeAuto,
		Verbosity: agent.ToolVerbosityInfo,
	}
}

// runServer feeds newline-delimited requests through Run and returns the
// decoded output messages in order.
func runServer(t *testing.T, a *agent.Agent, requests ...string) []map[string]any {
	t.Helper()
	in := bufio.NewReader(strings.NewReader(strings.Join(requests, "\n") + "\n"))
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)

	if err := Run(context.Background(), a, in, out, false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var msgs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad output line %q: %v", line, err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestInitialize(t *testing.T) {
	a := newTestAgent(t, &llm.MockLLMClient{})
	msgs := runServer(t, a, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":1}}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 response, got %d", len(msgs))
	}
	result, ok := msgs[0]["result"].(map[string]any)
	if !ok {
		t.Fatalf("no result in %v", msgs[0])
	}
	if result["protocolVersion"] != float64(1) {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	caps := result["agentCapabilities"].(map[string]any)
	if caps["loadSession"] != true {
		t.Errorf("loadSession = %v", caps["loadSession"])
	}
}

func TestSessionNew(t *testing.T) {
	a := newTestAgent(t, &llm.MockLLMClient{})
	msgs := runServer(t, a, `{"jsonrpc":"2.0","id":1,"method":"session/new","params":{"cwd":"."}}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 response, got %d", len(msgs))
	}
	result := msgs[0]["result"].(map[string]any)
	sid, _ := result["sessionId"].(string)
	if !strings.HasPrefix(sid, "sess_") {
		t.Errorf("sessionId = %q", sid)
	}
}

func TestPromptStreamsUpdates(t *testing.T) {
	mock := &llm.MockLLMClient{Responses: []*session.Message{
		{Role: "assistant", Content: "forty-two"},
	}}
	a := newTestAgent(t, mock)

	// The server only prompts sessions it knows about, and session/new
	// IDs are generated server-side. Persist a named session and bring it
	// in with session/load instead.
	sess, err := session.New("driver-session")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Save(); err != nil {
		t.Fatal(err)
	}

	msgs := runServer(t, a,
		`{"jsonrpc":"2.0","id":1,"method":"session/load","params":{"sessionId":"driver-session","cwd":"."}}`,
		`{"jsonrpc":"2.0","id":2,"method":"session/prompt","params":{"sessionId":"driver-session","prompt":[{"type":"text","text":"what is the answer?"}]}}`)

	var sawChunk bool
	var promptResp map[string]any
	for _, m := range msgs {
		if m["method"] == "session/update" {
			params := m["params"].(map[string]any)
			update := params["update"].(map[string]any)
			if update["sessionUpdate"] == "agent_message_chunk" {
				content := update["content"].(map[string]any)
				if content["text"] == "forty-two" {
					sawChunk = true
				}
			}
		}
		if m["id"] == float64(2) {
			promptResp = m
		}
	}
	if !sawChunk {
		t.Error("assistant text was not streamed as agent_message_chunk")
	}
	if promptResp == nil {
		t.Fatal("no response to session/prompt")
	}
	result := promptResp["result"].(map[string]any)
	if result["stopReason"] != "end_turn" {
		t.Errorf("stopReason = %v", result["stopReason"])
	}
}

func TestPromptIgnoresBlankInput(t *testing.T) {
	mock := &llm.MockLLMClient{}
	a := newTestAgent(t, mock)

	sess, err := session.New("blank-session")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Save(); err != nil {
		t.Fatal(err)
	}

	msgs := runServer(t, a,
		`{"jsonrpc":"2.0","id":1,"method":"session/load","params":{"sessionId":"blank-session","cwd":"."}}`,
		`{"jsonrpc":"2.0","id":2,"method":"session/prompt","params":{"sessionId":"blank-session","prompt":[]}}`,
		`{"jsonrpc":"2.0","id":3,"method":"session/prompt","params":{"sessionId":"blank-session","prompt":[{"type":"text","text":"   "}]}}`)

	if mock.Calls != 0 {
		t.Errorf("blank prompt reached the model: %d calls", mock.Calls)
	}
	for _, m := range msgs {
		id, ok := m["id"].(float64)
		if !ok || id == 1 {
			continue
		}
		result, ok := m["result"].(map[string]any)
		if !ok {
			t.Fatalf("prompt %v did not get a result: %v", id, m)
		}
		if result["stopReason"] != "end_turn" {
			t.Errorf("prompt %v stopReason = %v", id, result["stopReason"])
		}
	}
}

func TestReadMessageLongFrame(t *testing.T) {
	a := newTestAgent(t, &llm.MockLLMClient{})

	// A frame far larger than the reader buffer must arrive intact, not
	// split into a parse error plus a garbage second frame.
	req := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":%q}}`, strings.Repeat("x", 8192))
	in := bufio.NewReaderSize(strings.NewReader(req+"\n"), 16)
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)

	if err := Run(context.Background(), a, in, out, false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 response, got %d: %v", len(lines), lines)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if m["error"] != nil {
		t.Fatalf("long frame rejected: %v", m["error"])
	}
	result := m["result"].(map[string]any)
	if result["protocolVersion"] != float64(1) {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
}

func TestSessionLoadReplaysHistory(t *testing.T) {
	a := newTestAgent(t, &llm.MockLLMClient{})

	sess, err := session.New("replay-me")
	if err != nil {
		t.Fatal(err)
	}
	sess.AddMessage(session.Message{Role: "user", Content: "earlier question"})
	sess.AddMessage(session.Message{Role: "assistant", Content: "earlier answer"})
	if err := sess.Save(); err != nil {
		t.Fatal(err)
	}

	msgs := runServer(t, a, `{"jsonrpc":"2.0","id":1,"method":"session/load","params":{"sessionId":"replay-me","cwd":"."}}`)

	var chunks []string
	var final map[string]any
	for _, m := range msgs {
		if m["method"] == "session/update" {
			params := m["params"].(map[string]any)
			update := params["update"].(map[string]any)
			if content, ok := update["content"].(map[string]any); ok {
				chunks = append(chunks, content["text"].(string))
			}
		}
		if _, ok := m["id"]; ok {
			final = m
		}
	}
	if len(chunks) != 2 || chunks[0] != "earlier question" || chunks[1] != "earlier answer" {
		t.Errorf("replayed chunks = %v", chunks)
	}
	if final == nil || final["error"] != nil {
		t.Errorf("load response = %v", final)
	}
}

func TestUnknownMethod(t *testing.T) {
	a := newTestAgent(t, &llm.MockLLMClient{})
	msgs := runServer(t, a, `{"jsonrpc":"2.0","id":7,"method":"session/delete"}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 response, got %d", len(msgs))
	}
	errObj, ok := msgs[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error response, got %v", msgs[0])
	}
	if errObj["code"] != float64(-32601) {
		t.Errorf("error code = %v", errObj["code"])
	}
}

func TestPromptUnknownSession(t *testing.T) {
	a := newTestAgent(t, &llm.MockLLMClient{})
	msgs := runServer(t, a, `{"jsonrpc":"2.0","id":3,"method":"session/prompt","params":{"sessionId":"nope","prompt":[{"type":"text","text":"hi"}]}}`)

	errObj, ok := msgs[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error response, got %v", msgs[0])
	}
	if errObj["code"] != float64(-32602) {
		t.Errorf("error code = %v", errObj["code"])
	}
}

func TestExtractUserText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("file body"), 0644); err != nil {
		t.Fatal(err)
	}

	text := extractUserText([]contentBlock{
		{Type: "text", Text: "look at this"},
		{Type: "resource_link", Name: "notes.txt", URI: "file://" + path},
		{Type: "text", Text: "   "},
	})

	if !strings.Contains(text, "look at this") {
		t.Errorf("text block lost: %q", text)
	}
	if !strings.Contains(text, "file body") {
		t.Errorf("file contents not inlined: %q", text)
	}
	if !strings.Contains(text, "=== Resource: notes.txt ===") {
		t.Errorf("resource header missing: %q", text)
	}
}

func TestExtractUserTextExternalResource(t *testing.T) {
	text := extractUserText([]contentBlock{
		{Type: "resource_link", Name: "doc", URI: "https://example.com/doc"},
	})
	if !strings.Contains(text, "content not available") {
		t.Errorf("external resource handling: %q", text)
	}
}
