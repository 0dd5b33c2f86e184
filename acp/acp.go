// Package acp implements an Agent Client Protocol server over stdio so
// editors and IDEs can drive the research assistant. It speaks a minimal
// subset of ACP as newline-delimited JSON-RPC 2.0:
//
//   - initialize
//   - session/new
//   - session/load
//   - session/prompt
//
// During a prompt, progress is streamed to the client as session/update
// notifications carrying agent_message_chunk, tool_call and tool_result
// updates. Stdout carries only JSON-RPC messages; diagnostics go to an
// optional trace file.
package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gsaaad/ag1-researchagent/agent"
	"github.com/gsaaad/ag1-researchagent/errors"
	"github.com/gsaaad/ag1-researchagent/session"
)

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// server holds the state of one ACP server instance.
type server struct {
	ctx          context.Context
	agent        *agent.Agent
	sessions     map[string]*session.Session
	sessionsLock sync.Mutex
	sessionIDSeq int64

	in        *bufio.Reader
	out       *bufio.Writer
	writeLock sync.Mutex
	trace     func(string)
}

// Run starts the ACP server over the given streams and blocks until the
// client closes stdin. When traceEnabled is set, protocol traffic is
// appended to acp.trace in the working directory.
func Run(ctx context.Context, a *agent.Agent, in *bufio.Reader, out *bufio.Writer, traceEnabled bool) error {
	trace := func(string) {}
	if traceEnabled {
		traceFile, err := os.OpenFile("acp.trace", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			defer traceFile.Close()
			trace = func(msg string) {
				fmt.Fprintf(traceFile, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
			}
		}
	}

	s := &server{
		ctx:      ctx,
		agent:    a,
		sessions: make(map[string]*session.Session),
		in:       in,
		out:      out,
		trace:    trace,
	}

	for {
		payload, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "ACP read error")
		}
		if len(payload) == 0 {
			continue
		}
		s.trace("recv: " + string(payload))

		var req jsonrpcRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			_ = s.writeResponseError(nil, -32700, "Parse error", nil)
			continue
		}

		switch req.Method {
		case "initialize":
			s.handleInitialize(&req)
		case "session/new":
			s.handleSessionNew(&req)
		case "session/load":
			s.handleSessionLoad(&req)
		case "session/prompt":
			s.handleSessionPrompt(&req)
		default:
			_ = s.writeResponseError(req.ID, -32601, "Method not found", nil)
		}
	}
}

// readMessage reads one newline-delimited JSON-RPC payload. Frames may
// exceed the reader's buffer, so partial lines are reassembled.
func (s *server) readMessage() ([]byte, error) {
	var payload []byte
	for {
		chunk, isPrefix, err := s.in.ReadLine()
		if err != nil {
			return nil, err
		}
		payload = append(payload, chunk...)
		if !isPrefix {
			return payload, nil
		}
	}
}

// writeJSON serializes and writes a newline-delimited JSON-RPC message.
func (s *server) writeJSON(obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize JSON-RPC message")
	}
	s.trace("send: " + string(data))

	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if _, err := s.out.Write(data); err != nil {
		return err
	}
	if _, err := s.out.WriteString("\n"); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *server) writeResponseOK(id any, result json.RawMessage) error {
	return s.writeJSON(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *server) writeResponseError(id any, code int, msg string, data any) error {
	return s.writeJSON(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &jsonrpcError{
			Code:    code,
			Message: msg,
			Data:    data,
		},
	})
}

// writeNotification sends a JSON-RPC notification (a request without an ID).
func (s *server) writeNotification(method string, params any) error {
	return s.writeJSON(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

// decodeParams round-trips req.Params through JSON into the target struct.
func decodeParams(params any, target any) error {
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

// handleInitialize reports the protocol version and agent capabilities.
func (s *server) handleInitialize(req *jsonrpcRequest) {
	resp := map[string]any{
		"protocolVersion": 1,
		"agentCapabilities": map[string]any{
			"loadSession": true,
			"promptCapabilities": map[string]bool{
				"audio":           false,
				"embeddedContext": false,
				"image":           false,
			},
		},
		"authMethods": []any{},
	}
	respBytes, err := json.Marshal(resp)
	if err != nil {
		s.trace(fmt.Sprintf("handleInitialize: marshal error: %v", err))
		return
	}
	_ = s.writeResponseOK(req.ID, respBytes)
}

// handleSessionNew creates a new session and returns its ID.
func (s *server) handleSessionNew(req *jsonrpcRequest) {
	sid := s.nextSessionID()

	sess, err := session.New(sid)
	if err != nil {
		_ = s.writeResponseError(req.ID, -32603, "Internal error", fmt.Sprintf("failed to create session: %v", err))
		return
	}

	// Carry the agent's configuration into the new session.
	sess.Mode = s.agent.Session.Mode
	sess.Toolset = s.agent.Session.Toolset
	sess.ToolVerbosity = s.agent.Session.ToolVerbosity
	sess.Acp = true

	s.sessionsLock.Lock()
	s.sessions[sid] = sess
	s.sessionsLock.Unlock()

	respBytes, err := json.Marshal(map[string]any{"sessionId": sid})
	if err != nil {
		s.trace(fmt.Sprintf("handleSessionNew: marshal error: %v", err))
		return
	}
	_ = s.writeResponseOK(req.ID, respBytes)
}

// handleSessionLoad loads a session from disk and replays its history as
// session/update notifications, then returns null.
func (s *server) handleSessionLoad(req *jsonrpcRequest) {
	var p struct {
		SessionID string `json:"sessionId"`
		Cwd       string `json:"cwd"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		_ = s.writeResponseError(req.ID, -32603, "Internal error", fmt.Sprintf("bad params: %v", err))
		return
	}

	sess, err := session.Load(p.SessionID)
	if err != nil {
		_ = s.writeResponseError(req.ID, -32602, "Invalid params", fmt.Sprintf("session not found: %v", err))
		return
	}

	s.sessionsLock.Lock()
	s.sessions[p.SessionID] = sess
	s.sessionsLock.Unlock()

	for _, msg := range sess.Messages {
		switch msg.Role {
		case "user":
			_ = s.writeNotification("session/update", map[string]any{
				"sessionId": p.SessionID,
				"update": map[string]any{
					"sessionUpdate": "user_message_chunk",
					"content": map[string]any{
						"type": "text",
						"text": msg.Content,
					},
				},
			})
		case "assistant":
			if msg.Content != "" {
				_ = s.sendAgentMessageChunk(p.SessionID, msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				_ = s.sendToolCallNotification(p.SessionID, tc)
			}
		case "tool":
			if len(msg.ToolCalls) > 0 {
				_ = s.sendToolResultNotification(p.SessionID, msg.ToolCalls[0].ToolCallID, msg.Content)
			}
		}
	}

	_ = s.writeResponseOK(req.ID, json.RawMessage("null"))
}

// contentBlock is a prompt content block. Text and resource_link blocks
// are supported.
type contentBlock struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	URI         string `json:"uri,omitempty"`
	Name        string `json:"name,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Size        *int64 `json:"size,omitempty"`
}

// handleSessionPrompt runs one agent turn, streaming progress through
// session/update notifications and finishing with stopReason end_turn.
func (s *server) handleSessionPrompt(req *jsonrpcRequest) {
	var p struct {
		SessionID string         `json:"sessionId"`
		Prompt    []contentBlock `json:"prompt"`
	}
	if err := decodeParams(req.Params, &p); err != nil {
		_ = s.writeResponseError(req.ID, -32603, "Internal error", fmt.Sprintf("bad params: %v", err))
		return
	}

	s.sessionsLock.Lock()
	sess, ok := s.sessions[p.SessionID]
	s.sessionsLock.Unlock()
	if !ok {
		_ = s.writeResponseError(req.ID, -32602, "Invalid params", "unknown sessionId")
		return
	}

	userText := extractUserText(p.Prompt)

	// Blank prompts are ignored, same as the other front ends: end the
	// turn without touching the session or the model.
	if strings.TrimSpace(userText) == "" {
		respBytes, err := json.Marshal(map[string]any{"stopReason": "end_turn"})
		if err != nil {
			s.trace(fmt.Sprintf("handleSessionPrompt: marshal error: %v", err))
			return
		}
		_ = s.writeResponseOK(req.ID, respBytes)
		return
	}

	callbacks := agent.ProcessCallbacks{
		OnAssistantMessage: func(message string) {
			_ = s.sendAgentMessageChunk(p.SessionID, message)
		},
		OnToolCall: func(toolCall session.ToolCall) {
			_ = s.sendToolCallNotification(p.SessionID, toolCall)
		},
		OnToolResult: func(toolCall session.ToolCall, result string) {
			_ = s.sendToolResultNotification(p.SessionID, toolCall.ToolCallID, result)
		},
		ShouldExecuteTool: func(toolCall session.ToolCall) bool {
			// The client sees every call via notifications; no gating here.
			return true
		},
		OnWarning: func(warning string) {
			s.trace("warning: " + warning)
		},
	}

	s.agent.Session = sess
	if err := s.agent.ProcessUserInput(s.ctx, userText, callbacks); err != nil {
		_ = s.writeResponseError(req.ID, -32603, "Internal error", fmt.Sprintf("error processing user input: %v", err))
		return
	}

	respBytes, err := json.Marshal(map[string]any{"stopReason": "end_turn"})
	if err != nil {
		s.trace(fmt.Sprintf("handleSessionPrompt: marshal error: %v", err))
		return
	}
	_ = s.writeResponseOK(req.ID, respBytes)
}

func (s *server) sendToolCallNotification(sessionID string, toolCall session.ToolCall) error {
	return s.writeNotification("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "tool_call",
			"toolCall": map[string]any{
				"id":   toolCall.ToolCallID,
				"name": toolCall.Name,
				"args": toolCall.Args,
			},
		},
	})
}

func (s *server) sendToolResultNotification(sessionID, toolCallID, result string) error {
	return s.writeNotification("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "tool_result",
			"toolResult": map[string]any{
				"toolCallId": toolCallID,
				"result":     result,
			},
		},
	})
}

func (s *server) sendAgentMessageChunk(sessionID, text string) error {
	return s.writeNotification("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "agent_message_chunk",
			"content": map[string]any{
				"type": "text",
				"text": text,
			},
		},
	})
}

func (s *server) nextSessionID() string {
	s.sessionIDSeq++
	return fmt.Sprintf("sess_%d_%d", time.Now().UnixNano(), s.sessionIDSeq)
}

// readFileFromURI reads file contents from a file:// URI.
func readFileFromURI(uri string) (string, error) {
	parsedURL, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrapf(err, "invalid URI")
	}
	if parsedURL.Scheme != "file" {
		return "", errors.New("unsupported URI scheme: %s", parsedURL.Scheme)
	}
	content, err := os.ReadFile(parsedURL.Path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read file")
	}
	return string(content), nil
}

// extractUserText flattens prompt content blocks into a single user
// message, inlining the contents of file:// resource links.
func extractUserText(blocks []contentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if strings.TrimSpace(b.Text) != "" {
				parts = append(parts, b.Text)
			}
		case "resource_link":
			var sb strings.Builder
			fmt.Fprintf(&sb, "=== Resource: %s ===\n", b.Name)
			if b.Title != "" {
				fmt.Fprintf(&sb, "Title: %s\n", b.Title)
			}
			if b.Description != "" {
				fmt.Fprintf(&sb, "Description: %s\n", b.Description)
			}
			fmt.Fprintf(&sb, "URI: %s\n", b.URI)
			if b.MimeType != "" {
				fmt.Fprintf(&sb, "Type: %s\n", b.MimeType)
			}

			if strings.HasPrefix(b.URI, "file://") {
				content, err := readFileFromURI(b.URI)
				if err != nil {
					fmt.Fprintf(&sb, "\n[Error reading file: %v]\n", err)
				} else {
					// Cap inline content for very large files.
					const maxContentSize = 50000
					if len(content) > maxContentSize {
						content = content[:maxContentSize] + "\n\n[... truncated ...]"
					}
					fmt.Fprintf(&sb, "\n--- File Contents ---\n%s\n--- End of File ---\n", content)
				}
			} else {
				sb.WriteString("\n[External resource - content not available]\n")
			}
			sb.WriteString("=== End Resource ===\n")
			parts = append(parts, sb.String())
		}
	}
	return strings.Join(parts, "\n")
}
