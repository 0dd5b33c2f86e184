package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gsaaad/ag1-researchagent/config"
)

// ToolCall records a single tool invocation requested by the model.
type ToolCall struct {
	ToolCallID string                 `json:"tool_call_id"`
	Name       string                 `json:"name"`
	Args       map[string]interface{} `json:"args,omitempty"`
}

// Message is one entry in the conversation history.
//
// Roles are "user", "assistant" and "tool". An assistant message may carry
// ToolCalls; the matching results follow as "tool" messages whose single
// ToolCalls entry identifies the call being answered.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type Session struct {
	Name          string    `json:"name"`
	Mode          string    `json:"mode,omitempty"`
	Toolset       string    `json:"toolset,omitempty"`
	ToolVerbosity string    `json:"tool_verbosity,omitempty"`
	Acp           bool      `json:"acp,omitempty"`
	Messages      []Message `json:"messages"`
	path          string
}

// New creates a new session.
func New(name string) (*Session, error) {
	path, err := getSessionPath(name)
	if err != nil {
		return nil, err
	}
	return &Session{
		Name:     name,
		Messages: []Message{},
		path:     path,
	}, nil
}

// Load loads an existing session from disk.
func Load(name string) (*Session, error) {
	path, err := getSessionPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read session file %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("could not parse session file %s: %w", path, err)
	}
	s.path = path
	return &s, nil
}

// Save writes the current session state to disk.
func (s *Session) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// AddMessage appends a message to the session history.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Clear drops the conversation history. The caller decides whether to
// Save afterwards.
func (s *Session) Clear() {
	s.Messages = s.Messages[:0]
}

// Window returns the most recent messages limited to the given window
// size, with tool calls and tool results kept in matched pairs. A tool
// result whose originating call fell outside the window is dropped, and
// vice versa, so providers never see a dangling half of an exchange.
func (s *Session) Window(size int) []Message {
	msgs := s.Messages
	if size <= 0 || len(msgs) <= size {
		return msgs
	}
	msgs = msgs[len(msgs)-size:]

	callIDs := make(map[string]bool)
	resultIDs := make(map[string]bool)
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			for _, tc := range m.ToolCalls {
				callIDs[tc.ToolCallID] = true
			}
		case "tool":
			if len(m.ToolCalls) > 0 {
				resultIDs[m.ToolCalls[0].ToolCallID] = true
			}
		}
	}

	pruned := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			if len(m.ToolCalls) > 0 {
				var kept []ToolCall
				for _, tc := range m.ToolCalls {
					if resultIDs[tc.ToolCallID] {
						kept = append(kept, tc)
					}
				}
				m.ToolCalls = kept
				if len(kept) == 0 && m.Content == "" {
					continue
				}
			}
		case "tool":
			if len(m.ToolCalls) == 0 || !callIDs[m.ToolCalls[0].ToolCallID] {
				continue
			}
		}
		pruned = append(pruned, m)
	}
	return pruned
}

func getSessionPath(name string) (string, error) {
	sessionDir := filepath.Join(config.AppDir, "sessions")
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return "", fmt.Errorf("could not create session directory: %w", err)
	}
	return filepath.Join(sessionDir, fmt.Sprintf("%s.json", name)), nil
}
