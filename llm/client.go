// Package llm abstracts the supported model providers behind a single
// chat interface. Each provider converts the session history and tool
// declarations into its native wire format and maps the reply back into
// a session.Message, including any tool calls the model requested.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/gsaaad/ag1-researchagent/session"
	"github.com/gsaaad/ag1-researchagent/tools"
)

// LLMClient is the interface for interacting with a Large Language Model.
type LLMClient interface {
	Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error)
}

// IsRetryable reports whether an error looks like a transient provider
// failure worth retrying with backoff: overload, rate limiting or a
// temporarily unavailable backend.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"overloaded",
		"rate limit",
		"rate_limit",
		"429",
		"503",
		"529",
		"service unavailable",
		"temporarily unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// MockLLMClient returns scripted responses in order, for tests and dry
// runs. When the script is exhausted it parrots the last user message.
type MockLLMClient struct {
	Responses []*session.Message
	Calls     int
}

func (m *MockLLMClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error) {
	m.Calls++
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return &session.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("Mock response to: '%s'", last),
	}, nil
}
