// Package agent provides the core research assistant loop.
//
// This package contains the common code shared between the different
// interaction modes (plain terminal, the two-panel TUI and the ACP
// server). It defines the Agent type and the processing logic for
// handling user input, LLM interactions and tool executions.
//
// # Architecture
//
// The agent is organized around one reason-act loop:
//
//   - Core agent (this package): the shared Agent type and processing logic
//   - Terminal subpackage (agent/terminal): plain CLI interaction mode
//   - TUI package (tui): the interactive two-panel interface
//   - ACP package (acp): Agent Client Protocol server for IDE integration
//
// # Core Functionality
//
// The Agent type provides:
//
//   - Toolset resolution against the tool registry
//   - Session management with a bounded conversation window
//   - The processing loop for LLM interactions and tool calls
//   - Retry with exponential backoff for transient provider failures
//   - Callback-based event delivery for the interaction modes
//
// # Usage
//
// To create and use an agent:
//
//	a, err := agent.New(cfg, sess, registry, toolset, mode, llmClient, verbosity)
//	if err != nil {
//	    // handle error
//	}
//
//	callbacks := agent.ProcessCallbacks{
//	    OnAssistantMessage: func(message string) {
//	        // Handle assistant responses
//	    },
//	    OnToolCall: func(toolCall session.ToolCall) {
//	        // Handle tool execution requests
//	    },
//	    OnToolResult: func(toolCall session.ToolCall, result string) {
//	        // Handle tool execution results
//	    },
//	    ShouldExecuteTool: func(toolCall session.ToolCall) bool {
//	        // Gate tool execution in prompt mode
//	        return true
//	    },
//	    OnWarning: func(warning string) {
//	        // Handle non-fatal warnings
//	    },
//	}
//
//	err = a.ProcessUserInput(ctx, "user message", callbacks)
//
// # Modes
//
// The agent supports two operation modes:
//
//   - ModeAuto: tools are executed automatically without confirmation
//   - ModePrompt: tool execution requires confirmation via ShouldExecuteTool
//
// # Tool Verbosity
//
// Tool execution verbosity can be configured at three levels:
//
//   - ToolVerbosityNone: no tool execution details are shown
//   - ToolVerbosityInfo: tool names are shown as they execute
//   - ToolVerbosityAll: arguments and results are shown as well
//
// The verbosity setting is interpreted by the interaction modes; the core
// loop always delivers the full events.
package agent
