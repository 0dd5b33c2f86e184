package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gsaaad/ag1-researchagent/acp"
	"github.com/gsaaad/ag1-researchagent/agent"
	"github.com/gsaaad/ag1-researchagent/agent/terminal"
	"github.com/gsaaad/ag1-researchagent/config"
	"github.com/gsaaad/ag1-researchagent/llm"
	"github.com/gsaaad/ag1-researchagent/notes"
	"github.com/gsaaad/ag1-researchagent/session"
	"github.com/gsaaad/ag1-researchagent/tools"
	"github.com/gsaaad/ag1-researchagent/tools/mcp"
	"github.com/gsaaad/ag1-researchagent/tui"
)

func main() {
	modeFlag := flag.String("m", "", "Execution mode: 'auto' or 'prompt'")
	sessionFlag := flag.String("s", "", "Session name to create or use")
	toolsetFlag := flag.String("t", "", "Toolset to use (defaults to 'default')")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	toolVerbosityFlag := flag.String("tool-verbosity", "", "Tool verbosity level: 'none', 'info', or 'all'")
	acpFlag := flag.Bool("acp", false, "Run as an Agent Client Protocol server over stdio")
	plainFlag := flag.Bool("plain", false, "Use the plain terminal interface instead of the TUI")
	traceFlag := flag.Bool("trace", false, "Enable ACP protocol tracing")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	setupLogging(*debugFlag)

	cfg, err := config.LoadConfig()
	if err != nil {
		fatalf("Error loading configuration: %+v\n", err)
	}

	var sess *session.Session
	sessionName := *sessionFlag

	if *resumeFlag != "" {
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fatalf("Error resuming session '%s': %+v\n", sessionName, err)
		}
		// Session flags win unless explicitly overridden on the command line.
		if *modeFlag == "" && sess.Mode != "" {
			*modeFlag = sess.Mode
		}
		if *toolsetFlag == "" && sess.Toolset != "" {
			*toolsetFlag = sess.Toolset
		}
		if *toolVerbosityFlag == "" && sess.ToolVerbosity != "" {
			*toolVerbosityFlag = sess.ToolVerbosity
		}
	} else {
		if sessionName == "" {
			sessionName = defaultSessionName()
		}
		sess, err = session.New(sessionName)
		if err != nil {
			fatalf("Error creating session '%s': %+v\n", sessionName, err)
		}
	}

	if *modeFlag == "" {
		*modeFlag = "auto"
	}
	if *toolsetFlag == "" {
		*toolsetFlag = "default"
	}
	if *toolVerbosityFlag == "" {
		*toolVerbosityFlag = "info"
	}

	sess.Mode = *modeFlag
	sess.Toolset = *toolsetFlag
	sess.ToolVerbosity = *toolVerbosityFlag
	sess.Acp = *acpFlag
	if err := sess.Save(); err != nil {
		fatalf("Error saving session '%s': %+v\n", sessionName, err)
	}

	var opMode agent.Mode
	switch *modeFlag {
	case "auto":
		opMode = agent.ModeAuto
	case "prompt":
		opMode = agent.ModePrompt
	default:
		fatalf("Invalid mode '%s'. Must be 'auto' or 'prompt'.\n", *modeFlag)
	}

	var verbosity agent.ToolVerbosity
	switch *toolVerbosityFlag {
	case "none":
		verbosity = agent.ToolVerbosityNone
	case "info":
		verbosity = agent.ToolVerbosityInfo
	case "all":
		verbosity = agent.ToolVerbosityAll
	default:
		fatalf("Invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'.\n", *toolVerbosityFlag)
	}

	ctx := context.Background()

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		fatalf("Error initializing LLM client: %+v\n", err)
	}

	// The note index lives under the app directory next to sessions.
	store, err := notes.Open(cfg.NotesDir)
	if err != nil {
		log.Warn("notes unavailable", "path", cfg.NotesDir, "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	registry := tools.NewToolRegistry(cfg, store)

	// Start configured MCP servers and register their tools.
	var mcpClients []*mcp.MCPClient
	for _, server := range cfg.AdditionalMCPServers {
		mcpClient, err := mcp.NewMCPClient(ctx, server.Name, server.Command, server.Args)
		if err != nil {
			log.Warn("skipping MCP server", "server", server.Name, "error", err)
			continue
		}
		registry.RegisterServerTools(server.Name, mcpClient.AllTools())
		mcpClients = append(mcpClients, mcpClient)
	}
	defer func() {
		for _, c := range mcpClients {
			if err := c.Stop(); err != nil {
				log.Warn("failed to stop MCP server", "server", c.Name, "error", err)
			}
		}
	}()

	researchAgent, err := agent.New(cfg, sess, registry, *toolsetFlag, opMode, client, verbosity)
	if err != nil {
		fatalf("Error initializing agent: %+v\n", err)
	}

	switch {
	case *acpFlag:
		in := bufio.NewReader(os.Stdin)
		out := bufio.NewWriter(os.Stdout)
		if err := acp.Run(ctx, researchAgent, in, out, *traceFlag); err != nil {
			fatalf("ACP mode failed: %+v\n", err)
		}
	case *plainFlag:
		initialPrompt := strings.Join(flag.Args(), " ")
		fmt.Printf("Session: %s. Type your question, /quit to exit.\n", sessionName)
		term := terminal.New(researchAgent)
		if err := term.Run(ctx, initialPrompt); err != nil {
			fatalf("Agent stopped with an error: %+v\n", err)
		}
	default:
		if err := tui.Run(ctx, researchAgent); err != nil {
			fatalf("Interface stopped with an error: %+v\n", err)
		}
	}
}

// newLLMClient builds the provider client named in the configuration. An
// empty or unknown provider falls back to the mock client so the
// interface can be exercised without credentials.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.LLMClient, error) {
	switch cfg.LLMClient {
	case "gemini":
		return llm.NewGeminiLLMClient(ctx, cfg.Model)
	case "openai":
		return llm.NewOpenAILLMClient(ctx, cfg.Model)
	case "anthropic":
		return llm.NewAnthropicLLMClient(ctx, cfg.Model)
	case "bedrock":
		return llm.NewBedrockLLMClient(ctx, cfg.Model)
	default:
		return &llm.MockLLMClient{}, nil
	}
}

// setupLogging routes structured logs to a file under the app directory.
// The TUI owns the terminal, so logs never go to stdout or stderr.
func setupLogging(debug bool) {
	logDir := filepath.Join(config.AppDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return
	}
	f, err := os.OpenFile(filepath.Join(logDir, "agent.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
	os.Exit(1)
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "research"
	}
	dirName := filepath.Base(wd)
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s_%s", dirName, timestamp)
}
