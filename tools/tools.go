package tools

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gsaaad/ag1-researchagent/config"
	"github.com/gsaaad/ag1-researchagent/errors"
	"github.com/gsaaad/ag1-researchagent/notes"
)

// Property describes a single tool parameter for the model.
type Property struct {
	Type        string
	Description string
	Default     interface{}
}

// Schema is a minimal JSON-schema view of a tool's parameters. LLM
// providers translate it into their native function-declaration format.
// An empty schema means "object with unspecified properties".
type Schema struct {
	Required   []string
	Properties map[string]Property
}

// Tool defines the interface for any action the agent can take.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolRegistry holds all available tools, native and MCP-provided.
type ToolRegistry struct {
	tools       map[string]Tool
	serverTools map[string][]Tool
}

// NewToolRegistry registers the native research tools. The notes store
// may be nil, in which case the note tools are unavailable.
func NewToolRegistry(cfg *config.Config, store *notes.Store) *ToolRegistry {
	r := &ToolRegistry{
		tools:       make(map[string]Tool),
		serverTools: make(map[string][]Tool),
	}

	r.Register(NewWebSearchTool(cfg.Search))
	r.Register(NewWikipediaTool())
	r.Register(&ReadFileTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&WriteFileTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&CalculatorTool{})
	if store != nil {
		r.Register(&SaveNoteTool{store: store})
		r.Register(&SearchNotesTool{store: store})
	}

	return r
}

func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// RegisterServerTools makes the tools contributed by an external MCP
// server addressable from toolsets as "<server>.<tool>" or "<server>.*".
func (r *ToolRegistry) RegisterServerTools(server string, ts []Tool) {
	r.serverTools[server] = append(r.serverTools[server], ts...)
}

func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// GetActiveTools returns the tool instances for a given toolset. Entries
// of the form "<server>.<tool>" address MCP tools; "<server>.*" selects
// every tool the server advertises.
func (r *ToolRegistry) GetActiveTools(ts *config.Toolset) ([]Tool, error) {
	var activeTools []Tool
	for _, toolName := range ts.Tools {
		if server, short, ok := strings.Cut(toolName, "."); ok {
			provided, found := r.serverTools[server]
			if !found {
				return nil, errors.New("toolset '%s' references unknown MCP server '%s'", ts.Name, server)
			}
			if short == "*" {
				activeTools = append(activeTools, provided...)
				continue
			}
			var match Tool
			for _, t := range provided {
				if t.Name() == short {
					match = t
					break
				}
			}
			if match == nil {
				return nil, errors.New("MCP server '%s' does not provide tool '%s'", server, short)
			}
			activeTools = append(activeTools, match)
			continue
		}

		if t, ok := r.GetTool(toolName); ok {
			activeTools = append(activeTools, t)
		} else {
			return nil, errors.New("tool '%s' from toolset '%s' is not registered", toolName, ts.Name)
		}
	}
	return activeTools, nil
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, errors.Wrapf(err, "invalid glob pattern '%s'", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
