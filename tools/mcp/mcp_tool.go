// Package mcp connects the agent to external Model Context Protocol
// servers. Each configured server runs as a subprocess; the tools it
// advertises are exposed through the tools.Tool interface so the agent
// treats them like natives.
package mcp

import (
	"context"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
	"github.com/gsaaad/ag1-researchagent/errors"
	"github.com/gsaaad/ag1-researchagent/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPClient manages the connection to a single MCP server subprocess.
type MCPClient struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]*MCPTool
}

// NewMCPClient starts the MCP server subprocess and discovers the tools
// it provides.
func NewMCPClient(ctx context.Context, name, command string, args []string) (*MCPClient, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "researchagent", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}
	client := &MCPClient{
		Name:  name,
		cmd:   cmd,
		conn:  conn,
		tools: make(map[string]*MCPTool),
	}
	toolListParams := &mcpsdk.ListToolsParams{}
	for {
		toolList, err := conn.ListTools(ctx, toolListParams)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}

		for _, t := range toolList.Tools {
			client.tools[t.Name] = &MCPTool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				client:      client,
			}
		}

		if toolList.NextCursor == "" {
			break
		}
		toolListParams.Cursor = toolList.NextCursor
	}

	log.Info("initialized MCP client", "server", name, "tools", len(client.tools))
	return client, nil
}

// AllTools returns every tool this server advertises, as generic tools.
func (c *MCPClient) AllTools() []tools.Tool {
	ts := make([]tools.Tool, 0, len(c.tools))
	for _, t := range c.tools {
		ts = append(ts, t)
	}
	return ts
}

// GetTool returns a specific tool provided by this MCP server by its short name.
func (c *MCPClient) GetTool(toolName string) (*MCPTool, bool) {
	tool, ok := c.tools[toolName]
	return tool, ok
}

// ToolCount returns how many tools the server advertised.
func (c *MCPClient) ToolCount() int {
	return len(c.tools)
}

// Stop terminates the MCP server subprocess.
func (c *MCPClient) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		log.Info("terminating MCP server", "server", c.Name)
		return c.cmd.Process.Kill()
	}
	return nil
}

// MCPTool represents a tool available from an external MCP server. It
// satisfies the tools.Tool interface from the parent package.
type MCPTool struct {
	serverName  string
	toolName    string
	description string
	client      *MCPClient
}

// Name returns the server's short name for the tool. Qualified names with
// separators are rejected by some providers, so the short name goes to the
// model and toolset entries carry the "<server>." prefix instead.
func (t *MCPTool) Name() string {
	return t.toolName
}

// Description returns the tool's description, provided by the MCP server.
func (t *MCPTool) Description() string {
	return t.description
}

// Schema returns an open schema; MCP servers describe their own parameters
// in the tool description and validate arguments server-side.
func (t *MCPTool) Schema() tools.Schema {
	return tools.Schema{}
}

// Execute sends the call to the MCP server and concatenates the text
// content of the result.
func (t *MCPTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s'", t.Name())
	}
	op := ""
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			op += tc.Text
		}
	}
	return op, nil
}
