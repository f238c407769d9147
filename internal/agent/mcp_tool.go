package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vizlab-ai/vizchat/internal/mcp"
)

// MCPTool exposes a tool from an MCP server as an agent Tool.
//
// Arguments are validated against the tool's declared input schema before the
// remote call, so malformed arguments fail fast locally instead of
// round-tripping an invalid-params error through the server.
type MCPTool struct {
	client *mcp.Client
	def    *mcp.Tool
	schema *jsonschema.Schema
}

// NewMCPTool bridges an MCP tool definition to the agent Tool interface.
// A tool whose input schema does not compile is still usable; validation is
// skipped for it.
func NewMCPTool(client *mcp.Client, def *mcp.Tool) *MCPTool {
	t := &MCPTool{client: client, def: def}

	if len(def.InputSchema) > 0 {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", bytes.NewReader(def.InputSchema)); err == nil {
			if schema, err := compiler.Compile("schema.json"); err == nil {
				t.schema = schema
			}
		}
	}

	return t
}

// Name returns the MCP tool name.
func (t *MCPTool) Name() string {
	return t.def.Name
}

// Description returns the MCP tool description.
func (t *MCPTool) Description() string {
	return t.def.Description
}

// Schema returns the MCP tool input schema.
func (t *MCPTool) Schema() json.RawMessage {
	if len(t.def.InputSchema) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return t.def.InputSchema
}

// Execute validates the arguments and calls the tool on the MCP server.
// Server-reported tool errors (isError results) come back as error results,
// not Go errors, so the agent loop can react to them.
func (t *MCPTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	if t.schema != nil {
		var decoded any
		if err := json.Unmarshal(params, &decoded); err != nil {
			return nil, fmt.Errorf("tool %s: arguments are not valid JSON: %w", t.def.Name, err)
		}
		if err := t.schema.Validate(decoded); err != nil {
			return nil, fmt.Errorf("tool %s: invalid arguments: %w", t.def.Name, err)
		}
	}

	result, err := t.client.CallTool(ctx, t.def.Name, params)
	if err != nil {
		return nil, err
	}

	return &ToolResult{
		Content: result.Text(),
		IsError: result.IsError,
	}, nil
}

// MCPTools bridges every tool discovered on the client.
func MCPTools(client *mcp.Client) []Tool {
	defs := client.Tools()
	tools := make([]Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, NewMCPTool(client, def))
	}
	return tools
}
