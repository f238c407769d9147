package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Client is an MCP client that connects to a single tool server.
type Client struct {
	config    *ServerConfig
	transport Transport
	logger    *slog.Logger

	tools []*Tool
	mu    sync.RWMutex

	serverInfo ServerInfo
}

// NewClient creates a new MCP client.
func NewClient(cfg *ServerConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:    cfg,
		transport: NewTransport(cfg),
		logger:    logger.With("mcp_server", cfg.Name),
	}
}

// Connect establishes the connection: transport connect, initialize
// handshake, initialized notification, then tool discovery.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "vizchat",
			"version": "1.0.0",
		},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	var initResult InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}

	c.serverInfo = initResult.ServerInfo
	c.logger.Info("connected to MCP server",
		"name", c.serverInfo.Name,
		"version", c.serverInfo.Version,
		"protocol", initResult.ProtocolVersion)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "error", err)
	}

	if err := c.RefreshTools(ctx); err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	return nil
}

// Close closes the connection to the MCP server.
func (c *Client) Close() error {
	return c.transport.Close()
}

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() ServerInfo {
	return c.serverInfo
}

// Connected returns whether the client is connected.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// RefreshTools refreshes the cached tool list.
func (c *Client) RefreshTools(ctx context.Context) error {
	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}

	var resp ListToolsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}

	c.mu.Lock()
	c.tools = resp.Tools
	c.mu.Unlock()

	c.logger.Debug("refreshed tools", "count", len(resp.Tools))
	return nil
}

// Tools returns the cached tools.
func (c *Client) Tools() []*Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// CallTool calls a tool on the MCP server with raw JSON arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*ToolCallResult, error) {
	params := CallToolParams{
		Name:      name,
		Arguments: arguments,
	}

	result, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}

	return &callResult, nil
}
