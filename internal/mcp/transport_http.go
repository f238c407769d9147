package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// HTTPTransport implements the MCP streamable HTTP transport: every request
// is a POST to the server endpoint, responses come back in the HTTP body.
type HTTPTransport struct {
	config *ServerConfig
	logger *slog.Logger
	client *http.Client

	sessionID atomic.Value // string, assigned by the server on initialize
	connected atomic.Bool
}

// NewHTTPTransport creates a new HTTP transport.
func NewHTTPTransport(cfg *ServerConfig) *HTTPTransport {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPTransport{
		config: cfg,
		logger: slog.Default().With("mcp_server", cfg.Name, "transport", "http"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Connect marks the transport ready. The actual handshake (initialize) is
// driven by the client.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("URL is required for HTTP transport")
	}
	t.connected.Store(true)
	t.logger.Info("HTTP transport ready", "url", t.config.URL)
	return nil
}

// Close closes the HTTP connection.
func (t *HTTPTransport) Close() error {
	t.connected.Store(false)
	return nil
}

// Call sends a request and waits for a response.
//
// Non-2xx statuses surface as "HTTP <code>: <body>" errors and JSON-RPC
// error objects as "MCP error <code>: <message>"; downstream fault handling
// matches on both shapes.
func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	req := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
	}

	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	body, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	t.setHeaders(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.sessionID.Store(sid)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("MCP error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

// Notify sends a notification (no response expected).
func (t *HTTPTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}

	notif := JSONRPCNotification{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}

	body, _ := json.Marshal(notif)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	t.setHeaders(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	resp.Body.Close()

	return nil
}

// Connected returns whether the transport is connected.
func (t *HTTPTransport) Connected() bool {
	return t.connected.Load()
}

func (t *HTTPTransport) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sid, ok := t.sessionID.Load().(string); ok && sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}
}
