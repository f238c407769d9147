package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeServer implements enough of the streamable HTTP protocol for client
// tests: initialize, tools/list, tools/call.
func fakeServer(t *testing.T, callHandler func(params CallToolParams) (any, *JSONRPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Notifications decode into JSONRPCRequest too (ID is nil),
			// so a decode failure here is a real protocol problem.
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.ID == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "initialize":
			resp.Result, _ = json.Marshal(InitializeResult{
				ProtocolVersion: "2024-11-05",
				ServerInfo:      ServerInfo{Name: "fake", Version: "0.1"},
			})
		case "tools/list":
			resp.Result, _ = json.Marshal(ListToolsResult{
				Tools: []*Tool{
					{Name: "list_datasources", Description: "List data sources", InputSchema: json.RawMessage(`{"type":"object"}`)},
					{Name: "query_datasource", Description: "Run a query", InputSchema: json.RawMessage(`{"type":"object"}`)},
				},
			})
		case "tools/call":
			var params CallToolParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				t.Errorf("bad tools/call params: %v", err)
			}
			result, rpcErr := callHandler(params)
			if rpcErr != nil {
				resp.Error = rpcErr
			} else {
				resp.Result, _ = json.Marshal(result)
			}
		default:
			resp.Error = &JSONRPCError{Code: ErrCodeMethodNotFound, Message: "method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	return NewClient(&ServerConfig{
		Name:      "fake",
		Transport: TransportHTTP,
		URL:       url,
	}, nil)
}

func TestClientConnectDiscoversTools(t *testing.T) {
	srv := fakeServer(t, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if got := c.ServerInfo().Name; got != "fake" {
		t.Errorf("server name = %q, want fake", got)
	}
	tools := c.Tools()
	if len(tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(tools))
	}
	if tools[0].Name != "list_datasources" {
		t.Errorf("first tool = %q", tools[0].Name)
	}
}

func TestClientCallTool(t *testing.T) {
	srv := fakeServer(t, func(params CallToolParams) (any, *JSONRPCError) {
		if params.Name != "query_datasource" {
			t.Errorf("tool name = %q", params.Name)
		}
		return ToolCallResult{
			Content: []ToolResultContent{{Type: "text", Text: "42 rows"}},
		}, nil
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	result, err := c.CallTool(context.Background(), "query_datasource", json.RawMessage(`{"query":"sum(sales)"}`))
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.Text() != "42 rows" {
		t.Errorf("result text = %q", result.Text())
	}
}

func TestClientCallToolRPCError(t *testing.T) {
	srv := fakeServer(t, func(params CallToolParams) (any, *JSONRPCError) {
		return nil, &JSONRPCError{Code: ErrCodeInvalidParams, Message: "missing required field"}
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	_, err := c.CallTool(context.Background(), "query_datasource", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "MCP error -32602") {
		t.Errorf("error = %q, want MCP error -32602 marker", err.Error())
	}
}

func TestClientCallToolHTTPFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Let the handshake through, then start failing.
		if calls <= 3 {
			var req JSONRPCRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.ID == nil {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
			if req.Method == "initialize" {
				resp.Result, _ = json.Marshal(InitializeResult{ServerInfo: ServerInfo{Name: "flaky"}})
			} else {
				resp.Result, _ = json.Marshal(ListToolsResult{})
			}
			json.NewEncoder(w).Encode(resp)
			return
		}
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	_, err := c.CallTool(context.Background(), "query_datasource", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 403") {
		t.Errorf("error = %q, want HTTP 403 marker", err.Error())
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"http ok", ServerConfig{Transport: TransportHTTP, URL: "http://localhost:3927/tableau-mcp"}, false},
		{"http missing url", ServerConfig{Transport: TransportHTTP}, true},
		{"http bad scheme", ServerConfig{Transport: TransportHTTP, URL: "ftp://x"}, true},
		{"stdio ok", ServerConfig{Transport: TransportStdio, Command: "mcp-server"}, false},
		{"stdio missing command", ServerConfig{Transport: TransportStdio}, true},
		{"unknown transport", ServerConfig{Transport: "smoke-signal"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
