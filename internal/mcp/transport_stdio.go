package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// StdioTransport implements the MCP stdio transport: the server runs as a
// subprocess and exchanges newline-delimited JSON-RPC over its pipes.
type StdioTransport struct {
	config *ServerConfig
	logger *slog.Logger

	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Scanner
	stderr  io.ReadCloser

	pending   map[int64]chan *JSONRPCResponse
	pendingMu sync.Mutex
	nextID    atomic.Int64

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewStdioTransport creates a new stdio transport.
func NewStdioTransport(cfg *ServerConfig) *StdioTransport {
	return &StdioTransport{
		config:   cfg,
		logger:   slog.Default().With("mcp_server", cfg.Name, "transport", "stdio"),
		pending:  make(map[int64]chan *JSONRPCResponse),
		stopChan: make(chan struct{}),
	}
}

// Connect starts the subprocess and establishes the connection.
func (t *StdioTransport) Connect(ctx context.Context) error {
	if t.config.Command == "" {
		return fmt.Errorf("command is required for stdio transport")
	}

	t.process = exec.CommandContext(ctx, t.config.Command, t.config.Args...)

	t.process.Env = os.Environ()
	for k, v := range t.config.Env {
		t.process.Env = append(t.process.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var err error
	t.stdin, err = t.process.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := t.process.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	t.stdout = bufio.NewScanner(stdout)
	t.stdout.Buffer(make([]byte, 1024*1024), 1024*1024)

	t.stderr, _ = t.process.StderrPipe()

	if err := t.process.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	t.connected.Store(true)
	t.logger.Info("started MCP server process",
		"command", t.config.Command,
		"pid", t.process.Process.Pid)

	t.wg.Add(1)
	go t.readLoop()

	if t.stderr != nil {
		t.wg.Add(1)
		go t.logStderr()
	}

	return nil
}

// Close stops the subprocess.
func (t *StdioTransport) Close() error {
	t.connected.Store(false)
	close(t.stopChan)

	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.process != nil && t.process.Process != nil {
		t.process.Process.Kill()
	}

	t.wg.Wait()
	return nil
}

// Call sends a request and waits for a response.
func (t *StdioTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	id := t.nextID.Add(1)

	req := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
	}

	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan *JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()

	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	data, _ := json.Marshal(req)
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	timeout := t.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("request timeout after %v", timeout)
	case <-t.stopChan:
		return nil, fmt.Errorf("transport closed")
	}
}

// Notify sends a notification (no response expected).
func (t *StdioTransport) Notify(ctx context.Context, method string, params any) error {
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

	data, _ := json.Marshal(notif)
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}

	return nil
}

// Connected returns whether the transport is connected.
func (t *StdioTransport) Connected() bool {
	return t.connected.Load()
}

func (t *StdioTransport) readLoop() {
	defer t.wg.Done()
	defer t.connected.Store(false)

	for t.stdout.Scan() {
		select {
		case <-t.stopChan:
			return
		default:
		}

		line := t.stdout.Text()
		if line == "" {
			continue
		}
		t.processLine(line)
	}

	if err := t.stdout.Err(); err != nil {
		t.logger.Error("stdout scanner error", "error", err)
	}
}

func (t *StdioTransport) processLine(line string) {
	var resp JSONRPCResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil || resp.ID == nil {
		return
	}

	var id int64
	switch v := resp.ID.(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	default:
		t.logger.Warn("unexpected response ID type", "id", resp.ID)
		return
	}

	t.pendingMu.Lock()
	if ch, ok := t.pending[id]; ok {
		select {
		case ch <- &resp:
		default:
		}
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()
}

func (t *StdioTransport) logStderr() {
	defer t.wg.Done()

	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		select {
		case <-t.stopChan:
			return
		default:
		}

		if line := scanner.Text(); line != "" {
			t.logger.Debug("server stderr", "message", line)
		}
	}
}
