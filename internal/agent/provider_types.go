package agent

import (
	"context"
	"encoding/json"

	"github.com/vizlab-ai/vizchat/pkg/models"
)

// LLMProvider defines the interface for Large Language Model backends.
//
// Implementations handle the specifics of each LLM API (OpenAI, Bedrock)
// while presenting a unified streaming interface to the runtime.
//
// Implementations must be safe for concurrent use; multiple goroutines may
// call Complete simultaneously for different requests.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []Model

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	// Model specifies which LLM model to use. If empty, the provider's
	// default model is used.
	Model string `json:"model"`

	// System is the system prompt, handled separately from messages in most
	// LLM APIs.
	System string `json:"system,omitempty"`

	// Messages contains the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools defines available tools the LLM can request to execute.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness, 0..1.
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionMessage represents a single message in a conversation.
// Role values: "user", "assistant", "tool".
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool execution requests from the assistant.
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`

	// ToolResults contains responses from executed tools.
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// CompletionChunk represents a single chunk in a streaming LLM response.
//
// Chunks are delivered through channels as the LLM generates its response.
// Each chunk carries partial text, a complete tool call, reasoning text, a
// done signal, or an error.
type CompletionChunk struct {
	// Text contains partial response text, streamed incrementally.
	Text string `json:"text,omitempty"`

	// ToolCall contains a complete tool execution request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Thinking contains reasoning text streamed ahead of the response.
	Thinking string `json:"thinking,omitempty"`

	// Done is true when the stream has completed successfully.
	Done bool `json:"done,omitempty"`

	// Error contains any error that occurred; streaming terminates after.
	Error error `json:"-"`
}

// Model describes an available LLM model.
type Model struct {
	// ID is the API identifier for the model.
	ID string `json:"id"`

	// Name is the human-readable model name.
	Name string `json:"name"`

	// ContextSize is the maximum token context window.
	ContextSize int `json:"context_size"`
}

// Tool defines the interface for executable agent tools.
//
// The analyst's tools are bridged from the MCP server, but anything
// implementing this interface can be handed to the runtime.
type Tool interface {
	// Name returns the tool name for LLM function calling.
	Name() string

	// Description returns a natural language description of the tool.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult contains the output from a tool execution.
//
// Errors are also communicated via ToolResult with IsError=true, allowing
// the LLM to handle failures gracefully instead of aborting the turn.
type ToolResult struct {
	// Content is the tool's output.
	Content string `json:"content"`

	// IsError indicates this result represents an error condition.
	IsError bool `json:"is_error,omitempty"`
}

// Snapshot is one element of the runtime's conversation-state stream: the
// full message history after an internal transition, or a terminal error.
// When Err is set no further snapshots follow.
type Snapshot struct {
	Messages []*models.Message
	Err      error
}
