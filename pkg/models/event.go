package models

// StreamEventType enumerates the wire-level events emitted while a chat turn
// is being processed.
type StreamEventType string

const (
	// EventStep carries intermediate assistant text, not final.
	EventStep StreamEventType = "step"

	// EventThinking carries reasoning text produced ahead of a tool decision.
	EventThinking StreamEventType = "thinking"

	// EventToolCall announces a tool invocation.
	EventToolCall StreamEventType = "tool_call"

	// EventToolResult carries a truncated preview of a tool's output.
	EventToolResult StreamEventType = "tool_result"

	// EventFinal is the terminal event, exactly one per turn.
	EventFinal StreamEventType = "final"
)

// StreamEvent is one element of the event stream sent to clients. Events are
// produced by the streaming coordinator and serialized as SSE data lines;
// nothing persists them.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`

	// Tool and Input are set on tool_call events.
	Tool  string `json:"tool,omitempty"`
	Input string `json:"input,omitempty"`

	// Label is a short human-readable description for tool activity.
	Label string `json:"label,omitempty"`

	// IsFinal mirrors Type == EventFinal for clients that only check a flag.
	IsFinal bool `json:"is_final"`
}
