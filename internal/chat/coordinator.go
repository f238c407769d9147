// Package chat turns the agent runtime's conversation-state snapshots into
// the normalized event stream that clients consume.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vizlab-ai/vizchat/internal/agent"
	"github.com/vizlab-ai/vizchat/internal/observability"
	"github.com/vizlab-ai/vizchat/internal/sessions"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// Fixed user-facing strings. The validation message replaces raw invalid-
// params errors from the tool server, which are long and expose schema
// internals.
const (
	emptyResponseFallback = "I apologize, but I wasn't able to generate a response."

	validationErrorMessage = "I encountered a validation error while processing your request. " +
		"Please try rephrasing your question or refresh your browser to start a new session."
)

// toolResultPreviewLimit caps tool_result event content; full payloads stay
// in session history only.
const toolResultPreviewLimit = 200

// Streamer is the slice of the agent runtime the coordinator drives.
type Streamer interface {
	Stream(ctx context.Context, sessionID, message string) (<-chan agent.Snapshot, error)
}

// Coordinator consumes a turn's snapshot sequence and emits step, thinking,
// tool_call, tool_result and final events.
//
// It runs a small state machine: the first snapshot seeds the turn baseline,
// every further snapshot drains the messages beyond it, and the turn ends in
// exactly one of two terminal states. A normally ended sequence finalizes
// with the last assistant text seen (or a fallback); a failed sequence
// converts the fault into final text. Both terminal paths repair the session
// history first, so tool calls orphaned by the failure don't poison the next
// turn. Either way the consumer sees exactly one final event, and nothing
// after it.
type Coordinator struct {
	streamer Streamer
	repairer *sessions.Repairer
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewCoordinator creates a coordinator. Logger and metrics may be nil.
func NewCoordinator(streamer Streamer, repairer *sessions.Repairer, logger *observability.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		streamer: streamer,
		repairer: repairer,
		logger:   logger,
		metrics:  metrics,
	}
}

// StreamTurn runs one chat turn. The returned channel closes after the final
// event. Errors are returned only for failures before the turn starts
// (unknown session, no provider); once streaming begins every failure is
// folded into the final event instead.
func (c *Coordinator) StreamTurn(ctx context.Context, sessionID, message string) (<-chan models.StreamEvent, error) {
	snapshots, err := c.streamer.Stream(ctx, sessionID, message)
	if err != nil {
		return nil, err
	}

	events := make(chan models.StreamEvent)
	go func() {
		defer close(events)
		c.drain(ctx, sessionID, snapshots, events)
	}()
	return events, nil
}

// Collect runs one chat turn and returns only the final text, for the
// non-streaming endpoint.
func (c *Coordinator) Collect(ctx context.Context, sessionID, message string) (string, error) {
	events, err := c.StreamTurn(ctx, sessionID, message)
	if err != nil {
		return "", err
	}
	final := emptyResponseFallback
	for event := range events {
		if event.Type == models.EventFinal {
			final = event.Content
		}
	}
	return final, nil
}

// turnState tracks one turn's progress through the snapshot sequence.
type turnState struct {
	seeded   bool
	baseline int
	seen     map[string]bool

	// finalCandidate is the most recently seen assistant text; it becomes
	// the final answer when the sequence ends, last write wins.
	finalCandidate string
}

func (c *Coordinator) drain(ctx context.Context, sessionID string, snapshots <-chan agent.Snapshot, events chan<- models.StreamEvent) {
	start := time.Now()
	state := &turnState{seen: map[string]bool{}}

	for snap := range snapshots {
		if snap.Err != nil {
			c.finishFaulted(ctx, sessionID, state, snap.Err, events, start)
			return
		}
		if !state.seeded {
			state.seeded = true
			state.baseline = len(snap.Messages)
			continue
		}
		if len(snap.Messages) <= state.baseline {
			continue
		}
		for _, msg := range snap.Messages[state.baseline:] {
			if msg == nil {
				continue
			}
			// Messages without an id cannot be deduplicated; the runtime
			// always assigns ids, so in practice each is seen once.
			if msg.ID != "" {
				if state.seen[msg.ID] {
					continue
				}
				state.seen[msg.ID] = true
			}
			c.emitMessage(ctx, state, msg, events)
		}
	}

	c.finishNormal(ctx, sessionID, state, events, start)
}

func (c *Coordinator) emitMessage(ctx context.Context, state *turnState, msg *models.Message, events chan<- models.StreamEvent) {
	switch msg.Role {
	case models.RoleAssistant:
		if thinking, ok := msg.Metadata["thinking"].(string); ok && thinking != "" {
			c.send(ctx, events, models.StreamEvent{
				Type:    models.EventThinking,
				Content: thinking,
			})
		}
		if len(msg.ToolCalls) > 0 {
			for _, tc := range msg.ToolCalls {
				c.send(ctx, events, models.StreamEvent{
					Type:  models.EventToolCall,
					Tool:  tc.Name,
					Input: string(tc.Input),
					Label: fmt.Sprintf("Running %s", tc.Name),
				})
			}
			return
		}
		if msg.Content != "" {
			state.finalCandidate = msg.Content
			c.send(ctx, events, models.StreamEvent{
				Type:    models.EventStep,
				Content: msg.Content,
			})
		}
	case models.RoleTool:
		for _, tr := range msg.ToolResults {
			c.send(ctx, events, models.StreamEvent{
				Type:    models.EventToolResult,
				Tool:    tr.Name,
				Content: previewToolResult(tr.Content),
				Label:   fmt.Sprintf("Result from %s", tr.Name),
			})
		}
	}
}

func (c *Coordinator) finishNormal(ctx context.Context, sessionID string, state *turnState, events chan<- models.StreamEvent, start time.Time) {
	final := state.finalCandidate
	if final == "" {
		final = emptyResponseFallback
	}
	if isValidationError(final) {
		final = validationErrorMessage
	}
	c.repair(ctx, sessionID)
	c.send(ctx, events, models.StreamEvent{
		Type:    models.EventFinal,
		Content: final,
		IsFinal: true,
	})
	if c.metrics != nil {
		c.metrics.RecordTurn("stream", "success", time.Since(start).Seconds())
	}
}

func (c *Coordinator) finishFaulted(ctx context.Context, sessionID string, state *turnState, err error, events chan<- models.StreamEvent, start time.Time) {
	text := err.Error()
	var final string
	if isValidationError(text) {
		final = validationErrorMessage
	} else {
		final = "I encountered an error: " + truncate(text, 200)
	}
	if c.logger != nil {
		c.logger.Error(ctx, "turn failed",
			"session_id", sessionID,
			"error", truncate(text, 200))
	}
	c.repair(ctx, sessionID)
	c.send(ctx, events, models.StreamEvent{
		Type:    models.EventFinal,
		Content: final,
		IsFinal: true,
	})
	if c.metrics != nil {
		c.metrics.RecordTurn("stream", "error", time.Since(start).Seconds())
	}
}

// repair runs defensively on both terminal paths. Failures are logged and
// swallowed: the client still gets its final event.
func (c *Coordinator) repair(ctx context.Context, sessionID string) {
	if c.repairer == nil {
		return
	}
	repaired, err := c.repairer.Repair(ctx, sessionID)
	if err != nil {
		if c.logger != nil {
			c.logger.Error(ctx, "session repair failed",
				"session_id", sessionID, "error", err.Error())
		}
		return
	}
	if repaired && c.logger != nil {
		c.logger.Info(ctx, "session repaired after turn", "session_id", sessionID)
	}
}

func (c *Coordinator) send(ctx context.Context, events chan<- models.StreamEvent, event models.StreamEvent) {
	select {
	case events <- event:
		if c.metrics != nil {
			c.metrics.RecordStreamEvent(string(event.Type))
		}
	case <-ctx.Done():
	}
}

// isValidationError reports whether text carries the tool server's raw
// invalid-params error code.
func isValidationError(text string) bool {
	return strings.Contains(text, "MCP error -32602") || strings.Contains(text, "error -32602")
}

func previewToolResult(content string) string {
	if len(content) <= toolResultPreviewLimit {
		return content
	}
	runes := []rune(content)
	if len(runes) <= toolResultPreviewLimit {
		return content
	}
	return string(runes[:toolResultPreviewLimit]) + "..."
}

// truncate cuts s to n characters on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
