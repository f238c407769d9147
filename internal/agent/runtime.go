package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vizlab-ai/vizchat/internal/observability"
	"github.com/vizlab-ai/vizchat/internal/sessions"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// snapshotBufferSize buffers snapshot delivery so the loop is not blocked on
// a slow consumer for every message.
const snapshotBufferSize = 8

// ErrNoProvider is returned when the runtime has no LLM provider configured.
var ErrNoProvider = errors.New("no LLM provider configured")

// RuntimeConfig carries the per-turn model settings for the runtime.
type RuntimeConfig struct {
	// Model is the model id passed to the provider.
	Model string

	// SystemPrompt overrides DefaultSystemPrompt when set.
	SystemPrompt string

	// Temperature in [0, 1].
	Temperature float64

	// MaxTokens caps the response length (0 = provider default).
	MaxTokens int

	// MaxIterations limits tool-use round trips per turn. Default: 10.
	MaxIterations int
}

func sanitizeRuntimeConfig(cfg RuntimeConfig) RuntimeConfig {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return cfg
}

// Runtime drives a multi-turn tool-use loop over an LLM provider. Each turn
// alternates between a provider completion and tool execution until the
// model answers without requesting tools, or the iteration limit is hit.
//
// The runtime persists every message to the session store as it goes and
// emits a Snapshot of the full history after each state change. Consumers
// see conversation state, not deltas; they are expected to track their own
// baseline.
type Runtime struct {
	provider LLMProvider
	tools    []Tool
	byName   map[string]Tool
	store    sessions.Store
	config   RuntimeConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewRuntime creates a runtime. Tools should already be wrapped with fault
// normalization so execution errors arrive as ToolFaults.
func NewRuntime(provider LLMProvider, tools []Tool, store sessions.Store, cfg RuntimeConfig, logger *observability.Logger, metrics *observability.Metrics) *Runtime {
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		if tool != nil {
			byName[tool.Name()] = tool
		}
	}
	return &Runtime{
		provider: provider,
		tools:    tools,
		byName:   byName,
		store:    store,
		config:   sanitizeRuntimeConfig(cfg),
		logger:   logger,
		metrics:  metrics,
	}
}

// Stream appends the user message to the session and runs the tool-use loop,
// emitting a Snapshot after every persisted message. The first snapshot
// contains only prior history plus the user message, so consumers can use
// its length as the turn baseline.
//
// The channel is closed when the turn completes. A snapshot with Err set is
// terminal: the loop stops and no further snapshots follow.
func (r *Runtime) Stream(ctx context.Context, sessionID, message string) (<-chan Snapshot, error) {
	if r.provider == nil {
		return nil, ErrNoProvider
	}
	if _, err := r.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	userMsg := &models.Message{Role: models.RoleUser, Content: message}
	if err := r.store.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}

	snapshots := make(chan Snapshot, snapshotBufferSize)
	go func() {
		defer close(snapshots)
		r.run(ctx, sessionID, snapshots)
	}()
	return snapshots, nil
}

func (r *Runtime) run(ctx context.Context, sessionID string, snapshots chan<- Snapshot) {
	if !r.emitSnapshot(ctx, sessionID, snapshots) {
		return
	}

	for iteration := 0; iteration < r.config.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			r.emit(ctx, snapshots, Snapshot{Err: ctx.Err()})
			return
		}

		history, err := r.store.GetHistory(ctx, sessionID, 0)
		if err != nil {
			r.emit(ctx, snapshots, Snapshot{Err: err})
			return
		}

		assistant, err := r.complete(ctx, history)
		if err != nil {
			r.emit(ctx, snapshots, Snapshot{Err: err})
			return
		}

		if err := r.store.AppendMessage(ctx, sessionID, assistant); err != nil {
			r.emit(ctx, snapshots, Snapshot{Err: err})
			return
		}
		if !r.emitSnapshot(ctx, sessionID, snapshots) {
			return
		}

		if len(assistant.ToolCalls) == 0 {
			return
		}

		for _, tc := range assistant.ToolCalls {
			result := r.executeTool(ctx, tc)
			toolMsg := &models.Message{
				Role:        models.RoleTool,
				ToolResults: []models.ToolResult{result},
			}
			if err := r.store.AppendMessage(ctx, sessionID, toolMsg); err != nil {
				r.emit(ctx, snapshots, Snapshot{Err: err})
				return
			}
			if !r.emitSnapshot(ctx, sessionID, snapshots) {
				return
			}
		}
	}

	if r.logger != nil {
		r.logger.Warn(ctx, "turn hit iteration limit",
			"session_id", sessionID,
			"max_iterations", r.config.MaxIterations)
	}
}

// complete runs one provider completion over the history and collects the
// streamed chunks into a single assistant message.
func (r *Runtime) complete(ctx context.Context, history []*models.Message) (*models.Message, error) {
	req := &CompletionRequest{
		Model:       r.config.Model,
		System:      r.config.SystemPrompt,
		Messages:    toCompletionMessages(history),
		Tools:       r.tools,
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
	}

	start := time.Now()
	chunks, err := r.provider.Complete(ctx, req)
	if err != nil {
		r.recordLLMRequest("error", start)
		return nil, err
	}

	var content, thinking strings.Builder
	var toolCalls []models.ToolCall
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			r.recordLLMRequest("error", start)
			return nil, chunk.Error
		}
		content.WriteString(chunk.Text)
		thinking.WriteString(chunk.Thinking)
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
		if chunk.Done {
			break
		}
	}
	r.recordLLMRequest("success", start)

	assistant := &models.Message{
		Role:      models.RoleAssistant,
		Content:   content.String(),
		ToolCalls: toolCalls,
	}
	if thinking.Len() > 0 {
		assistant.Metadata = map[string]any{"thinking": thinking.String()}
	}
	return assistant, nil
}

// executeTool runs a single tool call and converts every failure mode into
// an error result. The loop keeps going regardless of what a tool does; the
// model sees the error text and can adjust.
func (r *Runtime) executeTool(ctx context.Context, tc models.ToolCall) models.ToolResult {
	result := models.ToolResult{ToolCallID: tc.ID, Name: tc.Name}

	tool, ok := r.byName[tc.Name]
	if !ok {
		result.Content = "Tool '" + tc.Name + "' is not available. Use one of the provided tools."
		result.IsError = true
		if r.logger != nil {
			r.logger.Warn(ctx, "model requested unknown tool", "tool", tc.Name)
		}
		return result
	}

	out, err := tool.Execute(ctx, tc.Input)
	if err != nil {
		result.Content = err.Error()
		result.IsError = true
		return result
	}
	result.Content = out.Content
	result.IsError = out.IsError
	return result
}

func (r *Runtime) emitSnapshot(ctx context.Context, sessionID string, snapshots chan<- Snapshot) bool {
	history, err := r.store.GetHistory(ctx, sessionID, 0)
	if err != nil {
		r.emit(ctx, snapshots, Snapshot{Err: err})
		return false
	}
	return r.emit(ctx, snapshots, Snapshot{Messages: history})
}

func (r *Runtime) emit(ctx context.Context, snapshots chan<- Snapshot, snap Snapshot) bool {
	select {
	case snapshots <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runtime) recordLLMRequest(status string, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordLLMRequest(r.provider.Name(), r.config.Model, status, time.Since(start).Seconds())
	}
}

// toCompletionMessages converts stored history into the provider request
// shape. Synthetic repair results convert like any other tool result.
func toCompletionMessages(history []*models.Message) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, msg := range history {
		if msg == nil {
			continue
		}
		out = append(out, CompletionMessage{
			Role:        string(msg.Role),
			Content:     msg.Content,
			ToolCalls:   msg.ToolCalls,
			ToolResults: msg.ToolResults,
		})
	}
	return out
}
