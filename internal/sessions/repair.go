package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vizlab-ai/vizchat/internal/observability"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// orphanedCallContent is the content of a synthesized error result. Kept
// generic on purpose: the real failure cause is unknown by the time repair
// runs, and the model only needs enough to recover on the next turn.
const orphanedCallContent = "The tool call failed to complete. This may be caused by a network error, " +
	"a permission issue, or temporary service unavailability. " +
	"Please retry or use a different approach."

// Repairer makes a session's history internally consistent again after a
// turn ended with tool calls that never received results. It appends
// synthetic error results for the orphans; it never reorders or removes
// existing messages.
type Repairer struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRepairer creates a Repairer over the given store. Logger and metrics
// may be nil.
func NewRepairer(store Store, logger *observability.Logger, metrics *observability.Metrics) *Repairer {
	return &Repairer{store: store, logger: logger, metrics: metrics}
}

// Repair scans the session's history for assistant tool calls without a
// matching tool result and appends a synthetic error result for each. It
// returns true iff anything was synthesized, so an immediate second call
// returns false. An unknown or empty session is a no-op.
func (r *Repairer) Repair(ctx context.Context, sessionID string) (bool, error) {
	history, err := r.store.GetHistory(ctx, sessionID, 0)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(history) == 0 {
		return false, nil
	}

	orphans := FindOrphanedCalls(history)
	if len(orphans) == 0 {
		if r.metrics != nil {
			r.metrics.RecordRepair(false)
		}
		return false, nil
	}

	for _, tc := range orphans {
		synthetic := makeMissingToolResult(tc.ID, tc.Name)
		if err := r.store.AppendMessage(ctx, sessionID, synthetic); err != nil {
			return false, err
		}
	}

	if r.logger != nil {
		r.logger.Warn(ctx, "repaired orphaned tool calls",
			"session_id", sessionID,
			"synthesized", len(orphans))
	}
	if r.metrics != nil {
		r.metrics.RecordRepair(true)
	}
	return true, nil
}

// FindOrphanedCalls returns the tool calls in the history that have no
// matching tool result, in the order they appear.
func FindOrphanedCalls(history []*models.Message) []models.ToolCall {
	resolved := make(map[string]bool)
	for _, msg := range history {
		if msg == nil || msg.Role != models.RoleTool {
			continue
		}
		for _, tr := range msg.ToolResults {
			if tr.ToolCallID != "" {
				resolved[tr.ToolCallID] = true
			}
		}
	}

	var orphans []models.ToolCall
	for _, msg := range history {
		if msg == nil || msg.Role != models.RoleAssistant {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.ID != "" && !resolved[tc.ID] {
				orphans = append(orphans, tc)
			}
		}
	}
	return orphans
}

// makeMissingToolResult creates a synthetic error result for an orphaned
// tool call.
func makeMissingToolResult(toolCallID, toolName string) *models.Message {
	if toolName == "" {
		toolName = "unknown"
	}
	return &models.Message{
		ID:   uuid.NewString(),
		Role: models.RoleTool,
		ToolResults: []models.ToolResult{
			{
				ToolCallID: toolCallID,
				Name:       toolName,
				Content:    orphanedCallContent,
				IsError:    true,
			},
		},
		Metadata: map[string]any{
			"synthetic": true,
			"tool_name": toolName,
		},
		CreatedAt: time.Now(),
	}
}
