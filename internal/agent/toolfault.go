package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vizlab-ai/vizchat/internal/observability"
)

// FaultClass labels the transport failure category of a normalized fault.
type FaultClass string

const (
	FaultInvalidRequest FaultClass = "invalid_request"
	FaultAccessDenied   FaultClass = "access_denied"
	FaultNotFound       FaultClass = "not_found"
	FaultServerError    FaultClass = "server_error"
	FaultGeneric        FaultClass = "generic"
)

// ToolFault is a tool execution error that has already been normalized into
// a user-legible explanation. The decorator passes these through unchanged,
// so wrapping is idempotent and faults are never double-explained.
type ToolFault struct {
	Tool    string
	Class   FaultClass
	Message string
	Cause   error
}

// Error returns the normalized, user-facing explanation.
func (f *ToolFault) Error() string {
	return f.Message
}

// Unwrap returns the underlying transport error.
func (f *ToolFault) Unwrap() error {
	return f.Cause
}

// AsToolFault extracts a ToolFault from an error chain.
func AsToolFault(err error) (*ToolFault, bool) {
	var fault *ToolFault
	if errors.As(err, &fault) {
		return fault, true
	}
	return nil, false
}

// NormalizeToolError converts a raw tool execution error into a ToolFault
// with a human-readable message. HTTP status signatures (400, 403, 404, 500)
// in the error text are matched case-insensitively; anything else gets a
// generic explanation embedding the first 300 characters of the raw error.
func NormalizeToolError(toolName string, err error) *ToolFault {
	if fault, ok := AsToolFault(err); ok {
		return fault
	}

	lower := strings.ToLower(err.Error())

	switch {
	case hasHTTPStatus(lower, "400"):
		return &ToolFault{
			Tool:  toolName,
			Class: FaultInvalidRequest,
			Cause: err,
			Message: fmt.Sprintf(
				"The request to '%s' was invalid (HTTP 400). "+
					"This usually means the parameters were malformed or missing required fields. "+
					"Please check the tool arguments and try again.", toolName),
		}
	case hasHTTPStatus(lower, "403"):
		return &ToolFault{
			Tool:  toolName,
			Class: FaultAccessDenied,
			Cause: err,
			Message: fmt.Sprintf(
				"Access denied (HTTP 403) when calling '%s'. "+
					"This is typically a permissions issue. The user may not have access to "+
					"the requested resource, or the authentication credentials may be insufficient. "+
					"Please verify permissions or try a different approach.", toolName),
		}
	case hasHTTPStatus(lower, "404"):
		return &ToolFault{
			Tool:  toolName,
			Class: FaultNotFound,
			Cause: err,
			Message: fmt.Sprintf(
				"Resource not found (HTTP 404) when calling '%s'. "+
					"The requested resource (datasource, view, workbook, etc.) may not exist "+
					"or may have been moved. Please verify the resource identifier and try again.", toolName),
		}
	case hasHTTPStatus(lower, "500"):
		return &ToolFault{
			Tool:  toolName,
			Class: FaultServerError,
			Cause: err,
			Message: fmt.Sprintf(
				"Server error (HTTP 500) when calling '%s'. "+
					"This indicates an internal error on the data server. "+
					"Please try again later or contact support if the issue persists.", toolName),
		}
	default:
		return &ToolFault{
			Tool:  toolName,
			Class: FaultGeneric,
			Cause: err,
			Message: fmt.Sprintf(
				"An error occurred when calling '%s': %s. "+
					"Please try again or use a different approach.",
				toolName, truncate(err.Error(), 300)),
		}
	}
}

// hasHTTPStatus reports whether the lowercased error text carries the given
// HTTP status signature. The bare code counts only when the text also looks
// like an HTTP failure, so numbers inside payloads don't misclassify.
func hasHTTPStatus(lower, code string) bool {
	if strings.Contains(lower, "status code "+code) {
		return true
	}
	return strings.Contains(lower, code) &&
		(strings.Contains(lower, "request failed") || strings.Contains(lower, "http"))
}

// truncate cuts s to n characters on a rune boundary, so multi-byte text is
// never left with a mangled trailing character.
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

// normalizedTool decorates a Tool so that every execution error comes back
// normalized. The wrapped tool is never mutated.
type normalizedTool struct {
	inner   Tool
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NormalizeTool wraps a tool with fault normalization. Name, Description and
// Schema delegate untouched; Execute rewrites errors through
// NormalizeToolError.
func NormalizeTool(tool Tool, logger *observability.Logger, metrics *observability.Metrics) Tool {
	return &normalizedTool{inner: tool, logger: logger, metrics: metrics}
}

func (t *normalizedTool) Name() string            { return t.inner.Name() }
func (t *normalizedTool) Description() string     { return t.inner.Description() }
func (t *normalizedTool) Schema() json.RawMessage { return t.inner.Schema() }

func (t *normalizedTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	result, err := t.inner.Execute(ctx, params)
	if err == nil {
		if t.metrics != nil {
			t.metrics.RecordToolExecution(t.inner.Name(), "success")
		}
		return result, nil
	}

	fault := NormalizeToolError(t.inner.Name(), err)
	if t.logger != nil {
		t.logger.Warn(ctx, "tool error",
			"tool", t.inner.Name(),
			"class", string(fault.Class),
			"error", truncate(err.Error(), 200))
	}
	if t.metrics != nil {
		t.metrics.RecordToolExecution(t.inner.Name(), "error")
		t.metrics.RecordToolFault(t.inner.Name(), string(fault.Class))
	}
	return nil, fault
}

// NormalizeTools wraps a batch of tools with fault normalization. Nil entries
// are skipped with a warning instead of failing the batch.
func NormalizeTools(tools []Tool, logger *observability.Logger, metrics *observability.Metrics) []Tool {
	wrapped := make([]Tool, 0, len(tools))
	for i, tool := range tools {
		if tool == nil {
			if logger != nil {
				logger.Warn(context.Background(), "skipping nil tool in batch", "index", i)
			}
			continue
		}
		wrapped = append(wrapped, NormalizeTool(tool, logger, metrics))
	}
	if logger != nil {
		logger.Info(context.Background(), "wrapped tools with fault normalization",
			"wrapped", len(wrapped), "total", len(tools))
	}
	return wrapped
}
