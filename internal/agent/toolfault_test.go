package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

type scriptedTool struct {
	name string
	err  error
	out  string
}

func (t *scriptedTool) Name() string            { return t.name }
func (t *scriptedTool) Description() string     { return "scripted tool for tests" }
func (t *scriptedTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *scriptedTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &ToolResult{Content: t.out}, nil
}

func TestNormalizeToolErrorClasses(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass FaultClass
		wantParts []string
	}{
		{
			name:      "400 invalid request",
			err:       errors.New("Request failed with status code 400"),
			wantClass: FaultInvalidRequest,
			wantParts: []string{"invalid (HTTP 400)", "query_datasource"},
		},
		{
			name:      "403 access denied",
			err:       errors.New("HTTP 403: permission denied"),
			wantClass: FaultAccessDenied,
			wantParts: []string{"Access denied", "query_datasource", "permissions"},
		},
		{
			name:      "404 not found",
			err:       errors.New("request failed with status code 404"),
			wantClass: FaultNotFound,
			wantParts: []string{"not found (HTTP 404)", "query_datasource"},
		},
		{
			name:      "500 server error",
			err:       errors.New("HTTP 500: internal server error"),
			wantClass: FaultServerError,
			wantParts: []string{"Server error (HTTP 500)", "query_datasource"},
		},
		{
			name:      "case insensitive",
			err:       errors.New("STATUS CODE 403"),
			wantClass: FaultAccessDenied,
			wantParts: []string{"Access denied"},
		},
		{
			name:      "generic",
			err:       errors.New("connection refused"),
			wantClass: FaultGeneric,
			wantParts: []string{"An error occurred when calling 'query_datasource'", "connection refused"},
		},
		{
			name:      "bare code without http context stays generic",
			err:       errors.New("row 403 missing"),
			wantClass: FaultGeneric,
			wantParts: []string{"An error occurred"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fault := NormalizeToolError("query_datasource", tt.err)
			if fault.Class != tt.wantClass {
				t.Errorf("class = %v, want %v", fault.Class, tt.wantClass)
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(fault.Message, part) {
					t.Errorf("message %q missing %q", fault.Message, part)
				}
			}
			if !errors.Is(fault, tt.err) {
				t.Error("cause not preserved")
			}
		})
	}
}

func TestNormalizeToolErrorGenericTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	fault := NormalizeToolError("t", errors.New(long))
	if strings.Contains(fault.Message, strings.Repeat("x", 301)) {
		t.Error("generic message embeds more than 300 chars of the raw error")
	}
	if !strings.Contains(fault.Message, strings.Repeat("x", 300)) {
		t.Error("generic message should embed the first 300 chars")
	}
}

func TestNormalizeToolErrorTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 400)
	fault := NormalizeToolError("t", errors.New(long))
	if !utf8.ValidString(fault.Message) {
		t.Error("truncation split a multi-byte rune")
	}
	if !strings.Contains(fault.Message, strings.Repeat("é", 300)) {
		t.Error("generic message should embed the first 300 characters")
	}
	if strings.Contains(fault.Message, strings.Repeat("é", 301)) {
		t.Error("generic message embeds more than 300 characters")
	}
}

func TestNormalizeToolErrorPassThrough(t *testing.T) {
	original := &ToolFault{Tool: "t", Class: FaultAccessDenied, Message: "Access denied (HTTP 403) when calling 't'."}
	wrapped := fmt.Errorf("execute: %w", original)

	fault := NormalizeToolError("t", wrapped)
	if fault != original {
		t.Error("already-normalized fault should pass through unchanged")
	}
	if strings.Count(fault.Message, "Access denied") != 1 {
		t.Error("fault message was double-wrapped")
	}
}

func TestNormalizedToolDecorator(t *testing.T) {
	inner := &scriptedTool{name: "list_datasources", err: errors.New("HTTP 403: forbidden")}
	wrapped := NormalizeTool(inner, nil, nil)

	if wrapped.Name() != "list_datasources" {
		t.Errorf("Name = %q", wrapped.Name())
	}

	_, err := wrapped.Execute(context.Background(), nil)
	fault, ok := AsToolFault(err)
	if !ok {
		t.Fatalf("error is not a ToolFault: %v", err)
	}
	if fault.Class != FaultAccessDenied {
		t.Errorf("class = %v", fault.Class)
	}

	// Wrapping the wrapper must not double-explain.
	doubled := NormalizeTool(wrapped, nil, nil)
	_, err = doubled.Execute(context.Background(), nil)
	fault2, ok := AsToolFault(err)
	if !ok {
		t.Fatalf("error is not a ToolFault: %v", err)
	}
	if fault2.Message != fault.Message {
		t.Error("double wrapping changed the fault message")
	}
}

func TestNormalizedToolDecoratorSuccess(t *testing.T) {
	inner := &scriptedTool{name: "ok", out: "result"}
	wrapped := NormalizeTool(inner, nil, nil)

	result, err := wrapped.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "result" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestNormalizeToolsSkipsNil(t *testing.T) {
	tools := []Tool{
		&scriptedTool{name: "a"},
		nil,
		&scriptedTool{name: "b"},
	}
	wrapped := NormalizeTools(tools, nil, nil)
	if len(wrapped) != 2 {
		t.Fatalf("got %d wrapped tools, want 2", len(wrapped))
	}
	if wrapped[0].Name() != "a" || wrapped[1].Name() != "b" {
		t.Errorf("wrapped order wrong: %s, %s", wrapped[0].Name(), wrapped[1].Name())
	}
}
