package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vizlab-ai/vizchat/internal/agent"
	"github.com/vizlab-ai/vizchat/internal/agent/toolconv"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// OpenAIProvider implements agent.LLMProvider for OpenAI chat models.
//
// It converts between the internal message format and OpenAI's API format,
// streams responses, retries transient failures with linear backoff, and
// accumulates incrementally streamed tool calls.
//
// OpenAI-specific behavior worth knowing:
//   - The system prompt is injected as the first message in the array.
//   - Tool calls stream in fragments (ID, name, argument chunks arrive in
//     separate deltas) and complete when FinishReason is "tool_calls".
//   - Each tool result becomes a separate message with role "tool".
//
// Safe for concurrent use; each Complete call creates an independent stream.
type OpenAIProvider struct {
	client *openai.Client
	base   BaseProvider
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	// APIKey authenticates against the OpenAI API. Required.
	APIKey string

	// BaseURL overrides the API endpoint for proxies or compatible APIs.
	BaseURL string

	// MaxRetries for transient failures (default: 3).
	MaxRetries int

	// RetryDelay base delay between retries (default: 1s).
	RetryDelay time.Duration
}

// NewOpenAIProvider creates an OpenAI provider. An empty API key is allowed;
// Complete returns an error until one is configured.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	p := &OpenAIProvider{
		base: NewBaseProvider("openai", cfg.MaxRetries, cfg.RetryDelay),
	}
	if cfg.APIKey == "" {
		return p
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientCfg)
	return p
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Models returns the supported OpenAI models.
func (p *OpenAIProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gpt-4.1", Name: "GPT-4.1", ContextSize: 1047576},
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextSize: 128000},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000},
	}
}

// SupportsTools reports tool calling support. Always true for OpenAI.
func (p *OpenAIProvider) SupportsTools() bool {
	return true
}

// Complete sends a completion request and returns a streaming response
// channel. Errors returned directly are immediate failures; errors during
// streaming arrive as chunks with Error set.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if p.client == nil {
		return nil, errors.New("OpenAI API key not configured")
	}

	messages := p.convertMessages(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		Stream:      true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toolconv.ToOpenAITools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	err := p.base.Retry(ctx, IsRetryable, func() error {
		var streamErr error
		stream, streamErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if streamErr != nil {
			return p.wrapError(streamErr, req.Model)
		}
		return nil
	})
	if err != nil {
		if IsRetryable(err) {
			return nil, fmt.Errorf("openai: max retries exceeded: %w", err)
		}
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, stream, chunks, req.Model)

	return chunks, nil
}

// processStream consumes the OpenAI stream: text deltas are emitted
// immediately, tool call fragments are accumulated by index and emitted when
// the model finishes with "tool_calls" (or at EOF if still pending).
func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)

	for {
		select {
		case <-ctx.Done():
			chunks <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				for _, tc := range toolCalls {
					if tc.ID != "" && tc.Name != "" {
						chunks <- &agent.CompletionChunk{ToolCall: tc}
					}
				}
				chunks <- &agent.CompletionChunk{Done: true}
				return
			}
			chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model), Done: true}
			return
		}

		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta

		if delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &models.ToolCall{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				// Arguments stream as JSON fragments; append in order.
				toolCalls[index].Input = json.RawMessage(string(toolCalls[index].Input) + tc.Function.Arguments)
			}
		}

		if response.Choices[0].FinishReason == "tool_calls" {
			for _, tc := range toolCalls {
				if tc.ID != "" && tc.Name != "" {
					chunks <- &agent.CompletionChunk{ToolCall: tc}
				}
			}
			toolCalls = make(map[int]*models.ToolCall)
		}
	}
}

// convertMessages converts internal messages to OpenAI format. The system
// prompt becomes the first message; tool results expand into one message per
// result with role "tool".
func (p *OpenAIProvider) convertMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			for _, tr := range msg.ToolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}

		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Input),
						},
					}
				}
			}
			result = append(result, oaiMsg)

		default:
			result = append(result, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}

	return result
}

func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}
	provErr := NewProviderError("openai", model, err)
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		provErr.WithStatus(apiErr.HTTPStatusCode)
	}
	return provErr
}
