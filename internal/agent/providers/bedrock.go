package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/vizlab-ai/vizchat/internal/agent"
	"github.com/vizlab-ai/vizchat/internal/agent/toolconv"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// BedrockProvider implements agent.LLMProvider for AWS Bedrock foundation
// models via the ConverseStream API. Authentication uses the standard AWS
// credential chain unless explicit credentials are configured.
//
// Safe for concurrent use.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	region       string
	base         BaseProvider
}

// BedrockConfig holds configuration for the Bedrock provider.
type BedrockConfig struct {
	// Region is the AWS region (default: us-east-1).
	Region string

	// AccessKeyID and SecretAccessKey set explicit credentials; when empty,
	// the default chain (env, shared config, IAM role) applies.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// DefaultModel is used when a request leaves Model empty.
	DefaultModel string

	// MaxRetries for transient failures (default: 3).
	MaxRetries int

	// RetryDelay base delay between retries (default: 1s).
	RetryDelay time.Duration
}

// NewBedrockProvider creates an AWS Bedrock provider instance.
func NewBedrockProvider(cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	}

	var awsCfg aws.Config
	var err error

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		region:       cfg.Region,
		base:         NewBaseProvider("bedrock", cfg.MaxRetries, cfg.RetryDelay),
	}, nil
}

// Name returns the provider identifier.
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// Models returns a selection of Bedrock models. Actual availability depends
// on the AWS account's model access.
func (p *BedrockProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "anthropic.claude-3-5-sonnet-20240620-v1:0", Name: "Claude 3.5 Sonnet (Bedrock)", ContextSize: 200000},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextSize: 200000},
		{ID: "amazon.titan-text-express-v1", Name: "Titan Text Express", ContextSize: 8192},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)", ContextSize: 8192},
		{ID: "mistral.mixtral-8x7b-instruct-v0:1", Name: "Mixtral 8x7B (Bedrock)", ContextSize: 32768},
	}
}

// SupportsTools reports tool use support via the Converse API.
func (p *BedrockProvider) SupportsTools() bool {
	return true
}

// Complete sends a completion request to Bedrock and returns a streaming
// response channel.
func (p *BedrockProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if p.client == nil {
		return nil, NewProviderError("bedrock", req.Model, errors.New("Bedrock client not initialized"))
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: p.convertMessages(req.Messages),
	}

	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	inference := &types.InferenceConfiguration{}
	hasInference := false
	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		inference.MaxTokens = aws.Int32(int32(maxTokens))
		hasInference = true
	}
	if req.Temperature > 0 {
		inference.Temperature = aws.Float32(float32(req.Temperature))
		hasInference = true
	}
	if hasInference {
		converseReq.InferenceConfig = inference
	}

	if len(req.Tools) > 0 {
		converseReq.ToolConfig = toolconv.ToBedrockTools(req.Tools)
	}

	var stream *bedrockruntime.ConverseStreamOutput
	err := p.base.Retry(ctx, p.isRetryableError, func() error {
		var callErr error
		stream, callErr = p.client.ConverseStream(ctx, converseReq)
		if callErr != nil {
			return p.wrapError(callErr, model)
		}
		return nil
	})
	if err != nil {
		if p.isRetryableError(err) {
			return nil, fmt.Errorf("bedrock: max retries exceeded: %w", err)
		}
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, stream, chunks, model)

	return chunks, nil
}

// processStream consumes the ConverseStream event stream. Tool use blocks
// arrive as a start event carrying id and name, input deltas, and a stop
// event, at which point the accumulated call is emitted.
func (p *BedrockProvider) processStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)

	eventStream := stream.GetStream()
	defer eventStream.Close()

	var currentToolCall *models.ToolCall
	var toolInputBuilder strings.Builder

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			chunks <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		case event, ok := <-eventChan:
			if !ok {
				if currentToolCall != nil && currentToolCall.ID != "" {
					currentToolCall.Input = json.RawMessage(toolInputBuilder.String())
					chunks <- &agent.CompletionChunk{ToolCall: currentToolCall}
				}
				if err := eventStream.Err(); err != nil {
					chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model), Done: true}
				} else {
					chunks <- &agent.CompletionChunk{Done: true}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					currentToolCall = &models.ToolCall{
						ID:   aws.ToString(toolUse.Value.ToolUseId),
						Name: aws.ToString(toolUse.Value.Name),
					}
					toolInputBuilder.Reset()
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						chunks <- &agent.CompletionChunk{Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInputBuilder.WriteString(*delta.Value.Input)
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if currentToolCall != nil && currentToolCall.ID != "" {
					currentToolCall.Input = json.RawMessage(toolInputBuilder.String())
					chunks <- &agent.CompletionChunk{ToolCall: currentToolCall}
					currentToolCall = nil
					toolInputBuilder.Reset()
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				chunks <- &agent.CompletionChunk{Done: true}
				return
			}
		}
	}
}

// convertMessages converts internal messages to Bedrock Converse format.
// System messages are skipped here; Converse takes them separately.
func (p *BedrockProvider) convertMessages(messages []agent.CompletionMessage) []types.Message {
	result := make([]types.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []types.ContentBlock

		if msg.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}

		for _, tr := range msg.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: tr.Content},
					},
				},
			})
		}

		for _, tc := range msg.ToolCalls {
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: toolconv.ToBedrockToolUse(tc),
			})
		}

		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}

		if len(content) > 0 {
			result = append(result, types.Message{
				Role:    role,
				Content: content,
			})
		}
	}

	return result
}

func (p *BedrockProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason.IsRetryable()
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "ThrottlingException") ||
		strings.Contains(errMsg, "TooManyRequestsException") ||
		strings.Contains(errMsg, "ServiceUnavailableException") {
		return true
	}
	return ClassifyError(err).IsRetryable()
}

func (p *BedrockProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}
	return NewProviderError("bedrock", model, err)
}
