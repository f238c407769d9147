package toolconv

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/vizlab-ai/vizchat/internal/agent"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// ToBedrockTools converts internal tool definitions to a Bedrock tool
// configuration for the Converse API.
func ToBedrockTools(tools []agent.Tool) *types.ToolConfiguration {
	bedrockTools := make([]types.Tool, len(tools))

	for i, tool := range tools {
		var schema any
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		bedrockTools[i] = &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Name()),
				Description: aws.String(tool.Description()),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		}
	}

	return &types.ToolConfiguration{Tools: bedrockTools}
}

// ToBedrockToolUse converts an internal tool call to a Bedrock tool use
// block. Unparseable input degrades to an empty object.
func ToBedrockToolUse(tc models.ToolCall) types.ToolUseBlock {
	var inputDoc any
	if err := json.Unmarshal(tc.Input, &inputDoc); err != nil {
		inputDoc = map[string]any{}
	}
	return types.ToolUseBlock{
		ToolUseId: aws.String(tc.ID),
		Name:      aws.String(tc.Name),
		Input:     document.NewLazyDocument(inputDoc),
	}
}
