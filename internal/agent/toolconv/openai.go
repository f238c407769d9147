// Package toolconv converts internal tool definitions to provider wire
// formats.
package toolconv

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vizlab-ai/vizchat/internal/agent"
)

// ToOpenAITools converts internal tool definitions to OpenAI function schema.
// A tool with an unparseable schema degrades to an empty object schema so one
// bad tool cannot break function calling for the rest.
func ToOpenAITools(tools []agent.Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			schemaMap = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}

		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schemaMap,
			},
		}
	}
	return result
}
