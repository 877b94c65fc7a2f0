package llm

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// FunctionDefinition converts a Tool into the SDK's function declaration.
func FunctionDefinition(t Tool) shared.FunctionDefinitionParam {
	def := shared.FunctionDefinitionParam{
		Name:       t.Name,
		Parameters: shared.FunctionParameters(t.Parameters),
	}
	if t.Description != "" {
		def.Description = openai.String(t.Description)
	}
	return def
}

// AssistantTools converts tools for an Assistants API run.
func AssistantTools(tools []Tool) []openai.AssistantToolUnionParam {
	result := make([]openai.AssistantToolUnionParam, len(tools))
	for i, t := range tools {
		result[i] = openai.AssistantToolUnionParam{
			OfFunction: &openai.FunctionToolParam{
				Function: FunctionDefinition(t),
			},
		}
	}
	return result
}
