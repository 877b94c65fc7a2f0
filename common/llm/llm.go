package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Tool describes a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object for the arguments
}

// ParseToolArguments unmarshals tool arguments into the target struct.
// An empty argument string is treated as an empty object.
func ParseToolArguments[T any](arguments string) (T, error) {
	var result T
	if arguments == "" {
		arguments = "{}"
	}
	if err := json.Unmarshal([]byte(arguments), &result); err != nil {
		return result, fmt.Errorf("parse tool arguments: %w", err)
	}
	return result, nil
}

// GenerateSchemaFrom reflects a JSON schema from a struct value.
// Fields without omitempty are required; descriptions come from
// `jsonschema_description` tags and closed value sets from `jsonschema:"enum=..."`.
func GenerateSchemaFrom(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// GenerateParameters reflects v into the plain object form expected by
// function-calling APIs: type, properties and required, without $schema/$id.
func GenerateParameters(v any) (map[string]any, error) {
	data, err := json.Marshal(GenerateSchemaFrom(v))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(params, "$schema")
	delete(params, "$id")

	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	if _, ok := params["required"]; !ok {
		params["required"] = []any{}
	}
	return params, nil
}
