package tools

import (
	"context"
	"errors"
	"fmt"

	"samhq.app/sam/common/llm"
	"samhq.app/sam/internal/model"
)

// CallContext is injected into every tool call. It is never part of a
// tool's parameter schema, so the model cannot set it.
type CallContext struct {
	User      model.User
	ChannelID string
}

// Handler runs a tool with raw JSON arguments.
type Handler func(ctx context.Context, arguments string, cc CallContext) (string, error)

// Definition is a tool implementation before it is bound to a name.
type Definition struct {
	Description string
	params      any
	handler     Handler
	enums       map[string][]string
	unavailable string
}

// Unavailable marks a catalog entry whose backend is not configured.
func Unavailable(reason string) Definition {
	return Definition{unavailable: reason}
}

// Func declares a tool whose arguments decode into T. The schema is reflected
// from T: fields without omitempty are required.
func Func[T any](description string, fn func(ctx context.Context, args T, cc CallContext) (string, error)) Definition {
	var zero T
	return Definition{
		Description: description,
		params:      zero,
		handler: func(ctx context.Context, arguments string, cc CallContext) (string, error) {
			args, err := llm.ParseToolArguments[T](arguments)
			if err != nil {
				return "", &InvalidArgumentsError{Arguments: arguments, Err: err}
			}
			return fn(ctx, args, cc)
		},
	}
}

// WithEnum restricts a string property to values known only at runtime.
func (d Definition) WithEnum(property string, values []string) Definition {
	enums := make(map[string][]string, len(d.enums)+1)
	for k, v := range d.enums {
		enums[k] = v
	}
	enums[property] = values
	d.enums = enums
	return d
}

// Tool is a named, schema-described function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	handler     Handler
}

func bind(name string, def Definition, additional string) (*Tool, error) {
	params, err := llm.GenerateParameters(def.params)
	if err != nil {
		return nil, fmt.Errorf("generating schema for %s: %w", name, err)
	}

	props, _ := params["properties"].(map[string]any)
	for property, values := range def.enums {
		prop, ok := props[property].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tool %s: enum for unknown property %q", name, property)
		}
		enum := make([]any, len(values))
		for i, v := range values {
			enum[i] = v
		}
		prop["enum"] = enum
	}

	description := def.Description
	if additional != "" {
		description += "\n\n" + additional
	}

	return &Tool{
		Name:        name,
		Description: description,
		Parameters:  params,
		handler:     def.handler,
	}, nil
}

// Invoke decodes arguments and runs the tool. Malformed arguments yield an
// *InvalidArgumentsError; errors from the tool body are returned unchanged.
func (t *Tool) Invoke(ctx context.Context, arguments string, cc CallContext) (string, error) {
	out, err := t.handler(ctx, arguments, cc)
	var invalid *InvalidArgumentsError
	if errors.As(err, &invalid) && invalid.Tool == "" {
		invalid.Tool = t.Name
	}
	return out, err
}

// Declaration returns the tool in the shape sent to the model.
func (t *Tool) Declaration() llm.Tool {
	return llm.Tool{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}
