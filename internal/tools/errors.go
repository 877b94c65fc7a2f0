package tools

import "fmt"

// ToolNotFoundError is returned by Lookup for a name that was never registered.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// InvalidArgumentsError means the model sent arguments that do not decode
// into the tool's parameters.
type InvalidArgumentsError struct {
	Tool      string
	Arguments string
	Err       error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Tool, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error {
	return e.Err
}

// UnknownPathError is a startup configuration error: a declaration names an
// implementation that does not exist.
type UnknownPathError struct {
	Tool string
	Path string
}

func (e *UnknownPathError) Error() string {
	return fmt.Sprintf("tool %s: unknown implementation path %q", e.Tool, e.Path)
}

// UnavailableError is a startup configuration error: a declared tool needs a
// backend that is not configured.
type UnavailableError struct {
	Tool   string
	Path   string
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("tool %s (%s) is not available: %s", e.Tool, e.Path, e.Reason)
}
