package assistant

import (
	"errors"
	"fmt"

	"samhq.app/sam/internal/model"
)

// Sentinel is returned to the user instead of an answer when a run fails.
const Sentinel = "🤯"

var (
	// ErrMaxRetriesExceeded means the run stayed queued or in progress for
	// more polls than the retry budget allows.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrNoAssistantMessage means the run completed but the thread holds no
	// assistant answer.
	ErrNoAssistantMessage = errors.New("no assistant message found")
)

// ToolError wraps a failure returned by a tool body.
type ToolError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// IncompleteRunError carries the reason the remote run ended incomplete.
type IncompleteRunError struct {
	RunID  string
	Reason string
}

func (e *IncompleteRunError) Error() string {
	return fmt.Sprintf("run %s incomplete: %s", e.RunID, e.Reason)
}

// RunFailedError is any other terminal status: failed, cancelled or expired.
type RunFailedError struct {
	RunID   string
	Status  model.RunStatus
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	msg := fmt.Sprintf("run %s failed with status %s", e.RunID, e.Status)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	return msg
}
