package model

// RunStatus mirrors the remote assistant run lifecycle.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// Pending reports whether the run is still being processed remotely.
func (s RunStatus) Pending() bool {
	return s == RunStatusQueued || s == RunStatusInProgress
}

// Run is a snapshot of a remote run. It is never persisted.
type Run struct {
	ID               string
	Status           RunStatus
	ToolCalls        []ToolCall // pending calls when Status is requires_action
	IncompleteReason string
	LastErrorCode    string
	LastErrorMessage string
}

// ToolCall is one function invocation requested by a run.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded
}

// ToolOutput answers a ToolCall.
type ToolOutput struct {
	ToolCallID string
	Output     string
}

// AssistantMessage is the answer produced by a completed run.
type AssistantMessage struct {
	ID          string
	Text        string
	Annotations []Annotation
}

// AnnotationType distinguishes inline citations from generated-file links.
type AnnotationType string

const (
	AnnotationFileCitation AnnotationType = "file_citation"
	AnnotationFilePath     AnnotationType = "file_path"
)

// Annotation marks a span of AssistantMessage.Text that refers to a file.
type Annotation struct {
	Type   AnnotationType
	Text   string // the annotated span as it appears in the message
	FileID string
	Quote  string
}
