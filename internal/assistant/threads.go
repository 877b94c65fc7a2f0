package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/openai/openai-go"

	"samhq.app/sam/common/llm"
	"samhq.app/sam/internal/model"
)

// RunRequest starts a run on a thread.
type RunRequest struct {
	AssistantID            string
	AdditionalInstructions string
	Tools                  []llm.Tool
}

// Threads is the remote Assistants API surface the run driver needs.
type Threads interface {
	CreateThread(ctx context.Context) (string, error)
	CreateMessage(ctx context.Context, threadID, content string, fileIDs []string) error
	CreateRun(ctx context.Context, threadID string, req RunRequest) (*model.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*model.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) error
	CancelRun(ctx context.Context, threadID, runID string) error
	// LatestAssistantMessage returns nil when the thread has no assistant message.
	LatestAssistantMessage(ctx context.Context, threadID string) (*model.AssistantMessage, error)
	FileName(ctx context.Context, fileID string) (string, error)
	UploadFile(ctx context.Context, name string, content io.Reader) (string, error)
}

// OpenAIThreads implements Threads on the OpenAI Assistants (beta) API.
type OpenAIThreads struct {
	client openai.Client
}

func NewOpenAIThreads(client openai.Client) *OpenAIThreads {
	return &OpenAIThreads{client: client}
}

func (t *OpenAIThreads) CreateThread(ctx context.Context) (string, error) {
	thread, err := t.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	return thread.ID, nil
}

func (t *OpenAIThreads) CreateMessage(ctx context.Context, threadID, content string, fileIDs []string) error {
	params := openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	}
	for _, id := range fileIDs {
		params.Attachments = append(params.Attachments, openai.BetaThreadMessageNewParamsAttachment{
			FileID: openai.String(id),
			Tools: []openai.BetaThreadMessageNewParamsAttachmentToolUnion{
				{OfFileSearch: &openai.BetaThreadMessageNewParamsAttachmentToolFileSearch{}},
			},
		})
	}

	if _, err := t.client.Beta.Threads.Messages.New(ctx, threadID, params); err != nil {
		return fmt.Errorf("creating message on thread %s: %w", threadID, err)
	}
	return nil
}

func (t *OpenAIThreads) CreateRun(ctx context.Context, threadID string, req RunRequest) (*model.Run, error) {
	params := openai.BetaThreadRunNewParams{
		AssistantID: req.AssistantID,
	}
	if req.AdditionalInstructions != "" {
		params.AdditionalInstructions = openai.String(req.AdditionalInstructions)
	}
	if len(req.Tools) > 0 {
		// Keep the assistant's built-in tools alongside the local functions.
		params.Tools = append([]openai.AssistantToolUnionParam{
			{OfFileSearch: &openai.FileSearchToolParam{}},
		}, llm.AssistantTools(req.Tools)...)
	}

	run, err := t.client.Beta.Threads.Runs.New(ctx, threadID, params)
	if err != nil {
		return nil, fmt.Errorf("creating run on thread %s: %w", threadID, err)
	}
	return toRun(run), nil
}

func (t *OpenAIThreads) GetRun(ctx context.Context, threadID, runID string) (*model.Run, error) {
	run, err := t.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("retrieving run %s: %w", runID, err)
	}
	return toRun(run), nil
}

func (t *OpenAIThreads) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) error {
	params := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, len(outputs)),
	}
	for i, o := range outputs {
		params.ToolOutputs[i] = openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(o.ToolCallID),
			Output:     openai.String(o.Output),
		}
	}

	if _, err := t.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params); err != nil {
		return fmt.Errorf("submitting tool outputs for run %s: %w", runID, err)
	}
	return nil
}

func (t *OpenAIThreads) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := t.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID); err != nil {
		return fmt.Errorf("cancelling run %s: %w", runID, err)
	}
	return nil
}

func (t *OpenAIThreads) LatestAssistantMessage(ctx context.Context, threadID string) (*model.AssistantMessage, error) {
	page, err := t.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(20),
	})
	if err != nil {
		return nil, fmt.Errorf("listing messages on thread %s: %w", threadID, err)
	}

	for _, msg := range page.Data {
		if msg.Role != openai.MessageRoleAssistant {
			continue
		}
		for _, content := range msg.Content {
			if content.Type != "text" {
				continue
			}
			return &model.AssistantMessage{
				ID:          msg.ID,
				Text:        content.Text.Value,
				Annotations: toAnnotations(content.Text.Annotations),
			}, nil
		}
	}
	return nil, nil
}

func (t *OpenAIThreads) FileName(ctx context.Context, fileID string) (string, error) {
	f, err := t.client.Files.Get(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("retrieving file %s: %w", fileID, err)
	}
	return f.Filename, nil
}

func (t *OpenAIThreads) UploadFile(ctx context.Context, name string, content io.Reader) (string, error) {
	f, err := t.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(content, name, ""),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("uploading file %s: %w", name, err)
	}
	return f.ID, nil
}

func toRun(r *openai.Run) *model.Run {
	run := &model.Run{
		ID:               r.ID,
		Status:           model.RunStatus(r.Status),
		IncompleteReason: r.IncompleteDetails.Reason,
		LastErrorCode:    string(r.LastError.Code),
		LastErrorMessage: r.LastError.Message,
	}
	for _, call := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
		run.ToolCalls = append(run.ToolCalls, model.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return run
}

func toAnnotations(in []openai.AnnotationUnion) []model.Annotation {
	out := make([]model.Annotation, 0, len(in))
	for _, a := range in {
		ann := model.Annotation{
			Type: model.AnnotationType(a.Type),
			Text: a.Text,
		}
		switch ann.Type {
		case model.AnnotationFileCitation:
			ann.FileID = a.FileCitation.FileID
			// The quote is not part of the typed SDK struct.
			if field, ok := a.FileCitation.JSON.ExtraFields["quote"]; ok {
				_ = json.Unmarshal([]byte(field.Raw()), &ann.Quote)
			}
		case model.AnnotationFilePath:
			ann.FileID = a.FilePath.FileID
		}
		out = append(out, ann)
	}
	return out
}
