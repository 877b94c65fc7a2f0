package assistant

import (
	"bytes"
	"context"
	"fmt"

	"samhq.app/sam/internal/model"
	"samhq.app/sam/internal/tools"
)

// Request is one run of an assistant on a conversation.
type Request struct {
	AssistantID            string
	AdditionalInstructions string
	CallContext            tools.CallContext
}

// Backend is the remote model a Bot talks to.
type Backend interface {
	// UploadFile stores an attachment remotely and returns its id.
	UploadFile(ctx context.Context, name string, content []byte) (string, error)
	// Append mirrors a user message that was just added to conv.
	Append(ctx context.Context, conv *model.Conversation, msg model.Message) error
	// Respond produces the assistant's answer for conv.
	Respond(ctx context.Context, conv *model.Conversation, req Request) (string, error)
}

// AssistantsBackend keeps the history on a remote Assistants thread and
// answers through the RunDriver.
type AssistantsBackend struct {
	threads Threads
	driver  *RunDriver
}

func NewAssistantsBackend(threads Threads, driver *RunDriver) *AssistantsBackend {
	return &AssistantsBackend{threads: threads, driver: driver}
}

func (b *AssistantsBackend) UploadFile(ctx context.Context, name string, content []byte) (string, error) {
	return b.threads.UploadFile(ctx, name, bytes.NewReader(content))
}

func (b *AssistantsBackend) Append(ctx context.Context, conv *model.Conversation, msg model.Message) error {
	if err := b.ensureThread(ctx, conv); err != nil {
		return err
	}
	fileIDs := make([]string, len(msg.Files))
	for i, f := range msg.Files {
		fileIDs[i] = f.ID
	}
	return b.threads.CreateMessage(ctx, conv.ThreadID, msg.Content, fileIDs)
}

func (b *AssistantsBackend) Respond(ctx context.Context, conv *model.Conversation, req Request) (string, error) {
	if err := b.ensureThread(ctx, conv); err != nil {
		return "", err
	}
	return b.driver.Execute(ctx, conv.ThreadID, req.AssistantID, req.AdditionalInstructions, req.CallContext)
}

func (b *AssistantsBackend) ensureThread(ctx context.Context, conv *model.Conversation) error {
	if conv.ThreadID != "" {
		return nil
	}
	id, err := b.threads.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("binding conversation to a thread: %w", err)
	}
	conv.ThreadID = id
	return nil
}
