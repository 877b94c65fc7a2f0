package assistant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"samhq.app/sam/common/logger"
	"samhq.app/sam/internal/model"
	"samhq.app/sam/internal/tools"
)

// ConversationStore is implemented by *store.ConversationStore.
type ConversationStore interface {
	Get(ctx context.Context, key string) (*model.Conversation, error)
	Set(ctx context.Context, key string, conv *model.Conversation) error
}

// Attachment is a file shared alongside a user message.
type Attachment struct {
	Name    string
	Content []byte
}

// Bot appends messages to conversations and answers them. Callers hold the
// conversation lock around AddMessage and ExecuteRun.
type Bot struct {
	store   ConversationStore
	backend Backend
	audio   Audio
	metrics *Metrics
}

func NewBot(store ConversationStore, backend Backend, audio Audio, metrics *Metrics) *Bot {
	return &Bot{
		store:   store,
		backend: backend,
		audio:   audio,
		metrics: metrics,
	}
}

// AddMessage appends a user message to the conversation at key. Audio
// attachments are transcribed into the text; other attachments are uploaded
// and referenced. It reports whether files were attached and whether the
// prompt was spoken.
func (b *Bot) AddMessage(ctx context.Context, key, content string, files []Attachment) (hasAttachments, voicePrompt bool, err error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ConversationKey: logger.Ptr(key)})
	slog.InfoContext(ctx, "adding message", "attachments", len(files))

	var fileIDs []string
	for _, f := range files {
		if IsAudio(f.Name) {
			slog.DebugContext(ctx, "transcribing audio file", "file", f.Name)
			text, err := b.audio.Transcribe(ctx, f.Name, f.Content)
			if err != nil {
				return false, false, err
			}
			content += "\n" + text
			voicePrompt = true
			continue
		}

		slog.DebugContext(ctx, "uploading file", "file", f.Name)
		id, err := b.backend.UploadFile(ctx, f.Name, f.Content)
		if err != nil {
			return false, false, err
		}
		fileIDs = append(fileIDs, id)
	}

	conv, err := b.store.Get(ctx, key)
	if err != nil {
		return false, false, err
	}

	refs := conv.AttachFiles(fileIDs...)
	conv.Append(model.RoleUser, content, refs...)
	msg, _ := conv.LastMessage()

	if err := b.backend.Append(ctx, conv, msg); err != nil {
		return false, false, err
	}
	if err := b.store.Set(ctx, key, conv); err != nil {
		return false, false, err
	}

	return len(fileIDs) > 0, voicePrompt, nil
}

// ExecuteRun answers the conversation at key. It always returns text: the
// answer, or Sentinel when anything fails.
func (b *Bot) ExecuteRun(ctx context.Context, key string, req Request) string {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ConversationKey: logger.Ptr(key)})
	start := time.Now()

	answer, err := b.executeRun(ctx, key, req)
	if err != nil {
		outcome := failureOutcome(err)
		b.metrics.RecordRun(outcome, time.Since(start))
		slog.ErrorContext(ctx, "run failed",
			"assistant_id", req.AssistantID,
			"outcome", outcome,
			"error", err)
		return Sentinel
	}

	b.metrics.RecordRun("completed", time.Since(start))
	return answer
}

func (b *Bot) executeRun(ctx context.Context, key string, req Request) (string, error) {
	slog.InfoContext(ctx, "running assistant", "assistant_id", req.AssistantID)

	conv, err := b.store.Get(ctx, key)
	if err != nil {
		return "", err
	}

	answer, err := b.backend.Respond(ctx, conv, req)
	if err != nil {
		return "", err
	}

	conv.Append(model.RoleAssistant, answer)
	if err := b.store.Set(ctx, key, conv); err != nil {
		return "", err
	}
	return answer, nil
}

// TTS converts text to speech.
func (b *Bot) TTS(ctx context.Context, text string) ([]byte, error) {
	return b.audio.Speech(ctx, text)
}

// STT converts speech to text.
func (b *Bot) STT(ctx context.Context, name string, audio []byte) (string, error) {
	return b.audio.Transcribe(ctx, name, audio)
}

func failureOutcome(err error) string {
	var (
		notFound   *tools.ToolNotFoundError
		invalid    *tools.InvalidArgumentsError
		toolErr    *ToolError
		incomplete *IncompleteRunError
		failed     *RunFailedError
	)
	switch {
	case errors.Is(err, ErrMaxRetriesExceeded):
		return "max_retries"
	case errors.As(err, &notFound):
		return "tool_not_found"
	case errors.As(err, &invalid):
		return "invalid_arguments"
	case errors.As(err, &toolErr):
		return "tool_error"
	case errors.As(err, &incomplete):
		return "incomplete"
	case errors.As(err, &failed):
		return string(failed.Status)
	case errors.Is(err, ErrNoAssistantMessage):
		return "no_message"
	default:
		return "error"
	}
}
