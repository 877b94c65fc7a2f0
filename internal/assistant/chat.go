package assistant

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"samhq.app/sam/internal/model"
)

// ChatBackend sends the whole conversation to an OpenWebUI chat-completions
// endpoint. The client's base URL must be the OpenWebUI /api root.
type ChatBackend struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewChatBackend(client openai.Client, modelID string) *ChatBackend {
	return &ChatBackend{client: client, model: modelID, timeout: 10 * time.Minute}
}

type uploadedFile struct {
	ID string `json:"id"`
}

func (b *ChatBackend) UploadFile(ctx context.Context, name string, content []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("building upload for %s: %w", name, err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("building upload for %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("building upload for %s: %w", name, err)
	}

	var out uploadedFile
	err = b.client.Post(ctx, "v1/files/", nil, &out,
		option.WithRequestBody(w.FormDataContentType(), body.Bytes()),
		option.WithHeader("Accept", "application/json"),
	)
	if err != nil {
		return "", fmt.Errorf("uploading file %s: %w", name, err)
	}
	return out.ID, nil
}

// Append is a no-op: the full history is sent with every request.
func (b *ChatBackend) Append(context.Context, *model.Conversation, model.Message) error {
	return nil
}

func (b *ChatBackend) Respond(ctx context.Context, conv *model.Conversation, _ Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    conv.Model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(conv.Messages)),
	}
	if params.Model == "" {
		params.Model = b.model
	}
	for _, m := range conv.Messages {
		switch m.Role {
		case model.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		case model.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	completion, err := b.client.Chat.Completions.New(ctx, params,
		option.WithJSONSet("files", conv.Files),
		option.WithJSONSet("features", conv.Features),
		option.WithJSONSet("tool_ids", conv.ToolIDs),
		option.WithRequestTimeout(b.timeout),
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoAssistantMessage
	}
	return completion.Choices[0].Message.Content, nil
}

type modelList struct {
	Data []struct {
		ID   string `json:"id"`
		Info struct {
			Meta struct {
				ToolIDs []string `json:"toolIds"`
			} `json:"meta"`
		} `json:"info"`
	} `json:"data"`
}

// ToolIDs returns the server-side tools configured for the model. Any
// failure yields an empty list.
func (b *ChatBackend) ToolIDs(ctx context.Context) []string {
	var models modelList
	if err := b.client.Get(ctx, "models", nil, &models, option.WithRequestTimeout(5*time.Second)); err != nil {
		slog.WarnContext(ctx, "failed to fetch model tool ids", "error", err)
		return []string{}
	}
	for _, m := range models.Data {
		if m.ID == b.model && m.Info.Meta.ToolIDs != nil {
			return m.Info.Meta.ToolIDs
		}
	}
	return []string{}
}
