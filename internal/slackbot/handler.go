package slackbot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"samhq.app/sam/common/logger"
	"samhq.app/sam/core/config"
	"samhq.app/sam/internal/assistant"
	"samhq.app/sam/internal/store"
	"samhq.app/sam/internal/tools"
)

// SlackAPI is the part of the Slack Web API the bot calls. *slack.Client
// satisfies it.
type SlackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetFileContext(ctx context.Context, downloadURL string, writer io.Writer) error
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

// Assistant is implemented by *assistant.Bot.
type Assistant interface {
	AddMessage(ctx context.Context, key, content string, files []assistant.Attachment) (hasAttachments, voicePrompt bool, err error)
	ExecuteRun(ctx context.Context, key string, req assistant.Request) string
	TTS(ctx context.Context, text string) ([]byte, error)
}

// Locker is implemented by *store.Locker.
type Locker interface {
	Lock(ctx context.Context, key string, timeout time.Duration) (store.Unlock, error)
}

var acknowledgments = []string{
	"thumbsup",
	"ok_hand",
	"eyes",
	"wave",
	"robot_face",
	"saluting_face",
	"v",
	"100",
	"muscle",
	"thought_balloon",
	"speech_balloon",
	"space_invader",
	"call_me_hand",
}

// inbound is the part of a message or mention event needed to answer it.
type inbound struct {
	channel  string
	user     string
	ts       string
	threadTS string
}

// Handler turns Slack events into conversation updates and answers.
type Handler struct {
	api         SlackAPI
	assistant   Assistant
	locker      Locker
	project     config.Project
	cfg         config.SlackConfig
	lockTimeout time.Duration

	identity *Identity
	profiles *ProfileCache
	random   func() float64
}

func NewHandler(api SlackAPI, asst Assistant, locker Locker, project config.Project, cfg config.Config) *Handler {
	return &Handler{
		api:         api,
		assistant:   asst,
		locker:      locker,
		project:     project,
		cfg:         cfg.Slack,
		lockTimeout: cfg.Conversation.LockTimeout,
		identity:    NewIdentity(api),
		profiles:    NewProfileCache(api),
		random:      rand.Float64,
	}
}

// WithRandom replaces the source of the unsolicited-reply draw.
func (h *Handler) WithRandom(random func() float64) *Handler {
	h.random = random
	return h
}

// Profiles exposes the profile cache so user_change events can invalidate it.
func (h *Handler) Profiles() *ProfileCache {
	return h.profiles
}

// HandleMessage appends a channel or DM message to its conversation and
// answers when the message is a DM, a reply in a thread the bot started, or
// wins the random draw.
func (h *Handler) HandleMessage(ctx context.Context, ev *slackevents.MessageEvent) error {
	switch ev.SubType {
	case "message_changed", "message_deleted":
		slog.DebugContext(ctx, "ignoring message event", "subtype", ev.SubType)
		return nil
	}

	botID, err := h.identity.UserID(ctx)
	if err != nil {
		return err
	}
	if ev.BotID != "" || ev.User == botID {
		slog.DebugContext(ctx, "ignoring bot message")
		return nil
	}

	text := strings.ReplaceAll(ev.Text, "<@"+botID+">", h.cfg.BotName)

	var files []slack.File
	parentUserID := ""
	if ev.Message != nil {
		files = ev.Message.Files
		parentUserID = ev.Message.ParentUserId
	}

	attachments, err := h.download(ctx, files)
	if err != nil {
		return err
	}

	voicePrompt, err := h.addMessage(ctx, ev.Channel, text, attachments)
	if err != nil {
		return err
	}

	if ev.ChannelType == slack.TYPE_IM || parentUserID == botID || h.random() < h.cfg.RandomRunRatio {
		return h.respond(ctx, inbound{
			channel:  ev.Channel,
			user:     ev.User,
			ts:       ev.TimeStamp,
			threadTS: ev.ThreadTimeStamp,
		}, voicePrompt)
	}
	return nil
}

// HandleMention answers a message that mentions the bot.
func (h *Handler) HandleMention(ctx context.Context, ev *slackevents.AppMentionEvent) error {
	return h.respond(ctx, inbound{
		channel:  ev.Channel,
		user:     ev.User,
		ts:       ev.TimeStamp,
		threadTS: ev.ThreadTimeStamp,
	}, false)
}

func (h *Handler) addMessage(ctx context.Context, channel, text string, files []assistant.Attachment) (bool, error) {
	unlock, err := h.locker.Lock(ctx, channel, h.lockTimeout)
	if err != nil {
		return false, err
	}
	defer unlock()

	_, voicePrompt, err := h.assistant.AddMessage(ctx, channel, text, files)
	if err != nil {
		return false, fmt.Errorf("adding message: %w", err)
	}
	return voicePrompt, nil
}

func (h *Handler) download(ctx context.Context, files []slack.File) ([]assistant.Attachment, error) {
	attachments := make([]assistant.Attachment, 0, len(files))
	for _, f := range files {
		var buf bytes.Buffer
		if err := h.api.GetFileContext(ctx, f.URLPrivate, &buf); err != nil {
			return nil, fmt.Errorf("downloading %s: %w", f.Name, err)
		}
		attachments = append(attachments, assistant.Attachment{Name: f.Name, Content: buf.Bytes()})
	}
	return attachments, nil
}

func (h *Handler) respond(ctx context.Context, in inbound, voiceResponse bool) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChannelID: logger.Ptr(in.channel),
		UserID:    logger.Ptr(in.user),
	})

	ts := in.ts
	if ts == "" {
		ts = in.threadTS
	}

	unlock, err := h.locker.Lock(ctx, in.channel, h.lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	slog.InfoContext(ctx, "starting run")

	reaction := acknowledgments[rand.IntN(len(acknowledgments))]
	if err := h.api.AddReactionContext(ctx, reaction, slack.NewRefToMessage(in.channel, ts)); err != nil {
		slog.WarnContext(ctx, "failed to add reaction", "reaction", reaction, "error", err)
	}

	user, err := h.profiles.Get(ctx, in.user)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch user profile", "error", err)
	}

	req := assistant.Request{
		AdditionalInstructions: user.Instructions(),
		CallContext:            tools.CallContext{User: user, ChannelID: in.channel},
	}
	if a, ok := h.project.AssistantFor(in.channel); ok {
		req.AssistantID = a.AssistantID
	}

	answer := h.assistant.ExecuteRun(ctx, in.channel, req)

	opts := []slack.MsgOption{slack.MsgOptionText(MarkdownToMrkdwn(answer), false)}
	if in.threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(in.threadTS))
	}
	if _, _, err := h.api.PostMessageContext(ctx, in.channel, opts...); err != nil {
		return fmt.Errorf("posting answer: %w", err)
	}
	slog.InfoContext(ctx, "responded via text")

	if !voiceResponse {
		return nil
	}

	speech, err := h.assistant.TTS(ctx, answer)
	if err != nil {
		return fmt.Errorf("synthesizing voice response: %w", err)
	}
	_, err = h.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:          bytes.NewReader(speech),
		FileSize:        len(speech),
		Filename:        "response.mp3",
		Title:           "Voice Response",
		Channel:         in.channel,
		ThreadTimestamp: in.threadTS,
	})
	if err != nil {
		return fmt.Errorf("uploading voice response: %w", err)
	}
	slog.InfoContext(ctx, "responded via voice")
	return nil
}
