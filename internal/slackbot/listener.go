package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"samhq.app/sam/common/id"
	"samhq.app/sam/common/logger"
	"samhq.app/sam/core/config"
)

// NewClient builds the Web API client and its socket mode connection.
func NewClient(cfg config.SlackConfig, debug bool) (*slack.Client, *socketmode.Client) {
	api := slack.New(cfg.BotToken,
		slack.OptionAppLevelToken(cfg.AppToken),
		slack.OptionDebug(debug),
	)
	return api, socketmode.New(api, socketmode.OptionDebug(debug))
}

// Listener receives events over socket mode and hands each one to the
// Handler on its own goroutine.
type Listener struct {
	client  *socketmode.Client
	handler *Handler

	inflight sync.WaitGroup
}

func NewListener(client *socketmode.Client, handler *Handler) *Listener {
	return &Listener{
		client:  client,
		handler: handler,
	}
}

// Run connects and processes events until ctx is done. Events already being
// handled run to completion on a context that ctx does not cancel, and Run
// returns only after they finish.
func (l *Listener) Run(ctx context.Context) error {
	defer l.inflight.Wait()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.client.RunContext(runCtx)
	}()

	slog.InfoContext(ctx, "slack listener started")

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "slack listener stopping, draining in-flight events")
			return ctx.Err()
		case err := <-errCh:
			return fmt.Errorf("socket mode connection: %w", err)
		case evt := <-l.client.Events:
			l.dispatch(ctx, evt)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.InfoContext(ctx, "connecting to slack")
	case socketmode.EventTypeConnected:
		slog.InfoContext(ctx, "connected to slack")
	case socketmode.EventTypeConnectionError:
		slog.WarnContext(ctx, "slack connection error", "data", evt.Data)
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			l.client.Ack(*evt.Request)
		}
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		// A run in progress must still answer and post after shutdown begins.
		handleCtx := context.WithoutCancel(ctx)
		l.inflight.Add(1)
		go func() {
			defer l.inflight.Done()
			l.handleSafe(handleCtx, apiEvent.InnerEvent)
		}()
	default:
		if evt.Request != nil {
			l.client.Ack(*evt.Request)
		}
	}
}

func (l *Listener) handleSafe(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   logger.Ptr(id.New()),
		Component: "sam.slackbot",
	})

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in event handling",
				"panic", r,
				"event_type", inner.Type)
		}
	}()

	var err error
	switch ev := inner.Data.(type) {
	case *slackevents.MessageEvent:
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			ChannelID: logger.Ptr(ev.Channel),
			UserID:    logger.Ptr(ev.User),
		})
		err = l.handler.HandleMessage(ctx, ev)
	case *slackevents.AppMentionEvent:
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			ChannelID: logger.Ptr(ev.Channel),
			UserID:    logger.Ptr(ev.User),
		})
		err = l.handler.HandleMention(ctx, ev)
	case *slackevents.UserChangeEvent:
		l.handler.Profiles().Invalidate(ev.User.ID)
	default:
		slog.DebugContext(ctx, "ignoring event", "event_type", inner.Type)
	}

	if err != nil {
		slog.ErrorContext(ctx, "event handling failed",
			"event_type", inner.Type,
			"error", err)
	}
}
