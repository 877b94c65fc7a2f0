package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"samhq.app/sam/common/logger"
	"samhq.app/sam/internal/model"
)

const conversationKeyPrefix = "thread_"

// ToolIDSource supplies the server-side tool ids attached to every conversation.
type ToolIDSource interface {
	ToolIDs(ctx context.Context) []string
}

// ConversationConfig controls record defaults and the daily reset policy.
type ConversationConfig struct {
	// DailyReset expires every record at the next local midnight in Location.
	DailyReset bool
	Location   *time.Location
	// Model is stamped onto every record returned by Get.
	Model string
	// ToolIDs, when set, is consulted on every Get.
	ToolIDs ToolIDSource
}

// ConversationStore persists conversations as JSON strings in Redis.
type ConversationStore struct {
	client redis.Cmdable
	cfg    ConversationConfig
	now    func() time.Time
}

func NewConversationStore(client redis.Cmdable, cfg ConversationConfig) *ConversationStore {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ConversationStore{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithClock replaces the wall clock used for expiry calculation.
func (s *ConversationStore) WithClock(now func() time.Time) *ConversationStore {
	s.now = now
	return s
}

// Get returns the stored conversation for key, or a fresh empty one.
// A missing key never causes a write.
func (s *ConversationStore) Get(ctx context.Context, key string) (*model.Conversation, error) {
	conv := model.NewConversation()

	data, err := s.client.Get(ctx, conversationKeyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		slog.DebugContext(ctx, "conversation not found, starting fresh", "key", key)
	case err != nil:
		return nil, fmt.Errorf("getting conversation %s: %w", key, err)
	default:
		if err := json.Unmarshal(data, conv); err != nil {
			return nil, fmt.Errorf("decoding conversation %s: %w", key, err)
		}
		if conv.Messages == nil {
			conv.Messages = []model.Message{}
		}
		if conv.Files == nil {
			conv.Files = []model.FileRef{}
		}
	}

	conv.Model = s.cfg.Model
	conv.Features = model.Features{}
	conv.ToolIDs = []string{}
	if s.cfg.ToolIDs != nil {
		if ids := s.cfg.ToolIDs.ToolIDs(ctx); ids != nil {
			conv.ToolIDs = ids
		}
	}

	return conv, nil
}

// Set replaces the stored conversation for key.
func (s *ConversationStore) Set(ctx context.Context, key string, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encoding conversation %s: %w", key, err)
	}

	args := redis.SetArgs{}
	if s.cfg.DailyReset {
		args.ExpireAt = NextMidnight(s.now(), s.cfg.Location)
	}

	if err := s.client.SetArgs(ctx, conversationKeyPrefix+key, data, args).Err(); err != nil {
		return fmt.Errorf("setting conversation %s: %w", key, err)
	}

	slog.DebugContext(logger.WithLogFields(ctx, logger.LogFields{Component: "sam.store.conversation"}),
		"conversation saved",
		"key", key,
		"messages", len(conv.Messages),
		"expires_at", args.ExpireAt)
	return nil
}

// NextMidnight returns the start of the day after now, in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
