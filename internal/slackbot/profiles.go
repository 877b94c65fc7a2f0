package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/slack-go/slack"

	"samhq.app/sam/internal/model"
)

const (
	profileCacheSize = 128
	profileCacheTTL  = time.Hour
)

// Identity memoizes the bot's own user id. Failed lookups are not cached.
type Identity struct {
	api SlackAPI

	mu     sync.Mutex
	userID string
}

func NewIdentity(api SlackAPI) *Identity {
	return &Identity{api: api}
}

func (i *Identity) UserID(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.userID != "" {
		return i.userID, nil
	}

	slog.DebugContext(ctx, "fetching the bot's user id")
	resp, err := i.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth test: %w", err)
	}
	i.userID = resp.UserID
	slog.DebugContext(ctx, "resolved bot user id", "bot_user_id", i.userID)
	return i.userID, nil
}

// ProfileCache holds recently seen user profiles for an hour.
type ProfileCache struct {
	api   SlackAPI
	cache *expirable.LRU[string, model.User]
}

func NewProfileCache(api SlackAPI) *ProfileCache {
	return &ProfileCache{
		api:   api,
		cache: expirable.NewLRU[string, model.User](profileCacheSize, nil, profileCacheTTL),
	}
}

func (p *ProfileCache) Get(ctx context.Context, userID string) (model.User, error) {
	if u, ok := p.cache.Get(userID); ok {
		return u, nil
	}

	info, err := p.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return model.User{ID: userID}, fmt.Errorf("fetching profile of %s: %w", userID, err)
	}

	u := toUser(info)
	p.cache.Add(userID, u)
	return u, nil
}

// Invalidate drops a cached profile, e.g. after a user_change event.
func (p *ProfileCache) Invalidate(userID string) {
	p.cache.Remove(userID)
}

func toUser(info *slack.User) model.User {
	return model.User{
		ID:          info.ID,
		RealName:    info.Profile.RealName,
		DisplayName: info.Profile.DisplayName,
		FirstName:   info.Profile.FirstName,
		LastName:    info.Profile.LastName,
		Email:       info.Profile.Email,
		Status:      info.Profile.StatusText,
		TimeZone:    info.TZ,
	}
}
