package alerting

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	tb "gopkg.in/tucnak/telebot.v2"
)

// IdentityResolver maps a user id to a display name.
type IdentityResolver interface {
	Name(ctx context.Context, userID int64) string
}

// FallbackName is the synthetic name used when a user cannot be resolved.
func FallbackName(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// StaticIdentity always answers with the fallback name.
type StaticIdentity struct{}

// Name implements IdentityResolver.
func (StaticIdentity) Name(_ context.Context, userID int64) string {
	return FallbackName(userID)
}

// TelegramIdentity resolves names with getChat and remembers successful lookups.
type TelegramIdentity struct {
	bot    *tb.Bot
	logger zerolog.Logger

	mu    sync.Mutex
	names map[int64]string
}

// NewTelegramIdentity reuses the notifier's bot.
func NewTelegramIdentity(notifier *TelegramNotifier, logger zerolog.Logger) *TelegramIdentity {
	return &TelegramIdentity{
		bot:    notifier.bot,
		logger: logger.With().Str("component", "telegram_identity").Logger(),
		names:  make(map[int64]string),
	}
}

// Name returns @username, then first name, then title, then the fallback.
func (t *TelegramIdentity) Name(ctx context.Context, userID int64) string {
	t.mu.Lock()
	if name, ok := t.names[userID]; ok {
		t.mu.Unlock()
		return name
	}
	t.mu.Unlock()

	if ctx.Err() != nil {
		return FallbackName(userID)
	}
	chat, err := t.lookup(userID)
	if err != nil || chat == nil {
		t.logger.Debug().Err(err).Int64("user_id", userID).Msg("identity lookup failed")
		return FallbackName(userID)
	}

	name := chat.FirstName
	switch {
	case chat.Username != "":
		name = chat.Username
	case name == "":
		name = chat.Title
	}
	if name == "" {
		return FallbackName(userID)
	}

	t.mu.Lock()
	t.names[userID] = name
	t.mu.Unlock()
	return name
}

// lookup calls getChat. The client dereferences the result without a nil check, so a
// reply without a result is turned into an error here.
func (t *TelegramIdentity) lookup(userID int64) (chat *tb.Chat, err error) {
	defer func() {
		if r := recover(); r != nil {
			chat, err = nil, fmt.Errorf("getChat returned no chat: %v", r)
		}
	}()
	return t.bot.ChatByID(strconv.FormatInt(userID, 10))
}

var (
	_ IdentityResolver = StaticIdentity{}
	_ IdentityResolver = (*TelegramIdentity)(nil)
)
