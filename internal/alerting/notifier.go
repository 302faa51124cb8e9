package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Message is a rendered notification addressed to one channel.
type Message struct {
	ChannelID int64
	Mention   int64
	Title     string
	Body      string
	URL       string
	ImageURL  string
	Footer    string
}

// Text flattens the message for plain-text transports.
func (m Message) Text() string {
	var b strings.Builder
	if m.Mention != 0 {
		fmt.Fprintf(&b, "%s\n", mentionTag(m.Mention))
	}
	if m.Title != "" {
		fmt.Fprintf(&b, "%s\n", m.Title)
	}
	if m.Body != "" {
		fmt.Fprintf(&b, "%s\n", m.Body)
	}
	if m.URL != "" {
		fmt.Fprintf(&b, "%s\n", m.URL)
	}
	if m.Footer != "" {
		b.WriteString(m.Footer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func mentionTag(userID int64) string {
	return "cc " + FallbackName(userID)
}

// Notifier delivers messages to chat channels.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// captionLimit is the longest caption Telegram accepts on a photo.
const captionLimit = 1024

// TelegramNotifier delivers through the Telegram Bot API. The bot is send-only: no
// poller is started.
type TelegramNotifier struct {
	bot    *tb.Bot
	logger zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier. The token is verified with getMe.
func NewTelegramNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) (*TelegramNotifier, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = tb.DefaultApiURL
	}

	n := &TelegramNotifier{logger: logger.With().Str("component", "alert_telegram").Logger()}
	bot, err := tb.NewBot(tb.Settings{
		URL:    strings.TrimRight(baseURL, "/"),
		Token:  botToken,
		Client: &http.Client{Timeout: timeout},
		Reporter: func(err error) {
			n.logger.Warn().Err(err).Msg("telegram client error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	n.bot = bot
	return n, nil
}

// Send posts msg to msg.ChannelID, as a captioned photo when it carries an image.
func (n *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chat := &tb.Chat{ID: msg.ChannelID}
	text := msg.Text()

	if msg.ImageURL != "" && len(text) <= captionLimit {
		err := n.sendPhoto(chat, msg.ImageURL, text)
		if err == nil {
			n.logger.Info().Int64("chat_id", msg.ChannelID).Str("title", msg.Title).Msg("notification sent with image")
			return nil
		}
		n.logger.Debug().Err(err).Str("image", msg.ImageURL).Msg("photo delivery failed; sending text")
	}

	sent, err := n.bot.Send(chat, text, &tb.SendOptions{DisableWebPagePreview: msg.URL == ""})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil {
		return errors.New("telegram send: empty result")
	}

	n.logger.Info().Int64("chat_id", msg.ChannelID).Str("title", msg.Title).Msg("notification sent")
	return nil
}

// sendPhoto posts a captioned photo by URL. The client copies the returned photo without
// a nil check, so a reply lacking one is reported as an error.
func (n *TelegramNotifier) sendPhoto(chat *tb.Chat, url, caption string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sendPhoto returned no photo: %v", r)
		}
	}()
	sent, err := n.bot.Send(chat, &tb.Photo{File: tb.FromURL(url), Caption: caption})
	if err != nil {
		return err
	}
	if sent == nil {
		return errors.New("sendPhoto: empty result")
	}
	return nil
}

// LogNotifier writes messages to the log when no chat transport is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Send logs msg and never fails.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info().
		Int64("channel_id", msg.ChannelID).
		Int64("mention", msg.Mention).
		Str("title", msg.Title).
		Str("url", msg.URL).
		Msg(msg.Body)
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
