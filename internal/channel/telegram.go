// Package channel implements the chat-platform transports.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lunabot/internal/domain"
)

const telegramPollTimeout = 30

// botAPI is the subset of *tgbotapi.BotAPI the channel uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram is both the inbound channel and the outbound platform for a
// Telegram bot using long polling.
type Telegram struct {
	allowFrom []int64 // empty allows everyone
	parseMode string

	bot    botAPI
	logger *slog.Logger
}

// TelegramConfig configures a Telegram transport.
type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs
	ParseMode string   // default Markdown
	Logger    *slog.Logger
}

// NewTelegram connects to the Bot API and returns a ready transport.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	t := newTelegram(cfg, bot)
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	return t, nil
}

func newTelegram(cfg TelegramConfig, bot botAPI) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		bot:       bot,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start polls for updates and publishes each user message to the bus.
// It blocks until ctx is cancelled or the update channel closes.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := t.bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg, ok := t.toInbound(update); ok {
				bus.Publish(msg)
			}
		}
	}
}

// Stop is a no-op: polling ends when Start's context is cancelled, and
// StopReceivingUpdates must not be called twice.
func (t *Telegram) Stop() error { return nil }

func (t *Telegram) toInbound(update tgbotapi.Update) (domain.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return domain.InboundMessage{}, false
	}

	var senderID int64
	if m.From != nil {
		senderID = m.From.ID
	}
	if !t.isAllowed(senderID) {
		t.logger.Warn("unauthorized telegram user", "user_id", senderID, "chat_id", m.Chat.ID)
		return domain.InboundMessage{}, false
	}

	kind := classify(m)
	t.logger.Info("telegram message received",
		"chat_id", m.Chat.ID,
		"kind", kind,
		"text_len", len(m.Text),
	)

	return domain.InboundMessage{
		Channel:   t.Name(),
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		SenderID:  strconv.FormatInt(senderID, 10),
		Content:   m.Text,
		Kind:      kind,
		Timestamp: time.Unix(int64(m.Date), 0),
	}, true
}

// classify reports what a message carried. Literal text wins.
func classify(m *tgbotapi.Message) domain.ContentKind {
	switch {
	case m.Text != "":
		return domain.KindText
	case len(m.Photo) > 0:
		return domain.KindPhoto
	case m.Document != nil:
		return domain.KindDocument
	case m.Sticker != nil:
		return domain.KindSticker
	case m.Voice != nil:
		return domain.KindVoice
	case m.Audio != nil:
		return domain.KindAudio
	default:
		return domain.KindOther
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	return len(t.allowFrom) == 0 || slices.Contains(t.allowFrom, userID)
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid chat ID %q", domain.ErrSendFailed, chatID)
	}
	return id, nil
}

// SendText sends one message. A formatted message that Telegram rejects
// for markup is sent once more as plain text.
func (t *Telegram) SendText(ctx context.Context, chatID, text string, formatted bool) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	msg := tgbotapi.NewMessage(id, text)
	if formatted {
		msg.ParseMode = t.parseMode
	}
	_, err = t.bot.Send(msg)
	if err != nil && msg.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		t.logger.Warn("telegram markup rejected, sending as plain text", "chat_id", chatID, "err", err)
		msg.ParseMode = ""
		_, err = t.bot.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("%w: send message: %v", domain.ErrSendFailed, err)
	}
	return nil
}

// SendImage sends a photo by URL; Telegram fetches it.
func (t *Telegram) SendImage(ctx context.Context, chatID, url string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	if _, err := t.bot.Send(tgbotapi.NewPhoto(id, tgbotapi.FileURL(url))); err != nil {
		return fmt.Errorf("%w: send photo: %v", domain.ErrSendFailed, err)
	}
	return nil
}

// ShowComposing shows the typing indicator. sendChatAction returns a bool,
// so it goes through Request rather than Send.
func (t *Telegram) ShowComposing(ctx context.Context, chatID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	if _, err := t.bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("%w: chat action: %v", domain.ErrSendFailed, err)
	}
	return nil
}
