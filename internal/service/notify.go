package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"drone_chat/internal/config"
	"drone_chat/internal/domain"
	"drone_chat/pkg/logger"
)

const (
	notifyPreviewRunes = 500
	telegramTimeout    = 10 * time.Second
)

// NotifyService pages the operators when a visitor writes while nobody is online.
type NotifyService interface {
	NotifyOffline(ctx context.Context, msg domain.Message)
}

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type telegramNotifier struct {
	bot    botSender
	chatID int64
	log    logger.Logger
}

// NewNotifyService connects to the Telegram Bot API when a token and chat are
// configured and returns a notifier that only logs otherwise.
func NewNotifyService(cfg config.TelegramConfig, log logger.Logger) (NotifyService, error) {
	log = log.With("component", "notifier")
	if !cfg.Enabled() {
		log.Info("Telegram notifications disabled")
		return &logNotifier{log: log}, nil
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, &http.Client{Timeout: telegramTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	log.Info("Telegram notifier authorized", "bot", api.Self.UserName)
	return newTelegramNotifier(api, cfg.ChatID, log), nil
}

func newTelegramNotifier(bot botSender, chatID int64, log logger.Logger) *telegramNotifier {
	return &telegramNotifier{bot: bot, chatID: chatID, log: log}
}

func (n *telegramNotifier) NotifyOffline(ctx context.Context, msg domain.Message) {
	if ctx.Err() != nil {
		return
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, offlineText(msg))); err != nil {
		n.log.Error("Failed to send telegram notification", "error", err, "conversation_id", msg.ConversationID)
		return
	}
	n.log.Debug("Operator notified", "conversation_id", msg.ConversationID, "message_id", msg.ID)
}

type logNotifier struct {
	log logger.Logger
}

func (n *logNotifier) NotifyOffline(ctx context.Context, msg domain.Message) {
	n.log.Info("Visitor message while no operator online", "conversation_id", msg.ConversationID, "sender", msg.SenderName)
}

func offlineText(msg domain.Message) string {
	body := msg.Body
	if utf8.RuneCountInString(body) > notifyPreviewRunes {
		body = string([]rune(body)[:notifyPreviewRunes]) + "…"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New message from %s", msg.SenderName)
	if msg.SenderEmail != "" {
		fmt.Fprintf(&b, " <%s>", msg.SenderEmail)
	}
	fmt.Fprintf(&b, "\nConversation: %s\n\n%s", msg.ConversationID, body)
	return b.String()
}
