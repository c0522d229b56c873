package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pix-subscription/internal/config"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/infra/i18n"
)

type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminAlert posts a sale alert to the operators' Telegram chat.
type AdminAlert struct {
	bot    chatSender
	chatID int64
	tr     *i18n.Translator
}

var _ adapter.Notifier = (*AdminAlert)(nil)

func NewAdminAlert(cfg config.TelegramConfig, tr *i18n.Translator) (*AdminAlert, error) {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &AdminAlert{bot: bot, chatID: cfg.AdminChatID, tr: tr}, nil
}

func (a *AdminAlert) Name() string { return "telegram" }

func (a *AdminAlert) Notify(ctx context.Context, n adapter.ActivationNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := a.tr.T("alert.activated", n.PlanID, FormatAmount(n.Amount), n.Email, n.TransactionID,
		n.ExpiresAt.UTC().Format("2006-01-02"))
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := a.bot.Send(msg)
	return err
}
