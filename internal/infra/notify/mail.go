package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pix-subscription/internal/config"
	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/infra/i18n"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailNotifier sends the payer a plain-text confirmation over SMTP.
type MailNotifier struct {
	addr string
	from string
	auth smtp.Auth
	send sendMailFunc
	tr   *i18n.Translator
}

var _ adapter.Notifier = (*MailNotifier)(nil)

// NewMailNotifier renders messages with tr, or the default language when tr is nil.
func NewMailNotifier(cfg config.SMTPConfig, tr *i18n.Translator) *MailNotifier {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &MailNotifier{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
		auth: auth,
		send: smtp.SendMail,
		tr:   tr,
	}
}

func (m *MailNotifier) Name() string { return "email" }

// Notify ignores ctx: net/smtp has no context support, the dispatcher timeout bounds the wait.
func (m *MailNotifier) Notify(ctx context.Context, n adapter.ActivationNotice) error {
	if n.Email == "" {
		return domain.ErrNotificationSkipped
	}
	if strings.ContainsAny(n.Email, "\r\n") {
		return fmt.Errorf("recipient %q: %w", n.Email, domain.ErrInvalidArgument)
	}
	return m.send(m.addr, m.auth, m.from, []string{n.Email}, m.message(n))
}

func (m *MailNotifier) message(n adapter.ActivationNotice) []byte {
	var body strings.Builder
	if n.PayerName != "" {
		body.WriteString(m.tr.T("mail.greeting", n.PayerName))
	} else {
		body.WriteString(m.tr.T("mail.greeting_anonymous"))
	}
	body.WriteString("\n\n")
	body.WriteString(m.tr.T("mail.received", FormatAmount(n.Amount), n.PlanID) + "\n")
	body.WriteString(m.tr.T("mail.valid_until", n.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")) + "\n\n")
	body.WriteString(m.tr.T("mail.reference", n.TransactionID) + "\n")

	return []byte("Subject: " + mime.QEncoding.Encode("utf-8", m.tr.T("mail.subject")) + "\r\n" +
		"From: " + m.from + "\r\n" +
		"To: " + n.Email + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		strings.ReplaceAll(body.String(), "\n", "\r\n"))
}

// FormatAmount renders minor units as a decimal with two places, 1490 -> "14.90".
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
