package email

import (
	"context"
	"log/slog"

	"appraze/internal/domain/notifications"
	"appraze/internal/platform/config"
)

// New picks the delivery backend named by EMAIL_PROVIDER.
func New(cfg config.Config) notifications.Mailer {
	switch cfg.EmailProvider {
	case config.EmailProviderSendGrid:
		if cfg.SendGridAPIKey != "" {
			return NewSendGrid(cfg.SendGridAPIKey, "", cfg.EmailFromName)
		}
	case config.EmailProviderSMTP:
		if cfg.SMTPHost != "" {
			return newSMTPMailer(cfg)
		}
	}
	return noopMailer{}
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, html string) error {
	slog.Debug("email delivery disabled", "to", to, "subject", subject)
	return nil
}
