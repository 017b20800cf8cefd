package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/kazdocs/kazdocs-platform/internal/config"
	"github.com/kazdocs/kazdocs-platform/internal/notify"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// BuildEmailSender picks the sender named by EMAIL_PROVIDER. A provider that
// is missing its credentials degrades to the stub with a warning.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty; using stub sender")
	case "ses":
		sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("EMAIL_PROVIDER=ses but no SES client; using stub sender")
	case "", "stub":
	default:
		logger.Warn("unknown EMAIL_PROVIDER; using stub sender", "provider", cfg.EmailProvider)
	}
	return notify.NewStubEmailSender(logger)
}
