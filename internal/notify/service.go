package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/kazdocs/kazdocs-platform/internal/events"
	"github.com/kazdocs/kazdocs-platform/internal/subscriptions"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// SubscriptionLookup resolves a subscription type id to its record.
type SubscriptionLookup interface {
	Get(ctx context.Context, id string) (*subscriptions.SubscriptionType, error)
}

// Service tells the sales team about new contacts. It is the delivery handler
// behind the event outbox.
type Service struct {
	email         EmailSender
	recipients    []string
	subscriptions SubscriptionLookup
	logger        *logging.Logger
}

// NewService creates a notification service. With no recipients every event
// is acknowledged without sending.
func NewService(email EmailSender, recipients []string, subs SubscriptionLookup, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	var cleaned []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &Service{
		email:         email,
		recipients:    cleaned,
		subscriptions: subs,
		logger:        logger,
	}
}

// Handle dispatches an outbox entry. Unknown event types are acknowledged.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeContactCreated:
		var evt events.ContactCreatedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		return s.NotifyNewContact(ctx, evt)
	default:
		s.logger.Debug("notify: ignoring event", "type", entry.Type, "id", entry.ID)
		return nil
	}
}

const leadCategory = "lead-notification"

// NotifyNewContact emails every configured recipient. It reports an error if
// any send failed so the outbox retries the entry.
func (s *Service) NotifyNewContact(ctx context.Context, evt events.ContactCreatedV1) error {
	if s.email == nil || len(s.recipients) == 0 {
		s.logger.Debug("notify: no lead recipients configured, skipping", "contact_id", evt.ContactID)
		return nil
	}

	plan := s.planName(ctx, evt.SubscriptionTypeID)
	subject := fmt.Sprintf("Nouveau prospect - %s", evt.Name)
	body := fmt.Sprintf(`Un nouveau prospect a rempli le formulaire.

Nom : %s
Email : %s
Entreprise : %s
Secteur : %s
Volume estimé : %d pages/an
Formule suggérée : %s
Message : %s

Reçu le %s`,
		evt.Name, evt.Email, orDash(evt.Company), orDash(evt.Sector),
		evt.SubscriptionVolume, orDash(plan), orDash(evt.Message),
		evt.OccurredAt.Format("02/01/2006 15:04"))

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Nouveau prospect</h2>
<p><strong>Nom :</strong> %s<br>
<strong>Email :</strong> <a href="mailto:%s">%s</a><br>
<strong>Entreprise :</strong> %s<br>
<strong>Secteur :</strong> %s<br>
<strong>Volume estimé :</strong> %d pages/an<br>
<strong>Formule suggérée :</strong> %s</p>
<p>%s</p>
</div>`,
		html.EscapeString(evt.Name), html.EscapeString(evt.Email), html.EscapeString(evt.Email),
		html.EscapeString(orDash(evt.Company)), html.EscapeString(orDash(evt.Sector)),
		evt.SubscriptionVolume, html.EscapeString(orDash(plan)),
		html.EscapeString(evt.Message))

	var errs []error
	for _, recipient := range s.recipients {
		msg := EmailMessage{
			To:          recipient,
			Subject:     subject,
			Body:        body,
			HTML:        htmlBody,
			ReplyTo:     evt.Email,
			ReplyToName: evt.Name,
			Category:    leadCategory,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed: %w", len(errs), errors.Join(errs...))
	}
	s.logger.Info("lead notification sent", "contact_id", evt.ContactID, "recipients", len(s.recipients))
	return nil
}

func (s *Service) planName(ctx context.Context, id string) string {
	if s.subscriptions == nil || id == "" {
		return ""
	}
	t, err := s.subscriptions.Get(ctx, id)
	if err != nil {
		s.logger.Warn("notify: subscription type lookup failed", "error", err, "id", id)
		return ""
	}
	return t.Name
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

var _ events.DeliveryHandler = (*Service)(nil)
