package events

import "time"

// Event types published by the platform.
const (
	TypeContactCreated = "contact.created.v1"
)

// ContactCreatedV1 is emitted once a lead has been stored by the intake endpoint.
type ContactCreatedV1 struct {
	EventID            string    `json:"event_id"`
	ContactID          string    `json:"contact_id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Company            string    `json:"company,omitempty"`
	Sector             string    `json:"sector,omitempty"`
	Message            string    `json:"message,omitempty"`
	SubscriptionVolume int       `json:"subscription_volume"`
	SubscriptionTypeID string    `json:"subscription_type_id,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}
