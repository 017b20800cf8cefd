package contacts

import (
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Status tracks where a contact is in the sales pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusClosed    Status = "closed"
)

// Valid reports whether s is a known pipeline status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusConverted, StatusClosed:
		return true
	}
	return false
}

// Contact is a lead submitted from the public form.
type Contact struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Company            string    `json:"company,omitempty"`
	Sector             string    `json:"sector,omitempty"`
	Message            string    `json:"message,omitempty"`
	SubscriptionVolume int       `json:"subscriptionVolume"`
	SubscriptionTypeID string    `json:"subscriptionTypeId,omitempty"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CreateContactRequest is the body accepted by POST /api/register.
// Subscription is the field name older form builds still send.
type CreateContactRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Company            string `json:"company"`
	Sector             string `json:"sector"`
	Message            string `json:"message"`
	SubscriptionVolume int    `json:"subscriptionVolume"`
	Subscription       int    `json:"subscription,omitempty"`
	SubscriptionTypeID string `json:"-"`
}

// Normalize trims text fields, lower-cases the email and folds the legacy
// subscription field into SubscriptionVolume.
func (r *CreateContactRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Company = strings.TrimSpace(r.Company)
	r.Sector = strings.TrimSpace(r.Sector)
	r.Message = strings.TrimSpace(r.Message)
	if r.SubscriptionVolume == 0 && r.Subscription != 0 {
		r.SubscriptionVolume = r.Subscription
	}
	r.Subscription = 0
}

// Validate checks the fields the endpoint requires.
func (r *CreateContactRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" {
		return ErrMissingFields
	}
	return nil
}

// NormalizeEmail is the canonical form used for uniqueness.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	// Unicode and punycode spellings of a domain are the same mailbox.
	domain, err := idna.Lookup.ToASCII(email[at+1:])
	if err != nil {
		return email
	}
	return email[:at+1] + domain
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
