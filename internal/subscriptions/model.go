package subscriptions

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// SubscriptionType is a plan offered to prospects. A nil MaxProspects means
// the plan has no volume ceiling.
type SubscriptionType struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Price             float64    `json:"price"`
	DurationDays      int        `json:"duration"`
	Features          []string   `json:"features,omitempty"`
	MaxProspects      *int       `json:"maxProspects,omitempty"`
	MaxDailyCalls     *int       `json:"maxDailyCalls,omitempty"`
	WhiteLabelEnabled bool       `json:"whiteLabelEnabled"`
	ExpirationDate    *time.Time `json:"expirationDate,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`
	DeletedBy         string     `json:"deletedBy,omitempty"`
	DeletedReason     string     `json:"deletedReason,omitempty"`
}

// Deleted reports whether the type was soft deleted.
func (t *SubscriptionType) Deleted() bool {
	return t != nil && t.DeletedAt != nil
}

// Covers reports whether the plan accepts the given monthly volume.
func (t *SubscriptionType) Covers(volume int) bool {
	return t.MaxProspects == nil || *t.MaxProspects >= volume
}

// CreateTypeRequest is the admin payload for a new subscription type.
type CreateTypeRequest struct {
	Name              string     `json:"name" validate:"required"`
	Price             float64    `json:"price" validate:"gte=0"`
	DurationDays      int        `json:"duration" validate:"gte=1"`
	Features          []string   `json:"features"`
	MaxProspects      *int       `json:"maxProspects" validate:"omitempty,gte=0"`
	MaxDailyCalls     *int       `json:"maxDailyCalls" validate:"omitempty,gte=0"`
	WhiteLabelEnabled bool       `json:"whiteLabelEnabled"`
	ExpirationDate    *time.Time `json:"expirationDate"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate trims the request and checks the declared constraints.
func (r *CreateTypeRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	features := r.Features[:0]
	for _, f := range r.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	r.Features = features

	validateOnce.Do(func() { validate = validator.New() })
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidType, err)
	}
	return nil
}

func (r *CreateTypeRequest) build(id string, now time.Time) *SubscriptionType {
	return &SubscriptionType{
		ID:                id,
		Name:              r.Name,
		Price:             r.Price,
		DurationDays:      r.DurationDays,
		Features:          append([]string(nil), r.Features...),
		MaxProspects:      copyInt(r.MaxProspects),
		MaxDailyCalls:     copyInt(r.MaxDailyCalls),
		WhiteLabelEnabled: r.WhiteLabelEnabled,
		ExpirationDate:    r.ExpirationDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func clone(t *SubscriptionType) *SubscriptionType {
	out := *t
	out.Features = append([]string(nil), t.Features...)
	out.MaxProspects = copyInt(t.MaxProspects)
	out.MaxDailyCalls = copyInt(t.MaxDailyCalls)
	return &out
}
