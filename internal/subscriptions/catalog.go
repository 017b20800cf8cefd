package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// Catalog answers plan questions on top of a Store.
type Catalog struct {
	store  Store
	logger *logging.Logger
}

// NewCatalog wraps store.
func NewCatalog(store Store, logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Default()
	}
	return &Catalog{store: store, logger: logger}
}

// ForVolume returns the cheapest live type whose ceiling covers volume.
// Among equally priced types the tighter ceiling wins.
func (c *Catalog) ForVolume(ctx context.Context, volume int) (*SubscriptionType, error) {
	types, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscriptions: for volume: %w", err)
	}
	var best *SubscriptionType
	for _, t := range types {
		if t.Deleted() || !t.Covers(volume) {
			continue
		}
		if best == nil || cheaper(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, ErrNoMatchingType
	}
	return best, nil
}

// ResolveTypeID returns the id of ForVolume's pick.
func (c *Catalog) ResolveTypeID(ctx context.Context, volume int) (string, error) {
	t, err := c.ForVolume(ctx, volume)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func cheaper(a, b *SubscriptionType) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	switch {
	case a.MaxProspects == nil:
		return false
	case b.MaxProspects == nil:
		return true
	default:
		return *a.MaxProspects < *b.MaxProspects
	}
}

// DefaultTypes mirrors the volume buckets offered on the lead form.
func DefaultTypes() []CreateTypeRequest {
	starter, pro := 1000, 10000
	return []CreateTypeRequest{
		{Name: "Starter", Price: 49, DurationDays: 30, MaxProspects: &starter, Features: []string{"Recherche de prospects", "Export CSV"}},
		{Name: "Pro", Price: 199, DurationDays: 30, MaxProspects: &pro, Features: []string{"Recherche de prospects", "Export CSV", "Enrichissement"}},
		{Name: "Entreprise", Price: 599, DurationDays: 30, Features: []string{"Volume illimité", "Marque blanche"}, WhiteLabelEnabled: true},
	}
}

// EnsureDefaults seeds DefaultTypes into an empty catalog. Names still
// reserved by soft-deleted types are left alone.
func (c *Catalog) EnsureDefaults(ctx context.Context) error {
	existing, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("subscriptions: seed: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, req := range DefaultTypes() {
		req := req
		t, err := c.store.Create(ctx, &req)
		if errors.Is(err, ErrDuplicateName) {
			c.logger.Info("subscription type seed skipped", "name", req.Name, "reason", "name reserved")
			continue
		}
		if err != nil {
			return fmt.Errorf("subscriptions: seed %s: %w", req.Name, err)
		}
		c.logger.Info("subscription type seeded", "id", t.ID, "name", t.Name)
	}
	return nil
}
