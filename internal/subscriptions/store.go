package subscriptions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists subscription types. List never returns soft-deleted types;
// Get does.
type Store interface {
	Create(ctx context.Context, req *CreateTypeRequest) (*SubscriptionType, error)
	Get(ctx context.Context, id string) (*SubscriptionType, error)
	List(ctx context.Context) ([]*SubscriptionType, error)
	SoftDelete(ctx context.Context, id, deletedBy, reason string) (*SubscriptionType, error)
}

// MemoryStore is an in-process Store used when Redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	types map[string]*SubscriptionType
	names map[string]string
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types: make(map[string]*SubscriptionType),
		names: make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, req *CreateTypeRequest) (*SubscriptionType, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey(req.Name)
	if _, exists := s.names[key]; exists {
		return nil, ErrDuplicateName
	}
	t := req.build(uuid.NewString(), s.now())
	s.types[t.ID] = t
	s.names[key] = t.ID
	return clone(t), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*SubscriptionType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*SubscriptionType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*SubscriptionType, 0, len(s.types))
	for _, t := range s.types {
		if !t.Deleted() {
			out = append(out, clone(t))
		}
	}
	sortTypes(out)
	return out, nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, id, deletedBy, reason string) (*SubscriptionType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Deleted() {
		return nil, ErrAlreadyDeleted
	}
	markDeleted(t, s.now(), deletedBy, reason)
	return clone(t), nil
}

func markDeleted(t *SubscriptionType, now time.Time, deletedBy, reason string) {
	t.DeletedAt = &now
	t.DeletedBy = deletedBy
	t.DeletedReason = reason
	t.UpdatedAt = now
}

// sortTypes orders by price, then name.
func sortTypes(types []*SubscriptionType) {
	sort.Slice(types, func(i, j int) bool {
		if types[i].Price != types[j].Price {
			return types[i].Price < types[j].Price
		}
		return types[i].Name < types[j].Name
	})
}
