package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const indexKey = "subscription_types"

// RedisStore keeps each type as JSON under subscription_type:{id}, the set of
// ids under subscription_types, and reserves names with
// subscription_type_name:{name}.
type RedisStore struct {
	redis *redis.Client
	now   func() time.Time
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("subscription_type:%s", id)
}

func (s *RedisStore) nameKey(name string) string {
	return fmt.Sprintf("subscription_type_name:%s", nameKey(name))
}

// Create reserves the name first so two concurrent creates cannot both win.
func (s *RedisStore) Create(ctx context.Context, req *CreateTypeRequest) (*SubscriptionType, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := req.build(uuid.NewString(), s.now())

	ok, err := s.redis.SetNX(ctx, s.nameKey(t.Name), t.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("subscriptions: reserve name: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateName
	}

	data, err := json.Marshal(t)
	if err != nil {
		s.redis.Del(ctx, s.nameKey(t.Name))
		return nil, fmt.Errorf("subscriptions: marshal type: %w", err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(t.ID), data, 0)
		pipe.SAdd(ctx, indexKey, t.ID)
		return nil
	})
	if err != nil {
		s.redis.Del(ctx, s.nameKey(t.Name))
		return nil, fmt.Errorf("subscriptions: save type: %w", err)
	}
	return t, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*SubscriptionType, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subscriptions: get type: %w", err)
	}
	var t SubscriptionType
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("subscriptions: unmarshal type: %w", err)
	}
	return &t, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*SubscriptionType, error) {
	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("subscriptions: list ids: %w", err)
	}
	if len(ids) == 0 {
		return []*SubscriptionType{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("subscriptions: load types: %w", err)
	}

	out := make([]*SubscriptionType, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a record
			continue
		}
		var t SubscriptionType
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("subscriptions: unmarshal type %s: %w", ids[i], err)
		}
		if !t.Deleted() {
			out = append(out, &t)
		}
	}
	sortTypes(out)
	return out, nil
}

// SoftDelete keeps the record and its name reservation.
func (s *RedisStore) SoftDelete(ctx context.Context, id, deletedBy, reason string) (*SubscriptionType, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Deleted() {
		return nil, ErrAlreadyDeleted
	}
	markDeleted(t, s.now(), deletedBy, reason)

	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("subscriptions: marshal type: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(id), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("subscriptions: delete type: %w", err)
	}
	return t, nil
}
