package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/redis/go-redis/v9"
)

// updateScript replaces a hash field only when it already exists
var updateScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

/* Store implements webhook.Store with one hash per owner:
 * webhook:subscriptions:{owner} maps subscription id to its JSON.
 * The set webhook:owners indexes owners for QueryAll.
 */
type Store struct {
	client *redis.Client
}

var _ webhook.Store = (*Store)(nil)

// NewStore creates a subscription store on an existing client
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func subscriptionsKey(owner string) string {
	return fmt.Sprintf("%s:subscriptions:%s", keyPrefix, owner)
}

func ownersKey() string {
	return keyPrefix + ":owners"
}

// GetAll returns every subscription of an owner ordered by id
func (s *Store) GetAll(ctx context.Context, owner string) ([]webhook.Subscription, error) {
	values, err := s.client.HVals(ctx, subscriptionsKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading subscriptions: %w", err)
	}

	subs := make([]webhook.Subscription, 0, len(values))
	for _, v := range values {
		var sub webhook.Subscription
		if err := json.Unmarshal([]byte(v), &sub); err != nil {
			return nil, fmt.Errorf("unmarshaling subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

// Lookup returns one subscription
func (s *Store) Lookup(ctx context.Context, owner, id string) (webhook.Subscription, error) {
	v, err := s.client.HGet(ctx, subscriptionsKey(owner), id).Result()
	if errors.Is(err, redis.Nil) {
		return webhook.Subscription{}, fmt.Errorf("%w: %s", webhook.ErrNotFound, id)
	}
	if err != nil {
		return webhook.Subscription{}, fmt.Errorf("reading subscription: %w", err)
	}

	var sub webhook.Subscription
	if err := json.Unmarshal([]byte(v), &sub); err != nil {
		return webhook.Subscription{}, fmt.Errorf("unmarshaling subscription: %w", err)
	}
	return sub, nil
}

// Query filters the owner's subscriptions client side
func (s *Store) Query(ctx context.Context, owner string, actions []string, predicate webhook.Predicate) ([]webhook.Subscription, error) {
	subs, err := s.GetAll(ctx, owner)
	if err != nil {
		return nil, err
	}
	return webhook.FilterSubscriptions(subs, owner, actions, predicate), nil
}

// QueryAll runs Query for every known owner
func (s *Store) QueryAll(ctx context.Context, actions []string, predicate webhook.Predicate) (map[string][]webhook.Subscription, error) {
	owners, err := s.client.SMembers(ctx, ownersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("reading owners: %w", err)
	}

	result := make(map[string][]webhook.Subscription, len(owners))
	for _, owner := range owners {
		subs, err := s.Query(ctx, owner, actions, predicate)
		if err != nil {
			return nil, err
		}
		if len(subs) > 0 {
			result[owner] = subs
		}
	}
	return result, nil
}

// Insert adds a subscription; an existing id is a conflict
func (s *Store) Insert(ctx context.Context, owner string, sub webhook.Subscription) (webhook.StoreResult, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return webhook.StoreInternalError, fmt.Errorf("marshaling subscription: %w", err)
	}

	added, err := s.client.HSetNX(ctx, subscriptionsKey(owner), sub.ID, data).Result()
	if err != nil {
		return webhook.StoreOperationError, fmt.Errorf("storing subscription: %w", err)
	}
	if !added {
		return webhook.StoreConflict, nil
	}

	if err := s.client.SAdd(ctx, ownersKey(), owner).Err(); err != nil {
		return webhook.StoreOperationError, fmt.Errorf("indexing owner: %w", err)
	}
	return webhook.StoreSuccess, nil
}

// Update replaces an existing subscription
func (s *Store) Update(ctx context.Context, owner string, sub webhook.Subscription) (webhook.StoreResult, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return webhook.StoreInternalError, fmt.Errorf("marshaling subscription: %w", err)
	}

	updated, err := updateScript.Run(ctx, s.client, []string{subscriptionsKey(owner)}, sub.ID, string(data)).Int()
	if err != nil {
		return webhook.StoreOperationError, fmt.Errorf("updating subscription: %w", err)
	}
	if updated == 0 {
		return webhook.StoreNotFound, nil
	}
	return webhook.StoreSuccess, nil
}

// Delete removes one subscription
func (s *Store) Delete(ctx context.Context, owner, id string) (webhook.StoreResult, error) {
	n, err := s.client.HDel(ctx, subscriptionsKey(owner), id).Result()
	if err != nil {
		return webhook.StoreOperationError, fmt.Errorf("deleting subscription: %w", err)
	}
	if n == 0 {
		return webhook.StoreNotFound, nil
	}
	return webhook.StoreSuccess, nil
}

// DeleteAll removes every subscription of an owner
func (s *Store) DeleteAll(ctx context.Context, owner string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, subscriptionsKey(owner))
		pipe.SRem(ctx, ownersKey(), owner)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting subscriptions: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}
