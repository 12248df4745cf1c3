package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marcelsud/webhook-sender/webhook"
)

// Store keeps subscriptions in process. Useful for tests and single
// instance deployments seeded from a file.
type Store struct {
	mu     sync.RWMutex
	owners map[string]map[string]webhook.Subscription
}

var _ webhook.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{owners: make(map[string]map[string]webhook.Subscription)}
}

func (s *Store) GetAll(ctx context.Context, owner string) ([]webhook.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(owner), nil
}

func (s *Store) Lookup(ctx context.Context, owner, id string) (webhook.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.owners[owner][id]
	if !ok {
		return webhook.Subscription{}, fmt.Errorf("%w: %s", webhook.ErrNotFound, id)
	}
	return sub.Clone(), nil
}

func (s *Store) Query(ctx context.Context, owner string, actions []string, predicate webhook.Predicate) ([]webhook.Subscription, error) {
	s.mu.RLock()
	subs := s.list(owner)
	s.mu.RUnlock()

	return webhook.FilterSubscriptions(subs, owner, actions, predicate), nil
}

func (s *Store) QueryAll(ctx context.Context, actions []string, predicate webhook.Predicate) (map[string][]webhook.Subscription, error) {
	s.mu.RLock()
	all := make(map[string][]webhook.Subscription, len(s.owners))
	for owner := range s.owners {
		all[owner] = s.list(owner)
	}
	s.mu.RUnlock()

	result := make(map[string][]webhook.Subscription, len(all))
	for owner, subs := range all {
		if matched := webhook.FilterSubscriptions(subs, owner, actions, predicate); len(matched) > 0 {
			result[owner] = matched
		}
	}
	return result, nil
}

func (s *Store) Insert(ctx context.Context, owner string, sub webhook.Subscription) (webhook.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.owners[owner]
	if !ok {
		subs = make(map[string]webhook.Subscription)
		s.owners[owner] = subs
	}
	if _, exists := subs[sub.ID]; exists {
		return webhook.StoreConflict, nil
	}
	subs[sub.ID] = sub.Clone()
	return webhook.StoreSuccess, nil
}

func (s *Store) Update(ctx context.Context, owner string, sub webhook.Subscription) (webhook.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.owners[owner][sub.ID]; !exists {
		return webhook.StoreNotFound, nil
	}
	s.owners[owner][sub.ID] = sub.Clone()
	return webhook.StoreSuccess, nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) (webhook.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.owners[owner][id]; !exists {
		return webhook.StoreNotFound, nil
	}
	delete(s.owners[owner], id)
	if len(s.owners[owner]) == 0 {
		delete(s.owners, owner)
	}
	return webhook.StoreSuccess, nil
}

func (s *Store) DeleteAll(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.owners, owner)
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

// list copies an owner's subscriptions ordered by id; caller holds the lock
func (s *Store) list(owner string) []webhook.Subscription {
	subs := make([]webhook.Subscription, 0, len(s.owners[owner]))
	for _, sub := range s.owners[owner] {
		subs = append(subs, sub.Clone())
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs
}
