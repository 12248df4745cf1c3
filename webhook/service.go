package webhook

import (
	"context"
	"errors"
	"fmt"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the business operations for subscriptions and notifications
type UseCase interface {
	Register(ctx context.Context, owner string, sub Subscription) (Subscription, error)
	Update(ctx context.Context, owner string, sub Subscription) (Subscription, error)
	Get(ctx context.Context, owner, id string) (Subscription, error)
	List(ctx context.Context, owner string) ([]Subscription, error)
	Delete(ctx context.Context, owner, id string) error
	DeleteAll(ctx context.Context, owner string) error
	Notify(ctx context.Context, owner string, notifications []Notification, predicate Predicate) (int, error)
	NotifyAll(ctx context.Context, notifications []Notification, predicate Predicate) (int, error)
}

type Service struct {
	Store    Store
	Sender   Sender
	Verifier Verifier
}

// NewService creates a new service with dependency injection.
// A nil verifier disables the registration echo probe.
func NewService(store Store, sender Sender, verifier Verifier) *Service {
	return &Service{
		Store:    store,
		Sender:   sender,
		Verifier: verifier,
	}
}

// Register normalizes, validates and verifies a subscription, then stores it
func (s *Service) Register(ctx context.Context, owner string, sub Subscription) (Subscription, error) {
	sub, err := s.prepare(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}

	res, err := s.Store.Insert(ctx, owner, sub)
	if err != nil {
		return Subscription{}, fmt.Errorf("inserting subscription: %w", err)
	}
	if err := res.Err(); err != nil {
		return Subscription{}, fmt.Errorf("inserting subscription: %w", err)
	}
	return sub, nil
}

// Update replaces a stored subscription after the same checks as Register
func (s *Service) Update(ctx context.Context, owner string, sub Subscription) (Subscription, error) {
	if sub.ID == "" {
		return Subscription{}, fmt.Errorf("%w: id is required for update", ErrInvalidSubscription)
	}
	sub, err := s.prepare(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}

	res, err := s.Store.Update(ctx, owner, sub)
	if err != nil {
		return Subscription{}, fmt.Errorf("updating subscription: %w", err)
	}
	if err := res.Err(); err != nil {
		return Subscription{}, fmt.Errorf("updating subscription: %w", err)
	}
	return sub, nil
}

// Get returns one subscription
func (s *Service) Get(ctx context.Context, owner, id string) (Subscription, error) {
	sub, err := s.Store.Lookup(ctx, owner, id)
	if err != nil {
		return Subscription{}, fmt.Errorf("looking up subscription: %w", err)
	}
	return sub, nil
}

// List returns all subscriptions of an owner
func (s *Service) List(ctx context.Context, owner string) ([]Subscription, error) {
	subs, err := s.Store.GetAll(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

// Delete removes one subscription
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	res, err := s.Store.Delete(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// DeleteAll removes every subscription of an owner
func (s *Service) DeleteAll(ctx context.Context, owner string) error {
	if err := s.Store.DeleteAll(ctx, owner); err != nil {
		return fmt.Errorf("deleting subscriptions: %w", err)
	}
	return nil
}

// Notify delivers the notifications to the matching subscriptions of one
// owner and returns how many subscriptions were notified
func (s *Service) Notify(ctx context.Context, owner string, notifications []Notification, predicate Predicate) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}
	if err := validateNotifications(notifications); err != nil {
		return 0, err
	}

	subs, err := s.Store.Query(ctx, owner, Actions(notifications), predicate)
	if err != nil {
		return 0, fmt.Errorf("querying subscriptions: %w", err)
	}

	return s.send(ctx, Match(subs, owner, notifications, predicate))
}

// NotifyAll is Notify across every owner
func (s *Service) NotifyAll(ctx context.Context, notifications []Notification, predicate Predicate) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}
	if err := validateNotifications(notifications); err != nil {
		return 0, err
	}

	byOwner, err := s.Store.QueryAll(ctx, Actions(notifications), predicate)
	if err != nil {
		return 0, fmt.Errorf("querying subscriptions: %w", err)
	}

	var items []*WorkItem
	for owner, subs := range byOwner {
		items = append(items, Match(subs, owner, notifications, predicate)...)
	}
	return s.send(ctx, items)
}

func (s *Service) send(ctx context.Context, items []*WorkItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if err := s.Sender.Send(ctx, items); err != nil {
		return 0, fmt.Errorf("sending work items: %w", err)
	}
	return len(items), nil
}

func (s *Service) prepare(ctx context.Context, sub Subscription) (Subscription, error) {
	sub = sub.Clone()
	sub.Normalize()
	if err := sub.Validate(); err != nil {
		return Subscription{}, fmt.Errorf("validating subscription: %w", err)
	}
	if s.Verifier != nil {
		if err := s.Verifier.Verify(ctx, sub); err != nil {
			var verr *VerificationError
			if errors.As(err, &verr) {
				return Subscription{}, err
			}
			return Subscription{}, fmt.Errorf("verifying subscription: %w", err)
		}
	}
	return sub, nil
}

func validateNotifications(notifications []Notification) error {
	for _, n := range notifications {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	return nil
}
