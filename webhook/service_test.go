package webhook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "12345678901234567890123456789012"

func validSubscription() webhook.Subscription {
	return webhook.Subscription{
		URI:     "http://localhost/hook",
		Secret:  testSecret,
		Filters: []string{"Order.Created", "order.created"},
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success - normalized, verified and stored", func(t *testing.T) {
		store := mocks.NewStore(t)
		verifier := mocks.NewVerifier(t)
		service := webhook.NewService(store, mocks.NewSender(t), verifier)

		verifier.On("Verify", ctx, mock.Anything).Return(nil)
		store.On("Insert", ctx, "owner", webhook.MatchSubscription(func(s webhook.Subscription) bool {
			return len(s.ID) == 32 &&
				len(s.Filters) == 1 &&
				s.Filters[0] == "order.created"
		})).Return(webhook.StoreSuccess, nil)

		sub, err := service.Register(ctx, "owner", validSubscription())

		require.NoError(t, err)
		assert.Len(t, sub.ID, 32)
		assert.Equal(t, []string{"order.created"}, sub.Filters)
	})

	t.Run("success - nil verifier skips probe", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("Insert", ctx, "owner", mock.Anything).Return(webhook.StoreSuccess, nil)

		_, err := service.Register(ctx, "owner", validSubscription())
		require.NoError(t, err)
	})

	t.Run("error - invalid secret never reaches the store", func(t *testing.T) {
		service := webhook.NewService(mocks.NewStore(t), mocks.NewSender(t), mocks.NewVerifier(t))

		sub := validSubscription()
		sub.Secret = "too-short"
		_, err := service.Register(ctx, "owner", sub)

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrInvalidSubscription)
	})

	t.Run("error - verification failure is returned as is", func(t *testing.T) {
		verifier := mocks.NewVerifier(t)
		service := webhook.NewService(mocks.NewStore(t), mocks.NewSender(t), verifier)

		verr := &webhook.VerificationError{URI: "http://localhost/hook", Reason: webhook.ReasonBodyMismatch}
		verifier.On("Verify", ctx, mock.Anything).Return(verr)

		_, err := service.Register(ctx, "owner", validSubscription())

		var got *webhook.VerificationError
		require.ErrorAs(t, err, &got)
		assert.Equal(t, webhook.ReasonBodyMismatch, got.Reason)
	})

	t.Run("error - conflict", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("Insert", ctx, "owner", mock.Anything).Return(webhook.StoreConflict, nil)

		_, err := service.Register(ctx, "owner", validSubscription())
		assert.ErrorIs(t, err, webhook.ErrConflict)
	})

	t.Run("error - store failure", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("Insert", ctx, "owner", mock.Anything).Return(webhook.StoreOperationError, errors.New("connection refused"))

		_, err := service.Register(ctx, "owner", validSubscription())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inserting subscription")
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		sub := validSubscription()
		sub.ID = "abc"
		store.On("Update", ctx, "owner", webhook.MatchSubscription(func(s webhook.Subscription) bool {
			return s.ID == "abc"
		})).Return(webhook.StoreSuccess, nil)

		got, err := service.Update(ctx, "owner", sub)
		require.NoError(t, err)
		assert.Equal(t, "abc", got.ID)
	})

	t.Run("error - id required", func(t *testing.T) {
		service := webhook.NewService(mocks.NewStore(t), mocks.NewSender(t), nil)

		_, err := service.Update(ctx, "owner", validSubscription())
		assert.ErrorIs(t, err, webhook.ErrInvalidSubscription)
	})

	t.Run("error - not found", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		sub := validSubscription()
		sub.ID = "abc"
		store.On("Update", ctx, "owner", mock.Anything).Return(webhook.StoreNotFound, nil)

		_, err := service.Update(ctx, "owner", sub)
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})
}

func TestGetListDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("success - get", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("Lookup", ctx, "owner", "abc").Return(webhook.Subscription{ID: "abc"}, nil)

		sub, err := service.Get(ctx, "owner", "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", sub.ID)
	})

	t.Run("error - get not found", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("Lookup", ctx, "owner", "abc").Return(webhook.Subscription{}, webhook.ErrNotFound)

		_, err := service.Get(ctx, "owner", "abc")
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})

	t.Run("success - list", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("GetAll", ctx, "owner").Return([]webhook.Subscription{{ID: "a"}, {ID: "b"}}, nil)

		subs, err := service.List(ctx, "owner")
		require.NoError(t, err)
		assert.Len(t, subs, 2)
	})

	t.Run("error - delete not found", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("Delete", ctx, "owner", "abc").Return(webhook.StoreNotFound, nil)

		err := service.Delete(ctx, "owner", "abc")
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})

	t.Run("success - delete all", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("DeleteAll", ctx, "owner").Return(nil)

		require.NoError(t, service.DeleteAll(ctx, "owner"))
	})
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	subs := []webhook.Subscription{
		{ID: "s1", URI: "http://localhost/1", Secret: testSecret, Filters: []string{"a1"}},
		{ID: "s2", URI: "http://localhost/2", Secret: testSecret, Filters: []string{"*"}},
	}

	t.Run("success - sends one item per matching subscription", func(t *testing.T) {
		store := mocks.NewStore(t)
		sender := mocks.NewSender(t)
		service := webhook.NewService(store, sender, nil)

		store.On("Query", ctx, "owner", []string{"a1"}, mock.Anything).Return(subs, nil)
		sender.On("Send", ctx, webhook.MatchWorkItems(func(items []*webhook.WorkItem) bool {
			return len(items) == 2 &&
				items[0].Subscription.ID == "s1" &&
				items[1].Subscription.ID == "s2" &&
				items[0].Offset == 0
		})).Return(nil)

		n, err := service.Notify(ctx, "owner", []webhook.Notification{webhook.NewNotification("a1", nil)}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("success - empty batch is a no-op", func(t *testing.T) {
		service := webhook.NewService(mocks.NewStore(t), mocks.NewSender(t), nil)

		n, err := service.Notify(ctx, "owner", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("success - no match sends nothing", func(t *testing.T) {
		store := mocks.NewStore(t)
		service := webhook.NewService(store, mocks.NewSender(t), nil)

		store.On("Query", ctx, "owner", []string{"zz"}, mock.Anything).Return(nil, nil)

		n, err := service.Notify(ctx, "owner", []webhook.Notification{webhook.NewNotification("zz", nil)}, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("error - empty action", func(t *testing.T) {
		service := webhook.NewService(mocks.NewStore(t), mocks.NewSender(t), nil)

		_, err := service.Notify(ctx, "owner", []webhook.Notification{webhook.NewNotification(" ", nil)}, nil)
		assert.ErrorIs(t, err, webhook.ErrInvalidNotification)
	})

	t.Run("error - send failure", func(t *testing.T) {
		store := mocks.NewStore(t)
		sender := mocks.NewSender(t)
		service := webhook.NewService(store, sender, nil)

		store.On("Query", ctx, "owner", []string{"a1"}, mock.Anything).Return(subs, nil)
		sender.On("Send", ctx, mock.Anything).Return(errors.New("closed"))

		_, err := service.Notify(ctx, "owner", []webhook.Notification{webhook.NewNotification("a1", nil)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sending work items")
	})
}

func TestNotifyAll(t *testing.T) {
	ctx := context.Background()

	store := mocks.NewStore(t)
	sender := mocks.NewSender(t)
	service := webhook.NewService(store, sender, nil)

	store.On("QueryAll", ctx, []string{"a1"}, mock.Anything).Return(map[string][]webhook.Subscription{
		"o1": {{ID: "s1", Filters: []string{"a1"}}},
		"o2": {{ID: "s2", Filters: []string{"a1"}}, {ID: "s3", Filters: []string{"a1"}}},
	}, nil)
	sender.On("Send", ctx, webhook.MatchWorkItems(func(items []*webhook.WorkItem) bool {
		return len(items) == 2
	})).Return(nil)

	onlyO2 := func(sub webhook.Subscription, owner string) bool { return owner == "o2" }
	n, err := service.NotifyAll(ctx, []webhook.Notification{webhook.NewNotification("a1", nil)}, onlyO2)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
