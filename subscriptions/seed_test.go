package subscriptions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marcelsud/webhook-sender/subscriptions"
	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/memory"
	"github.com/marcelsud/webhook-sender/webhook/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seeds(t *testing.T) []subscriptions.Seed {
	t.Helper()
	t.Setenv("TEST_SEED_SECRET", "abcdefghijabcdefghijabcdefghijab")
	loader := subscriptions.NewLoader()
	require.NoError(t, loader.Parse([]byte(validFile)))
	return loader.List()
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("success - inserts then updates in place", func(t *testing.T) {
		store := memory.NewStore()

		report, err := subscriptions.Apply(ctx, store, seeds(t), zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, subscriptions.Report{Inserted: 3}, report)

		report, err = subscriptions.Apply(ctx, store, seeds(t), zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, subscriptions.Report{Updated: 3}, report)

		subs, err := store.GetAll(ctx, "acme")
		require.NoError(t, err)
		assert.Len(t, subs, 2)
	})

	t.Run("error - store failure stops seeding", func(t *testing.T) {
		store := mocks.NewStore(t)
		store.On("Insert", ctx, "acme", mock.Anything).Return(webhook.StoreOperationError, errors.New("connection refused")).Once()

		report, err := subscriptions.Apply(ctx, store, seeds(t), zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inserting subscription orders")
		assert.Equal(t, 0, report.Inserted)
	})

	t.Run("error - update of a vanished subscription", func(t *testing.T) {
		store := mocks.NewStore(t)
		store.On("Insert", ctx, "acme", mock.Anything).Return(webhook.StoreConflict, nil).Once()
		store.On("Update", ctx, "acme", mock.Anything).Return(webhook.StoreNotFound, nil).Once()

		_, err := subscriptions.Apply(ctx, store, seeds(t)[:1], zerolog.Nop())
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})
}
