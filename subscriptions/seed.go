package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/rs/zerolog"
)

// Report counts what a seeding run changed
type Report struct {
	Inserted int
	Updated  int
}

// Apply writes the seeds into the store. Existing subscriptions with the same
// owner and id are replaced. No echo verification is performed.
func Apply(ctx context.Context, store webhook.Writer, seeds []Seed, logger zerolog.Logger) (Report, error) {
	var report Report
	for _, seed := range seeds {
		res, err := store.Insert(ctx, seed.Owner, seed.Subscription)
		if err != nil {
			return report, fmt.Errorf("inserting subscription %s: %w", seed.Subscription.ID, err)
		}

		if errors.Is(res.Err(), webhook.ErrConflict) {
			res, err = store.Update(ctx, seed.Owner, seed.Subscription)
			if err != nil {
				return report, fmt.Errorf("updating subscription %s: %w", seed.Subscription.ID, err)
			}
			if err := res.Err(); err != nil {
				return report, fmt.Errorf("updating subscription %s: %w", seed.Subscription.ID, err)
			}
			report.Updated++
			logger.Debug().Str("owner", seed.Owner).Str("subscription_id", seed.Subscription.ID).Msg("subscription updated from seed")
			continue
		}
		if err := res.Err(); err != nil {
			return report, fmt.Errorf("inserting subscription %s: %w", seed.Subscription.ID, err)
		}
		report.Inserted++
		logger.Debug().Str("owner", seed.Owner).Str("subscription_id", seed.Subscription.ID).Msg("subscription inserted from seed")
	}

	logger.Info().Int("inserted", report.Inserted).Int("updated", report.Updated).Msg("subscriptions seeded")
	return report, nil
}
