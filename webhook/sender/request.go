package sender

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/payload"
	"github.com/marcelsud/webhook-sender/webhook/signature"
	"github.com/rs/zerolog"
)

// reserved headers always carry the generated value
var reserved = []string{"Content-Type", "Content-Length", signature.HeaderName}

// NewRequest builds the signed POST for the current attempt of an item.
// Subscription headers are merged in; a subscription header that collides
// with a reserved name is dropped and logged.
func NewRequest(ctx context.Context, item *webhook.WorkItem, logger zerolog.Logger) (*http.Request, error) {
	if item == nil || item.Subscription == nil {
		panic("sender: work item has no subscription")
	}
	sub := item.Subscription

	body, err := payload.Build(item)
	if err != nil {
		return nil, fmt.Errorf("building payload: %w", err)
	}

	sig, err := signature.Sign(sub.Secret, body)
	if err != nil {
		return nil, fmt.Errorf("signing payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URI, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	keys := make([]string, 0, len(sub.Headers))
	for k := range sub.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isReserved(k) {
			logger.Warn().
				Str("item_id", item.ID).
				Str("subscription_id", sub.ID).
				Str("header", k).
				Msg("subscription header conflicts with a content header, keeping generated value")
			continue
		}
		req.Header.Set(k, sub.Headers[k])
	}

	req.Header.Set("Content-Type", payload.ContentType)
	req.Header.Set(signature.HeaderName, sig.String())

	return req, nil
}

func isReserved(name string) bool {
	for _, r := range reserved {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}
