package sender

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/signature"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "12345678901234567890123456789012"

func testItem(uri string) *webhook.WorkItem {
	return &webhook.WorkItem{
		ID: "1",
		Subscription: &webhook.Subscription{
			ID:      "s1",
			URI:     uri,
			Secret:  testSecret,
			Filters: []string{"a1"},
		},
		Notifications: []webhook.Notification{webhook.NewNotification("a1", nil)},
	}
}

func TestNewRequest(t *testing.T) {
	t.Run("success - signed canonical body", func(t *testing.T) {
		req, err := NewRequest(context.Background(), testItem("http://localhost/hook"), zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "http://localhost/hook", req.URL.String())
		assert.Equal(t, "application/json; charset=utf-8", req.Header.Get("Content-Type"))
		assert.Equal(t,
			"sha256=a2f5acb7df43027dbac2b20491c4417f6981de3b316b6bc3c48da730e99db897",
			req.Header.Get(signature.HeaderName))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"Id":"1","Attempt":1,"Notifications":[{"Action":"a1"}]}`, string(body))
	})

	t.Run("success - same item signs identically", func(t *testing.T) {
		item := testItem("http://localhost/hook")
		r1, err1 := NewRequest(context.Background(), item, zerolog.Nop())
		r2, err2 := NewRequest(context.Background(), item, zerolog.Nop())
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, r1.Header.Get(signature.HeaderName), r2.Header.Get(signature.HeaderName))
	})

	t.Run("success - subscription headers merged", func(t *testing.T) {
		item := testItem("http://localhost/hook")
		item.Subscription.Headers = map[string]string{"X-Tenant": "acme"}

		req, err := NewRequest(context.Background(), item, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, "acme", req.Header.Get("X-Tenant"))
	})

	t.Run("success - reserved header conflict keeps generated value and logs", func(t *testing.T) {
		var logs bytes.Buffer
		item := testItem("http://localhost/hook")
		item.Subscription.Headers = map[string]string{
			"content-type": "text/plain",
			"MS-Signature": "sha256=00",
		}

		req, err := NewRequest(context.Background(), item, zerolog.New(&logs))
		require.NoError(t, err)
		assert.Equal(t, "application/json; charset=utf-8", req.Header.Get("Content-Type"))
		assert.Equal(t,
			"sha256=a2f5acb7df43027dbac2b20491c4417f6981de3b316b6bc3c48da730e99db897",
			req.Header.Get(signature.HeaderName))
		assert.Contains(t, logs.String(), "conflicts with a content header")
	})

	t.Run("error - invalid secret", func(t *testing.T) {
		item := testItem("http://localhost/hook")
		item.Subscription.Secret = "short"

		_, err := NewRequest(context.Background(), item, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signing payload")
	})

	t.Run("panic - missing subscription", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = NewRequest(context.Background(), &webhook.WorkItem{ID: "1"}, zerolog.Nop())
		})
	})
}
