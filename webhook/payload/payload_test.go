package payload

import (
	"testing"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(props map[string]any, notifications ...webhook.Notification) *webhook.WorkItem {
	return &webhook.WorkItem{
		ID: "1",
		Subscription: &webhook.Subscription{
			ID:         "s1",
			URI:        "http://localhost/hook",
			Secret:     "12345678901234567890123456789012",
			Filters:    []string{"*"},
			Properties: props,
		},
		Notifications: notifications,
	}
}

func TestBuild(t *testing.T) {
	t.Run("success - minimal body", func(t *testing.T) {
		item := newItem(nil, webhook.NewNotification("a1", nil))

		body, err := Build(item)
		require.NoError(t, err)
		assert.Equal(t, `{"Id":"1","Attempt":1,"Notifications":[{"Action":"a1"}]}`, string(body))
	})

	t.Run("success - attempt follows offset", func(t *testing.T) {
		item := newItem(nil, webhook.NewNotification("a1", nil))
		item.Offset = 2

		body, err := Build(item)
		require.NoError(t, err)
		assert.Equal(t, `{"Id":"1","Attempt":3,"Notifications":[{"Action":"a1"}]}`, string(body))
	})

	t.Run("success - properties sorted and included", func(t *testing.T) {
		item := newItem(
			map[string]any{"zeta": 1, "alpha": "x"},
			webhook.NewNotification("order.created", map[string]any{"total": 10, "currency": "EUR"}),
		)

		body, err := Build(item)
		require.NoError(t, err)
		assert.Equal(t,
			`{"Id":"1","Attempt":1,"Properties":{"alpha":"x","zeta":1},"Notifications":[{"Action":"order.created","currency":"EUR","total":10}]}`,
			string(body))
	})

	t.Run("success - empty properties omitted", func(t *testing.T) {
		item := newItem(map[string]any{}, webhook.NewNotification("a1", nil))

		body, err := Build(item)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "Properties")
	})

	t.Run("success - no html escaping", func(t *testing.T) {
		item := newItem(nil, webhook.NewNotification("a1", map[string]any{"html": "<b>&</b>"}))

		body, err := Build(item)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"html":"<b>&</b>"`)
	})

	t.Run("success - generates id when missing", func(t *testing.T) {
		item := newItem(nil, webhook.NewNotification("a1", nil))
		item.ID = ""

		_, err := Build(item)
		require.NoError(t, err)
		assert.Len(t, item.ID, 32)
	})

	t.Run("success - deterministic", func(t *testing.T) {
		item := newItem(map[string]any{"b": 2, "a": 1}, webhook.NewNotification("a1", map[string]any{"y": 1, "x": 2}))

		b1, err1 := Build(item)
		b2, err2 := Build(item)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, b1, b2)
	})

	t.Run("error - unsupported value", func(t *testing.T) {
		item := newItem(map[string]any{"ch": make(chan int)}, webhook.NewNotification("a1", nil))

		_, err := Build(item)
		require.Error(t, err)
	})

	t.Run("panic - missing subscription", func(t *testing.T) {
		item := &webhook.WorkItem{ID: "1"}
		assert.Panics(t, func() { _, _ = Build(item) })
	})
}

func TestParse(t *testing.T) {
	t.Run("success - round trip", func(t *testing.T) {
		item := newItem(map[string]any{"k": "v"}, webhook.NewNotification("a1", map[string]any{"n": "x"}))
		item.Offset = 1
		raw, err := Build(item)
		require.NoError(t, err)

		body, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "1", body.ID)
		assert.Equal(t, 2, body.Attempt)
		assert.Equal(t, "v", body.Properties["k"])
		require.Len(t, body.Notifications, 1)
		assert.Equal(t, "a1", body.Notifications[0].Action)
		assert.Equal(t, "x", body.Notifications[0].Data["n"])
	})

	t.Run("error - invalid json", func(t *testing.T) {
		_, err := Parse([]byte("{"))
		require.Error(t, err)
	})

	t.Run("error - missing id", func(t *testing.T) {
		_, err := Parse([]byte(`{"Attempt":1,"Notifications":[]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "id is required")
	})

	t.Run("error - attempt below one", func(t *testing.T) {
		_, err := Parse([]byte(`{"Id":"1","Attempt":0,"Notifications":[]}`))
		require.Error(t, err)
	})
}
