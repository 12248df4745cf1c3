package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/marcelsud/webhook-sender/webhook"
)

// ContentType is the media type of every outbound body
const ContentType = "application/json; charset=utf-8"

/* Body is the outbound request body for one work item.
 * The field order is the wire contract the signature is computed over:
 * Id, Attempt, Properties (omitted when empty), Notifications.
 */
type Body struct {
	ID            string
	Attempt       int
	Properties    map[string]any
	Notifications []webhook.Notification
}

// FromWorkItem builds the body of the current attempt of an item
func FromWorkItem(item *webhook.WorkItem) Body {
	if item.Subscription == nil {
		panic("payload: work item has no subscription")
	}
	return Body{
		ID:            item.EnsureID(),
		Attempt:       item.Attempt(),
		Properties:    item.Subscription.Properties,
		Notifications: item.Notifications,
	}
}

// Build returns the canonical bytes of the body for an item
func Build(item *webhook.WorkItem) ([]byte, error) {
	return FromWorkItem(item).Bytes()
}

// Bytes returns the canonical, minified JSON encoding
func (b Body) Bytes() ([]byte, error) {
	return b.MarshalJSON()
}

// MarshalJSON writes the fields in wire order without HTML escaping
func (b Body) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"Id":`)
	if err := write(&buf, b.ID); err != nil {
		return nil, fmt.Errorf("encoding id: %w", err)
	}
	fmt.Fprintf(&buf, `,"Attempt":%d`, b.Attempt)

	if len(b.Properties) > 0 {
		buf.WriteString(`,"Properties":{`)
		keys := make([]string, 0, len(b.Properties))
		for k := range b.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(&buf, k); err != nil {
				return nil, fmt.Errorf("encoding property key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := write(&buf, b.Properties[k]); err != nil {
				return nil, fmt.Errorf("encoding property %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	}

	buf.WriteString(`,"Notifications":[`)
	for i, n := range b.Notifications {
		if i > 0 {
			buf.WriteByte(',')
		}
		raw, err := n.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding notification %d: %w", i, err)
		}
		buf.Write(raw)
	}
	buf.WriteString(`]}`)

	return buf.Bytes(), nil
}

// Parse decodes a body as received by an endpoint
func Parse(data []byte) (Body, error) {
	var aux struct {
		ID            string                 `json:"Id"`
		Attempt       int                    `json:"Attempt"`
		Properties    map[string]any         `json:"Properties"`
		Notifications []webhook.Notification `json:"Notifications"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return Body{}, fmt.Errorf("unmarshaling payload: %w", err)
	}
	if aux.ID == "" {
		return Body{}, fmt.Errorf("id is required")
	}
	if aux.Attempt < 1 {
		return Body{}, fmt.Errorf("attempt must be at least 1")
	}
	return Body{
		ID:            aux.ID,
		Attempt:       aux.Attempt,
		Properties:    aux.Properties,
		Notifications: aux.Notifications,
	}, nil
}

func write(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
