package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ActionKey is the well-known key carrying the event name of a notification
const ActionKey = "Action"

/* Notification is an event name plus an open map of event-specific data.
 * On the wire the data fields are flattened alongside the Action key.
 */
type Notification struct {
	Action string
	Data   map[string]any
}

// NewNotification creates a notification for the given event name
func NewNotification(action string, data map[string]any) Notification {
	return Notification{Action: action, Data: data}
}

// Validate checks the notification has an event name
func (n Notification) Validate() error {
	if strings.TrimSpace(n.Action) == "" {
		return fmt.Errorf("%w: action cannot be empty", ErrInvalidNotification)
	}
	return nil
}

// MarshalJSON writes Action first and then the data fields in sorted key
// order, so the encoding is stable for signing. Data keys that collide with
// Action are dropped.
func (n Notification) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, ActionKey, n.Action); err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(n.Data) {
		if strings.EqualFold(k, ActionKey) {
			continue
		}
		buf.WriteByte(',')
		if err := writeField(&buf, k, n.Data[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON splits the Action key back out of the flat object
func (n *Notification) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshaling notification: %w", err)
	}
	n.Action = ""
	n.Data = nil
	for k, v := range raw {
		if strings.EqualFold(k, ActionKey) {
			action, ok := v.(string)
			if !ok {
				return fmt.Errorf("unmarshaling notification: %s must be a string", ActionKey)
			}
			n.Action = action
			continue
		}
		if n.Data == nil {
			n.Data = make(map[string]any, len(raw))
		}
		n.Data[k] = v
	}
	return nil
}

// Actions returns the distinct event names of a notification batch
func Actions(notifications []Notification) []string {
	seen := make(map[string]struct{}, len(notifications))
	actions := make([]string, 0, len(notifications))
	for _, n := range notifications {
		key := strings.ToLower(n.Action)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		actions = append(actions, n.Action)
	}
	return actions
}

// writeField encodes "key":value without HTML escaping
func writeField(buf *bytes.Buffer, key string, value any) error {
	k, err := encode(key)
	if err != nil {
		return fmt.Errorf("encoding key %q: %w", key, err)
	}
	v, err := encode(value)
	if err != nil {
		return fmt.Errorf("encoding value of %q: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// encode marshals v compactly without HTML escaping or a trailing newline
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
