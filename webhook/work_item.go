package webhook

/* WorkItem is one instance of "fire this subscription with these
 * notifications". Offset starts at 0 and is incremented once per failed
 * attempt; it is both the attempt counter and the index of the retry stage
 * the item is currently in.
 */
type WorkItem struct {
	ID            string         `json:"Id"`
	Subscription  *Subscription  `json:"WebHook"`
	Offset        int            `json:"Offset"`
	Notifications []Notification `json:"Notifications"`

	// Properties correlates an item with in-process state such as its source
	// queue message. Never serialized.
	Properties map[string]any `json:"-"`
}

// NewWorkItem creates a work item for a subscription and notification batch
func NewWorkItem(sub *Subscription, notifications []Notification) *WorkItem {
	return &WorkItem{
		ID:            NewID(),
		Subscription:  sub,
		Notifications: notifications,
	}
}

// EnsureID returns the item identity, generating it on first access
func (w *WorkItem) EnsureID() string {
	if w.ID == "" {
		w.ID = NewID()
	}
	return w.ID
}

// Attempt is the 1-based number of the attempt currently being made
func (w *WorkItem) Attempt() int {
	return w.Offset + 1
}

// SetProperty stores a transient correlation value
func (w *WorkItem) SetProperty(key string, value any) {
	if w.Properties == nil {
		w.Properties = make(map[string]any)
	}
	w.Properties[key] = value
}

// Property returns a transient correlation value
func (w *WorkItem) Property(key string) (any, bool) {
	if w.Properties == nil {
		return nil, false
	}
	v, ok := w.Properties[key]
	return v, ok
}

// SubscriptionID returns the target subscription id or "" when unset
func (w *WorkItem) SubscriptionID() string {
	if w.Subscription == nil {
		return ""
	}
	return w.Subscription.ID
}
