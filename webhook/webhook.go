package webhook

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-sender/webhook/signature"
)

// WildcardFilter matches every event name.
const WildcardFilter = "*"

/* Subscription represents a registered WebHook: a target URI plus the
 * filters, secret and metadata used to deliver notifications to it.
 * Uses value semantics as it represents data, not behavior
 */
type Subscription struct {
	ID          string            `json:"Id"`
	URI         string            `json:"WebHookUri"`
	Secret      string            `json:"Secret"`
	Description string            `json:"Description,omitempty"`
	IsPaused    bool              `json:"IsPaused"`
	Filters     []string          `json:"Filters"`
	Headers     map[string]string `json:"Headers,omitempty"`
	Properties  map[string]any    `json:"Properties,omitempty"`
}

// NewID returns a new opaque identifier (32 hex characters, no dashes)
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Normalize fills in the identity and collapses case-insensitive sets.
// Filters are lower-cased and de-duplicated; an empty filter set becomes the
// wildcard. Header keys are canonicalised and property keys are collapsed
// case-insensitively, last writer wins.
func (s *Subscription) Normalize() {
	if strings.TrimSpace(s.ID) == "" {
		s.ID = NewID()
	}

	seen := make(map[string]struct{}, len(s.Filters))
	filters := make([]string, 0, len(s.Filters))
	for _, f := range s.Filters {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		filters = append(filters, f)
	}
	if len(filters) == 0 {
		filters = []string{WildcardFilter}
	}
	s.Filters = filters

	if len(s.Headers) > 0 {
		headers := make(map[string]string, len(s.Headers))
		for _, k := range sortedKeys(s.Headers) {
			headers[http.CanonicalHeaderKey(k)] = s.Headers[k]
		}
		s.Headers = headers
	}

	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		canonical := make(map[string]string, len(s.Properties))
		for _, k := range sortedKeys(s.Properties) {
			lower := strings.ToLower(k)
			if prev, ok := canonical[lower]; ok {
				delete(props, prev)
			}
			canonical[lower] = k
			props[k] = s.Properties[k]
		}
		s.Properties = props
	}
}

// Validate checks the subscription invariants
func (s Subscription) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidSubscription)
	}
	u, err := url.Parse(s.URI)
	if err != nil {
		return fmt.Errorf("%w: parsing uri: %v", ErrInvalidSubscription, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: uri must be an absolute http or https address: %q", ErrInvalidSubscription, s.URI)
	}
	if err := signature.ValidateSecret(s.Secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	for _, f := range s.Filters {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: filters cannot contain empty values", ErrInvalidSubscription)
		}
	}
	return nil
}

// Matches reports whether one of the filters accepts the given event name.
// The paused flag is not consulted here.
func (s Subscription) Matches(action string) bool {
	for _, f := range s.Filters {
		if f == WildcardFilter || strings.EqualFold(f, action) {
			return true
		}
	}
	return false
}

// MatchesAny reports whether one of the filters accepts any of the actions
func (s Subscription) MatchesAny(actions []string) bool {
	for _, a := range actions {
		if s.Matches(a) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores never share maps with callers
func (s Subscription) Clone() Subscription {
	c := s
	if s.Filters != nil {
		c.Filters = append([]string(nil), s.Filters...)
	}
	if s.Headers != nil {
		c.Headers = make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			c.Headers[k] = v
		}
	}
	if s.Properties != nil {
		c.Properties = make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
