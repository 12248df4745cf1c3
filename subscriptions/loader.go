package subscriptions

import (
	"fmt"
	"os"
	"sort"

	"github.com/marcelsud/webhook-sender/webhook"
	"gopkg.in/yaml.v3"
)

/* Loader reads subscriptions from a seed file (subscriptions.yaml).
 * Values may reference environment variables as ${NAME} so secrets stay out
 * of the file.
 */

// File represents the structure of subscriptions.yaml
type File struct {
	Subscriptions []Entry `yaml:"subscriptions"`
}

// Entry represents a single subscription in the YAML file
type Entry struct {
	Owner       string            `yaml:"owner"`
	ID          string            `yaml:"id"`
	URI         string            `yaml:"uri"`
	Secret      string            `yaml:"secret"`
	Description string            `yaml:"description"`
	Paused      bool              `yaml:"paused"`
	Filters     []string          `yaml:"filters"`
	Headers     map[string]string `yaml:"headers"`
	Properties  map[string]any    `yaml:"properties"`
}

// Seed is a validated subscription and the owner it belongs to
type Seed struct {
	Owner        string
	Subscription webhook.Subscription
}

// Loader holds the loaded subscriptions
type Loader struct {
	seeds []Seed
}

// NewLoader creates a new subscription loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a subscriptions file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading subscriptions file: %w", err)
	}
	return l.Parse(data)
}

// Parse validates every entry; on error nothing is kept
func (l *Loader) Parse(data []byte) error {
	var file File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return fmt.Errorf("parsing subscriptions YAML: %w", err)
	}

	seeds := make([]Seed, 0, len(file.Subscriptions))
	seen := make(map[string]struct{}, len(file.Subscriptions))
	for i, e := range file.Subscriptions {
		seed, err := e.toSeed()
		if err != nil {
			return fmt.Errorf("validating subscription %d: %w", i+1, err)
		}

		key := seed.Owner + "/" + seed.Subscription.ID
		if _, dup := seen[key]; dup {
			return fmt.Errorf("validating subscription %d: duplicate id %q for owner %q", i+1, seed.Subscription.ID, seed.Owner)
		}
		seen[key] = struct{}{}
		seeds = append(seeds, seed)
	}

	l.seeds = seeds
	return nil
}

// List returns the loaded subscriptions in file order
func (l *Loader) List() []Seed {
	out := make([]Seed, len(l.seeds))
	for i, s := range l.seeds {
		out[i] = Seed{Owner: s.Owner, Subscription: s.Subscription.Clone()}
	}
	return out
}

// Owners returns the distinct owners, sorted
func (l *Loader) Owners() []string {
	set := make(map[string]struct{})
	for _, s := range l.seeds {
		set[s.Owner] = struct{}{}
	}
	owners := make([]string, 0, len(set))
	for o := range set {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners
}

func (e Entry) toSeed() (Seed, error) {
	if e.Owner == "" {
		return Seed{}, fmt.Errorf("owner cannot be empty")
	}
	// ids are required so seeding the same file twice updates in place
	if e.ID == "" {
		return Seed{}, fmt.Errorf("id cannot be empty for owner %s", e.Owner)
	}

	sub := webhook.Subscription{
		ID:          e.ID,
		URI:         e.URI,
		Secret:      e.Secret,
		Description: e.Description,
		IsPaused:    e.Paused,
		Filters:     e.Filters,
		Headers:     e.Headers,
		Properties:  e.Properties,
	}
	sub.Normalize()
	if err := sub.Validate(); err != nil {
		return Seed{}, fmt.Errorf("subscription %s: %w", e.ID, err)
	}
	return Seed{Owner: e.Owner, Subscription: sub}, nil
}
