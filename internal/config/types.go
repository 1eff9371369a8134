package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Messenger MessengerConfig `json:"messenger"`
	Webhook   WebhookConfig   `json:"webhook"`
	Feed      FeedConfig      `json:"feed"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Store     StoreConfig     `json:"store"`
	Stats     StatsConfig     `json:"stats,omitempty"`
	Items     ItemsConfig     `json:"items"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert mirrors error-level records to an admin Messenger recipient.
type LoggingAlert struct {
	Enabled     bool   `json:"enabled"`
	RecipientID string `json:"recipient_id,omitempty"`
	MinLevel    string `json:"min_level,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// MessengerConfig configures the outbound Graph API adapter.
//
// AccessToken and VerifyToken may be left empty in the file and provided via
// the PAGE_ACCESS_TOKEN / VERIFY_TOKEN environment variables instead.
type MessengerConfig struct {
	AccessToken string `json:"access_token,omitempty"`
	APIBase     string `json:"api_base,omitempty"` // default: https://graph.facebook.com/v17.0
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	// SendTimeout is a Go duration string (e.g. "10s").
	SendTimeout string `json:"send_timeout,omitempty"`
}

type WebhookConfig struct {
	Addr        string `json:"addr"`           // e.g. ":8080"
	Path        string `json:"path,omitempty"` // default: /webhook
	VerifyToken string `json:"verify_token,omitempty"`
}

// FeedConfig configures the upstream WebSocket connection and its
// reconnect/heartbeat behavior. All durations are Go duration strings.
type FeedConfig struct {
	URL          string `json:"url"`
	InitialDelay string `json:"initial_delay,omitempty"` // default: 1s
	MaxDelay     string `json:"max_delay,omitempty"`     // default: 1m
	JitterMax    string `json:"jitter_max,omitempty"`    // default: 500ms
	MaxRetries   int    `json:"max_retries,omitempty"`   // default: 10
	Heartbeat    string `json:"heartbeat,omitempty"`     // default: 30s
	PongTimeout  string `json:"pong_timeout,omitempty"`  // default: 10s
}

type BroadcastConfig struct {
	// Timeout bounds one whole broadcast run. "0s" disables the bound.
	Timeout string `json:"timeout,omitempty"`
	// MaxConcurrent caps in-flight sends within one broadcast (0 = unbounded).
	MaxConcurrent int `json:"max_concurrent,omitempty"`
}

type StoreConfig struct {
	Driver string `json:"driver"` // "sqlite" or "memory"
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type StatsConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron spec for the periodic counter flush. Default: "*/5 * * * *".
	Spec string `json:"spec,omitempty"`
}

// ItemsConfig holds the classifier membership tables. Hot-reloadable.
type ItemsConfig struct {
	RareNormal   []string `json:"rare_normal"`
	RarePriority []string `json:"rare_priority"`
	SummerSeeds  []string `json:"summer_seeds"`
}

// DefaultItems returns the stock item lists shipped with the bot. Used when
// the config file leaves the items section empty; deployments that set any
// list own all three.
func DefaultItems() ItemsConfig {
	return ItemsConfig{
		RareNormal: []string{
			"Basic Sprinkler", "Advanced Sprinkler", "Grape", "Mushroom",
			"Pepper", "Cacao", "Legendary Egg", "Mythical Egg", "Bee Egg",
		},
		RarePriority: []string{
			"Beanstalk", "Ember Lily", "Sugar Apple", "Feijoa", "Loquat",
			"Godly Sprinkler", "Master Sprinkler", "Bug Egg",
		},
		SummerSeeds: []string{
			"Cauliflower", "Green Apple", "Avocado", "Banana", "Pineapple",
			"Bell Pepper", "Prickly pear", "Kiwi", "Feijoa", "Loquat",
		},
	}
}

func (i ItemsConfig) empty() bool {
	return len(i.RareNormal) == 0 && len(i.RarePriority) == 0 && len(i.SummerSeeds) == 0
}

// ApplyEnv overlays secrets from the environment. Environment wins over the
// file so deployments never need tokens on disk.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("PAGE_ACCESS_TOKEN")); v != "" {
		c.Messenger.AccessToken = v
	}
	if v := strings.TrimSpace(os.Getenv("VERIFY_TOKEN")); v != "" {
		c.Webhook.VerifyToken = v
	}
}

// Validate checks the fields that would otherwise fail deep inside a
// component at an awkward time. Called on load and again on hot-reload.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Messenger.AccessToken) == "" {
		return errors.New("messenger.access_token (or PAGE_ACCESS_TOKEN) is required")
	}
	if strings.TrimSpace(c.Webhook.VerifyToken) == "" {
		return errors.New("webhook.verify_token (or VERIFY_TOKEN) is required")
	}
	if strings.TrimSpace(c.Webhook.Addr) == "" {
		return errors.New("webhook.addr is required")
	}
	if strings.TrimSpace(c.Feed.URL) == "" {
		return errors.New("feed.url is required")
	}
	switch strings.TrimSpace(c.Store.Driver) {
	case "sqlite":
		if strings.TrimSpace(c.Store.Path) == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"memory\", got %q", c.Store.Driver)
	}
	for _, raw := range []struct{ path, val string }{
		{"messenger.send_timeout", c.Messenger.SendTimeout},
		{"feed.initial_delay", c.Feed.InitialDelay},
		{"feed.max_delay", c.Feed.MaxDelay},
		{"feed.jitter_max", c.Feed.JitterMax},
		{"feed.heartbeat", c.Feed.Heartbeat},
		{"feed.pong_timeout", c.Feed.PongTimeout},
		{"broadcast.timeout", c.Broadcast.Timeout},
		{"store.busy_timeout", c.Store.BusyTimeout},
	} {
		if _, err := ParseDurationField(raw.path, raw.val); err != nil {
			return err
		}
	}
	return nil
}
