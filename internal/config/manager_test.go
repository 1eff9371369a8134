package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
logging:
  level: info
  console: true
messenger:
  access_token: tok
webhook:
  addr: ":8080"
  verify_token: sesame
feed:
  url: wss://feed.example/ws
store:
  driver: memory
items:
  rare_normal: [Mushroom]
  rare_priority: [Beanstalk]
  summer_seeds: [Banana]
`

func TestLoadYAML(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Webhook.VerifyToken != "sesame" {
		t.Fatalf("verify_token = %q", cfg.Webhook.VerifyToken)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get did not return the committed config")
	}
	if len(cfg.Items.RareNormal) != 1 || cfg.Items.RareNormal[0] != "Mushroom" {
		t.Fatalf("items = %+v", cfg.Items)
	}
}

func TestLoadJSONPassThrough(t *testing.T) {
	js := `{
  "logging": {"level": "info", "console": true},
  "messenger": {"access_token": "tok"},
  "webhook": {"addr": ":8080", "verify_token": "sesame"},
  "feed": {"url": "wss://feed.example/ws"},
  "store": {"driver": "memory"}
}`
	m := NewManager(writeConfig(t, "config.json", js))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.URL != "wss://feed.example/ws" {
		t.Fatalf("feed url = %q", cfg.Feed.URL)
	}
}

func TestStringifyKeysHandlesNonStringYAMLKeys(t *testing.T) {
	in := map[any]any{
		1:    "one",
		"ok": []any{map[any]any{true: "t"}},
	}
	out, ok := stringifyKeys(in).(map[string]any)
	if !ok {
		t.Fatalf("stringifyKeys returned %T", stringifyKeys(in))
	}
	if out["1"] != "one" {
		t.Fatalf("numeric key not stringified: %v", out)
	}
	inner := out["ok"].([]any)[0].(map[string]any)
	if inner["true"] != "t" {
		t.Fatalf("nested key not stringified: %v", inner)
	}
}

func TestLoadSeedsDefaultItems(t *testing.T) {
	yml := strings.SplitN(validYAML, "items:", 2)[0]
	m := NewManager(writeConfig(t, "config.yaml", yml))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Items.RarePriority) == 0 || len(cfg.Items.SummerSeeds) == 0 {
		t.Fatalf("empty items section must seed defaults, got %+v", cfg.Items)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatalf("unknown top-level section must be rejected")
	}
}

func TestEnvOverridesTokens(t *testing.T) {
	t.Setenv("PAGE_ACCESS_TOKEN", "env-tok")
	t.Setenv("VERIFY_TOKEN", "env-verify")

	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Messenger.AccessToken != "env-tok" || cfg.Webhook.VerifyToken != "env-verify" {
		t.Fatalf("env overlay not applied: %+v", cfg.Messenger)
	}
}

func TestValidateRejectsBadDuration(t *testing.T) {
	yml := validYAML + "\nbroadcast:\n  timeout: fast\n"
	m := NewManager(writeConfig(t, "config.yaml", yml))
	if _, err := m.Load(); err == nil {
		t.Fatalf("bad duration string must be rejected")
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	yml := strings.Replace(validYAML, "access_token: tok", "access_token: \"\"", 1)
	m := NewManager(writeConfig(t, "config.yaml", yml))
	if _, err := m.Load(); err == nil {
		t.Fatalf("missing access token must be rejected")
	}
}

func TestDurationHelpers(t *testing.T) {
	if d, err := ParseDurationField("x", "250ms"); err != nil || d != 250*time.Millisecond {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatalf("expected error for junk duration")
	}
	if d := DurationOrDefault("", 5*time.Second); d != 5*time.Second {
		t.Fatalf("DurationOrDefault empty = %v", d)
	}
	if d := DurationOrDefault("2s", 5*time.Second); d != 2*time.Second {
		t.Fatalf("DurationOrDefault = %v", d)
	}
}
