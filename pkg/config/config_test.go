package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "whisperboard.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return p
}

func TestLoadEffectiveDefaults(t *testing.T) {
	eff, err := LoadEffective("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if eff.Source != "defaults" {
		t.Fatalf("expected defaults source, got %q", eff.Source)
	}
	if eff.Addr != "0.0.0.0:8080" {
		t.Fatalf("unexpected default addr %q", eff.Addr)
	}
	if eff.Config.Validation.MaxTextLen != 4000 || eff.Config.Notify.SendBuffer != 64 {
		t.Fatalf("defaults not applied: %+v", eff.Config)
	}
}

func TestLoadEffectiveFileOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9090
storage:
  db_path: "/tmp/wb-data"
notify:
  redis:
    addr: "localhost:6379"
    channel_prefix: "wb"
security:
  signing_keys: ["s1", "s2"]
validation:
  max_text_len: 100
`)
	eff, err := LoadEffective(p)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if eff.Source != "config" {
		t.Fatalf("expected config source, got %q", eff.Source)
	}
	if eff.Addr != "127.0.0.1:9090" || eff.DBPath != "/tmp/wb-data" {
		t.Fatalf("file values not applied: addr=%q db=%q", eff.Addr, eff.DBPath)
	}
	if eff.Config.Notify.Redis.Addr != "localhost:6379" || eff.Config.Notify.Redis.ChannelPrefix != "wb" {
		t.Fatalf("redis config not applied: %+v", eff.Config.Notify.Redis)
	}
	if len(eff.Config.Security.SigningKeys) != 2 {
		t.Fatalf("signing keys not applied: %+v", eff.Config.Security.SigningKeys)
	}
	if eff.Config.Validation.MaxTextLen != 100 {
		t.Fatalf("validation override missing: %d", eff.Config.Validation.MaxTextLen)
	}
	// untouched sections keep their defaults
	if eff.Config.Validation.MaxAttachments != 8 || eff.Config.Retention.Cron != "0 3 * * *" {
		t.Fatalf("defaults lost during merge: %+v", eff.Config)
	}
}

func TestLoadEffectiveEnvWinsOverFile(t *testing.T) {
	p := writeConfig(t, `
storage:
  db_path: "/tmp/from-file"
`)
	t.Setenv("WHISPERBOARD_DB_PATH", "/tmp/from-env")
	t.Setenv("WHISPERBOARD_ADDR", "10.0.0.1:7000")
	t.Setenv("WHISPERBOARD_SIGNING_KEYS", "a, b ,c")

	eff, err := LoadEffective(p)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if eff.Source != "config+env" {
		t.Fatalf("expected config+env source, got %q", eff.Source)
	}
	if eff.DBPath != "/tmp/from-env" {
		t.Fatalf("env should win over file, got %q", eff.DBPath)
	}
	if eff.Addr != "10.0.0.1:7000" {
		t.Fatalf("env addr not applied: %q", eff.Addr)
	}
	if keys := eff.Config.Security.SigningKeys; len(keys) != 3 || keys[1] != "b" {
		t.Fatalf("signing key list not trimmed: %+v", keys)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	p := writeConfig(t, "server: [not a map")
	if _, err := Load(p); err == nil {
		t.Fatal("malformed yaml should fail to parse")
	}
}

func TestGetSigningKeysCopies(t *testing.T) {
	SetRuntime(&RuntimeConfig{SigningKeys: map[string]struct{}{"k": {}}})
	keys := GetSigningKeys()
	delete(keys, "k")
	if len(GetSigningKeys()) != 1 {
		t.Fatal("mutating the returned map must not affect runtime state")
	}
}
