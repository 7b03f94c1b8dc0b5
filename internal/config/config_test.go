package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockSecrets is a test double for the secrets store.
type mockSecrets struct {
	value string
	err   error
}

func (m mockSecrets) Get(service, account string) (string, error) {
	return m.value, m.err
}

var errNoSecrets = errors.New("no secrets")

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return newFileBackend(path)
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	t.Setenv("FRONTDESK_OPENROUTER_API_KEY", "")

	cfg, err := loadWith(b, mockSecrets{err: errNoSecrets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.KB.CacheTTL != "60s" {
		t.Errorf("KB.CacheTTL = %q, want %q", cfg.KB.CacheTTL, "60s")
	}
	if cfg.Proxy.Timeout != "15s" {
		t.Errorf("Proxy.Timeout = %q, want %q", cfg.Proxy.Timeout, "15s")
	}
	if cfg.Usage.Backend != "file" {
		t.Errorf("Usage.Backend = %q, want %q", cfg.Usage.Backend, "file")
	}
	if cfg.MCP.Enabled {
		t.Error("MCP.Enabled = true, want false")
	}
}

// TestMissingAPIKeyIsNotAnError verifies the service can start without a
// provider credential.
func TestMissingAPIKeyIsNotAnError(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	t.Setenv("FRONTDESK_OPENROUTER_API_KEY", "")

	cfg, err := loadWith(b, mockSecrets{err: errNoSecrets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Proxy.APIKey != "" {
		t.Errorf("Proxy.APIKey = %q, want empty", cfg.Proxy.APIKey)
	}
}

// TestFileParsing verifies that fields are correctly read from the JSON file.
func TestFileParsing(t *testing.T) {
	b := writeTempConfig(t, `{
		"server.port": 9000,
		"server.debug": true,
		"registry.path": "/srv/clients.json",
		"kb.dir": "/srv/kb",
		"proxy.model": "anthropic/claude-3.5-haiku",
		"usage.backend": "sqlite",
		"mcp.enabled": "true",
		"proxy.api_key": "ignored-from-file"
	}`)
	t.Setenv("FRONTDESK_OPENROUTER_API_KEY", "")

	cfg, err := loadWith(b, mockSecrets{err: errNoSecrets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if !cfg.Server.Debug {
		t.Error("Server.Debug = false, want true")
	}
	if cfg.Registry.Path != "/srv/clients.json" {
		t.Errorf("Registry.Path = %q", cfg.Registry.Path)
	}
	if cfg.KB.Dir != "/srv/kb" {
		t.Errorf("KB.Dir = %q", cfg.KB.Dir)
	}
	if cfg.Proxy.Model != "anthropic/claude-3.5-haiku" {
		t.Errorf("Proxy.Model = %q", cfg.Proxy.Model)
	}
	if cfg.Usage.Backend != "sqlite" {
		t.Errorf("Usage.Backend = %q", cfg.Usage.Backend)
	}
	if !cfg.MCP.Enabled {
		t.Error("MCP.Enabled = false, want true")
	}
	if cfg.Proxy.APIKey != "" {
		t.Errorf("Proxy.APIKey = %q, secrets must not be read from the config file", cfg.Proxy.APIKey)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	b := writeTempConfig(t, `{"server.port": 9000, "proxy.model": "file-model"}`)

	t.Setenv("FRONTDESK_SERVER_PORT", "9100")
	t.Setenv("FRONTDESK_PROXY_MODEL", "env-model")
	t.Setenv("FRONTDESK_OPENROUTER_API_KEY", "env-key")

	cfg, err := loadWith(b, mockSecrets{value: "secret-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Proxy.Model != "env-model" {
		t.Errorf("Proxy.Model = %q, want %q", cfg.Proxy.Model, "env-model")
	}
	if cfg.Proxy.APIKey != "env-key" {
		t.Errorf("Proxy.APIKey = %q, want %q", cfg.Proxy.APIKey, "env-key")
	}
}

// TestInvalidEnvKeepsDefault verifies a malformed integer env var is ignored.
func TestInvalidEnvKeepsDefault(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	t.Setenv("FRONTDESK_SERVER_PORT", "not-a-port")
	t.Setenv("FRONTDESK_OPENROUTER_API_KEY", "")

	cfg, err := loadWith(b, mockSecrets{err: errNoSecrets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
	}
}

// TestSecretsFallback verifies the secrets store is consulted when no API key is in env.
func TestSecretsFallback(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	t.Setenv("FRONTDESK_OPENROUTER_API_KEY", "")

	cfg, err := loadWith(b, mockSecrets{value: "stored-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Proxy.APIKey != "stored-secret" {
		t.Errorf("Proxy.APIKey = %q, want %q", cfg.Proxy.APIKey, "stored-secret")
	}
}

func TestSecretsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(`{"frontdesk":{"openrouter_api_key":" sk-file \n"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FRONTDESK_SECRETS", path)

	got, err := fileSecrets{}.Get("frontdesk", "openrouter_api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-file" {
		t.Errorf("secret = %q, want %q", got, "sk-file")
	}

	if _, err := (fileSecrets{}).Get("frontdesk", "missing"); err == nil {
		t.Error("expected error for missing account")
	}
}

func TestBadIntInFileIsError(t *testing.T) {
	b := writeTempConfig(t, `{"server.port": "eighty"}`)

	_, err := loadWith(b, mockSecrets{err: errNoSecrets})
	if err == nil {
		t.Fatal("expected error for non-integer port")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("error = %q, want it to mention server.port", err)
	}
}

func TestSetKey(t *testing.T) {
	b := writeTempConfig(t, `{}`)

	if err := setKey(b, "server.port", "9200"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(b, "mcp.enabled", "yes"); err == nil {
		t.Error("expected error for invalid bool")
	}
	if err := setKey(b, "proxy.api_key", "sk"); err == nil {
		t.Error("expected error when setting a secret")
	}
	if err := setKey(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	reloaded := newFileBackend(b.path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 9200 {
		t.Errorf("server.port = %d (ok=%v, err=%v), want 9200", port, ok, err)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Proxy.APIKey = "sk-secret"
	for _, k := range ShowAll(cfg) {
		if k.Key == "proxy.api_key" || k.Value == "sk-secret" {
			t.Errorf("ShowAll leaked secret key %q", k.Key)
		}
	}
	for _, k := range ValidKeys() {
		if k == "proxy.api_key" {
			t.Error("ValidKeys includes secret key")
		}
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("x", "", time.Second); got != time.Second {
		t.Errorf("empty = %v, want 1s", got)
	}
	if got := Duration("x", "250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("250ms = %v", got)
	}
	if got := Duration("x", "soon", time.Second); got != time.Second {
		t.Errorf("malformed = %v, want default", got)
	}
	if got := Duration("x", "-5s", time.Second); got != time.Second {
		t.Errorf("negative = %v, want default", got)
	}
}
