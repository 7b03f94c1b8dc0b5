package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Registry RegistryConfig
	KB       KBConfig
	Proxy    ProxyConfig
	Usage    UsageConfig
	Storage  StorageConfig
	Log      LogConfig
	MCP      MCPConfig
}

type ServerConfig struct {
	Host  string
	Port  int
	Debug bool
}

type RegistryConfig struct {
	Path         string
	PollInterval string
}

type KBConfig struct {
	Dir      string
	CacheTTL string
}

type ProxyConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout string
}

type UsageConfig struct {
	Backend string // "file", "sqlite" or "none"
	Path    string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type MCPConfig struct {
	Enabled bool
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Registry: RegistryConfig{
			Path:         filepath.Join(dataDir, "clients.json"),
			PollInterval: "1500ms",
		},
		KB: KBConfig{
			Dir:      filepath.Join(dataDir, "kb"),
			CacheTTL: "60s",
		},
		Proxy: ProxyConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
			Timeout: "15s",
		},
		Usage: UsageConfig{
			Backend: "file",
			Path:    filepath.Join(dataDir, "usage.log"),
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file, a .env file in the
// working directory, environment variables and the secrets file.
//
// Environment variables (FRONTDESK_*) override file values. The provider API
// key is never read from the config file; a missing key is not an error here
// because it only fails the requests that need the remote provider.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}
	return loadWith(newPlatformBackend(), fileSecrets{})
}

// secretReader abstracts the secrets store for testing.
type secretReader interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, sr secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Proxy.APIKey == "" {
		if key, err := sr.Get("frontdesk", "openrouter_api_key"); err == nil && key != "" {
			cfg.Proxy.APIKey = key
		}
	}

	return cfg, nil
}

// Duration parses raw as a time.Duration, returning def (and logging) when
// raw is empty, malformed or not positive.
func Duration(key, raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", raw, "default", def, "error", err)
		return def
	}
	return d
}

type fileSecrets struct{}

func (fileSecrets) Get(service, account string) (string, error) {
	out, err := secretGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
