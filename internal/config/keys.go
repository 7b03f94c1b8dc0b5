package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "FRONTDESK_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "FRONTDESK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.debug", typ: kBool, env: "FRONTDESK_SERVER_DEBUG",
		apply:   func(cfg *Config, v any) { cfg.Server.Debug = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.Debug },
	},
	{
		key: "registry.path", typ: kString, env: "FRONTDESK_REGISTRY_PATH",
		apply:   func(cfg *Config, v any) { cfg.Registry.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Registry.Path },
	},
	{
		key: "registry.poll_interval", typ: kString, env: "FRONTDESK_REGISTRY_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Registry.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Registry.PollInterval },
	},
	{
		key: "kb.dir", typ: kString, env: "FRONTDESK_KB_DIR",
		apply:   func(cfg *Config, v any) { cfg.KB.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.KB.Dir },
	},
	{
		key: "kb.cache_ttl", typ: kString, env: "FRONTDESK_KB_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.KB.CacheTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.KB.CacheTTL },
	},
	{
		key: "proxy.api_key", typ: kString, env: "FRONTDESK_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Proxy.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.APIKey },
	},
	{
		key: "proxy.base_url", typ: kString, env: "FRONTDESK_PROXY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.BaseURL },
	},
	{
		key: "proxy.model", typ: kString, env: "FRONTDESK_PROXY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.Model },
	},
	{
		key: "proxy.timeout", typ: kString, env: "FRONTDESK_PROXY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Proxy.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.Timeout },
	},
	{
		key: "usage.backend", typ: kString, env: "FRONTDESK_USAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Usage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Usage.Backend },
	},
	{
		key: "usage.path", typ: kString, env: "FRONTDESK_USAGE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Usage.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Usage.Path },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FRONTDESK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "FRONTDESK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "mcp.enabled", typ: kBool, env: "FRONTDESK_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.MCP.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.MCP.Enabled },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
