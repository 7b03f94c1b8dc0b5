package tenant

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// rawTenant is the on-disk shape of one registry entry.
type rawTenant struct {
	Name    string   `json:"name"`
	Origins []string `json:"origins"`
}

// Load reads the registry file at path. It never fails: a missing,
// unreadable or unparsable file yields an empty registry so that a broken
// file means "nobody is authorized" rather than a crash.
func Load(path string) *Registry {
	reg, err := load(path)
	if err != nil {
		slog.Warn("tenant registry unavailable, authorizing no tenants", "path", path, "error", err)
		return Empty()
	}
	return reg
}

func load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes a registry document: a JSON object mapping slug to
// {name, origins}.
func Parse(data []byte) (*Registry, error) {
	var raw map[string]rawTenant
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}

	// Visit raw keys in sorted order so that two keys normalizing to the same
	// slug resolve deterministically (first one wins).
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool, len(keys))
	configs := make([]Config, 0, len(keys))
	for _, k := range keys {
		slug := NormalizeSlug(k)
		if slug == "" {
			slog.Warn("skipping registry entry with invalid slug", "key", k)
			continue
		}
		if seen[slug] {
			slog.Warn("skipping duplicate registry slug", "key", k, "client", slug)
			continue
		}
		seen[slug] = true

		rt := raw[k]
		origins := make(map[string]struct{}, len(rt.Origins))
		for _, o := range rt.Origins {
			if o = NormalizeOrigin(o); o != "" {
				origins[o] = struct{}{}
			}
		}
		configs = append(configs, Config{Slug: slug, Name: rt.Name, AllowedOrigins: origins})
	}
	return NewRegistry(configs...), nil
}
