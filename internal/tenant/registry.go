// Package tenant owns the client registry: which tenant slugs exist and which
// browser origins each of them trusts.
package tenant

import (
	"sort"
	"strings"
)

// Config is one tenant's registry entry.
type Config struct {
	Slug           string
	Name           string
	AllowedOrigins map[string]struct{}
}

// DisplayName returns the tenant's configured name, or its slug when unset.
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Slug
}

// AllowsOrigin reports whether origin is listed verbatim for this tenant.
func (c Config) AllowsOrigin(origin string) bool {
	_, ok := c.AllowedOrigins[origin]
	return ok
}

// Registry is an immutable snapshot of all tenants. It is never modified
// after construction; reloads build a new Registry and swap it in whole.
type Registry struct {
	tenants map[string]Config
	origins map[string]struct{}
}

// NewRegistry builds a snapshot from already-normalized tenant configs.
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{
		tenants: make(map[string]Config, len(configs)),
		origins: make(map[string]struct{}),
	}
	for _, c := range configs {
		r.tenants[c.Slug] = c
		for o := range c.AllowedOrigins {
			r.origins[o] = struct{}{}
		}
	}
	return r
}

// Empty returns a registry that authorizes nobody.
func Empty() *Registry {
	return NewRegistry()
}

// Lookup returns the tenant for an already-normalized slug.
func (r *Registry) Lookup(slug string) (Config, bool) {
	if r == nil {
		return Config{}, false
	}
	c, ok := r.tenants[slug]
	return c, ok
}

// OriginKnown reports whether any tenant lists origin.
func (r *Registry) OriginKnown(origin string) bool {
	if r == nil {
		return false
	}
	_, ok := r.origins[origin]
	return ok
}

// Len returns the number of tenants.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tenants)
}

// Slugs returns all tenant slugs in sorted order.
func (r *Registry) Slugs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.tenants))
	for s := range r.tenants {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NormalizeSlug lowercases raw and drops every character outside [a-z0-9-].
// An empty result means raw is not a usable tenant identifier.
func NormalizeSlug(raw string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// NormalizeOrigin trims whitespace and a trailing slash. Scheme, host and
// port are otherwise compared verbatim.
func NormalizeOrigin(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
