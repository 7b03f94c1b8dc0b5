package kb

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long a tenant's KB is served from cache before the
// source is read again.
const DefaultTTL = 60 * time.Second

// Store serves tenant KBs from a per-slug TTL cache backed by a Source.
//
// Expired entries are replaced lazily on the next Get; there is no
// background eviction. Two concurrent misses for the same tenant may both
// read the source; the last write wins.
type Store struct {
	source Source
	cache  *cache.Cache
	logger *slog.Logger
}

// NewStore creates a Store. If ttl is <= 0, DefaultTTL is used.
func NewStore(source Source, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		source: source,
		// A cleanup interval below one disables go-cache's janitor goroutine.
		cache:  cache.New(ttl, 0),
		logger: slog.Default(),
	}
}

// Get returns the tenant's entries, reading the source on a cache miss or
// after expiry. It never fails: an unreadable or malformed source is served
// as an empty KB.
func (s *Store) Get(ctx context.Context, slug string) []Entry {
	if v, ok := s.cache.Get(slug); ok {
		return slices.Clone(v.([]Entry))
	}

	entries := s.fetch(ctx, slug)
	s.cache.Set(slug, entries, cache.DefaultExpiration)
	return slices.Clone(entries)
}

func (s *Store) fetch(ctx context.Context, slug string) []Entry {
	raw, err := s.source.Read(ctx, slug)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no kb for tenant", "client", slug)
		} else {
			s.logger.Warn("kb source unreadable, serving empty kb", "client", slug, "error", err)
		}
		return []Entry{}
	}
	entries := Normalize(raw)
	s.logger.Debug("kb loaded", "client", slug, "entries", len(entries))
	return entries
}

// Invalidate drops the cached KB for one tenant.
func (s *Store) Invalidate(slug string) {
	s.cache.Delete(slug)
}

// Purge drops every cached KB.
func (s *Store) Purge() {
	s.cache.Flush()
}

// Cached reports whether slug currently has a live cache entry.
func (s *Store) Cached(slug string) bool {
	_, ok := s.cache.Get(slug)
	return ok
}
