package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Source provides the raw KB document for a tenant.
type Source interface {
	Read(ctx context.Context, slug string) ([]byte, error)
}

// DirSource reads <dir>/<slug>.json.
type DirSource struct {
	Dir string
}

func (d DirSource) Read(_ context.Context, slug string) ([]byte, error) {
	if slug == "" {
		return nil, fmt.Errorf("empty tenant slug")
	}
	data, err := os.ReadFile(filepath.Join(d.Dir, slug+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading kb for %s: %w", slug, err)
	}
	return data, nil
}
