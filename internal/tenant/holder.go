package tenant

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// fileState is the part of a file's metadata used to detect edits.
type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statFile(path string) fileState {
	fi, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: fi.ModTime(), size: fi.Size()}
}

// Holder owns the current registry snapshot for the process. Readers call
// Current; only Reload (directly or via Watch) replaces the snapshot.
type Holder struct {
	path     string
	poll     time.Duration
	current  atomic.Pointer[Registry]
	state    fileState
	onReload func(old, next *Registry)
	logger   *slog.Logger
}

// NewHolder loads path once and returns a Holder serving that snapshot.
// If pollInterval is <= 0, it defaults to 1.5s.
func NewHolder(path string, pollInterval time.Duration) *Holder {
	if pollInterval <= 0 {
		pollInterval = 1500 * time.Millisecond
	}
	h := &Holder{
		path:   path,
		poll:   pollInterval,
		logger: slog.Default(),
	}
	h.Reload()
	return h
}

// NewStaticHolder serves a fixed registry and never reloads. Used by tests
// and by CLI commands that do not watch the file.
func NewStaticHolder(reg *Registry) *Holder {
	h := &Holder{logger: slog.Default()}
	if reg == nil {
		reg = Empty()
	}
	h.current.Store(reg)
	return h
}

// OnReload registers fn to run after every snapshot swap with the previous
// and new registries. Must be called before Watch.
func (h *Holder) OnReload(fn func(old, next *Registry)) {
	h.onReload = fn
}

// Current returns the latest fully loaded snapshot.
func (h *Holder) Current() *Registry {
	if r := h.current.Load(); r != nil {
		return r
	}
	return Empty()
}

// Reload reads the registry file and atomically replaces the snapshot.
func (h *Holder) Reload() *Registry {
	if h.path == "" {
		return h.Current()
	}
	h.state = statFile(h.path)
	next := Load(h.path)
	old := h.current.Swap(next)
	h.logger.Info("tenant registry loaded", "path", h.path, "tenants", next.Len())
	if h.onReload != nil && old != nil {
		h.onReload(old, next)
	}
	return next
}

// Watch polls the registry file until ctx is cancelled and reloads whenever
// its modification time, size or existence changes.
func (h *Holder) Watch(ctx context.Context) {
	if h.path == "" {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.poll):
		}

		if h.Changed() {
			h.Reload()
		}
	}
}

// Changed reports whether the registry file differs from the last load.
func (h *Holder) Changed() bool {
	return statFile(h.path) != h.state
}
