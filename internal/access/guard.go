// Package access decides which browser origins get cross-origin access to a
// tenant's endpoints.
package access

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/frontdesk/internal/tenant"
)

// Kind is the outcome of an authorization check.
type Kind int

const (
	// DeferToRoute grants no cross-origin headers and lets the handler
	// perform the authoritative tenant and origin checks.
	DeferToRoute Kind = iota
	// Allow grants cross-origin headers for Decision.Origin.
	Allow
	// Deny rejects a preflight outright.
	Deny
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "defer"
	}
}

// Decision is returned by Guard.Authorize.
type Decision struct {
	Kind   Kind
	Origin string
}

// Apply writes the cross-origin response headers for an Allow decision and
// does nothing otherwise.
func (d Decision) Apply(h http.Header) {
	if d.Kind != Allow {
		return
	}
	h.Set("Access-Control-Allow-Origin", d.Origin)
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Add("Vary", "Origin")
}

// Tenants supplies the current registry snapshot.
type Tenants interface {
	Current() *tenant.Registry
}

// Guard checks (tenant, origin) pairs against the registry.
type Guard struct {
	tenants Tenants
	logger  *slog.Logger
}

// NewGuard creates a Guard reading from tenants.
func NewGuard(tenants Tenants) *Guard {
	return &Guard{tenants: tenants, logger: slog.Default()}
}

// Authorize decides whether origin gets cross-origin access.
//
// Requests without an origin are not browser-originated and always defer.
// A preflight is allowed when any tenant lists the origin, since it carries
// no payload and may precede knowing the tenant. Other requests are allowed
// only when the normalized tenant lists the exact origin.
func (g *Guard) Authorize(rawSlug, origin string, preflight bool) Decision {
	if origin == "" {
		return Decision{Kind: DeferToRoute}
	}
	reg := g.tenants.Current()

	if preflight {
		if reg.OriginKnown(origin) {
			return Decision{Kind: Allow, Origin: origin}
		}
		return Decision{Kind: Deny}
	}

	cfg, ok := reg.Lookup(tenant.NormalizeSlug(rawSlug))
	if ok && cfg.AllowsOrigin(origin) {
		return Decision{Kind: Allow, Origin: origin}
	}
	return Decision{Kind: DeferToRoute}
}

// maxPeek bounds how much of a request body is buffered to find the tenant.
const maxPeek = 64 << 10

// Middleware answers preflights itself and decorates other responses with
// cross-origin headers when the guard allows them. It never rejects a
// non-preflight request.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if preflight {
			d := g.Authorize(r.URL.Query().Get("client"), origin, true)
			if d.Kind != Allow {
				g.logger.Debug("preflight denied", "origin", origin)
				w.WriteHeader(http.StatusForbidden)
				return
			}
			d.Apply(w.Header())
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if origin != "" {
			g.Authorize(clientSlug(r), origin, false).Apply(w.Header())
		}
		next.ServeHTTP(w, r)
	})
}

// clientSlug returns the tenant named by the client query parameter or, for
// JSON bodies, the top-level "client" field. The body is restored so the
// handler can read it again.
func clientSlug(r *http.Request) string {
	if c := r.URL.Query().Get("client"); c != "" {
		return c
	}
	if r.Body == nil || r.Method != http.MethodPost {
		return ""
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxPeek))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil {
		return ""
	}

	var peek struct {
		Client string `json:"client"`
	}
	if json.Unmarshal(buf, &peek) != nil {
		return ""
	}
	return peek.Client
}

type readCloser struct {
	io.Reader
	io.Closer
}
