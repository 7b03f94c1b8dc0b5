// Package resolver answers a client's message from its knowledge base and
// falls back to a remote completion when nothing in the KB matches.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/frontdesk/internal/kb"
	"github.com/kalambet/frontdesk/internal/proxy"
	"github.com/kalambet/frontdesk/internal/ranking"
	"github.com/kalambet/frontdesk/internal/tenant"
	"github.com/kalambet/frontdesk/internal/usage"
)

const (
	// MaxMessageRunes is where inbound messages are cut before processing.
	MaxMessageRunes = 2000

	maxSuggestions = 3
)

// Tenants supplies the current registry snapshot.
type Tenants interface {
	Current() *tenant.Registry
}

// KnowledgeBase returns a client's normalized entries.
type KnowledgeBase interface {
	Get(ctx context.Context, slug string) []kb.Entry
}

// Completer issues remote completions.
type Completer interface {
	Complete(ctx context.Context, req proxy.ChatRequest) (proxy.ChatResponse, error)
	HasCredential() bool
}

// Deps wires a Resolver. LLM and Usage may be nil.
type Deps struct {
	Tenants Tenants
	KB      KnowledgeBase
	LLM     Completer
	Usage   usage.Recorder
	Logger  *slog.Logger
}

// Request is one inbound message.
type Request struct {
	Client    string
	Message   string
	Origin    string
	RequestID string
}

// Reply is what the caller shows the user. On error paths Text carries a
// localized explanation and Unsure is true.
type Reply struct {
	Text        string     `json:"reply"`
	Unsure      bool       `json:"unsure"`
	Suggestions []string   `json:"suggestions,omitempty"`
	Source      usage.Kind `json:"-"`
	Lang        Lang       `json:"-"`
}

// Resolver orchestrates tenant checks, KB lookup, ranking and the remote
// fallback.
type Resolver struct {
	tenants Tenants
	kb      KnowledgeBase
	llm     Completer
	usage   usage.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Resolver from deps.
func New(deps Deps) *Resolver {
	r := &Resolver{
		tenants: deps.Tenants,
		kb:      deps.KB,
		llm:     deps.LLM,
		usage:   deps.Usage,
		logger:  deps.Logger,
		now:     time.Now,
	}
	if r.usage == nil {
		r.usage = usage.Nop{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve answers req. The returned Reply is always usable; a non-nil error
// says which status the caller should report (see StatusCode).
func (r *Resolver) Resolve(ctx context.Context, req Request) (Reply, error) {
	msg := truncateRunes(strings.TrimSpace(req.Message), MaxMessageRunes)
	lang := DetectLang(msg)

	cfg, err := r.authorize(req.Client, req.Origin)
	if err != nil {
		return failure(lang, err), err
	}

	if msg == "" {
		return failure(lang, ErrEmptyMessage), ErrEmptyMessage
	}

	entries := r.kb.Get(ctx, cfg.Slug)
	ranked := ranking.Rank(msg, entries)

	if len(ranked) > 0 && ranked[0].Relevant() {
		reply := Reply{
			Text:        ranked[0].Answer,
			Unsure:      false,
			Suggestions: followUps(ranked),
			Source:      usage.KindKB,
			Lang:        lang,
		}
		r.logger.Debug("answered from kb", "client", cfg.Slug, "score", ranked[0].Score, "request_id", req.RequestID)
		r.record(ctx, cfg.Slug, req, msg, reply)
		return reply, nil
	}

	return r.fallback(ctx, cfg, req, msg, lang, entries)
}

func (r *Resolver) authorize(rawSlug, origin string) (tenant.Config, error) {
	slug := tenant.NormalizeSlug(rawSlug)
	if slug == "" {
		return tenant.Config{}, fmt.Errorf("%w: %q", ErrUnknownTenant, rawSlug)
	}
	cfg, ok := r.tenants.Current().Lookup(slug)
	if !ok {
		return tenant.Config{}, fmt.Errorf("%w: %q", ErrUnknownTenant, slug)
	}
	if origin != "" && !cfg.AllowsOrigin(origin) {
		return tenant.Config{}, fmt.Errorf("%w: %s for %s", ErrOriginNotAllowed, origin, slug)
	}
	return cfg, nil
}

func (r *Resolver) fallback(ctx context.Context, cfg tenant.Config, req Request, msg string, lang Lang, entries []kb.Entry) (Reply, error) {
	if r.llm == nil || !r.llm.HasCredential() {
		r.logger.Error("no completion credential configured", "client", cfg.Slug)
		return failure(lang, ErrMissingCredential), ErrMissingCredential
	}

	start := r.now()
	resp, err := r.llm.Complete(ctx, buildRequest(cfg.DisplayName(), entries, msg))
	if err != nil {
		r.logger.Error("completion failed", "client", cfg.Slug, "request_id", req.RequestID, "error", err)
		err = fmt.Errorf("%w: %w", ErrUpstream, err)
		return failure(lang, err), err
	}

	answer := resp.Text()
	if answer == "" {
		answer = text(lang).noAnswer
	}

	reply := Reply{
		Text:        answer,
		Unsure:      true,
		Suggestions: firstQuestions(entries, maxSuggestions),
		Source:      usage.KindLLM,
		Lang:        lang,
	}
	r.logger.Debug("answered from completion",
		"client", cfg.Slug,
		"kb_entries", len(entries),
		"duration_ms", r.now().Sub(start).Milliseconds(),
		"request_id", req.RequestID,
	)
	r.record(ctx, cfg.Slug, req, msg, reply)
	return reply, nil
}

func (r *Resolver) record(ctx context.Context, slug string, req Request, msg string, reply Reply) {
	rec := usage.Record{
		Time:      r.now().UTC(),
		Client:    slug,
		Origin:    req.Origin,
		Kind:      reply.Source,
		InputLen:  utf8.RuneCountInString(msg),
		OutputLen: utf8.RuneCountInString(reply.Text),
		RequestID: req.RequestID,
	}
	if err := r.usage.Record(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("recording usage", "client", slug, "error", err)
	}
}

// Search ranks a client's KB against query and returns up to limit entries
// that matched at all.
func (r *Resolver) Search(ctx context.Context, client, query string, limit int) ([]ranking.Ranked, error) {
	cfg, err := r.authorize(client, "")
	if err != nil {
		return nil, err
	}
	var out []ranking.Ranked
	for _, rk := range ranking.Rank(query, r.kb.Get(ctx, cfg.Slug)) {
		if !rk.Relevant() || (limit > 0 && len(out) == limit) {
			break
		}
		out = append(out, rk)
	}
	return out, nil
}

// Entries returns a client's normalized KB.
func (r *Resolver) Entries(ctx context.Context, client string) ([]kb.Entry, error) {
	cfg, err := r.authorize(client, "")
	if err != nil {
		return nil, err
	}
	return r.kb.Get(ctx, cfg.Slug), nil
}

func failure(lang Lang, err error) Reply {
	return Reply{Text: errorText(lang, err), Unsure: true, Lang: lang}
}

// followUps returns up to three questions ranked after the answered one,
// skipping repeats of questions already chosen.
func followUps(ranked []ranking.Ranked) []string {
	seen := map[string]struct{}{ranked[0].Question: {}}
	var out []string
	for _, rk := range ranked[1:] {
		if len(out) == maxSuggestions {
			break
		}
		if _, dup := seen[rk.Question]; dup {
			continue
		}
		seen[rk.Question] = struct{}{}
		out = append(out, rk.Question)
	}
	return out
}

func firstQuestions(entries []kb.Entry, n int) []string {
	var out []string
	for _, e := range entries {
		if len(out) == n {
			break
		}
		out = append(out, e.Question)
	}
	return out
}
