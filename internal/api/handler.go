// Package api exposes the resolver over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/frontdesk/internal/access"
	"github.com/kalambet/frontdesk/internal/resolver"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds what the HTTP surface needs.
type Deps struct {
	Resolver *resolver.Resolver
	Tenants  access.Tenants
	Guard    *access.Guard
	// Debug enables the KB introspection routes.
	Debug bool
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Client  string `json:"client"`
	Message string `json:"message"`
}

// ChatResponse is the body of every /api/chat response. Error is set only on
// failure paths.
type ChatResponse struct {
	resolver.Reply
	Error string `json:"error,omitempty"`
}

// NewHandler returns the service's HTTP routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)

	r.Get("/health", handleHealth(deps))

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.Guard.Middleware)
		r.Post("/chat", handleChat(deps))
	})

	if deps.Debug {
		r.Get("/debug/kb/{client}", handleDebugKB(deps))
	}

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"tenants": deps.Tenants.Current().Len(),
		})
	}
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ChatResponse{
				Reply: resolver.Reply{Text: "Invalid request.", Unsure: true},
				Error: "invalid_request",
			})
			return
		}
		if req.Client == "" {
			req.Client = r.URL.Query().Get("client")
		}

		reqID := RequestIDFrom(r.Context())
		reply, err := deps.Resolver.Resolve(r.Context(), resolver.Request{
			Client:    req.Client,
			Message:   req.Message,
			Origin:    r.Header.Get("Origin"),
			RequestID: reqID,
		})
		if err != nil {
			status := resolver.StatusCode(err)
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(r.Context(), level, "chat request failed",
				"client", req.Client,
				"status", status,
				"request_id", reqID,
				"error", err,
			)
			writeJSON(w, status, ChatResponse{Reply: reply, Error: resolver.ErrorCode(err)})
			return
		}

		writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
	}
}

func handleDebugKB(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := chi.URLParam(r, "client")
		entries, err := deps.Resolver.Entries(r.Context(), client)
		if errors.Is(err, resolver.ErrUnknownTenant) {
			httpError(w, http.StatusNotFound, "not_found", "unknown client %q", client)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading kb: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"client":  client,
			"count":   len(entries),
			"entries": entries,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
