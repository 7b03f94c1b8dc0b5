package resolver

import (
	"errors"
	"net/http"
)

var (
	// ErrUnknownTenant means the client slug is empty or not registered.
	ErrUnknownTenant = errors.New("unknown client")
	// ErrOriginNotAllowed means a browser origin is not registered for the client.
	ErrOriginNotAllowed = errors.New("origin not allowed for client")
	// ErrEmptyMessage means the message was blank after trimming.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMissingCredential means the completion provider has no API key.
	ErrMissingCredential = errors.New("completion provider credential not configured")
	// ErrUpstream means the completion provider failed after retrying.
	ErrUpstream = errors.New("completion provider failed")
)

// StatusCode maps a Resolve error to the HTTP status the caller should see.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownTenant), errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, ErrOriginNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ErrMissingCredential):
		return http.StatusInternalServerError
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns a stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownTenant):
		return "unknown_client"
	case errors.Is(err, ErrOriginNotAllowed):
		return "origin_not_allowed"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrMissingCredential):
		return "not_configured"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "internal_error"
	}
}
