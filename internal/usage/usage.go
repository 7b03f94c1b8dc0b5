// Package usage records one line per answered request. Records are
// append-only and never read back on the request path.
package usage

import (
	"context"
	"time"
)

// Kind says which path produced an answer.
type Kind string

const (
	KindKB  Kind = "kb"
	KindLLM Kind = "llm"
)

// Record describes one resolved request.
type Record struct {
	Time      time.Time `json:"ts"`
	Client    string    `json:"client"`
	Origin    string    `json:"origin"`
	Kind      Kind      `json:"kind"`
	InputLen  int       `json:"in_len"`
	OutputLen int       `json:"out_len"`
	RequestID string    `json:"request_id,omitempty"`
}

// Recorder accepts usage records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }

func stamp(rec Record) Record {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	return rec
}
