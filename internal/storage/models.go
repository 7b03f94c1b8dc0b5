package storage

import "time"

// UsageRow is one persisted usage record.
type UsageRow struct {
	ID        int64
	CreatedAt time.Time
	Client    string
	Origin    string
	Kind      string // "kb" or "llm"
	InputLen  int
	OutputLen int
	RequestID string
}

// ClientUsage aggregates usage for one client.
type ClientUsage struct {
	Client string
	KB     int
	LLM    int
}
