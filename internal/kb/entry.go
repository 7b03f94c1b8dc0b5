// Package kb loads and caches each tenant's question/answer knowledge base.
package kb

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Entry is one normalized knowledge-base record.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// shape names the field pair a raw record may use.
type shape struct {
	question string
	answer   string
}

// Accepted record shapes, tried in order.
var shapes = []shape{
	{question: "question", answer: "answer"},
	{question: "q", answer: "a"},
}

// Normalize parses a raw KB document (a JSON array of records) into entries.
// Each record is matched against the accepted shapes in order; records that
// fit none are dropped. Anything other than a JSON array yields no entries.
func Normalize(raw []byte) []Entry {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return []Entry{}
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		if e, ok := parseRecord(rec); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func parseRecord(rec json.RawMessage) (Entry, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil || fields == nil {
		return Entry{}, false
	}
	for _, s := range shapes {
		if e, ok := s.parse(fields); ok {
			return e, true
		}
	}
	return Entry{}, false
}

func (s shape) parse(fields map[string]json.RawMessage) (Entry, bool) {
	q, ok := text(fields[s.question])
	if !ok {
		return Entry{}, false
	}
	a, ok := text(fields[s.answer])
	if !ok {
		return Entry{}, false
	}
	return Entry{Question: q, Answer: a}, true
}

// text coerces a scalar JSON value to a string. Strings are returned as-is,
// numbers and booleans as their JSON text. Null, arrays, objects and blank
// strings are rejected.
func text(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var s string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
	case 't', 'f', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", false
		}
		s = string(raw)
	default:
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
