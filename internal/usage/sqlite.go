package usage

import (
	"context"
	"fmt"

	"github.com/kalambet/frontdesk/internal/storage"
)

// SQLiteRecorder appends records to the usage table of a storage.Store.
type SQLiteRecorder struct {
	store *storage.Store
}

// NewSQLiteRecorder wraps an open store. The caller owns the store.
func NewSQLiteRecorder(store *storage.Store) *SQLiteRecorder {
	return &SQLiteRecorder{store: store}
}

func (s *SQLiteRecorder) Record(_ context.Context, rec Record) error {
	rec = stamp(rec)
	err := s.store.AppendUsage(storage.UsageRow{
		CreatedAt: rec.Time,
		Client:    rec.Client,
		Origin:    rec.Origin,
		Kind:      string(rec.Kind),
		InputLen:  rec.InputLen,
		OutputLen: rec.OutputLen,
		RequestID: rec.RequestID,
	})
	if err != nil {
		return fmt.Errorf("storing usage record: %w", err)
	}
	return nil
}
