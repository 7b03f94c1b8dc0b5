package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileRecorder appends records as JSON lines to a size-rotated file.
type FileRecorder struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewFileRecorder writes to path, rotating at 10 MB and keeping five
// compressed backups for 30 days.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Record writes rec as one line.
func (f *FileRecorder) Record(_ context.Context, rec Record) error {
	line, err := json.Marshal(stamp(rec))
	if err != nil {
		return fmt.Errorf("encoding usage record: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.out.Write(line); err != nil {
		return fmt.Errorf("writing usage record: %w", err)
	}
	return nil
}

// Close closes the current log file.
func (f *FileRecorder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Close()
}
