package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActivityLog appends bus events as JSON lines, one file per daemon run
// directory. It is an observability aid only; append failures are returned to
// the caller for logging and never affect plan state.
type ActivityLog struct {
	mu   sync.Mutex
	file *os.File
}

type activityEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewActivityLog opens (or creates) the append-only activity log at path.
func NewActivityLog(path string) (*ActivityLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create activity log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	return &ActivityLog{file: f}, nil
}

// Append writes one event as a JSON line.
func (l *ActivityLog) Append(ev Event) error {
	entry := activityEntry{
		Timestamp: ev.Timestamp,
		EventType: string(ev.Type),
		Data:      ev.Data,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append activity entry: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *ActivityLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
