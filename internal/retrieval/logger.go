package retrieval

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type QueryLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Question   string        `json:"question"`
	NumSources int           `json:"num_sources"`
	NoContext  bool          `json:"no_context"`
	Duration   time.Duration `json:"duration_ns"`
}

// QueryLogger appends one JSON line per answered query, for offline quality
// review. Logging failures are swallowed; the query path never depends on it.
type QueryLogger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewQueryLogger(out io.Writer) *QueryLogger {
	return &QueryLogger{out: out}
}

func NewFileQueryLogger(path string) (*QueryLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &QueryLogger{out: f}, nil
}

func (l *QueryLogger) Log(entry QueryLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(line, '\n'))
}
