package bot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

// Decision stages.
const (
	StageQuality  = "quality"
	StageGenerate = "generate"
	StageSafety   = "safety"
	StageReview   = "review"
)

// Decision captures one pipeline decision about a post for later analysis.
type Decision struct {
	Timestamp time.Time        `json:"timestamp"`
	RunID     string           `json:"run_id"`
	PostID    string           `json:"post_id"`
	Author    types.Handle     `json:"author,omitempty"`
	Stage     string           `json:"stage"`
	Outcome   string           `json:"outcome"`
	Persona   types.PersonaTag `json:"persona,omitempty"`
	Score     float64          `json:"score,omitempty"`
	Detail    string           `json:"detail,omitempty"`
}

// DecisionLogger records decisions.
type DecisionLogger interface {
	LogDecision(Decision) error
	Close() error
}

// JSONLLogger writes each decision as a JSON line.
type JSONLLogger struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewJSONLLogger appends to the file at path.
func NewJSONLLogger(path string) (*JSONLLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLLogger{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// LogDecision writes a single decision.
func (l *JSONLLogger) LogDecision(d Decision) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return l.writer.Flush()
}

// Close flushes and closes the file.
func (l *JSONLLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		_ = l.writer.Flush()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

type nopDecisions struct{}

func (nopDecisions) LogDecision(Decision) error { return nil }
func (nopDecisions) Close() error               { return nil }
