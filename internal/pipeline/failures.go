package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/logging"
)

const (
	logsDirName     = "logs"
	failureLogName  = "errors.jsonl"
	generalLogName  = "logs.jsonl"
	failureFileMode = 0o644
)

// FailureEntry is one line of logs/errors.jsonl.
type FailureEntry struct {
	Timestamp  string `json:"timestamp"`
	SourceID   string `json:"source_id"`
	SourcePath string `json:"source_path"`
	Error      string `json:"error"`
}

// FailureLog appends entries to a JSONL file; writers are serialized.
type FailureLog struct {
	mu   sync.Mutex
	path string
}

// NewFailureLog targets <outputDir>/logs/errors.jsonl.
func NewFailureLog(outputDir string) *FailureLog {
	return &FailureLog{path: filepath.Join(outputDir, logsDirName, failureLogName)}
}

func (l *FailureLog) Path() string { return l.path }

// Append writes one entry. The file and its directory are created on demand.
func (l *FailureLog) Append(sourceID, sourcePath string, cause error, now time.Time) error {
	entry := FailureEntry{
		Timestamp:  now.UTC().Format(logging.TimestampLayout),
		SourceID:   sourceID,
		SourcePath: sourcePath,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, failureFileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// GeneralLogPath is where the CLI points the JSONL log handler for a run.
func GeneralLogPath(outputDir string) string {
	return filepath.Join(outputDir, logsDirName, generalLogName)
}
