package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is used for every JSONL timestamp written by this module.
const TimestampLayout = "2006-01-02T15:04:05.000000"

type jsonlEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Module    string         `json:"module"`
	Function  string         `json:"function"`
	Line      int            `json:"line"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

type jsonlSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// JSONLHandler writes {timestamp, level, message, module, function, line}
// objects, one per line. Record attributes go under "attrs".
type JSONLHandler struct {
	sink   *jsonlSink
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJSONLHandler writes to w.
func NewJSONLHandler(w io.Writer, level slog.Leveler) *JSONLHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &JSONLHandler{sink: &jsonlSink{w: w}, level: level}
}

// NewJSONLFileHandler appends to path, creating parent directories.
func NewJSONLFileHandler(path string, level slog.Leveler) (*JSONLHandler, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	h := NewJSONLHandler(f, level)
	h.sink.closer = f
	return h, nil
}

// Close closes the underlying file, if the handler owns one.
func (h *JSONLHandler) Close() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if h.sink.closer == nil {
		return nil
	}
	err := h.sink.closer.Close()
	h.sink.closer = nil
	return err
}

func (h *JSONLHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JSONLHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := jsonlEntry{
		Timestamp: ts.UTC().Format(TimestampLayout),
		Level:     levelName(record.Level),
		Message:   record.Message,
	}
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		entry.Module = strings.TrimSuffix(filepath.Base(frame.File), ".go")
		entry.Function = shortFunction(frame.Function)
		entry.Line = frame.Line
	}

	attrs := map[string]any{}
	for _, a := range h.attrs {
		addAttr(attrs, nil, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, h.groups, a)
		return true
	})
	if len(attrs) > 0 {
		entry.Attrs = attrs
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	_, err = h.sink.w.Write(line)
	return err
}

func (h *JSONLHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if len(h.groups) > 0 {
			a.Key = strings.Join(append(append([]string{}, h.groups...), a.Key), ".")
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *JSONLHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func addAttr(dst map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		next := groups
		if a.Key != "" {
			next = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			addAttr(dst, next, ga)
		}
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(append(append([]string{}, groups...), a.Key), ".")
	}
	switch a.Value.Kind() {
	case slog.KindDuration:
		dst[key] = a.Value.Duration().String()
	case slog.KindTime:
		dst[key] = a.Value.Time().UTC().Format(TimestampLayout)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			dst[key] = err.Error()
			return
		}
		dst[key] = a.Value.Any()
	default:
		dst[key] = a.Value.Any()
	}
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// shortFunction trims "module/pkg.(*T).method" to "method".
func shortFunction(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.LastIndex(fn, "."); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}
