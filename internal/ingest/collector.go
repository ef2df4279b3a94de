package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
)

// Collector walks an input directory and yields documents lazily.
type Collector struct {
	// SkipHidden skips dot files and dot directories on disk.
	SkipHidden bool

	logger *slog.Logger
	mu     sync.Mutex
	stats  Stats
}

// NewCollector returns a collector logging to logger (or the default logger).
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger}
}

// Stats returns the counters of the most recent Collect pass.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Collector) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

// Collect returns a single-use sequence of the documents under root. Files
// larger than maxFileSize (when > 0) are skipped with a warning. Archive
// entries are decompressed fully in memory and are not size-checked. The
// sequence stops early when ctx is cancelled or the consumer stops.
func (c *Collector) Collect(ctx context.Context, root string, maxFileSize int64) iter.Seq[SourceDocument] {
	var used atomic.Bool
	return func(yield func(SourceDocument) bool) {
		if used.Swap(true) {
			return
		}
		c.mu.Lock()
		c.stats = Stats{}
		c.mu.Unlock()

		c.logger.Info("ingest.collect.start", "root", root, "max_file_size", maxFileSize)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.count(func(s *Stats) { s.Scanned++ })
			if walkErr != nil {
				if path == root {
					return walkErr
				}
				c.logger.Warn("ingest.walk_error", "path", path, "error", walkErr)
				return nil
			}
			if c.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			ext := extOf(path)
			if !AllowedExt(ext) {
				return nil
			}
			if !c.visitFile(ctx, root, path, ext, maxFileSize, yield) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("ingest.collect.failed", "root", root, "error", err)
		}
		st := c.Stats()
		c.logger.Info("ingest.collect.done",
			"scanned", st.Scanned,
			"matched", st.Matched,
			"archives", st.Archives,
			"oversized", st.Oversized,
			"failed", st.Failed)
	}
}

// visitFile handles one top-level document or archive. It returns false when
// the consumer asked to stop.
func (c *Collector) visitFile(ctx context.Context, root, path, ext string, maxFileSize int64, yield func(SourceDocument) bool) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	id := filepath.ToSlash(rel)

	info, err := os.Stat(path)
	if err != nil {
		return c.emitFailure(abs, id, err, yield)
	}
	if maxFileSize > 0 && info.Size() > maxFileSize {
		c.count(func(s *Stats) { s.Oversized++ })
		c.logger.Warn("ingest.file_too_large",
			"source_id", id,
			"error", common.SizeLimitError(id, info.Size(), maxFileSize))
		return true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c.emitFailure(abs, id, err, yield)
	}

	switch ext {
	case constants.ExtPDF:
		return c.emit(SourceDocument{AbsPath: abs, ID: id, Data: data}, yield)
	case constants.ExtZIP:
		return c.walkArchive(ctx, data, abs, id, yield)
	}
	return true
}

// walkArchive emits every document inside an archive, recursing into nested
// archives without a depth limit.
func (c *Collector) walkArchive(ctx context.Context, data []byte, absPrefix, idPrefix string, yield func(SourceDocument) bool) bool {
	c.count(func(s *Stats) { s.Archives++ })
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return c.emitFailure(absPrefix, idPrefix, fmt.Errorf("open archive: %w", err), yield)
	}

	for _, f := range zr.File {
		if ctx.Err() != nil {
			return false
		}
		if skipEntry(f.Name) || f.FileInfo().IsDir() {
			continue
		}
		ext := extOf(f.Name)
		if ext != constants.ExtPDF && ext != constants.ExtZIP {
			continue
		}

		abs := absPrefix + IDSeparator + f.Name
		id := idPrefix + IDSeparator + f.Name
		entry, err := readEntry(f)
		if err != nil {
			if !c.emitFailure(abs, id, err, yield) {
				return false
			}
			continue
		}

		var more bool
		if ext == constants.ExtPDF {
			more = c.emit(SourceDocument{AbsPath: abs, ID: id, Data: entry}, yield)
		} else {
			more = c.walkArchive(ctx, entry, abs, id, yield)
		}
		if !more {
			return false
		}
	}
	return true
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return b, nil
}

func (c *Collector) emit(doc SourceDocument, yield func(SourceDocument) bool) bool {
	c.count(func(s *Stats) { s.Matched++ })
	c.logger.Debug("ingest.document", "source_id", doc.ID, "bytes", len(doc.Data))
	return yield(doc)
}

func (c *Collector) emitFailure(abs, id string, cause error, yield func(SourceDocument) bool) bool {
	c.count(func(s *Stats) {
		s.Matched++
		s.Failed++
	})
	err := common.SourceReadError(id, cause)
	c.logger.Error("ingest.read_failed", "source_id", id, "error", err)
	return yield(SourceDocument{AbsPath: abs, ID: id, Err: err})
}
