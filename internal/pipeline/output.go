package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

const (
	hashLen          = 8
	outputExt        = ".json"
	textDumpSuffix   = "_extracted_text.txt"
	maxNameCollision = 10000
)

var pathSeparators = strings.NewReplacer("::", "_", "/", "_", `\`, "_")

// SourceHash is the first eight hex digits of md5(id).
func SourceHash(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// baseName is the sanitized id without extension plus its hash.
func baseName(id string) string {
	safe := pathSeparators.Replace(id)
	safe = strings.TrimSuffix(safe, path.Ext(safe))
	return safe + "_" + SourceHash(id)
}

// OutputName is the record file name for a logical source id, e.g.
// "box.zip::a.pdf" -> "box.zip_a_1a2b3c4d.json".
func OutputName(id string) string {
	return baseName(id) + outputExt
}

// TextDumpName is the extracted text file name for a logical source id.
func TextDumpName(id string) string {
	return baseName(id) + textDumpSuffix
}

// ProcessedIndex remembers the source hashes found in existing output names.
type ProcessedIndex struct {
	mu     sync.RWMutex
	hashes map[string]struct{}
	files  int
}

// LoadProcessedIndex walks dir for *.json files. A missing dir is an empty index.
func LoadProcessedIndex(dir string) (*ProcessedIndex, error) {
	idx := &ProcessedIndex{hashes: map[string]struct{}{}}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), outputExt) {
			return nil
		}
		idx.add(d.Name())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *ProcessedIndex) add(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.files++
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, part := range strings.Split(stem, "_") {
		if isHash(part) {
			x.hashes[part] = struct{}{}
		}
	}
}

// Contains reports whether an output for id already exists.
func (x *ProcessedIndex) Contains(id string) bool {
	if x == nil {
		return false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.hashes[SourceHash(id)]
	return ok
}

// Files is the number of *.json files seen.
func (x *ProcessedIndex) Files() int {
	if x == nil {
		return 0
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.files
}

func isHash(s string) bool {
	if len(s) != hashLen {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// writeUnique writes data to dir/name, or name_1, name_2, ... when taken.
// The content goes to a temp file first and is published with a hard link,
// so readers never see a partial record and existing files are never replaced.
func writeUnique(dir, name string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxNameCollision; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		target := filepath.Join(dir, candidate)
		err := os.Link(tmpPath, target)
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free output name for %s", name)
}
