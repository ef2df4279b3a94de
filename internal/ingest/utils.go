package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
)

// IDSeparator joins archive levels in a logical id.
const IDSeparator = "::"

// AllowedExt checks if a file extension is a document or an archive.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// skipEntry reports archive entries that are never documents: OS metadata
// folders such as __MACOSX and dot files.
func skipEntry(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

func extOf(name string) string {
	return constants.NormalizeExt(filepath.Ext(name))
}
