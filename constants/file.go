package constants

import "strings"

// SourceType is written to every output record.
const SourceType = "pdf"

// Extensions recognised by the collector.
const (
	ExtPDF = "pdf"
	ExtZIP = "zip"
)

// AllowedExtensions holds the file extensions the collector picks up.
var AllowedExtensions = map[string]struct{}{
	ExtPDF: {},
	ExtZIP: {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
