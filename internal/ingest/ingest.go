// Package ingest discovers source documents under an input directory,
// descending into ZIP archives, and watches the directory for new arrivals.
package ingest

// SourceDocument is one discovered document. ID is the logical id: the path
// relative to the input root, extended with "::entry" for each archive level.
// Err is set when the document could not be read; Data is then nil.
type SourceDocument struct {
	AbsPath string
	ID      string
	Data    []byte
	Err     error
}

// Stats summarizes one collection pass.
type Stats struct {
	Scanned   int `json:"scanned"`   // filesystem entries visited
	Matched   int `json:"matched"`   // documents emitted, including failed ones
	Archives  int `json:"archives"`  // archives opened, including nested ones
	Oversized int `json:"oversized"` // top-level files skipped for size
	Failed    int `json:"failed"`    // documents or archives that could not be read
}
