// Package tracklist turns a model's tracklist answer into the output record:
// durations are normalized, sides are totalled and the result is validated.
package tracklist

// RawTrack is one track as the model reported it.
type RawTrack struct {
	Side     string `json:"side"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

// Answer is the decoded model answer.
type Answer struct {
	Tracks []RawTrack `json:"tracks"`
}

// Track is one track of the output record.
type Track struct {
	Title             string `json:"title"`
	Side              string `json:"side"`
	Position          int    `json:"position"`
	DurationSeconds   int    `json:"duration_seconds"`
	DurationFormatted string `json:"duration_formatted"`
}

// Record is the per-document output file.
type Record struct {
	SourceType    string            `json:"source_type"`
	SourcePath    string            `json:"source_path"`
	Tracks        []Track           `json:"tracks"`
	SideDurations map[string]string `json:"side_durations"`
}
