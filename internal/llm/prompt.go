package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultPrompt is the system prompt used when no prompt file is present.
const DefaultPrompt = `You are an expert assistant that extracts vinyl record track listings from document text.
The text comes from PDF documents that may contain printed text or scans.
Return a single valid JSON object and nothing else: no commentary, no markdown.
- tracks: a list of tracks. Each track is an object with:
    - side: the side letter, a single capital letter such as "A" or "B".
    - position: the track number on that side as an integer (1, 2, ...).
    - title: the track title.
    - duration: the track duration as MM:SS, for example "03:45".
Example: {"tracks": [{"side": "A", "position": 1, "title": "Intro", "duration": "01:23"}]}`

// PromptFileName is looked up next to the configuration file.
const PromptFileName = "normalize.txt"

// LoadPrompt returns the contents of path, or DefaultPrompt if path is empty
// or does not exist.
func LoadPrompt(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPrompt, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return DefaultPrompt, nil
	}
	return string(b), nil
}

// BuildTracklistMessages composes the conversation for one document.
func BuildTracklistMessages(prompt, text string) []Message {
	return []Message{
		{Role: RoleSystem, Content: prompt},
		{Role: RoleUser, Content: text},
		{Role: RoleSystem, Content: "JSON Schema:\n" + mustJSON(BuildTracklistJSONSchema())},
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
