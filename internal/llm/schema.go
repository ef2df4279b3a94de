package llm

// BuildTracklistJSONSchema returns the JSON-Schema (draft 2020-12 subset) a
// model answer must satisfy. It is sent to the model and used locally to validate.
func BuildTracklistJSONSchema() map[string]any {
	track := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"side":     map[string]any{"type": "string", "minLength": 1},
			"position": map[string]any{"type": "integer"},
			"title":    map[string]any{"type": "string"},
			"duration": map[string]any{"type": "string"},
		},
		"required": []string{"side", "position", "title", "duration"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tracks": map[string]any{
				"type":  "array",
				"items": track,
			},
		},
		"required": []string{"tracks"},
	}
}
