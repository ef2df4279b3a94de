package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
)

// SanitizeTracks repairs the usual small deviations in a tracklist answer so
// it can pass schema validation: string or float positions become integers
// (unparsable ones become 1), side labels such as "Side a" are reduced to a capital letter, and
// null titles or durations become empty strings. It returns the cleaned
// document and a list of what changed.
func SanitizeTracks(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	tracks, ok := m["tracks"].([]any)
	if !ok {
		return doc, nil, nil
	}

	var changed []string
	for i, item := range tracks {
		t, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch p := t["position"].(type) {
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				n = 1
			}
			t["position"] = n
			changed = append(changed, fmt.Sprintf("tracks[%d].position", i))
		case float64:
			if p != math.Trunc(p) {
				t["position"] = int(p)
				changed = append(changed, fmt.Sprintf("tracks[%d].position", i))
			}
		case nil:
			t["position"] = 1
			changed = append(changed, fmt.Sprintf("tracks[%d].position", i))
		}
		if s, ok := t["side"].(string); ok {
			if norm, _ := constants.CanonicalSide(s); norm != s {
				t["side"] = norm
				changed = append(changed, fmt.Sprintf("tracks[%d].side", i))
			}
		}
		for _, k := range []string{"title", "duration"} {
			if v, present := t[k]; present && v == nil {
				t[k] = ""
				changed = append(changed, fmt.Sprintf("tracks[%d].%s", i, k))
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, changed, nil
}
