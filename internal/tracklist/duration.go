package tracklist

import (
	"fmt"
	"strconv"
	"strings"
)

// ZeroDuration is used for missing or unparsable durations.
const ZeroDuration = "00:00"

// ParseDuration converts "MM:SS" or "HH:MM:SS" to seconds. Fields must be
// non-negative integers; anything else reports false.
func ParseDuration(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// FormatDuration renders seconds as zero-padded minutes:seconds. Hours are
// folded into minutes.
func FormatDuration(seconds int) (string, error) {
	if seconds < 0 {
		return "", fmt.Errorf("duration cannot be negative: %d", seconds)
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60), nil
}

// NormalizeDuration rewrites any parsable duration as MM:SS; everything else
// becomes ZeroDuration.
func NormalizeDuration(s string) string {
	sec, ok := ParseDuration(s)
	if !ok {
		return ZeroDuration
	}
	out, err := FormatDuration(sec)
	if err != nil {
		return ZeroDuration
	}
	return out
}

// SideDurations sums track durations per side. Every side that appears gets
// an entry even if none of its durations parse.
func SideDurations(tracks []RawTrack) (map[string]string, error) {
	totals := make(map[string]int)
	for _, t := range tracks {
		sec, _ := ParseDuration(t.Duration)
		totals[t.Side] += sec
	}
	out := make(map[string]string, len(totals))
	for side, total := range totals {
		f, err := FormatDuration(total)
		if err != nil {
			return nil, err
		}
		out[side] = f
	}
	return out, nil
}
