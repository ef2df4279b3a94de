package tracklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"03:45", 225, true},
		{"7:32", 452, true},
		{"1:02:35", 3755, true},
		{" 4:05 ", 245, true},
		{"", 0, false},
		{"abc", 0, false},
		{"3", 0, false},
		{"1:2:3:4", 0, false},
		{"3:xx", 0, false},
		{"-1:30", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDuration(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	s, err := FormatDuration(0)
	require.NoError(t, err)
	assert.Equal(t, "00:00", s)

	s, err = FormatDuration(3755)
	require.NoError(t, err)
	assert.Equal(t, "62:35", s)

	_, err = FormatDuration(-1)
	assert.Error(t, err)
}

func TestNormalizeDuration(t *testing.T) {
	assert.Equal(t, "00:00", NormalizeDuration(""))
	assert.Equal(t, "07:32", NormalizeDuration("7:32"))
	assert.Equal(t, "62:35", NormalizeDuration("1:02:35"))
	assert.Equal(t, "00:00", NormalizeDuration("abc"))
	assert.Equal(t, "03:45", NormalizeDuration("03:45"))
}

func TestSideDurations(t *testing.T) {
	got, err := SideDurations([]RawTrack{
		{Side: "A", Duration: "1:30"},
		{Side: "A", Duration: "1:30"},
		{Side: "B", Duration: "3:00"},
		{Side: "C", Duration: "garbage"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "03:00", "B": "03:00", "C": "00:00"}, got)
}
