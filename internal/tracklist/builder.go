package tracklist

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
)

// MaxDurationSeconds is the largest duration that still renders as two-digit minutes.
const MaxDurationSeconds = 5999

var (
	sidePattern     = regexp.MustCompile(`^[A-Z]$`)
	durationPattern = regexp.MustCompile(`^\d{2}:[0-5]\d$`)
)

// Builder converts answers to output records.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a Builder logging to logger (or the default logger).
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Transform builds and validates the record for one document. Side labels
// are canonicalized first and unparsable durations become zero seconds. Any
// rule violation is a common.ErrResponseValidation error.
func (b *Builder) Transform(answer Answer, sourcePath string) (Record, error) {
	raw := make([]RawTrack, len(answer.Tracks))
	for i, t := range answer.Tracks {
		if side, ok := constants.CanonicalSide(t.Side); ok {
			t.Side = side
		}
		raw[i] = t
	}
	answer.Tracks = raw

	sides, err := SideDurations(answer.Tracks)
	if err != nil {
		return Record{}, common.ResponseValidationError("side durations", err)
	}

	tracks := make([]Track, 0, len(answer.Tracks))
	for i, t := range answer.Tracks {
		sec, ok := ParseDuration(t.Duration)
		if !ok {
			b.logger.Warn("tracklist.duration_unparsable",
				"source_path", sourcePath,
				"track", i,
				"duration", t.Duration)
			sec = 0
		}
		tracks = append(tracks, Track{
			Title:             norm.NFC.String(strings.TrimSpace(t.Title)),
			Side:              t.Side,
			Position:          t.Position,
			DurationSeconds:   sec,
			DurationFormatted: NormalizeDuration(t.Duration),
		})
	}

	rec := Record{
		SourceType:    constants.SourceType,
		SourcePath:    sourcePath,
		Tracks:        tracks,
		SideDurations: sides,
	}
	if err := Validate(rec); err != nil {
		return Record{}, common.ResponseValidationError("invalid tracklist", err)
	}
	return rec, nil
}

// Validate checks every output constraint of a record.
func Validate(rec Record) error {
	v := common.NewValidator()
	v.Field("source_path", rec.SourcePath, common.Required)
	for i, t := range rec.Tracks {
		prefix := fmt.Sprintf("tracks[%d].", i)
		v.Field(prefix+"title", t.Title, common.Required)
		v.Field(prefix+"side", t.Side, common.Matches(sidePattern))
		v.Field(prefix+"position", t.Position, common.MinInt(1))
		v.Field(prefix+"duration_seconds", t.DurationSeconds, common.IntRange(0, MaxDurationSeconds))
		v.Field(prefix+"duration_formatted", t.DurationFormatted, common.Matches(durationPattern))
	}
	for side, total := range rec.SideDurations {
		key := "side_durations." + side
		v.Field(key+".key", side, common.Matches(sidePattern))
		v.Field(key, total, common.Matches(durationPattern))
	}
	return v.Error()
}
