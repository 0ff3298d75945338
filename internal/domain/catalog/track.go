// Package catalog provides the canonical Track and Artist entities and the
// repository interfaces the catalog store must implement.
package catalog

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ReleasePrecision indicates how much of a release date is meaningful.
type ReleasePrecision string

const (
	PrecisionYear  ReleasePrecision = "year"
	PrecisionMonth ReleasePrecision = "month"
	PrecisionDay   ReleasePrecision = "day"
)

// Image is one cover-art variant.
type Image struct {
	URL    string
	Width  int
	Height int
}

// Track is a canonical catalog track. SpotifyURI is the sole reliable dedup
// key; SearchKey is a candidate-narrowing index and may collide or miss.
type Track struct {
	ID               string
	Title            string
	SearchKey        string
	DurationMS       int
	Explicit         bool
	Released         time.Time
	ReleasePrecision ReleasePrecision
	SpotifyURI       string
	CoverArt         []Image
	ArtistIDs        []string
	FirstSeen        time.Time
}

// Artist is a canonical catalog artist, deduplicated by SpotifyURI.
type Artist struct {
	ID          string
	Name        string
	SpotifyURI  string
	Genres      []string
	SearchKey   string
	LastUpdated time.Time
}

// ParseReleaseDate parses a release date of partial precision as returned by
// the external API: "2006", "2006-01" or "2006-01-02". Missing month and day
// default to 01.
func ParseReleaseDate(raw string) (time.Time, ReleasePrecision, error) {
	parts := strings.Split(raw, "-")

	precision := PrecisionDay
	switch len(parts) {
	case 1:
		precision = PrecisionYear
	case 2:
		precision = PrecisionMonth
	case 3:
	default:
		return time.Time{}, "", errors.Mark(
			errors.Newf("malformed release date %q", raw), ErrValidation)
	}

	normalized := parts[0]
	if len(parts) > 1 {
		normalized += "-" + parts[1]
	} else {
		normalized += "-01"
	}
	if len(parts) > 2 {
		normalized += "-" + parts[2]
	} else {
		normalized += "-01"
	}

	released, err := time.Parse("2006-01-02", normalized)
	if err != nil {
		return time.Time{}, "", errors.Mark(
			errors.Wrapf(err, "malformed release date %q", raw), ErrValidation)
	}
	return released, precision, nil
}
