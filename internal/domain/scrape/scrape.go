// Package scrape defines the scraped playlist tuple and the scraper
// contract. Station scrapers themselves live outside this module; they
// register a constructor keyed by station type.
package scrape

import (
	"context"
	"time"
)

// Tuple is one scraped playlist row, not yet resolved to a catalog track.
type Tuple struct {
	Title    string
	Artist   string
	PlayedAt time.Time
}

// Scraper turns a station's public playlist page for one broadcast hour
// into ordered tuples. An empty result is an error, never an empty slice.
type Scraper interface {
	Scrape(ctx context.Context, date string, hour int) ([]Tuple, error)
}

// ReleaseScraper scrapes a station's new-releases program page. Optional:
// stations whose scraper does not implement it have no new-releases sync.
type ReleaseScraper interface {
	ScrapeReleases(ctx context.Context) ([]Tuple, error)
}
