// Package ranking aggregates play events across a time window into a
// ranked top-N list of tracks by play count.
package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/osterhagen/airchart/internal/domain/playlist"
)

// RankedEntry is a track entry annotated with its play count in the
// window. The embedded entry is the first-encountered one for the URI.
type RankedEntry struct {
	playlist.TrackEntry
	Plays      int
	LastPlayed time.Time
}

// Aggregator computes play-count rankings over stored playlist records.
type Aggregator struct {
	playlists playlist.Repository
}

// New creates a ranking aggregator.
func New(playlists playlist.Repository) *Aggregator {
	return &Aggregator{playlists: playlists}
}

// TopN ranks the tracks of a category played since the given time by play
// count, descending, and returns the top n. Ties are broken by most recent
// play, then URI, so the ranking is deterministic regardless of store
// iteration order. maxRecords bounds the records fetched (one per day for
// daily categories).
func (a *Aggregator) TopN(ctx context.Context, category string, since time.Time, maxRecords, n int) ([]RankedEntry, error) {
	records, err := a.playlists.ListByCategorySince(ctx, category, since, maxRecords)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playlist records")
	}

	// One fetch per record, gathered positionally.
	perRecord := make([][]playlist.TrackEntry, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, record := range records {
		g.Go(func() error {
			entries, err := a.playlists.EntriesByPlaylist(gctx, record.ID)
			if err != nil {
				return errors.Wrapf(err, "failed to fetch entries of %s", record.ID)
			}
			perRecord[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byURI := map[string]*RankedEntry{}
	var order []string
	for _, entries := range perRecord {
		for _, e := range entries {
			event := e.PlayEvent()
			ranked, ok := byURI[event.SpotifyURI]
			if !ok {
				byURI[event.SpotifyURI] = &RankedEntry{
					TrackEntry: e,
					Plays:      1,
					LastPlayed: event.PlayedAt,
				}
				order = append(order, event.SpotifyURI)
				continue
			}
			ranked.Plays++
			if event.PlayedAt.After(ranked.LastPlayed) {
				ranked.LastPlayed = event.PlayedAt
			}
		}
	}

	ranked := make([]RankedEntry, 0, len(order))
	for _, uri := range order {
		ranked = append(ranked, *byURI[uri])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Plays != ranked[j].Plays {
			return ranked[i].Plays > ranked[j].Plays
		}
		if !ranked[i].LastPlayed.Equal(ranked[j].LastPlayed) {
			return ranked[i].LastPlayed.After(ranked[j].LastPlayed)
		}
		return ranked[i].SpotifyURI < ranked[j].SpotifyURI
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}
