package jobs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
	"github.com/osterhagen/airchart/internal/domain/scrape"
	"github.com/osterhagen/airchart/internal/infra/config"
)

// NewReleases scrapes the station's new-releases program, resolves every
// tuple to a catalog track, persists a dated playlist record and replaces
// the station's remote new-releases playlist with the resolved URIs.
func (r *Runner) NewReleases(ctx context.Context, now time.Time, station *config.StationConfig, scraper scrape.ReleaseScraper) error {
	if scraper == nil {
		return errors.Mark(errors.New("no release scraper supplied"), catalog.ErrValidation)
	}
	if station.NewReleasesPlaylistID == "" || station.NewReleasesCategory == "" {
		return errors.Mark(
			errors.Newf("station %s has no new-releases playlist configured", station.Name),
			catalog.ErrValidation)
	}

	tuples, err := scraper.ScrapeReleases(ctx)
	if err != nil {
		return errors.Wrapf(err, "release scrape failed for %s", station.Name)
	}
	if len(tuples) == 0 {
		return errors.Newf("release scrape returned no entries for %s", station.Name)
	}

	results, resolveErr := r.deps.Resolver.ResolveAll(ctx, tuples)

	day := dayOf(now)
	name := station.PlaylistPrefix + " new releases - " + day.Format("2006-01-02")
	record, err := r.deps.Playlists.Create(ctx, &playlist.Record{
		Name:        name,
		Category:    station.NewReleasesCategory,
		CreatedBy:   createdBySystem,
		LastUpdate:  now,
		CreatedDate: day,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create record %q", name)
	}

	// The program page can repeat a release; the remote playlist gets each
	// URI once, in first-scraped order.
	var uris []string
	seen := map[string]bool{}
	for _, res := range results {
		if res.Err != nil {
			zlog.Warn().Err(res.Err).Str("title", res.Tuple.Title).
				Str("artist", res.Tuple.Artist).Msg("release failed to resolve")
			continue
		}
		entry := &playlist.TrackEntry{
			PlaylistID: record.ID,
			TrackID:    res.Track.ID,
			AddedAt:    now,
			Title:      res.Tuple.Title,
			Artists:    res.ArtistNames,
			SpotifyURI: res.Track.SpotifyURI,
			DurationMS: res.Track.DurationMS,
			Explicit:   res.Track.Explicit,
		}
		if _, err := r.deps.Playlists.AppendEntry(ctx, entry); err != nil {
			return errors.Wrapf(err, "failed to append entry to %s", record.ID)
		}
		if !seen[res.Track.SpotifyURI] {
			seen[res.Track.SpotifyURI] = true
			uris = append(uris, res.Track.SpotifyURI)
		}
	}

	if _, err := r.deps.Syncer.Replace(ctx, station.NewReleasesPlaylistID, uris); err != nil {
		return errors.Wrapf(err, "failed to sync new-releases playlist of %s", station.Name)
	}

	zlog.Info().Str("station", station.Name).Str("record", record.ID).
		Int("scraped", len(tuples)).Int("tracks", len(uris)).Msg("new releases job done")

	if resolveErr != nil {
		return errors.Wrapf(resolveErr, "new releases for %s resolved partially", station.Name)
	}
	return nil
}
