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

// Scrape runs the hourly scrape+resolve for one station: scrape the
// previous broadcast hour, resolve every tuple to a catalog track and
// append the plays to the station's daily playlist record. Outside the
// station's broadcast hours the job is a no-op.
func (r *Runner) Scrape(ctx context.Context, now time.Time, station *config.StationConfig, scraper scrape.Scraper) error {
	if scraper == nil {
		return errors.Mark(errors.New("no scraper supplied"), catalog.ErrValidation)
	}

	hour := now.Hour()
	if hour < station.BroadcastStartHour || hour > station.BroadcastEndHour {
		zlog.Debug().Str("station", station.Name).Int("hour", hour).
			Msg("outside broadcast hours, skipping scrape")
		return nil
	}

	return r.scrapeHour(ctx, now, station, scraper, hour-1)
}

// Backfill re-scrapes one explicit hour of the current day, bypassing the
// broadcast-hour gate. Operator tool for holes left by failed runs.
func (r *Runner) Backfill(ctx context.Context, now time.Time, station *config.StationConfig, scraper scrape.Scraper, hour int) error {
	if scraper == nil {
		return errors.Mark(errors.New("no scraper supplied"), catalog.ErrValidation)
	}
	if hour < 0 || hour > 23 {
		return errors.Mark(errors.Newf("hour %d out of range", hour), catalog.ErrValidation)
	}
	return r.scrapeHour(ctx, now, station, scraper, hour)
}

func (r *Runner) scrapeHour(ctx context.Context, now time.Time, station *config.StationConfig, scraper scrape.Scraper, fetchHour int) error {
	date := now.Format("2006-01-02")

	tuples, err := scraper.Scrape(ctx, date, fetchHour)
	if err != nil {
		return errors.Wrapf(err, "scrape failed for %s %s hour %d", station.Name, date, fetchHour)
	}
	if len(tuples) == 0 {
		return errors.Newf("scrape returned no entries for %s %s hour %d", station.Name, date, fetchHour)
	}

	results, resolveErr := r.deps.Resolver.ResolveAll(ctx, tuples)

	record, err := r.dailyRecord(ctx, station, date, now)
	if err != nil {
		return err
	}

	appended := 0
	for _, res := range results {
		if res.Err != nil {
			zlog.Warn().Err(res.Err).Str("title", res.Tuple.Title).
				Str("artist", res.Tuple.Artist).Msg("tuple failed to resolve")
			continue
		}
		entry := &playlist.TrackEntry{
			PlaylistID: record.ID,
			TrackID:    res.Track.ID,
			AddedAt:    res.Tuple.PlayedAt,
			Title:      res.Tuple.Title,
			Artists:    res.ArtistNames,
			SpotifyURI: res.Track.SpotifyURI,
			DurationMS: res.Track.DurationMS,
			Explicit:   res.Track.Explicit,
		}
		if _, err := r.deps.Playlists.AppendEntry(ctx, entry); err != nil {
			return errors.Wrapf(err, "failed to append entry to %s", record.ID)
		}
		appended++
	}

	zlog.Info().Str("station", station.Name).Str("date", date).Int("hour", fetchHour).
		Int("scraped", len(tuples)).Int("appended", appended).Msg("scrape job done")

	if resolveErr != nil {
		return errors.Wrapf(resolveErr, "scrape for %s %s hour %d resolved partially",
			station.Name, date, fetchHour)
	}
	return nil
}

// dailyRecord finds or creates the station's playlist record for date.
func (r *Runner) dailyRecord(ctx context.Context, station *config.StationConfig, date string, now time.Time) (*playlist.Record, error) {
	name := station.PlaylistPrefix + " playlist - " + date

	record, err := r.deps.Playlists.FindByNameAndCreator(ctx, name, createdBySystem)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, errors.Wrapf(err, "failed to look up record %q", name)
	}

	created, parseErr := time.ParseInLocation("2006-01-02", date, now.Location())
	if parseErr != nil {
		return nil, errors.Mark(
			errors.Wrapf(parseErr, "malformed date %q", date), catalog.ErrValidation)
	}

	record, err = r.deps.Playlists.Create(ctx, &playlist.Record{
		Name:        name,
		Category:    station.Category,
		CreatedBy:   createdBySystem,
		LastUpdate:  now,
		CreatedDate: created,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create record %q", name)
	}
	return record, nil
}
