package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
	"github.com/osterhagen/airchart/internal/infra/config"
)

// WeeklyTop aggregates the station's plays over the trailing window into a
// ranked top-N, replaces the station's weekly remote playlist with it and
// persists the ranking as a new playlist record.
func (r *Runner) WeeklyTop(ctx context.Context, now time.Time, station *config.StationConfig) error {
	if station.WeeklyPlaylistID == "" || station.WeeklyCategory == "" {
		return errors.Mark(
			errors.Newf("station %s has no weekly playlist configured", station.Name),
			catalog.ErrValidation)
	}

	cfg := r.deps.RankingConfig
	day := dayOf(now)
	since := day.AddDate(0, 0, -cfg.WindowDays)

	ranked, err := r.deps.Ranking.TopN(ctx, station.Category, since, cfg.WindowDays, cfg.Size)
	if err != nil {
		return errors.Wrapf(err, "ranking failed for %s", station.Name)
	}

	uris := make([]string, len(ranked))
	for i, e := range ranked {
		uris[i] = e.SpotifyURI
	}

	if _, err := r.deps.Syncer.Replace(ctx, station.WeeklyPlaylistID, uris); err != nil {
		return errors.Wrapf(err, "failed to sync weekly playlist of %s", station.Name)
	}

	name := fmt.Sprintf("%s weekly Top %d - %s",
		station.PlaylistPrefix, cfg.Size, day.Format("2006-01-02"))
	record, err := r.deps.Playlists.Create(ctx, &playlist.Record{
		Name:        name,
		Category:    station.WeeklyCategory,
		CreatedBy:   createdBySystem,
		LastUpdate:  now,
		CreatedDate: day,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create record %q", name)
	}

	for i, e := range ranked {
		order := i
		entry := e.TrackEntry
		entry.ID = ""
		entry.PlaylistID = record.ID
		entry.AddedAt = now
		entry.RankOrder = &order
		if _, err := r.deps.Playlists.AppendEntry(ctx, &entry); err != nil {
			return errors.Wrapf(err, "failed to append rank %d to %s", i, record.ID)
		}
	}

	zlog.Info().Str("station", station.Name).Str("record", record.ID).
		Int("tracks", len(ranked)).Msg("weekly top job done")
	return nil
}
