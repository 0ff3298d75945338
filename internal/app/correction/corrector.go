// Package correction repairs catalog tracks that were resolved to the
// wrong external track, and propagates the fix to every historical
// playlist entry referencing them.
package correction

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osterhagen/airchart/internal/app/resolver"
	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
)

// TrackAPI fetches full track metadata for a corrected URI.
type TrackAPI interface {
	GetTrackByURI(ctx context.Context, uri string) (*catalog.ExternalTrack, error)
}

// Corrector rewrites a mis-resolved catalog track. The repair is a
// sequence of independent writes with no transaction; a failure partway
// through surfaces as ErrInconsistentState and the operation must be
// re-run by the operator.
type Corrector struct {
	tracks    catalog.TrackRepository
	artists   catalog.ArtistRepository
	resolve   *resolver.ArtistResolver
	playlists playlist.Repository
	api       TrackAPI
}

// New creates a corrector.
func New(tracks catalog.TrackRepository, artists catalog.ArtistRepository, resolve *resolver.ArtistResolver, playlists playlist.Repository, api TrackAPI) *Corrector {
	return &Corrector{
		tracks:    tracks,
		artists:   artists,
		resolve:   resolve,
		playlists: playlists,
		api:       api,
	}
}

// Fix repairs the track's resolution to correctedURI. When no catalog
// track owns the URI yet, the track is overwritten in place with the
// fetched metadata. When one already does, it survives and the old track
// is merged into it.
func (c *Corrector) Fix(ctx context.Context, trackID, correctedURI string) error {
	if trackID == "" || correctedURI == "" {
		return errors.Mark(errors.New("track id and corrected uri are required"), catalog.ErrValidation)
	}

	track, err := c.tracks.GetByID(ctx, trackID)
	if err != nil {
		return errors.Wrapf(err, "track %s", trackID)
	}

	survivor, err := c.tracks.FindByURI(ctx, correctedURI)
	switch {
	case err == nil:
		return c.Merge(ctx, track, survivor)
	case errors.Is(err, catalog.ErrNotFound):
		return c.overwrite(ctx, track, correctedURI)
	default:
		return errors.Wrap(err, "failed catalog lookup by uri")
	}
}

// overwrite replaces the track's metadata with that of correctedURI and
// rewrites the denormalized fields of every entry referencing it.
func (c *Corrector) overwrite(ctx context.Context, track *catalog.Track, correctedURI string) error {
	ext, err := c.api.GetTrackByURI(ctx, correctedURI)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", correctedURI)
	}

	released, precision, err := catalog.ParseReleaseDate(ext.ReleaseDate)
	if err != nil {
		return err
	}
	if ext.ReleasePrecision != "" {
		precision = ext.ReleasePrecision
	}

	artistIDs := make([]string, len(ext.Artists))
	g, gctx := errgroup.WithContext(ctx)
	for i, ea := range ext.Artists {
		g.Go(func() error {
			a, err := c.resolve.Resolve(gctx, ea.Name, ea.SpotifyURI)
			if err != nil {
				return err
			}
			artistIDs[i] = a.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "failed to resolve artists")
	}

	names := ext.ArtistNames()
	track.Title = ext.Title
	track.CoverArt = ext.CoverArt
	track.DurationMS = ext.DurationMS
	track.Explicit = ext.Explicit
	track.Released = released
	track.ReleasePrecision = precision
	track.SpotifyURI = ext.SpotifyURI
	track.ArtistIDs = artistIDs
	track.SearchKey = catalog.SearchKey(ext.Title, strings.Join(names, " & "))

	if err := c.tracks.Update(ctx, track); err != nil {
		return errors.Wrapf(err, "failed to update track %s", track.ID)
	}

	entries, err := c.playlists.EntriesByTrack(ctx, track.ID)
	if err != nil {
		return c.inconsistent(err, "overwrite", track.ID,
			"track updated but entries not fetched")
	}
	for _, e := range entries {
		e.Title = ext.Title
		e.Artists = names
		e.SpotifyURI = ext.SpotifyURI
		e.DurationMS = ext.DurationMS
		e.Explicit = ext.Explicit
		if err := c.playlists.UpdateEntry(ctx, &e); err != nil {
			return c.inconsistent(err, "overwrite", track.ID,
				"track updated but entry "+e.ID+" not rewritten")
		}
	}

	zlog.Info().Str("track", track.ID).Str("uri", ext.SpotifyURI).
		Int("entries", len(entries)).Msg("overwrote mis-resolved track")
	return nil
}

// Merge folds old into survivor: every entry referencing old is repointed
// to the survivor's data, the survivor inherits old's search key so
// established lookups keep working, and old is deleted when the ids
// differ.
func (c *Corrector) Merge(ctx context.Context, old, survivor *catalog.Track) error {
	names, err := c.artistNames(ctx, survivor)
	if err != nil {
		return err
	}

	entries, err := c.playlists.EntriesByTrack(ctx, old.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch entries of %s", old.ID)
	}
	for _, e := range entries {
		e.TrackID = survivor.ID
		e.Title = survivor.Title
		e.Artists = names
		e.SpotifyURI = survivor.SpotifyURI
		e.DurationMS = survivor.DurationMS
		e.Explicit = survivor.Explicit
		if err := c.playlists.UpdateEntry(ctx, &e); err != nil {
			return c.inconsistent(err, "merge", old.ID,
				"entry "+e.ID+" not repointed to "+survivor.ID)
		}
	}

	survivor.SearchKey = old.SearchKey
	if err := c.tracks.Update(ctx, survivor); err != nil {
		return c.inconsistent(err, "merge", old.ID,
			"entries repointed but survivor "+survivor.ID+" not re-keyed")
	}

	if survivor.ID != old.ID {
		if err := c.tracks.Delete(ctx, old.ID); err != nil {
			return c.inconsistent(err, "merge", old.ID,
				"entries repointed but old track not deleted")
		}
	}

	zlog.Info().Str("old", old.ID).Str("survivor", survivor.ID).
		Int("entries", len(entries)).Msg("merged duplicate track")
	return nil
}

func (c *Corrector) artistNames(ctx context.Context, t *catalog.Track) ([]string, error) {
	artists, err := c.artists.GetByIDs(ctx, t.ArtistIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load artists of track %s", t.ID)
	}
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names, nil
}

func (c *Corrector) inconsistent(err error, op, trackID, detail string) error {
	return errors.Mark(
		errors.Wrapf(err, "%s of track %s left partial state: %s", op, trackID, detail),
		catalog.ErrInconsistentState)
}
