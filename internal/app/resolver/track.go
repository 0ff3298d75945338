package resolver

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/scrape"
)

// SearchAPI is the external search the track resolver falls back to on a
// catalog miss.
type SearchAPI interface {
	SearchTrack(ctx context.Context, query string) (*catalog.ExternalTrack, error)
}

// TrackResolver maps scraped tuples to canonical catalog tracks.
type TrackResolver struct {
	tracks  catalog.TrackRepository
	artists *ArtistResolver
	lookup  catalog.ArtistRepository
	search  SearchAPI
}

// NewTrackResolver creates a track resolver.
func NewTrackResolver(tracks catalog.TrackRepository, lookup catalog.ArtistRepository, artists *ArtistResolver, search SearchAPI) *TrackResolver {
	return &TrackResolver{
		tracks:  tracks,
		artists: artists,
		lookup:  lookup,
		search:  search,
	}
}

// Resolution is a tuple resolved to its catalog track, with the track's
// artist names in release order for denormalized entries.
type Resolution struct {
	Tuple       scrape.Tuple
	Track       *catalog.Track
	ArtistNames []string
	// Err is the per-tuple failure from ResolveAll; Track is nil then.
	Err error
}

// Resolve maps one scraped tuple to a catalog track.
//
// Order of attempts: search-key range lookup in the catalog; external
// search with a re-check by the result's URI (self-healing a mis-keyed
// catalog row); creation of a new track with its artists resolved.
func (r *TrackResolver) Resolve(ctx context.Context, tuple scrape.Tuple) (*Resolution, error) {
	first := firstArtist(tuple.Artist)
	key := catalog.SearchKey(tuple.Title, first)
	lo, hi := catalog.SearchKeyRange(key)

	found, err := r.tracks.FindBySearchKeyRange(ctx, lo, hi)
	if err == nil {
		return r.resolution(ctx, tuple, found)
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, errors.Wrap(err, "failed catalog lookup")
	}

	ext, err := r.search.SearchTrack(ctx, tuple.Title+" - "+first)
	if err != nil {
		return nil, errors.Wrapf(err, "search failed for %q - %q", tuple.Title, first)
	}

	// The search key can near-miss a track that is already catalogued under
	// the same URI. Re-key it to the freshly derived key so the next lookup
	// hits directly.
	existing, err := r.tracks.FindByURI(ctx, ext.SpotifyURI)
	if err == nil {
		existing.SearchKey = key
		if err := r.tracks.Update(ctx, existing); err != nil {
			return nil, errors.Wrapf(err, "failed to re-key track %s", existing.ID)
		}
		zlog.Debug().Str("track", existing.ID).Str("key", key).Msg("re-keyed catalog track")
		return r.resolution(ctx, tuple, existing)
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, errors.Wrap(err, "failed catalog lookup by uri")
	}

	return r.create(ctx, tuple, ext)
}

func (r *TrackResolver) create(ctx context.Context, tuple scrape.Tuple, ext *catalog.ExternalTrack) (*Resolution, error) {
	released, precision, err := catalog.ParseReleaseDate(ext.ReleaseDate)
	if err != nil {
		return nil, err
	}
	if ext.ReleasePrecision != "" {
		precision = ext.ReleasePrecision
	}

	// All artists resolved independently; output order mirrors input order.
	artistIDs := make([]string, len(ext.Artists))
	g, gctx := errgroup.WithContext(ctx)
	for i, ea := range ext.Artists {
		g.Go(func() error {
			a, err := r.artists.Resolve(gctx, ea.Name, ea.SpotifyURI)
			if err != nil {
				return err
			}
			artistIDs[i] = a.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "failed to resolve artists")
	}

	names := ext.ArtistNames()
	created, err := r.tracks.Create(ctx, &catalog.Track{
		Title:            ext.Title,
		SearchKey:        catalog.SearchKey(ext.Title, strings.Join(names, " & ")),
		DurationMS:       ext.DurationMS,
		Explicit:         ext.Explicit,
		Released:         released,
		ReleasePrecision: precision,
		SpotifyURI:       ext.SpotifyURI,
		CoverArt:         ext.CoverArt,
		ArtistIDs:        artistIDs,
		FirstSeen:        tuple.PlayedAt,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create track %q", ext.Title)
	}

	zlog.Info().Str("track", created.ID).Str("uri", created.SpotifyURI).
		Str("title", created.Title).Msg("catalogued new track")

	return &Resolution{Tuple: tuple, Track: created, ArtistNames: names}, nil
}

// resolution loads the artist names of an already-catalogued track.
func (r *TrackResolver) resolution(ctx context.Context, tuple scrape.Tuple, t *catalog.Track) (*Resolution, error) {
	artists, err := r.lookup.GetByIDs(ctx, t.ArtistIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load artists of track %s", t.ID)
	}
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return &Resolution{Tuple: tuple, Track: t, ArtistNames: names}, nil
}

// ResolveAll resolves a batch of tuples concurrently, gathering results
// positionally. A failing tuple does not abort the batch: its Resolution
// carries the error and the combined error is returned alongside the
// results. No tuple is silently dropped.
func (r *TrackResolver) ResolveAll(ctx context.Context, tuples []scrape.Tuple) ([]Resolution, error) {
	results := make([]Resolution, len(tuples))

	var g errgroup.Group
	for i, tuple := range tuples {
		g.Go(func() error {
			res, err := r.Resolve(ctx, tuple)
			if err != nil {
				results[i] = Resolution{Tuple: tuple, Err: err}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	// Goroutines report failures through their slot, never through Wait.
	_ = g.Wait()

	var combined error
	for i := range results {
		if results[i].Err != nil {
			combined = errors.CombineErrors(combined, results[i].Err)
		}
	}
	return results, combined
}

// firstArtist extracts the first listed artist from a multi-artist string.
func firstArtist(artist string) string {
	for _, sep := range []string{" feat. ", " x ", " & "} {
		artist = strings.Split(artist, sep)[0]
	}
	return artist
}
