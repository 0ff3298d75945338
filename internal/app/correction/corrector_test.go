package correction

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osterhagen/airchart/internal/app/resolver"
	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
	"github.com/osterhagen/airchart/internal/infra/store"
)

type fakeTrackAPI struct {
	tracks map[string]*catalog.ExternalTrack
	err    error
}

func (f *fakeTrackAPI) GetTrackByURI(ctx context.Context, uri string) (*catalog.ExternalTrack, error) {
	if f.err != nil {
		return nil, f.err
	}
	ext, ok := f.tracks[uri]
	if !ok {
		return nil, errors.Mark(errors.Newf("track %s", uri), catalog.ErrNotFound)
	}
	return ext, nil
}

func newTestCorrector(mem *store.Memory, api TrackAPI) *Corrector {
	return New(mem.Tracks, mem.Artists, resolver.NewArtistResolver(mem.Artists), mem.Playlists, api)
}

func seedTrack(t *testing.T, mem *store.Memory, uri, title, artistName, artistURI string) *catalog.Track {
	t.Helper()
	ctx := context.Background()

	artist, err := mem.Artists.Create(ctx, &catalog.Artist{
		Name: artistName, SpotifyURI: artistURI,
		SearchKey: catalog.SearchKey(artistName), Genres: []string{},
	})
	require.NoError(t, err)

	track, err := mem.Tracks.Create(ctx, &catalog.Track{
		Title:      title,
		SearchKey:  catalog.SearchKey(title, artistName),
		SpotifyURI: uri,
		DurationMS: 200000,
		ArtistIDs:  []string{artist.ID},
		FirstSeen:  time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return track
}

func seedEntry(t *testing.T, mem *store.Memory, track *catalog.Track) *playlist.TrackEntry {
	t.Helper()
	ctx := context.Background()

	record, err := mem.Playlists.Create(ctx, &playlist.Record{
		Name: "daily", Category: "northwave", CreatedBy: "system",
		CreatedDate: track.FirstSeen, LastUpdate: track.FirstSeen,
	})
	require.NoError(t, err)

	entry, err := mem.Playlists.AppendEntry(ctx, &playlist.TrackEntry{
		PlaylistID: record.ID,
		TrackID:    track.ID,
		Title:      track.Title,
		SpotifyURI: track.SpotifyURI,
		DurationMS: track.DurationMS,
		AddedAt:    track.FirstSeen,
	})
	require.NoError(t, err)
	return entry
}

func TestFix_Validation(t *testing.T) {
	c := newTestCorrector(store.NewMemory(), &fakeTrackAPI{})

	err := c.Fix(context.Background(), "", "spotify:track:xxx")
	assert.True(t, errors.Is(err, catalog.ErrValidation))

	err = c.Fix(context.Background(), "track-1", "")
	assert.True(t, errors.Is(err, catalog.ErrValidation))
}

func TestFix_UnknownTrack(t *testing.T) {
	c := newTestCorrector(store.NewMemory(), &fakeTrackAPI{})

	err := c.Fix(context.Background(), "no-such-track", "spotify:track:xxx")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestFix_OverwritesWhenURIUnclaimed(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	wrong := seedTrack(t, mem, "spotify:track:wrong", "Wrong Song", "Artist A", "spotify:artist:aaa")
	entry := seedEntry(t, mem, wrong)

	api := &fakeTrackAPI{tracks: map[string]*catalog.ExternalTrack{
		"spotify:track:right": {
			SpotifyURI: "spotify:track:right",
			Title:      "Right Song",
			Artists: []catalog.ExternalArtist{
				{Name: "Artist B", SpotifyURI: "spotify:artist:bbb"},
			},
			DurationMS:       180000,
			Explicit:         true,
			ReleaseDate:      "2020",
			ReleasePrecision: catalog.PrecisionYear,
		},
	}}
	c := newTestCorrector(mem, api)

	require.NoError(t, c.Fix(ctx, wrong.ID, "spotify:track:right"))

	fixed, err := mem.Tracks.GetByID(ctx, wrong.ID)
	require.NoError(t, err)
	assert.Equal(t, "Right Song", fixed.Title)
	assert.Equal(t, "spotify:track:right", fixed.SpotifyURI)
	assert.Equal(t, 180000, fixed.DurationMS)
	assert.True(t, fixed.Explicit)
	assert.Equal(t, catalog.PrecisionYear, fixed.ReleasePrecision)
	assert.Equal(t, catalog.SearchKey("Right Song", "Artist B"), fixed.SearchKey)

	// The new artist is catalogued and linked.
	require.Len(t, fixed.ArtistIDs, 1)
	artists, err := mem.Artists.GetByIDs(ctx, fixed.ArtistIDs)
	require.NoError(t, err)
	assert.Equal(t, "Artist B", artists[0].Name)

	// The historical entry carries the corrected metadata.
	entries, err := mem.Playlists.EntriesByTrack(ctx, wrong.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, "Right Song", entries[0].Title)
	assert.Equal(t, []string{"Artist B"}, entries[0].Artists)
	assert.Equal(t, "spotify:track:right", entries[0].SpotifyURI)
}

func TestFix_MergesWhenURIClaimed(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	wrong := seedTrack(t, mem, "spotify:track:wrong", "Wrong Song", "Artist A", "spotify:artist:aaa")
	right := seedTrack(t, mem, "spotify:track:right", "Right Song", "Artist B", "spotify:artist:bbb")
	entry := seedEntry(t, mem, wrong)
	oldKey := wrong.SearchKey

	c := newTestCorrector(mem, &fakeTrackAPI{})
	require.NoError(t, c.Fix(ctx, wrong.ID, "spotify:track:right"))

	// The wrong track is gone; no entry references it anymore.
	_, err := mem.Tracks.GetByID(ctx, wrong.ID)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
	orphaned, err := mem.Playlists.EntriesByTrack(ctx, wrong.ID)
	require.NoError(t, err)
	assert.Empty(t, orphaned)

	// The entry now points at the survivor with its metadata.
	repointed, err := mem.Playlists.EntriesByTrack(ctx, right.ID)
	require.NoError(t, err)
	require.Len(t, repointed, 1)
	assert.Equal(t, entry.ID, repointed[0].ID)
	assert.Equal(t, "Right Song", repointed[0].Title)
	assert.Equal(t, []string{"Artist B"}, repointed[0].Artists)
	assert.Equal(t, "spotify:track:right", repointed[0].SpotifyURI)

	// The survivor inherits the old search key so the scraped spelling
	// keeps resolving to it.
	survivor, err := mem.Tracks.GetByID(ctx, right.ID)
	require.NoError(t, err)
	assert.Equal(t, oldKey, survivor.SearchKey)
}

func TestFix_MergeSameTrackKeepsIt(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	track := seedTrack(t, mem, "spotify:track:xxx", "Some Song", "Artist A", "spotify:artist:aaa")
	seedEntry(t, mem, track)

	c := newTestCorrector(mem, &fakeTrackAPI{})
	require.NoError(t, c.Fix(ctx, track.ID, "spotify:track:xxx"))

	kept, err := mem.Tracks.GetByID(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, "Some Song", kept.Title)
}

func TestFix_FetchFailureLeavesTrackUntouched(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	wrong := seedTrack(t, mem, "spotify:track:wrong", "Wrong Song", "Artist A", "spotify:artist:aaa")

	c := newTestCorrector(mem, &fakeTrackAPI{err: &catalog.APIError{
		Op: "get track", Status: 502, Message: "bad gateway",
	}})

	err := c.Fix(ctx, wrong.ID, "spotify:track:right")
	require.Error(t, err)
	assert.False(t, errors.Is(err, catalog.ErrInconsistentState),
		"failing before the first write is not partial state")

	untouched, err := mem.Tracks.GetByID(ctx, wrong.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wrong Song", untouched.Title)
	assert.Equal(t, "spotify:track:wrong", untouched.SpotifyURI)
}

// failingPlaylists wraps the memory playlist store and fails every entry
// update.
type failingPlaylists struct {
	playlist.Repository
}

func (f *failingPlaylists) UpdateEntry(ctx context.Context, e *playlist.TrackEntry) error {
	return errors.New("store unavailable")
}

func TestMerge_PartialFailureIsInconsistentState(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	wrong := seedTrack(t, mem, "spotify:track:wrong", "Wrong Song", "Artist A", "spotify:artist:aaa")
	right := seedTrack(t, mem, "spotify:track:right", "Right Song", "Artist B", "spotify:artist:bbb")
	seedEntry(t, mem, wrong)

	c := New(mem.Tracks, mem.Artists, resolver.NewArtistResolver(mem.Artists),
		&failingPlaylists{Repository: mem.Playlists}, &fakeTrackAPI{})

	err := c.Merge(ctx, wrong, right)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrInconsistentState))

	// The old track must survive a partial merge so the repair can be
	// re-run.
	_, err = mem.Tracks.GetByID(ctx, wrong.ID)
	assert.NoError(t, err)
}
