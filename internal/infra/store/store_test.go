package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTrack(uri, title string) *catalog.Track {
	return &catalog.Track{
		Title:            title,
		SearchKey:        catalog.SearchKey(title, "Artist A"),
		DurationMS:       200000,
		Released:         time.Date(2021, 9, 17, 0, 0, 0, 0, time.UTC),
		ReleasePrecision: catalog.PrecisionDay,
		SpotifyURI:       uri,
		FirstSeen:        time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC),
	}
}

func TestTrackStore_CreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	artist, err := s.Artists.Create(ctx, &catalog.Artist{
		Name:        "Artist A",
		SpotifyURI:  "spotify:artist:aaa",
		Genres:      []string{"pop"},
		SearchKey:   catalog.SearchKey("Artist A"),
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)

	track := testTrack("spotify:track:xxx", "Some Song")
	track.ArtistIDs = []string{artist.ID}
	track.CoverArt = []catalog.Image{{URL: "https://img.test/cover", Width: 640, Height: 640}}

	created, err := s.Tracks.Create(ctx, track)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.Tracks.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Some Song", got.Title)
	assert.Equal(t, "spotify:track:xxx", got.SpotifyURI)
	assert.Equal(t, catalog.PrecisionDay, got.ReleasePrecision)
	assert.Equal(t, []string{artist.ID}, got.ArtistIDs)
	require.Len(t, got.CoverArt, 1)
	assert.Equal(t, "https://img.test/cover", got.CoverArt[0].URL)

	byURI, err := s.Tracks.FindByURI(ctx, "spotify:track:xxx")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byURI.ID)
}

func TestTrackStore_CreateIfAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Tracks.Create(ctx, testTrack("spotify:track:xxx", "Some Song"))
	require.NoError(t, err)

	// A second create with the same URI must converge on the existing row.
	second, err := s.Tracks.Create(ctx, testTrack("spotify:track:xxx", "Some Song (Remaster)"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Some Song", second.Title)

	all, err := s.Tracks.ListOrderedByURI(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTrackStore_CreateIfAbsent_Concurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const writers = 8
	ids := make(chan string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.Tracks.Create(ctx, testTrack("spotify:track:xxx", fmt.Sprintf("Take %d", i)))
			assert.NoError(t, err)
			if created != nil {
				ids <- created.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	first := <-ids
	for id := range ids {
		assert.Equal(t, first, id, "every racing creator must converge on one row")
	}
	all, err := s.Tracks.ListOrderedByURI(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTrackStore_ListOrderedByURI(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, uri := range []string{"spotify:track:ccc", "spotify:track:aaa", "spotify:track:bbb"} {
		_, err := s.Tracks.Create(ctx, testTrack(uri, "Title "+uri))
		require.NoError(t, err)
	}

	all, err := s.Tracks.ListOrderedByURI(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "spotify:track:aaa", all[0].SpotifyURI)
	assert.Equal(t, "spotify:track:bbb", all[1].SpotifyURI)
	assert.Equal(t, "spotify:track:ccc", all[2].SpotifyURI)
}

func TestTrackStore_FindBySearchKeyRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testTrack("spotify:track:aaa", "Alpha")
	a.SearchKey = "alpha|artist"
	b := testTrack("spotify:track:bbb", "Beta")
	b.SearchKey = "beta|artist"
	for _, track := range []*catalog.Track{a, b} {
		_, err := s.Tracks.Create(ctx, track)
		require.NoError(t, err)
	}

	t.Run("prefix hit", func(t *testing.T) {
		lo, hi := catalog.SearchKeyRange("beta")
		got, err := s.Tracks.FindBySearchKeyRange(ctx, lo, hi)
		require.NoError(t, err)
		assert.Equal(t, "spotify:track:bbb", got.SpotifyURI)
	})

	t.Run("exact key hit", func(t *testing.T) {
		lo, hi := catalog.SearchKeyRange("alpha|artist")
		got, err := s.Tracks.FindBySearchKeyRange(ctx, lo, hi)
		require.NoError(t, err)
		assert.Equal(t, "spotify:track:aaa", got.SpotifyURI)
	})

	t.Run("miss", func(t *testing.T) {
		lo, hi := catalog.SearchKeyRange("gamma")
		_, err := s.Tracks.FindBySearchKeyRange(ctx, lo, hi)
		require.Error(t, err)
		assert.True(t, errors.Is(err, catalog.ErrNotFound))
	})

	t.Run("unbounded upper", func(t *testing.T) {
		got, err := s.Tracks.FindBySearchKeyRange(ctx, "beta", "")
		require.NoError(t, err)
		assert.Equal(t, "spotify:track:bbb", got.SpotifyURI)
	})
}

func TestTrackStore_UpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Tracks.Create(ctx, testTrack("spotify:track:xxx", "Some Song"))
	require.NoError(t, err)

	created.Title = "Corrected Song"
	created.SearchKey = "corrected song|artist a"
	require.NoError(t, s.Tracks.Update(ctx, created))

	got, err := s.Tracks.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Corrected Song", got.Title)
	assert.Equal(t, "corrected song|artist a", got.SearchKey)

	require.NoError(t, s.Tracks.Delete(ctx, created.ID))
	_, err = s.Tracks.GetByID(ctx, created.ID)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	missing := testTrack("spotify:track:yyy", "Ghost")
	missing.ID = "no-such-id"
	assert.True(t, errors.Is(s.Tracks.Update(ctx, missing), catalog.ErrNotFound))
}

func TestArtistStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Artists.Create(ctx, &catalog.Artist{
		Name:        "Artist A",
		SpotifyURI:  "spotify:artist:aaa",
		Genres:      []string{},
		SearchKey:   catalog.SearchKey("Artist A"),
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)

	second, err := s.Artists.Create(ctx, &catalog.Artist{
		Name:        "Artist A Again",
		SpotifyURI:  "spotify:artist:aaa",
		Genres:      []string{},
		SearchKey:   catalog.SearchKey("Artist A Again"),
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Artist A", second.Name)

	byURI, err := s.Artists.FindByURI(ctx, "spotify:artist:aaa")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byURI.ID)

	_, err = s.Artists.FindByURI(ctx, "spotify:artist:zzz")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	other, err := s.Artists.Create(ctx, &catalog.Artist{
		Name:        "Artist B",
		SpotifyURI:  "spotify:artist:bbb",
		Genres:      []string{},
		SearchKey:   catalog.SearchKey("Artist B"),
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)

	// Order of the result follows the order of the requested ids.
	got, err := s.Artists.GetByIDs(ctx, []string{other.ID, first.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Artist B", got[0].Name)
	assert.Equal(t, "Artist A", got[1].Name)
}

func TestPlaylistStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	record, err := s.Playlists.Create(ctx, &playlist.Record{
		Name:        "Northwave playlist - 2024-03-04",
		Category:    "northwave",
		CreatedBy:   "system",
		LastUpdate:  day,
		CreatedDate: day,
	})
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)

	found, err := s.Playlists.FindByNameAndCreator(ctx, record.Name, "system")
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)

	_, err = s.Playlists.FindByNameAndCreator(ctx, record.Name, "someone-else")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	rank := 0
	entry, err := s.Playlists.AppendEntry(ctx, &playlist.TrackEntry{
		PlaylistID: record.ID,
		TrackID:    "track-1",
		AddedAt:    day.Add(18 * time.Hour),
		Title:      "Some Song",
		Artists:    []string{"Artist A"},
		SpotifyURI: "spotify:track:xxx",
		DurationMS: 200000,
		RankOrder:  &rank,
	})
	require.NoError(t, err)

	noRank, err := s.Playlists.AppendEntry(ctx, &playlist.TrackEntry{
		PlaylistID: record.ID,
		TrackID:    "track-2",
		AddedAt:    day.Add(19 * time.Hour),
		Title:      "Other Song",
		Artists:    []string{"Artist B"},
		SpotifyURI: "spotify:track:yyy",
		DurationMS: 180000,
	})
	require.NoError(t, err)

	entries, err := s.Playlists.EntriesByPlaylist(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entry.ID, entries[0].ID)
	require.NotNil(t, entries[0].RankOrder)
	assert.Equal(t, 0, *entries[0].RankOrder)
	assert.Nil(t, entries[1].RankOrder)
	assert.Equal(t, []string{"Artist A"}, entries[0].Artists)

	byTrack, err := s.Playlists.EntriesByTrack(ctx, "track-2")
	require.NoError(t, err)
	require.Len(t, byTrack, 1)
	assert.Equal(t, noRank.ID, byTrack[0].ID)

	byTrack[0].TrackID = "track-3"
	byTrack[0].Title = "Corrected Song"
	require.NoError(t, s.Playlists.UpdateEntry(ctx, &byTrack[0]))

	updated, err := s.Playlists.EntriesByTrack(ctx, "track-3")
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "Corrected Song", updated[0].Title)

	recent, err := s.Playlists.ListByCategorySince(ctx, "northwave", day.AddDate(0, 0, -7), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	none, err := s.Playlists.ListByCategorySince(ctx, "northwave", day.AddDate(0, 0, 1), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
