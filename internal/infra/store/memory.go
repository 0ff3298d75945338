package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
)

// Memory is an in-memory catalog store with the same semantics as the
// SQLite store, including create-if-absent by URI. Used by tests and dry
// runs; not persistent.
type Memory struct {
	mu        sync.Mutex
	tracks    map[string]catalog.Track
	artists   map[string]catalog.Artist
	playlists map[string]playlist.Record
	entries   map[string]playlist.TrackEntry

	Tracks    *MemoryTrackStore
	Artists   *MemoryArtistStore
	Playlists *MemoryPlaylistStore
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{
		tracks:    map[string]catalog.Track{},
		artists:   map[string]catalog.Artist{},
		playlists: map[string]playlist.Record{},
		entries:   map[string]playlist.TrackEntry{},
	}
	m.Tracks = &MemoryTrackStore{m: m}
	m.Artists = &MemoryArtistStore{m: m}
	m.Playlists = &MemoryPlaylistStore{m: m}
	return m
}

// MemoryTrackStore implements catalog.TrackRepository.
type MemoryTrackStore struct{ m *Memory }

func (s *MemoryTrackStore) GetByID(ctx context.Context, id string) (*catalog.Track, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tracks[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("track %s", id), catalog.ErrNotFound)
	}
	return &t, nil
}

func (s *MemoryTrackStore) FindByURI(ctx context.Context, uri string) (*catalog.Track, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.findByURILocked(uri)
}

func (s *MemoryTrackStore) findByURILocked(uri string) (*catalog.Track, error) {
	for _, t := range s.m.tracks {
		if t.SpotifyURI == uri {
			t := t
			return &t, nil
		}
	}
	return nil, errors.Mark(errors.New("track"), catalog.ErrNotFound)
}

func (s *MemoryTrackStore) FindBySearchKeyRange(ctx context.Context, lo, hi string) (*catalog.Track, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var best *catalog.Track
	for _, t := range s.m.tracks {
		if t.SearchKey < lo || (hi != "" && t.SearchKey >= hi) {
			continue
		}
		if best == nil || t.SearchKey < best.SearchKey {
			t := t
			best = &t
		}
	}
	if best == nil {
		return nil, errors.Mark(errors.New("track"), catalog.ErrNotFound)
	}
	return best, nil
}

func (s *MemoryTrackStore) Create(ctx context.Context, t *catalog.Track) (*catalog.Track, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if existing, err := s.findByURILocked(t.SpotifyURI); err == nil {
		return existing, nil
	}
	created := *t
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.m.tracks[created.ID] = created
	return &created, nil
}

func (s *MemoryTrackStore) Update(ctx context.Context, t *catalog.Track) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.tracks[t.ID]; !ok {
		return errors.Mark(errors.Newf("track %s", t.ID), catalog.ErrNotFound)
	}
	s.m.tracks[t.ID] = *t
	return nil
}

func (s *MemoryTrackStore) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.tracks, id)
	return nil
}

func (s *MemoryTrackStore) ListOrderedByURI(ctx context.Context) ([]catalog.Track, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	tracks := make([]catalog.Track, 0, len(s.m.tracks))
	for _, t := range s.m.tracks {
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].SpotifyURI != tracks[j].SpotifyURI {
			return tracks[i].SpotifyURI < tracks[j].SpotifyURI
		}
		// Oldest first so the dedupe sweep keeps the first-seen row.
		return tracks[i].FirstSeen.Before(tracks[j].FirstSeen)
	})
	return tracks, nil
}

// MemoryArtistStore implements catalog.ArtistRepository.
type MemoryArtistStore struct{ m *Memory }

func (s *MemoryArtistStore) FindByURI(ctx context.Context, uri string) (*catalog.Artist, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.findByURILocked(uri)
}

func (s *MemoryArtistStore) findByURILocked(uri string) (*catalog.Artist, error) {
	for _, a := range s.m.artists {
		if a.SpotifyURI == uri {
			a := a
			return &a, nil
		}
	}
	return nil, errors.Mark(errors.New("artist"), catalog.ErrNotFound)
}

func (s *MemoryArtistStore) Create(ctx context.Context, a *catalog.Artist) (*catalog.Artist, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if existing, err := s.findByURILocked(a.SpotifyURI); err == nil {
		return existing, nil
	}
	created := *a
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.m.artists[created.ID] = created
	return &created, nil
}

func (s *MemoryArtistStore) GetByIDs(ctx context.Context, ids []string) ([]catalog.Artist, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	artists := make([]catalog.Artist, len(ids))
	for i, id := range ids {
		a, ok := s.m.artists[id]
		if !ok {
			return nil, errors.Mark(errors.Newf("artist %s", id), catalog.ErrNotFound)
		}
		artists[i] = a
	}
	return artists, nil
}

// MemoryPlaylistStore implements playlist.Repository.
type MemoryPlaylistStore struct{ m *Memory }

func (s *MemoryPlaylistStore) GetByID(ctx context.Context, id string) (*playlist.Record, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.playlists[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("playlist %s", id), catalog.ErrNotFound)
	}
	return &r, nil
}

func (s *MemoryPlaylistStore) FindByNameAndCreator(ctx context.Context, name, createdBy string) (*playlist.Record, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.playlists {
		if r.Name == name && r.CreatedBy == createdBy {
			r := r
			return &r, nil
		}
	}
	return nil, errors.Mark(errors.New("playlist"), catalog.ErrNotFound)
}

func (s *MemoryPlaylistStore) Create(ctx context.Context, r *playlist.Record) (*playlist.Record, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	created := *r
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.m.playlists[created.ID] = created
	return &created, nil
}

func (s *MemoryPlaylistStore) ListByCategorySince(ctx context.Context, category string, since time.Time, limit int) ([]playlist.Record, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var records []playlist.Record
	for _, r := range s.m.playlists {
		if r.Category == category && !r.CreatedDate.Before(since) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedDate.After(records[j].CreatedDate)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *MemoryPlaylistStore) AppendEntry(ctx context.Context, e *playlist.TrackEntry) (*playlist.TrackEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	appended := *e
	if appended.ID == "" {
		appended.ID = uuid.NewString()
	}
	s.m.entries[appended.ID] = appended
	return &appended, nil
}

func (s *MemoryPlaylistStore) EntriesByPlaylist(ctx context.Context, playlistID string) ([]playlist.TrackEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var entries []playlist.TrackEntry
	for _, e := range s.m.entries {
		if e.PlaylistID == playlistID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})
	return entries, nil
}

func (s *MemoryPlaylistStore) EntriesByTrack(ctx context.Context, trackID string) ([]playlist.TrackEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var entries []playlist.TrackEntry
	for _, e := range s.m.entries {
		if e.TrackID == trackID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *MemoryPlaylistStore) UpdateEntry(ctx context.Context, e *playlist.TrackEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.entries[e.ID]; !ok {
		return errors.Mark(errors.Newf("entry %s", e.ID), catalog.ErrNotFound)
	}
	s.m.entries[e.ID] = *e
	return nil
}
