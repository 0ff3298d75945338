package catalog

import "context"

// TrackRepository is the catalog store for tracks.
//
// Create is create-if-absent keyed on SpotifyURI: when a track with the same
// URI already exists (including one created by a concurrent resolver), the
// existing row is returned instead of a duplicate being written.
type TrackRepository interface {
	GetByID(ctx context.Context, id string) (*Track, error)
	FindByURI(ctx context.Context, uri string) (*Track, error)
	// FindBySearchKeyRange returns the first track whose search key falls in
	// [lo, hi). An empty hi means unbounded above. ErrNotFound on miss.
	FindBySearchKeyRange(ctx context.Context, lo, hi string) (*Track, error)
	Create(ctx context.Context, t *Track) (*Track, error)
	Update(ctx context.Context, t *Track) error
	Delete(ctx context.Context, id string) error
	// ListOrderedByURI returns all tracks ordered by SpotifyURI so duplicate
	// URIs end up adjacent.
	ListOrderedByURI(ctx context.Context) ([]Track, error)
}

// ArtistRepository is the catalog store for artists. Create follows the same
// create-if-absent contract as TrackRepository.Create.
type ArtistRepository interface {
	FindByURI(ctx context.Context, uri string) (*Artist, error)
	Create(ctx context.Context, a *Artist) (*Artist, error)
	// GetByIDs returns artists positionally matching ids.
	GetByIDs(ctx context.Context, ids []string) ([]Artist, error)
}
