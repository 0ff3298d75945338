// Package resolver maps scraped playlist tuples to canonical catalog
// records, creating tracks and artists through the external search API
// when the catalog has no match.
package resolver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osterhagen/airchart/internal/domain/catalog"
)

// ArtistResolver maps an external artist identity to the catalog artist
// record, creating one on miss. There is no removal operation.
type ArtistResolver struct {
	artists catalog.ArtistRepository
	now     func() time.Time
}

// NewArtistResolver creates an artist resolver over the given repository.
func NewArtistResolver(artists catalog.ArtistRepository) *ArtistResolver {
	return &ArtistResolver{artists: artists, now: time.Now}
}

// Resolve returns the catalog artist for spotifyURI. On miss a new artist
// is created with an empty genre list and a search key derived from name;
// a concurrent creation of the same URI converges on a single record.
func (r *ArtistResolver) Resolve(ctx context.Context, name, spotifyURI string) (*catalog.Artist, error) {
	a, err := r.artists.FindByURI(ctx, spotifyURI)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, errors.Wrap(err, "failed to look up artist")
	}

	created, err := r.artists.Create(ctx, &catalog.Artist{
		Name:        name,
		SpotifyURI:  spotifyURI,
		Genres:      []string{},
		SearchKey:   catalog.SearchKey(name),
		LastUpdated: r.now(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create artist %q", name)
	}
	return created, nil
}
