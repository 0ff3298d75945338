package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osterhagen/airchart/internal/domain/catalog"
)

// ArtistStore implements catalog.ArtistRepository on SQLite.
type ArtistStore struct {
	db *sql.DB
}

const artistColumns = `id, name, spotify_uri, genres, search_key, last_updated`

func (s *ArtistStore) FindByURI(ctx context.Context, uri string) (*catalog.Artist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artistColumns+` FROM artists WHERE spotify_uri = ?`, uri)
	return scanArtist(row)
}

func (s *ArtistStore) Create(ctx context.Context, a *catalog.Artist) (*catalog.Artist, error) {
	created := *a
	if created.ID == "" {
		created.ID = uuid.NewString()
	}

	genres, err := marshalJSON(created.Genres)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO artists (`+artistColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(spotify_uri) DO NOTHING`,
		created.ID, created.Name, created.SpotifyURI, genres,
		created.SearchKey, created.LastUpdated)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert artist")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read insert result")
	}
	if affected == 0 {
		return s.FindByURI(ctx, created.SpotifyURI)
	}
	return &created, nil
}

func (s *ArtistStore) GetByIDs(ctx context.Context, ids []string) ([]catalog.Artist, error) {
	artists := make([]catalog.Artist, len(ids))
	for i, id := range ids {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
		a, err := scanArtist(row)
		if err != nil {
			return nil, errors.Wrapf(err, "artist %s", id)
		}
		artists[i] = *a
	}
	return artists, nil
}

func scanArtist(row *sql.Row) (*catalog.Artist, error) {
	var a catalog.Artist
	var genres string
	err := row.Scan(&a.ID, &a.Name, &a.SpotifyURI, &genres, &a.SearchKey, &a.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.New("artist"), catalog.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan artist")
	}
	if err := unmarshalJSON(genres, &a.Genres); err != nil {
		return nil, err
	}
	return &a, nil
}
