package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osterhagen/airchart/internal/domain/catalog"
)

// TrackStore implements catalog.TrackRepository on SQLite. The UNIQUE
// constraint on spotify_uri backs the create-if-absent contract: two
// concurrent creators converge on a single row.
type TrackStore struct {
	db *sql.DB
}

const trackColumns = `id, title, search_key, duration_ms, explicit,
	released, release_precision, spotify_uri, cover_art, first_seen`

func (s *TrackStore) GetByID(ctx context.Context, id string) (*catalog.Track, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	return s.scanTrack(ctx, row)
}

func (s *TrackStore) FindByURI(ctx context.Context, uri string) (*catalog.Track, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE spotify_uri = ?`, uri)
	return s.scanTrack(ctx, row)
}

func (s *TrackStore) FindBySearchKeyRange(ctx context.Context, lo, hi string) (*catalog.Track, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE search_key >= ? AND (? = '' OR search_key < ?)
		 ORDER BY search_key LIMIT 1`, lo, hi, hi)
	return s.scanTrack(ctx, row)
}

func (s *TrackStore) Create(ctx context.Context, t *catalog.Track) (*catalog.Track, error) {
	created := *t
	if created.ID == "" {
		created.ID = uuid.NewString()
	}

	coverArt, err := marshalJSON(created.CoverArt)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tracks (`+trackColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(spotify_uri) DO NOTHING`,
		created.ID, created.Title, created.SearchKey, created.DurationMS,
		created.Explicit, created.Released, string(created.ReleasePrecision),
		created.SpotifyURI, coverArt, created.FirstSeen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert track")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read insert result")
	}
	if affected == 0 {
		// Lost the race (or the track already existed): the row holding the
		// URI wins. The no-op transaction must release its connection before
		// the re-read, which runs on the shared handle.
		if err := tx.Commit(); err != nil {
			return nil, errors.Wrap(err, "failed to commit track")
		}
		return s.FindByURI(ctx, created.SpotifyURI)
	}

	for i, artistID := range created.ArtistIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO track_artists (track_id, position, artist_id) VALUES (?, ?, ?)`,
			created.ID, i, artistID); err != nil {
			return nil, errors.Wrap(err, "failed to link track artist")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit track")
	}
	return &created, nil
}

func (s *TrackStore) Update(ctx context.Context, t *catalog.Track) error {
	coverArt, err := marshalJSON(t.CoverArt)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tracks SET title = ?, search_key = ?, duration_ms = ?,
		 explicit = ?, released = ?, release_precision = ?, spotify_uri = ?,
		 cover_art = ? WHERE id = ?`,
		t.Title, t.SearchKey, t.DurationMS, t.Explicit, t.Released,
		string(t.ReleasePrecision), t.SpotifyURI, coverArt, t.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update track")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return errors.Mark(errors.Newf("track %s", t.ID), catalog.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM track_artists WHERE track_id = ?`, t.ID); err != nil {
		return errors.Wrap(err, "failed to clear track artists")
	}
	for i, artistID := range t.ArtistIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO track_artists (track_id, position, artist_id) VALUES (?, ?, ?)`,
			t.ID, i, artistID); err != nil {
			return errors.Wrap(err, "failed to link track artist")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit track update")
}

func (s *TrackStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	return errors.Wrap(err, "failed to delete track")
}

func (s *TrackStore) ListOrderedByURI(ctx context.Context) ([]catalog.Track, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks ORDER BY spotify_uri ASC, first_seen ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tracks")
	}
	defer rows.Close()

	var tracks []catalog.Track
	for rows.Next() {
		t, err := scanTrackRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tracks")
	}
	// The cursor must release its connection before the per-track artist
	// queries run.
	rows.Close()

	for i := range tracks {
		tracks[i].ArtistIDs, err = s.artistIDs(ctx, tracks[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TrackStore) scanTrack(ctx context.Context, row *sql.Row) (*catalog.Track, error) {
	t, err := scanTrackRow(row)
	if err != nil {
		return nil, err
	}
	t.ArtistIDs, err = s.artistIDs(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTrackRow(row rowScanner) (*catalog.Track, error) {
	var t catalog.Track
	var precision, coverArt string
	err := row.Scan(&t.ID, &t.Title, &t.SearchKey, &t.DurationMS, &t.Explicit,
		&t.Released, &precision, &t.SpotifyURI, &coverArt, &t.FirstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.New("track"), catalog.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan track")
	}
	t.ReleasePrecision = catalog.ReleasePrecision(precision)
	if err := unmarshalJSON(coverArt, &t.CoverArt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TrackStore) artistIDs(ctx context.Context, trackID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artist_id FROM track_artists WHERE track_id = ? ORDER BY position ASC`,
		trackID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query track artists")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan track artist")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "failed to iterate track artists")
}
