package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
)

// PlaylistStore implements playlist.Repository on SQLite. Entry queries by
// track id span every playlist, like a collection-group query.
type PlaylistStore struct {
	db *sql.DB
}

const recordColumns = `id, name, category, created_by, last_update, created_date`
const entryColumns = `id, playlist_id, track_id, added_at, title, artists,
	spotify_uri, duration_ms, explicit, rank_order`

func (s *PlaylistStore) GetByID(ctx context.Context, id string) (*playlist.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM playlists WHERE id = ?`, id)
	return scanRecord(row)
}

func (s *PlaylistStore) FindByNameAndCreator(ctx context.Context, name, createdBy string) (*playlist.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM playlists
		 WHERE name = ? AND created_by = ? LIMIT 1`, name, createdBy)
	return scanRecord(row)
}

func (s *PlaylistStore) Create(ctx context.Context, r *playlist.Record) (*playlist.Record, error) {
	created := *r
	if created.ID == "" {
		created.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		created.ID, created.Name, created.Category, created.CreatedBy,
		created.LastUpdate, created.CreatedDate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert playlist")
	}
	return &created, nil
}

func (s *PlaylistStore) ListByCategorySince(ctx context.Context, category string, since time.Time, limit int) ([]playlist.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM playlists
		 WHERE category = ? AND created_date >= ?
		 ORDER BY created_date DESC LIMIT ?`, category, since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}
	defer rows.Close()

	var records []playlist.Record
	for rows.Next() {
		var r playlist.Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.CreatedBy,
			&r.LastUpdate, &r.CreatedDate); err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist")
		}
		records = append(records, r)
	}
	return records, errors.Wrap(rows.Err(), "failed to iterate playlists")
}

func (s *PlaylistStore) AppendEntry(ctx context.Context, e *playlist.TrackEntry) (*playlist.TrackEntry, error) {
	appended := *e
	if appended.ID == "" {
		appended.ID = uuid.NewString()
	}

	artists, err := marshalJSON(appended.Artists)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO playlist_tracks (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appended.ID, appended.PlaylistID, appended.TrackID, appended.AddedAt,
		appended.Title, artists, appended.SpotifyURI, appended.DurationMS,
		appended.Explicit, appended.RankOrder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert entry")
	}
	return &appended, nil
}

func (s *PlaylistStore) EntriesByPlaylist(ctx context.Context, playlistID string) ([]playlist.TrackEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM playlist_tracks
		 WHERE playlist_id = ? ORDER BY added_at ASC`, playlistID)
}

func (s *PlaylistStore) EntriesByTrack(ctx context.Context, trackID string) ([]playlist.TrackEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM playlist_tracks WHERE track_id = ?`, trackID)
}

func (s *PlaylistStore) UpdateEntry(ctx context.Context, e *playlist.TrackEntry) error {
	artists, err := marshalJSON(e.Artists)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE playlist_tracks SET track_id = ?, title = ?, artists = ?,
		 spotify_uri = ?, duration_ms = ?, explicit = ? WHERE id = ?`,
		e.TrackID, e.Title, artists, e.SpotifyURI, e.DurationMS, e.Explicit, e.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update entry")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return errors.Mark(errors.Newf("entry %s", e.ID), catalog.ErrNotFound)
	}
	return nil
}

func (s *PlaylistStore) queryEntries(ctx context.Context, query string, args ...any) ([]playlist.TrackEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query entries")
	}
	defer rows.Close()

	var entries []playlist.TrackEntry
	for rows.Next() {
		var e playlist.TrackEntry
		var artists string
		var rank sql.NullInt64
		if err := rows.Scan(&e.ID, &e.PlaylistID, &e.TrackID, &e.AddedAt,
			&e.Title, &artists, &e.SpotifyURI, &e.DurationMS, &e.Explicit,
			&rank); err != nil {
			return nil, errors.Wrap(err, "failed to scan entry")
		}
		if err := unmarshalJSON(artists, &e.Artists); err != nil {
			return nil, err
		}
		if rank.Valid {
			order := int(rank.Int64)
			e.RankOrder = &order
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to iterate entries")
}

func scanRecord(row *sql.Row) (*playlist.Record, error) {
	var r playlist.Record
	err := row.Scan(&r.ID, &r.Name, &r.Category, &r.CreatedBy, &r.LastUpdate, &r.CreatedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.New("playlist"), catalog.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan playlist")
	}
	return &r, nil
}
