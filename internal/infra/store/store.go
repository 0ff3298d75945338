// Package store provides the SQLite-backed catalog store, plus an
// in-memory variant with identical semantics for tests and dry runs.
package store

import (
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Store bundles the catalog repositories over one database handle.
type Store struct {
	db        *sql.DB
	Tracks    *TrackStore
	Artists   *ArtistStore
	Playlists *PlaylistStore
}

// Open opens (and if necessary initializes) the SQLite database at path.
// The path can be ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection: SQLite serializes writers anyway, and the pool would
	// give every ":memory:" connection its own empty database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Store{
		db:        db,
		Tracks:    &TrackStore{db: db},
		Artists:   &ArtistStore{db: db},
		Playlists: &PlaylistStore{db: db},
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS artists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			spotify_uri TEXT NOT NULL UNIQUE,
			genres TEXT NOT NULL DEFAULT '[]',
			search_key TEXT NOT NULL,
			last_updated TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			search_key TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			explicit INTEGER NOT NULL DEFAULT 0,
			released TIMESTAMP NOT NULL,
			release_precision TEXT NOT NULL,
			spotify_uri TEXT NOT NULL UNIQUE,
			cover_art TEXT NOT NULL DEFAULT '[]',
			first_seen TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS track_artists (
			track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			artist_id TEXT NOT NULL REFERENCES artists(id),
			PRIMARY KEY (track_id, position)
		);

		CREATE TABLE IF NOT EXISTS playlists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			created_by TEXT NOT NULL,
			last_update TIMESTAMP NOT NULL,
			created_date TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS playlist_tracks (
			id TEXT PRIMARY KEY,
			playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			track_id TEXT NOT NULL,
			added_at TIMESTAMP NOT NULL,
			title TEXT NOT NULL,
			artists TEXT NOT NULL DEFAULT '[]',
			spotify_uri TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			explicit INTEGER NOT NULL DEFAULT 0,
			rank_order INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_search_key ON tracks(search_key);
		CREATE INDEX IF NOT EXISTS idx_artists_search_key ON artists(search_key);
		CREATE INDEX IF NOT EXISTS idx_playlist_tracks_track ON playlist_tracks(track_id);
		CREATE INDEX IF NOT EXISTS idx_playlists_category_date ON playlists(category, created_date);
	`)
	return err
}

// marshalJSON encodes a slice column, treating nil as empty.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode column")
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	return errors.Wrap(json.Unmarshal([]byte(data), v), "failed to decode column")
}
