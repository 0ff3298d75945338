package playlist

import (
	"context"
	"time"
)

// Repository is the store for playlist records and their track entries.
// Entry queries by track id span every record, regardless of parent.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Record, error)
	// FindByNameAndCreator returns the record with the given name and
	// creator tag. ErrNotFound on miss.
	FindByNameAndCreator(ctx context.Context, name, createdBy string) (*Record, error)
	Create(ctx context.Context, r *Record) (*Record, error)
	// ListByCategorySince returns the records of a category created at or
	// after since, newest first, at most limit.
	ListByCategorySince(ctx context.Context, category string, since time.Time, limit int) ([]Record, error)

	AppendEntry(ctx context.Context, e *TrackEntry) (*TrackEntry, error)
	EntriesByPlaylist(ctx context.Context, playlistID string) ([]TrackEntry, error)
	// EntriesByTrack returns every entry referencing the catalog track id,
	// across all records.
	EntriesByTrack(ctx context.Context, trackID string) ([]TrackEntry, error)
	UpdateEntry(ctx context.Context, e *TrackEntry) error
}
