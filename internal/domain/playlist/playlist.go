// Package playlist provides the stored playlist record, its track entries
// and the externally owned remote playlist state.
package playlist

import "time"

// Record is a stored playlist: one per station and day for daily snapshots,
// one per run for weekly rankings. Created once, then only appended to.
type Record struct {
	ID          string
	Name        string
	Category    string
	CreatedBy   string
	LastUpdate  time.Time
	CreatedDate time.Time
}

// TrackEntry is one appended track of a Record. Title, Artists, SpotifyURI,
// DurationMS and Explicit are denormalized from the catalog track so the
// entry stays readable if the track is later corrected or merged; the
// corrector rewrites them in that case.
type TrackEntry struct {
	ID         string
	PlaylistID string
	TrackID    string
	AddedAt    time.Time
	Title      string
	Artists    []string
	SpotifyURI string
	DurationMS int
	Explicit   bool
	// RankOrder is set on weekly ranking entries only; nil otherwise.
	RankOrder *int
}

// PlayEvent is one broadcast play of a track. Daily entries are the
// persisted form; the ranking aggregator consumes them as play events.
type PlayEvent struct {
	SpotifyURI string
	PlayedAt   time.Time
}

// PlayEvent views the entry as a play event.
func (e *TrackEntry) PlayEvent() PlayEvent {
	return PlayEvent{SpotifyURI: e.SpotifyURI, PlayedAt: e.AddedAt}
}

// RemotePlaylist is the externally owned playlist state: the first page of
// its ordered track URIs plus the snapshot token guarding mutations. A
// mutating call must carry the token returned by the previous call or it
// risks being rejected or silently misapplied.
type RemotePlaylist struct {
	ID        string
	Snapshot  string
	TrackURIs []string
	Total     int
	PageLimit int
}
