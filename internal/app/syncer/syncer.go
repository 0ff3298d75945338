// Package syncer reconciles a remote playlist's track membership with a
// desired track-URI list.
package syncer

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osterhagen/airchart/internal/domain/playlist"
)

const (
	// pageLimit is the page size for paginated playlist reads.
	pageLimit = 50
	// chunkSize is the batch size for bulk add/remove calls.
	chunkSize = 100
)

// RemoteAPI is the subset of the external playlist API the syncer uses.
// Mutating calls return the snapshot token the next mutation must carry.
type RemoteAPI interface {
	GetPlaylist(ctx context.Context, playlistID string) (*playlist.RemotePlaylist, error)
	GetPlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]string, error)
	RemoveTracks(ctx context.Context, playlistID string, uris []string, snapshot string) (string, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) (string, error)
}

// Syncer pushes a desired track-URI list to a remote playlist.
type Syncer struct {
	api RemoteAPI
}

// New creates a playlist syncer.
func New(api RemoteAPI) *Syncer {
	return &Syncer{api: api}
}

// ListAll returns every track URI currently in the playlist plus the
// snapshot token of the head response. Pages beyond the first response are
// fetched concurrently and gathered positionally; the token is not
// re-fetched per page.
func (s *Syncer) ListAll(ctx context.Context, playlistID string) ([]string, string, error) {
	head, err := s.api.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to fetch playlist")
	}

	if head.Total <= head.PageLimit {
		return head.TrackURIs, head.Snapshot, nil
	}

	requests := (head.Total + pageLimit - 1) / pageLimit
	pages := make([][]string, requests)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < requests; i++ {
		g.Go(func() error {
			page, err := s.api.GetPlaylistTracks(gctx, playlistID, pageLimit, i*pageLimit)
			if err != nil {
				return errors.Wrapf(err, "failed to fetch playlist page %d", i)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	var uris []string
	for _, page := range pages {
		uris = append(uris, page...)
	}
	return uris, head.Snapshot, nil
}

// RemoveAll removes the given URIs in chunks. Chunks run strictly
// sequentially: each call carries the token returned by the previous one,
// so parallelizing them would corrupt the playlist. Returns the token of
// the last call (or the input token when uris is empty).
func (s *Syncer) RemoveAll(ctx context.Context, playlistID string, uris []string, snapshot string) (string, error) {
	token := snapshot
	for start := 0; start < len(uris); start += chunkSize {
		end := min(start+chunkSize, len(uris))

		next, err := s.api.RemoveTracks(ctx, playlistID, uris[start:end], token)
		if err != nil {
			return "", errors.Wrapf(err, "failed to remove tracks %d-%d", start, end)
		}
		token = next
	}
	return token, nil
}

// AddAll appends the given URIs in sequential chunks and returns the token
// of the last call.
func (s *Syncer) AddAll(ctx context.Context, playlistID string, uris []string) (string, error) {
	var token string
	for start := 0; start < len(uris); start += chunkSize {
		end := min(start+chunkSize, len(uris))

		next, err := s.api.AddTracks(ctx, playlistID, uris[start:end])
		if err != nil {
			return "", errors.Wrapf(err, "failed to add tracks %d-%d", start, end)
		}
		token = next
	}
	return token, nil
}

// Replace makes the playlist contain exactly desired: list the current
// tracks, remove them all, add the desired set. Clearing instead of
// diffing costs extra calls but converges to the desired state from any
// starting point, so a failed job can simply be re-run.
func (s *Syncer) Replace(ctx context.Context, playlistID string, desired []string) (string, error) {
	current, snapshot, err := s.ListAll(ctx, playlistID)
	if err != nil {
		return "", err
	}

	zlog.Info().Str("playlist", playlistID).Int("current", len(current)).
		Int("desired", len(desired)).Msg("replacing remote playlist tracks")

	token, err := s.RemoveAll(ctx, playlistID, current, snapshot)
	if err != nil {
		return "", err
	}

	added, err := s.AddAll(ctx, playlistID, desired)
	if err != nil {
		return "", err
	}
	if added != "" {
		token = added
	}
	return token, nil
}
