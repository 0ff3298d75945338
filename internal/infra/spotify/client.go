// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
)

// Client is a Spotify API client. Errors from the API carry the upstream
// status and message as *catalog.APIError; no call is retried here, retry
// is the scheduler's responsibility.
type Client struct {
	client *spotify.Client
	market string
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
		),
	)

	// Token auto-refreshes through the oauth2 transport.
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := auth.Client(ctx, token)

	market := cfg.Market
	if market == "" {
		market = "DE"
	}

	return &Client{
		client: spotify.New(httpClient),
		market: market,
	}, nil
}

// SearchTrack returns the top search hit for query in the configured
// market. catalog.ErrNotFound when the search comes back empty.
func (c *Client) SearchTrack(ctx context.Context, query string) (*catalog.ExternalTrack, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}

	result, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Market(c.market),
		spotify.Limit(1),
	)
	if err != nil {
		return nil, apiError("search tracks", err)
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, errors.Mark(
			errors.Newf("no search results for %q", query), catalog.ErrNotFound)
	}

	return convertTrack(&result.Tracks.Tracks[0]), nil
}

// GetTrackByURI retrieves full track metadata by URI, URL or bare ID.
func (c *Client) GetTrackByURI(ctx context.Context, uri string) (*catalog.ExternalTrack, error) {
	id := extractTrackID(uri)
	if id == "" {
		return nil, errors.Newf("invalid track URI %q", uri)
	}

	t, err := c.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, apiError("get track", err)
	}
	return convertTrack(t), nil
}

// GetPlaylist retrieves the remote playlist head: its snapshot token, total
// track count and the first page of track URIs.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*playlist.RemotePlaylist, error) {
	id := extractPlaylistID(playlistID)
	if id == "" {
		return nil, errors.Newf("invalid playlist id %q", playlistID)
	}

	p, err := c.client.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return nil, apiError("get playlist", err)
	}

	uris := make([]string, 0, len(p.Tracks.Tracks))
	for _, item := range p.Tracks.Tracks {
		uris = append(uris, string(item.Track.URI))
	}

	return &playlist.RemotePlaylist{
		ID:        string(p.ID),
		Snapshot:  p.SnapshotID,
		TrackURIs: uris,
		Total:     int(p.Tracks.Total),
		PageLimit: int(p.Tracks.Limit),
	}, nil
}

// GetPlaylistTracks retrieves one page of track URIs.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]string, error) {
	id := extractPlaylistID(playlistID)
	if id == "" {
		return nil, errors.Newf("invalid playlist id %q", playlistID)
	}

	page, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
		spotify.Limit(limit),
		spotify.Offset(offset),
	)
	if err != nil {
		return nil, apiError("get playlist items", err)
	}

	var uris []string
	for _, item := range page.Items {
		// Tracks only; episodes have no catalog representation.
		if item.Track.Track != nil && item.Track.Track.ID != "" {
			uris = append(uris, string(item.Track.Track.URI))
		}
	}
	return uris, nil
}

// RemoveTracks removes one batch of track URIs. The call carries snapshot
// and returns the new snapshot the next mutation must use.
func (c *Client) RemoveTracks(ctx context.Context, playlistID string, uris []string, snapshot string) (string, error) {
	id := extractPlaylistID(playlistID)
	if id == "" {
		return "", errors.Newf("invalid playlist id %q", playlistID)
	}

	tracks := make([]spotify.TrackToRemove, len(uris))
	for i, uri := range uris {
		tracks[i] = spotify.NewTrackToRemove(extractTrackID(uri), nil)
	}

	next, err := c.client.RemoveTracksFromPlaylistOpt(ctx, spotify.ID(id), tracks, snapshot)
	if err != nil {
		return "", apiError("remove playlist tracks", err)
	}
	return next, nil
}

// AddTracks appends one batch of track URIs and returns the new snapshot.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	id := extractPlaylistID(playlistID)
	if id == "" {
		return "", errors.Newf("invalid playlist id %q", playlistID)
	}

	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		ids[i] = spotify.ID(extractTrackID(uri))
	}

	snapshot, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(id), ids...)
	if err != nil {
		return "", apiError("add playlist tracks", err)
	}
	return snapshot, nil
}

// apiError converts a Spotify error payload into *catalog.APIError,
// preserving the upstream status and message.
func apiError(op string, err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		return &catalog.APIError{Op: op, Status: se.Status, Message: se.Message}
	}
	return errors.Wrapf(err, "failed to %s", op)
}

// convertTrack converts a Spotify FullTrack to catalog.ExternalTrack.
func convertTrack(t *spotify.FullTrack) *catalog.ExternalTrack {
	artists := make([]catalog.ExternalArtist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = catalog.ExternalArtist{
			Name:       a.Name,
			SpotifyURI: string(a.URI),
		}
	}

	coverArt := make([]catalog.Image, len(t.Album.Images))
	for i, img := range t.Album.Images {
		coverArt[i] = catalog.Image{
			URL:    img.URL,
			Width:  int(img.Width),
			Height: int(img.Height),
		}
	}

	return &catalog.ExternalTrack{
		SpotifyURI:       string(t.URI),
		Title:            t.Name,
		Artists:          artists,
		DurationMS:       int(t.Duration),
		Explicit:         t.Explicit,
		CoverArt:         coverArt,
		ReleaseDate:      t.Album.ReleaseDate,
		ReleasePrecision: convertPrecision(t.Album.ReleaseDatePrecision),
	}
}

func convertPrecision(p string) catalog.ReleasePrecision {
	switch p {
	case "year":
		return catalog.PrecisionYear
	case "month":
		return catalog.PrecisionMonth
	default:
		return catalog.PrecisionDay
	}
}

// extractTrackID extracts the track ID from a Spotify URI or URL. A plain
// ID passes through unchanged.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			return strings.TrimRight(id, "/")
		}
	}
	return input
}

// extractPlaylistID extracts the playlist ID from a Spotify URI or URL.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:playlist:") {
		return strings.TrimPrefix(input, "spotify:playlist:")
	}
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			return strings.TrimRight(id, "/")
		}
	}
	return input
}
