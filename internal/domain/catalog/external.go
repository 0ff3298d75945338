package catalog

// ExternalArtist is an artist as reported by the external search API,
// before it is resolved to a catalog Artist.
type ExternalArtist struct {
	Name       string
	SpotifyURI string
}

// ExternalTrack is track metadata as returned by the external search API.
type ExternalTrack struct {
	SpotifyURI       string
	Title            string
	Artists          []ExternalArtist
	DurationMS       int
	Explicit         bool
	CoverArt         []Image
	ReleaseDate      string
	ReleasePrecision ReleasePrecision
}

// ArtistNames returns the artist names in release order.
func (t *ExternalTrack) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}
