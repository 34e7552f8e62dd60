// package services defines interface Catalog for interacting with music catalog HTTP APIs
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/shared"
	"golang.org/x/oauth2"
)

// Catalog defines the interface for music catalog providers that can search
// for tracks and drive snippet playback on a connected device.
type Catalog interface {
	// Authenticate performs OAuth or token-based authentication with the catalog.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// SearchArtist finds the best matching artist for a name.
	// Returns shared.ErrEmptyResult when nothing matches.
	SearchArtist(ctx context.Context, name string) (*models.Artist, error)

	// ArtistTracks retrieves an artist's most played tracks.
	ArtistTracks(ctx context.Context, artistID string) ([]models.Track, error)

	// RelatedArtists retrieves artists similar to the given artist.
	RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error)

	// GenreTracks retrieves up to limit tracks tagged with a genre.
	// Returns shared.ErrEmptyResult when nothing matches.
	GenreTracks(ctx context.Context, genre string, limit int) ([]models.Track, error)

	// SearchPlaylist finds a playlist by name, preferring the current user's
	// own playlists over public search results.
	SearchPlaylist(ctx context.Context, name string) (*models.Playlist, error)

	// PlaylistTracks retrieves all tracks in a playlist, following pagination.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// Devices lists the playback devices registered with the catalog.
	Devices(ctx context.Context) ([]models.Device, error)

	// ActiveDevice returns the device currently selected for playback.
	// Returns shared.ErrNoActiveDevice when none is active.
	ActiveDevice(ctx context.Context) (*models.Device, error)

	// Play starts the track from offset 0 on the active device, blocks for d,
	// then pauses playback. Returns shared.ErrNoActiveDevice when no playback
	// target is selected.
	Play(ctx context.Context, trackID string, d time.Duration) error

	// PlayFull starts the track from offset 0 and leaves it playing.
	PlayFull(ctx context.Context, trackID string) error

	// Pause pauses playback on the active device.
	Pause(ctx context.Context) error

	// Name returns the name of the catalog provider (e.g., "Spotify")
	Name() string
}

// OAuthCatalog extends Catalog for providers that use the OAuth2
// authorization-code flow. The CLI uses it to run the browser consent loop
// and to hand the loopback callback server the config it needs for the
// code exchange.
type OAuthCatalog interface {
	Catalog

	// GetAuthURL returns the consent URL embedding the CSRF state.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying OAuth2 client configuration.
	GetOAuthConfig() *oauth2.Config
}

// SourceKind identifies how a song pool is seeded.
type SourceKind string

const (
	SourceArtist   SourceKind = "artist"
	SourceGenre    SourceKind = "genre"
	SourcePlaylist SourceKind = "playlist"
)

// SourceSpec describes where pool candidates come from: an artist roster,
// a genre tag, or an existing playlist.
type SourceSpec struct {
	Kind  SourceKind
	Query string
}

// ParseSourceSpec parses a "kind:query" string such as "artist:Daft Punk",
// "genre:synthpop" or "playlist:Road Trip".
func ParseSourceSpec(raw string) (SourceSpec, error) {
	kind, query, found := strings.Cut(raw, ":")
	query = strings.TrimSpace(query)
	if !found || query == "" {
		return SourceSpec{}, fmt.Errorf("%w: source must be kind:query, e.g. artist:Daft Punk", shared.ErrInvalidArgument)
	}

	switch k := SourceKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case SourceArtist, SourceGenre, SourcePlaylist:
		return SourceSpec{Kind: k, Query: query}, nil
	default:
		return SourceSpec{}, fmt.Errorf("%w: unknown source kind %q (want artist, genre or playlist)", shared.ErrInvalidArgument, kind)
	}
}

// String renders the source back to its "kind:query" form.
func (s SourceSpec) String() string {
	return string(s.Kind) + ":" + s.Query
}
