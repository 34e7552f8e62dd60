// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// searchPageSize is the page size used for paginated search and
	// playlist track requests (Spotify caps most endpoints at 50).
	searchPageSize = 50

	defaultRateLimit = 5.0
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyDevice represents a playback device registered with Spotify Connect.
type SpotifyDevice struct {
	ID            string `json:"id"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent int    `json:"volume_percent"`
}

// page is the generic paginated envelope Spotify wraps list responses in.
type page[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type searchResponse struct {
	Artists   *page[SpotifyArtist]         `json:"artists"`
	Tracks    *page[SpotifyTrack]          `json:"tracks"`
	Playlists *page[SpotifySimplePlaylist] `json:"playlists"`
}

// SpotifyService implements the [Catalog] interface for Spotify API interactions.
// Uses [oauth2] for authentication and rate-limits every outgoing request.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	credentials    map[string]string
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	rps := defaultRateLimit
	if raw, ok := credentials["rate_limit"]; ok && raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			rps = parsed
		}
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"user-library-read",
			"user-read-playback-state",
			"user-modify-playback-state",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify.
//
// Expects either an "auth_code" (from the authorization redirect) or a stored
// "access_token"/"refresh_token" pair in credentials. Stored tokens are
// wrapped in a refreshing source so expired access tokens renew transparently.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if code := credentials["auth_code"]; code != "" {
		token, err := s.config.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		s.setToken(ctx, token)
		return nil
	}

	token := &oauth2.Token{
		AccessToken:  credentials["access_token"],
		RefreshToken: credentials["refresh_token"],
		TokenType:    "Bearer",
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrNotAuthenticated)
	}
	if raw := credentials["token_expiry"]; raw != "" {
		if expiry, err := time.Parse(time.RFC3339, raw); err == nil {
			token.Expiry = expiry
		}
	}

	s.setToken(ctx, token)
	return nil
}

// setToken installs token and rebuilds the HTTP client around a refreshing
// token source.
func (s *SpotifyService) setToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	src := &refreshableTokenSource{
		source:    s.config.TokenSource(ctx, token),
		lastToken: token.AccessToken,
		callback: func(refreshed *oauth2.Token) {
			s.token = refreshed
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(refreshed)
			}
		},
	}
	s.httpClient = oauth2.NewClient(ctx, src)
}

// SetTokenRefreshCallback registers fn to run whenever the OAuth2 transport
// refreshes the access token, so callers can persist the new token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and invokes callback
// whenever the source produces a different access token than the last call.
type refreshableTokenSource struct {
	source    oauth2.TokenSource
	callback  func(*oauth2.Token)
	lastToken string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != r.lastToken {
		r.lastToken = token.AccessToken
		if r.callback != nil {
			r.callback(token)
		}
	}

	return token, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config so the loopback callback server
// can exchange the authorization code.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated, rate-limited HTTP request to the
// Spotify API and maps error responses onto the shared error taxonomy.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	return s.do(ctx, method, endpoint, body, result, false)
}

func (s *SpotifyService) do(ctx context.Context, method, endpoint string, body any, result any, retried bool) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter interrupted: %w", err)
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, spotifyBaseURL+endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// The oauth2 transport overwrites this with the freshest token; setting
	// it here keeps requests authenticated when tests swap in a bare client.
	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the access token (status 401)", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(endpoint, "/me/player"):
		return fmt.Errorf("%w: no device is currently playing", shared.ErrNoActiveDevice)
	case resp.StatusCode == http.StatusTooManyRequests:
		if retried {
			return fmt.Errorf("%w: rate limited twice on %s", shared.ErrCatalogUnavailable, endpoint)
		}
		if err := waitRetryAfter(ctx, resp.Header.Get("Retry-After")); err != nil {
			return err
		}
		return s.do(ctx, method, endpoint, body, result, true)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrCatalogUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// waitRetryAfter blocks for the duration Spotify requested in a 429 response,
// defaulting to one second when the header is absent or malformed.
func waitRetryAfter(ctx context.Context, header string) error {
	delay := time.Second
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
			delay = time.Duration(secs) * time.Second
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "GET", "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchArtist finds the best matching artist for a name.
func (s *SpotifyService) SearchArtist(ctx context.Context, name string) (*models.Artist, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=artist&limit=5", url.QueryEscape(name))

	var response searchResponse
	if err := s.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	if response.Artists == nil || len(response.Artists.Items) == 0 {
		return nil, fmt.Errorf("%w: no artist matches %q", shared.ErrEmptyResult, name)
	}

	artist := artistFromSpotify(response.Artists.Items[0])
	return &artist, nil
}

// ArtistTracks retrieves an artist's most played tracks.
func (s *SpotifyService) ArtistTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=from_token", url.PathEscape(artistID))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks))
	for _, st := range response.Tracks {
		tracks = append(tracks, trackFromSpotify(st))
	}
	return tracks, nil
}

// RelatedArtists retrieves artists similar to the given artist.
func (s *SpotifyService) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	endpoint := fmt.Sprintf("/artists/%s/related-artists", url.PathEscape(artistID))

	var response struct {
		Artists []SpotifyArtist `json:"artists"`
	}
	if err := s.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(response.Artists))
	for _, sa := range response.Artists {
		artists = append(artists, artistFromSpotify(sa))
	}
	return artists, nil
}

// GenreTracks retrieves up to limit tracks tagged with a genre, following
// search pagination as needed.
func (s *SpotifyService) GenreTracks(ctx context.Context, genre string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = searchPageSize
	}

	query := url.QueryEscape(fmt.Sprintf("genre:%q", genre))
	var tracks []models.Track
	offset := 0

	for len(tracks) < limit {
		pageLimit := min(searchPageSize, limit-len(tracks))
		endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d&offset=%d", query, pageLimit, offset)

		var response searchResponse
		if err := s.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
			return nil, err
		}
		if response.Tracks == nil {
			break
		}

		for _, st := range response.Tracks.Items {
			tracks = append(tracks, trackFromSpotify(st))
		}

		if response.Tracks.Next == nil || len(response.Tracks.Items) == 0 {
			break
		}
		offset += len(response.Tracks.Items)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks tagged with genre %q", shared.ErrEmptyResult, genre)
	}
	return tracks, nil
}

// SearchPlaylist finds a playlist by name. The current user's own playlists
// are checked first (case-insensitive) before falling back to public search.
func (s *SpotifyService) SearchPlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	owned, err := s.GetPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range owned {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=playlist&limit=5", url.QueryEscape(name))
	var response searchResponse
	if err := s.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	if response.Playlists == nil || len(response.Playlists.Items) == 0 {
		return nil, fmt.Errorf("%w: no playlist matches %q", shared.ErrEmptyResult, name)
	}

	playlist := playlistFromSpotify(response.Playlists.Items[0])
	return &playlist, nil
}

// PlaylistTracks retrieves all tracks in a playlist, following pagination.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), searchPageSize, offset)

		var response page[SpotifyPlaylistTrack]
		if err := s.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			// Local files and removed tracks come back without an ID.
			if item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, trackFromSpotify(item.Track))
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: playlist %s has no playable tracks", shared.ErrEmptyResult, playlistID)
	}
	return tracks, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", searchPageSize, offset)

		var response page[SpotifySimplePlaylist]
		if err := s.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			all = append(all, playlistFromSpotify(sp))
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	return all, nil
}

// Devices lists the playback devices registered with Spotify Connect.
func (s *SpotifyService) Devices(ctx context.Context) ([]models.Device, error) {
	var response struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if err := s.doRequest(ctx, "GET", "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(response.Devices))
	for _, sd := range response.Devices {
		devices = append(devices, models.Device{
			ID:         sd.ID,
			Name:       sd.Name,
			Type:       sd.Type,
			Active:     sd.IsActive,
			Restricted: sd.IsRestricted,
			VolumePct:  sd.VolumePercent,
		})
	}
	return devices, nil
}

// ActiveDevice returns the device currently selected for playback.
func (s *SpotifyService) ActiveDevice(ctx context.Context) (*models.Device, error) {
	devices, err := s.Devices(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		if d.Active {
			return &d, nil
		}
	}

	return nil, fmt.Errorf("%w: open Spotify on a device and start or resume playback once", shared.ErrNoActiveDevice)
}

type playRequest struct {
	URIs       []string `json:"uris"`
	PositionMS int      `json:"position_ms"`
}

// Play starts the track from offset 0 on the active device, blocks for d,
// then pauses playback.
func (s *SpotifyService) Play(ctx context.Context, trackID string, d time.Duration) error {
	if err := s.startPlayback(ctx, trackID); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// Best effort: stop the music before giving up.
		pauseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Pause(pauseCtx)
		return ctx.Err()
	case <-timer.C:
	}

	return s.Pause(ctx)
}

// PlayFull starts the track from offset 0 and leaves it playing.
func (s *SpotifyService) PlayFull(ctx context.Context, trackID string) error {
	return s.startPlayback(ctx, trackID)
}

func (s *SpotifyService) startPlayback(ctx context.Context, trackID string) error {
	body := playRequest{
		URIs:       []string{"spotify:track:" + trackID},
		PositionMS: 0,
	}
	return s.doRequest(ctx, "PUT", "/me/player/play", body, nil)
}

// Pause pauses playback on the active device.
func (s *SpotifyService) Pause(ctx context.Context) error {
	return s.doRequest(ctx, "PUT", "/me/player/pause", nil, nil)
}

// trackFromSpotify converts a Spotify track payload into the catalog DTO.
func trackFromSpotify(st SpotifyTrack) models.Track {
	track := models.Track{
		ID:         st.ID,
		Title:      st.Name,
		Album:      st.Album.Name,
		Year:       releaseYear(st.Album.ReleaseDate),
		DurationMS: st.DurationMS,
		Popularity: st.Popularity,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
		track.ArtistID = st.Artists[0].ID
	}
	return track
}

func artistFromSpotify(sa SpotifyArtist) models.Artist {
	return models.Artist{
		ID:     sa.ID,
		Name:   sa.Name,
		Genres: sa.Genres,
	}
}

func playlistFromSpotify(sp SpotifySimplePlaylist) models.Playlist {
	return models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Owner:       sp.Owner.DisplayName,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}
}

// releaseYear extracts the year from a Spotify release date, which may be
// "2006", "2006-11" or "2006-11-17" depending on release_date_precision.
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0
	}
	return year
}
