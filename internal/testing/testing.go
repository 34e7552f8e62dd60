// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/blindspot/internal/models"
)

// PlayCall records one snippet playback request issued to [MockCatalog].
type PlayCall struct {
	TrackID string
	Snippet time.Duration
}

// MockCatalog is a configurable test double for [services.Catalog]. Each
// method delegates to the matching Func field when set and otherwise returns
// zero values. Playback commands are recorded regardless.
type MockCatalog struct {
	AuthenticateFunc   func(ctx context.Context, credentials map[string]string) error
	SearchArtistFunc   func(ctx context.Context, name string) (*models.Artist, error)
	ArtistTracksFunc   func(ctx context.Context, artistID string) ([]models.Track, error)
	RelatedArtistsFunc func(ctx context.Context, artistID string) ([]models.Artist, error)
	GenreTracksFunc    func(ctx context.Context, genre string, limit int) ([]models.Track, error)
	SearchPlaylistFunc func(ctx context.Context, name string) (*models.Playlist, error)
	PlaylistTracksFunc func(ctx context.Context, playlistID string) ([]models.Track, error)
	GetPlaylistsFunc   func(ctx context.Context) ([]models.Playlist, error)
	DevicesFunc        func(ctx context.Context) ([]models.Device, error)
	ActiveDeviceFunc   func(ctx context.Context) (*models.Device, error)
	PlayFunc           func(ctx context.Context, trackID string, d time.Duration) error
	PlayFullFunc       func(ctx context.Context, trackID string) error
	PauseFunc          func(ctx context.Context) error

	PlayCalls     []PlayCall
	PlayFullCalls []string
	PauseCalls    int
}

func (m *MockCatalog) Authenticate(ctx context.Context, credentials map[string]string) error {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, credentials)
	}
	return nil
}

func (m *MockCatalog) SearchArtist(ctx context.Context, name string) (*models.Artist, error) {
	if m.SearchArtistFunc != nil {
		return m.SearchArtistFunc(ctx, name)
	}
	return &models.Artist{ID: name, Name: name}, nil
}

func (m *MockCatalog) ArtistTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	if m.ArtistTracksFunc != nil {
		return m.ArtistTracksFunc(ctx, artistID)
	}
	return []models.Track{}, nil
}

func (m *MockCatalog) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	if m.RelatedArtistsFunc != nil {
		return m.RelatedArtistsFunc(ctx, artistID)
	}
	return []models.Artist{}, nil
}

func (m *MockCatalog) GenreTracks(ctx context.Context, genre string, limit int) ([]models.Track, error) {
	if m.GenreTracksFunc != nil {
		return m.GenreTracksFunc(ctx, genre, limit)
	}
	return []models.Track{}, nil
}

func (m *MockCatalog) SearchPlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	if m.SearchPlaylistFunc != nil {
		return m.SearchPlaylistFunc(ctx, name)
	}
	return &models.Playlist{ID: name, Name: name}, nil
}

func (m *MockCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if m.PlaylistTracksFunc != nil {
		return m.PlaylistTracksFunc(ctx, playlistID)
	}
	return []models.Track{}, nil
}

func (m *MockCatalog) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.GetPlaylistsFunc != nil {
		return m.GetPlaylistsFunc(ctx)
	}
	return []models.Playlist{}, nil
}

func (m *MockCatalog) Devices(ctx context.Context) ([]models.Device, error) {
	if m.DevicesFunc != nil {
		return m.DevicesFunc(ctx)
	}
	return []models.Device{}, nil
}

func (m *MockCatalog) ActiveDevice(ctx context.Context) (*models.Device, error) {
	if m.ActiveDeviceFunc != nil {
		return m.ActiveDeviceFunc(ctx)
	}
	return &models.Device{ID: "mock_device", Name: "Mock Device", Active: true}, nil
}

func (m *MockCatalog) Play(ctx context.Context, trackID string, d time.Duration) error {
	m.PlayCalls = append(m.PlayCalls, PlayCall{TrackID: trackID, Snippet: d})
	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, trackID, d)
	}
	return nil
}

func (m *MockCatalog) PlayFull(ctx context.Context, trackID string) error {
	m.PlayFullCalls = append(m.PlayFullCalls, trackID)
	if m.PlayFullFunc != nil {
		return m.PlayFullFunc(ctx, trackID)
	}
	return nil
}

func (m *MockCatalog) Pause(ctx context.Context) error {
	m.PauseCalls++
	if m.PauseFunc != nil {
		return m.PauseFunc(ctx)
	}
	return nil
}

func (m *MockCatalog) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
