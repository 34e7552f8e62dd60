package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Game        GameConfig        `toml:"game"`
	Pool        PoolConfig        `toml:"pool"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// GameConfig contains round and scoring settings.
type GameConfig struct {
	MinPoolSize    int      `toml:"min_pool_size"`
	SnippetLadder  []string `toml:"snippet_ladder"`
	MinDuration    string   `toml:"min_track_duration"`
	RotateTurns    bool     `toml:"rotate_turns"`
	RevealPlayback bool     `toml:"reveal_playback"`
	YearBonus      int      `toml:"year_bonus"`
	YearCloseBonus int      `toml:"year_close_bonus"`
	YearTolerance  int      `toml:"year_tolerance"`
	AlbumBonus     int      `toml:"album_bonus"`
}

// Ladder parses the configured snippet escalation ladder into durations.
//
// The ladder must be non-empty and strictly increasing so that each step
// reveals more of the track than the last.
func (g GameConfig) Ladder() ([]time.Duration, error) {
	if len(g.SnippetLadder) == 0 {
		return nil, fmt.Errorf("%w: snippet_ladder is empty", ErrInvalidConfig)
	}

	ladder := make([]time.Duration, 0, len(g.SnippetLadder))
	for i, raw := range g.SnippetLadder {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: snippet_ladder[%d] %q: %v", ErrInvalidConfig, i, raw, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: snippet_ladder[%d] must be positive", ErrInvalidConfig, i)
		}
		if i > 0 && d <= ladder[i-1] {
			return nil, fmt.Errorf("%w: snippet_ladder must be strictly increasing", ErrInvalidConfig)
		}
		ladder = append(ladder, d)
	}
	return ladder, nil
}

// MinTrackDuration parses the minimum track duration filter.
func (g GameConfig) MinTrackDuration() (time.Duration, error) {
	if g.MinDuration == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(g.MinDuration)
	if err != nil {
		return 0, fmt.Errorf("%w: min_track_duration %q: %v", ErrInvalidConfig, g.MinDuration, err)
	}
	return d, nil
}

// PoolConfig contains song pool sourcing and filtering settings.
type PoolConfig struct {
	MaxPerArtist   int  `toml:"max_per_artist"`
	MinPopularity  int  `toml:"min_popularity"`
	YearFrom       int  `toml:"year_from"`
	YearTo         int  `toml:"year_to"`
	IncludeRelated bool `toml:"include_related"`
	UseCache       bool `toml:"use_cache"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and persisted OAuth tokens.
type SpotifyConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	RedirectURI  string  `toml:"redirect_uri"`
	RateLimit    float64 `toml:"rate_limit"`
	AccessToken  string  `toml:"access_token"`
	RefreshToken string  `toml:"refresh_token"`
	TokenExpiry  string  `toml:"token_expiry"`
}

// Map flattens the Spotify credentials into the map shape consumed by the
// catalog client constructor.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"token_expiry":  s.TokenExpiry,
	}
}

// Update copies the fields of an [oauth2.Token] into the config so they can
// be persisted with [SaveConfig].
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		s.TokenExpiry = token.Expiry.Format(time.RFC3339)
	}
	return nil
}

// Token reconstructs an [oauth2.Token] from the persisted fields.
// Returns nil when no token has been stored.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}

	token := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
	}
	if s.TokenExpiry != "" {
		if expiry, err := time.Parse(time.RFC3339, s.TokenExpiry); err == nil {
			token.Expiry = expiry
		}
	}
	return token
}

// DatabaseConfig contains track cache database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the config as TOML to the specified path, creating parent
// directories as needed.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// DefaultConfigPath returns the per-user config location
// (e.g. ~/.config/blindspot/config.toml).
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(base, "blindspot", "config.toml"), nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
