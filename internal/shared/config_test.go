package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Game.MinPoolSize != 10 {
			t.Errorf("expected min pool size 10, got %d", config.Game.MinPoolSize)
		}

		if len(config.Game.SnippetLadder) != 4 {
			t.Errorf("expected 4 ladder steps, got %d", len(config.Game.SnippetLadder))
		}

		if !config.Game.RotateTurns {
			t.Error("expected turn rotation to default on")
		}

		if config.Database.Path != "blindspot.db" {
			t.Errorf("expected database path blindspot.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if !config.Pool.UseCache {
			t.Error("expected track caching to default on")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[game]
min_pool_size = 5
snippet_ladder = ["500ms", "1s", "3s"]
min_track_duration = "45s"
rotate_turns = false

[pool]
max_per_artist = 3
min_popularity = 40

[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 9090

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:9090/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Game.MinPoolSize != 5 {
			t.Errorf("expected min pool size 5, got %d", config.Game.MinPoolSize)
		}

		if config.Game.RotateTurns {
			t.Error("expected turn rotation off")
		}

		if config.Pool.MinPopularity != 40 {
			t.Errorf("expected min popularity 40, got %d", config.Pool.MinPopularity)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("SaveConfig round trip", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "saved_id"
		config.Credentials.Spotify.AccessToken = "saved_token"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		if loaded.Credentials.Spotify.ClientID != "saved_id" {
			t.Errorf("expected client_id saved_id, got %s", loaded.Credentials.Spotify.ClientID)
		}

		if loaded.Credentials.Spotify.AccessToken != "saved_token" {
			t.Errorf("expected access token saved_token, got %s", loaded.Credentials.Spotify.AccessToken)
		}
	})

	t.Run("SaveConfig nil config", func(t *testing.T) {
		if err := SaveConfig("/tmp/unused.toml", nil); err == nil {
			t.Error("expected error for nil config")
		}
	})
}

func TestGameConfigLadder(t *testing.T) {
	tc := []struct {
		name    string
		ladder  []string
		want    []time.Duration
		wantErr bool
	}{
		{
			name:   "default ladder",
			ladder: []string{"1s", "2s", "4s", "8s"},
			want:   []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
		{
			name:   "sub-second steps",
			ladder: []string{"500ms", "1s"},
			want:   []time.Duration{500 * time.Millisecond, time.Second},
		},
		{
			name:    "empty ladder",
			ladder:  []string{},
			wantErr: true,
		},
		{
			name:    "unparseable step",
			ladder:  []string{"1s", "two seconds"},
			wantErr: true,
		},
		{
			name:    "non-increasing steps",
			ladder:  []string{"2s", "2s", "4s"},
			wantErr: true,
		},
		{
			name:    "negative step",
			ladder:  []string{"-1s", "2s"},
			wantErr: true,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			g := GameConfig{SnippetLadder: tt.ladder}
			got, err := g.Ladder()

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d steps, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("step %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestSpotifyConfigTokens(t *testing.T) {
	t.Run("Update copies token fields", func(t *testing.T) {
		cfg := SpotifyConfig{RefreshToken: "old_refresh"}
		expiry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		err := cfg.Update(&oauth2.Token{
			AccessToken:  "new_access",
			RefreshToken: "new_refresh",
			Expiry:       expiry,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.AccessToken != "new_access" {
			t.Errorf("expected access token new_access, got %s", cfg.AccessToken)
		}
		if cfg.RefreshToken != "new_refresh" {
			t.Errorf("expected refresh token new_refresh, got %s", cfg.RefreshToken)
		}
		if cfg.TokenExpiry != expiry.Format(time.RFC3339) {
			t.Errorf("expected expiry %s, got %s", expiry.Format(time.RFC3339), cfg.TokenExpiry)
		}
	})

	t.Run("Update keeps refresh token when response omits it", func(t *testing.T) {
		cfg := SpotifyConfig{RefreshToken: "old_refresh"}

		if err := cfg.Update(&oauth2.Token{AccessToken: "new_access"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.RefreshToken != "old_refresh" {
			t.Errorf("expected refresh token to be preserved, got %s", cfg.RefreshToken)
		}
	})

	t.Run("Update rejects nil token", func(t *testing.T) {
		cfg := SpotifyConfig{}
		if err := cfg.Update(nil); err == nil {
			t.Error("expected error for nil token")
		}
	})

	t.Run("Token reconstructs stored token", func(t *testing.T) {
		cfg := SpotifyConfig{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenExpiry:  "2025-06-01T12:00:00Z",
		}

		token := cfg.Token()
		if token == nil {
			t.Fatal("expected token, got nil")
		}
		if token.AccessToken != "access" {
			t.Errorf("expected access token access, got %s", token.AccessToken)
		}
		if token.Expiry.IsZero() {
			t.Error("expected expiry to be parsed")
		}
	})

	t.Run("Token returns nil when nothing stored", func(t *testing.T) {
		cfg := SpotifyConfig{}
		if token := cfg.Token(); token != nil {
			t.Errorf("expected nil token, got %+v", token)
		}
	})

	t.Run("Map includes credentials and tokens", func(t *testing.T) {
		cfg := SpotifyConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURI:  "http://localhost:8080/callback",
			AccessToken:  "access",
		}

		m := cfg.Map()
		if m["client_id"] != "id" {
			t.Errorf("expected client_id id, got %s", m["client_id"])
		}
		if m["access_token"] != "access" {
			t.Errorf("expected access_token access, got %s", m["access_token"])
		}
	})
}
