package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the example config to the target path and explains what
// to fill in before the first game.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := ""
	if cmd != nil {
		path = cmd.String("config")
	}
	if path == "" {
		var err error
		if path, err = shared.DefaultConfigPath(); err != nil {
			r.logger.Warnf("failed to resolve user config dir %v", err)
			path = defaultConfigName
		}
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.configPath = path

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Create an app at https://developer.spotify.com/dashboard with redirect URI http://localhost:8080/callback\n")
	r.writePlain("2. Fill in client_id and client_secret under [credentials.spotify]\n")
	r.writePlain("3. Run 'blindspot auth login' to authorize\n")
	r.writePlain("4. Start a game with 'blindspot play'\n")
	return nil
}

// ConfigShow prints the effective configuration with secrets redacted.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	config := r.ensureConfig(cmd)
	redacted := redactConfig(config)

	if cmd.Bool("json") {
		return r.writeJSON(redacted, true)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(redacted); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if _, err := os.Stat(r.configPath); err == nil {
		r.writePlain("# %s\n", r.configPath)
	} else {
		r.writePlain("# defaults (no config file at %s)\n", r.configPath)
	}
	return r.writePlain("%s", buf.String())
}

// redactConfig masks credential material on a copy, leaving the original
// intact for later saves.
func redactConfig(config *shared.Config) shared.Config {
	redacted := *config
	creds := &redacted.Credentials.Spotify
	if creds.ClientSecret != "" {
		creds.ClientSecret = "[redacted]"
	}
	if creds.AccessToken != "" {
		creds.AccessToken = "[redacted]"
	}
	if creds.RefreshToken != "" {
		creds.RefreshToken = "[redacted]"
	}
	return redacted
}
