package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blindspot/internal/repositories"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultConfigName = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	configPath   string
	configLoaded bool
	catalog      services.Catalog
	api          *services.APIService
	repo         *repositories.TrackRepository
	db           *sql.DB
	httpClient   *http.Client
	logger       *log.Logger
	output       io.Writer
	input        *bufio.Scanner
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewScanner(opts.Input),
	}

	if opts.Config != nil {
		r.config = opts.Config
		r.configLoaded = true
	} else {
		r.config = shared.DefaultConfig()
	}

	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		authCommand, playCommand, sourcesCommand, devicesCommand, cacheCommand, configCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases the track cache database handle if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.repo = nil
	return err
}

// ensureConfig loads the configuration file once, resolving its location
// from the --config flag, ./config.toml, or the per-user config directory,
// and falling back to the embedded defaults when nothing exists yet.
func (r *Runner) ensureConfig(cmd *cli.Command) *shared.Config {
	if cmd != nil && cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if r.configLoaded {
		if r.configPath == "" {
			r.configPath = r.resolveConfigPath(cmd)
		}
		return r.config
	}
	r.configLoaded = true
	r.configPath = r.resolveConfigPath(cmd)

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			r.logger.Warn("failed to load config, using defaults", "path", r.configPath, "error", err)
			return r.config
		}
		r.config = config
	}

	return r.config
}

func (r *Runner) resolveConfigPath(cmd *cli.Command) string {
	if r.configPath != "" {
		return r.configPath
	}
	if cmd != nil {
		if path := cmd.String("config"); path != "" {
			return path
		}
	}
	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}
	if path, err := shared.DefaultConfigPath(); err == nil {
		return path
	}
	return defaultConfigName
}

// ensureCatalog builds the Spotify client from the configured credentials,
// installing the stored tokens and persisting refreshed ones back into the
// config file.
func (r *Runner) ensureCatalog(ctx context.Context, cmd *cli.Command) error {
	if r.catalog != nil {
		return nil
	}

	config := r.ensureConfig(cmd)
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	spotify, err := services.NewSpotifyService(creds.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}
	spotify.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed tokens", "error", err)
		}
	})

	if creds.Token() == nil {
		return fmt.Errorf("%w: no stored tokens, run 'blindspot auth login' first", shared.ErrNotAuthenticated)
	}
	if err := spotify.Authenticate(ctx, creds.Map()); err != nil {
		return fmt.Errorf("failed to authenticate with stored tokens: %w", err)
	}

	r.catalog = spotify
	return nil
}

// ensureRepo opens the track cache database and runs pending migrations.
func (r *Runner) ensureRepo(cmd *cli.Command) (*repositories.TrackRepository, error) {
	if r.repo != nil {
		return r.repo, nil
	}

	config := r.ensureConfig(cmd)
	db, err := shared.NewCacheDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open track cache: %w", err)
	}

	r.db = db
	r.repo = repositories.NewTrackRepository(db)
	return r.repo, nil
}

// ensureAPI returns the raw API client, attaching the stored access token
// when one exists.
func (r *Runner) ensureAPI(cmd *cli.Command) *services.APIService {
	if r.api == nil {
		r.api = services.NewAPIService("", r.httpClient)
	}
	if token := r.ensureConfig(cmd).Credentials.Spotify.AccessToken; token != "" {
		r.api.SetToken(token)
	} else {
		r.logger.Debug("no stored access token, requests will be anonymous")
	}
	return r.api
}

// saveTokens persists OAuth tokens into the loaded config, writing the file
// back when a path is known.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("config is nil")
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// readLine reads one trimmed line from the runner's input.
func (r *Runner) readLine() (string, error) {
	if !r.input.Scan() {
		if err := r.input.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(r.input.Text()), nil
}

func (r *Runner) promptLine(format string, args ...any) (string, error) {
	r.writePlain(format, args...)
	return r.readLine()
}

// confirm asks a yes/no question. Empty input counts as yes.
func (r *Runner) confirm(format string, args ...any) bool {
	answer, err := r.promptLine(format, args...)
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return true
	}
	return false
}
