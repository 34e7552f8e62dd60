package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/blindspot/internal/formatter"
	"github.com/desertthunder/blindspot/internal/game"
	"github.com/desertthunder/blindspot/internal/repositories"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/desertthunder/blindspot/internal/ui"
	"github.com/urfave/cli/v3"
)

// Play builds a song pool from the chosen source and runs rounds until the
// pool empties or the table quits.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	config := r.ensureConfig(cmd)
	if err := r.ensureCatalog(ctx, cmd); err != nil {
		return err
	}

	spec, err := r.resolveSource(ctx, cmd)
	if err != nil {
		return err
	}

	players, err := r.resolvePlayers(cmd)
	if err != nil {
		return err
	}

	ladder, err := config.Game.Ladder()
	if err != nil {
		return err
	}

	opts, err := poolOpts(config)
	if err != nil {
		return err
	}
	if cmd.Bool("no-cache") {
		opts.UseCache = false
	}

	var cache game.TrackCacher
	if opts.UseCache {
		if repo, err := r.ensureRepo(cmd); err != nil {
			r.logger.Warnf("track cache unavailable, building without it %v", err)
			opts.UseCache = false
		} else {
			cache = repositories.NewCacheAdapter(repo, strings.ToLower(r.catalog.Name()))
		}
	}

	var pool *game.SongPool
	err = r.withReauth(ctx, func() error {
		var buildErr error
		pool, buildErr = r.buildPool(ctx, cache, spec, opts)
		return buildErr
	})
	if err != nil {
		return err
	}

	if err := r.ensureActiveDevice(ctx); err != nil {
		return err
	}

	session, err := game.NewSession(r.catalog, &prompter{in: r.input, out: r.output}, r.logger, pool, game.SessionConfig{
		Players: players,
		Ladder:  ladder,
		Rules: game.ScoreRules{
			YearBonus:      config.Game.YearBonus,
			YearCloseBonus: config.Game.YearCloseBonus,
			YearTolerance:  config.Game.YearTolerance,
			AlbumBonus:     config.Game.AlbumBonus,
		},
		Rotate: config.Game.RotateTurns,
		Reveal: config.Game.RevealPlayback,
	})
	if err != nil {
		return err
	}

	if err := r.runSession(ctx, session); err != nil {
		return err
	}

	return r.finalReport(cmd, session, len(ladder))
}

// resolveSource reads the pool source from --source, falling back to an
// interactive prompt.
func (r *Runner) resolveSource(ctx context.Context, cmd *cli.Command) (services.SourceSpec, error) {
	if raw := cmd.String("source"); raw != "" {
		return services.ParseSourceSpec(raw)
	}
	return r.promptSource(ctx, cmd.Bool("pick"))
}

var sourcePrompts = map[services.SourceKind]string{
	services.SourceArtist:   "Artist name: ",
	services.SourceGenre:    "Genre: ",
	services.SourcePlaylist: "Playlist name: ",
}

// promptSource walks the user through choosing a source kind and query. With
// pick, artist and playlist sources route through the full-screen picker
// instead of a typed name.
func (r *Runner) promptSource(ctx context.Context, pick bool) (services.SourceSpec, error) {
	answer, err := r.promptLine("Seed the pool from [a]rtist, [g]enre or [p]laylist? ")
	if err != nil {
		return services.SourceSpec{}, err
	}

	var kind services.SourceKind
	switch strings.ToLower(answer) {
	case "a", "artist":
		kind = services.SourceArtist
	case "g", "genre":
		kind = services.SourceGenre
	case "p", "playlist":
		kind = services.SourcePlaylist
	default:
		return services.SourceSpec{}, fmt.Errorf("%w: %q is not a source kind", shared.ErrInvalidInput, answer)
	}

	if pick && kind == services.SourcePlaylist {
		choice, selected, err := r.pickPlaylist(ctx)
		if err != nil {
			return services.SourceSpec{}, err
		}
		if !selected {
			return services.SourceSpec{}, fmt.Errorf("%w: no playlist selected", shared.ErrInvalidInput)
		}
		return services.SourceSpec{Kind: kind, Query: choice}, nil
	}

	query, err := r.promptLine("%s", sourcePrompts[kind])
	if err != nil {
		return services.SourceSpec{}, err
	}
	if query == "" {
		return services.SourceSpec{}, fmt.Errorf("%w: source query cannot be empty", shared.ErrInvalidInput)
	}

	if pick && kind == services.SourceArtist {
		choice, selected, err := r.pickArtist(ctx, query)
		if err != nil {
			return services.SourceSpec{}, err
		}
		if selected {
			query = choice
		}
	}

	return services.SourceSpec{Kind: kind, Query: query}, nil
}

// resolvePlayers reads player names from --players, falling back to a
// prompt.
func (r *Runner) resolvePlayers(cmd *cli.Command) ([]string, error) {
	raw := cmd.String("players")
	if raw == "" {
		var err error
		raw, err = r.promptLine("Players (comma-separated): ")
		if err != nil {
			return nil, err
		}
	}

	players := splitPlayers(raw)
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: at least one player required", shared.ErrInvalidInput)
	}
	return players, nil
}

// splitPlayers splits a comma-separated name list, trimming whitespace and
// dropping empties and duplicates.
func splitPlayers(raw string) []string {
	seen := make(map[string]bool)
	var players []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		players = append(players, name)
	}
	return players
}

// poolOpts maps the config's game and pool sections onto build options.
func poolOpts(config *shared.Config) (game.PoolOpts, error) {
	minDuration, err := config.Game.MinTrackDuration()
	if err != nil {
		return game.PoolOpts{}, err
	}
	return game.PoolOpts{
		MinPoolSize:    config.Game.MinPoolSize,
		MinDuration:    minDuration,
		MaxPerArtist:   config.Pool.MaxPerArtist,
		MinPopularity:  config.Pool.MinPopularity,
		YearFrom:       config.Pool.YearFrom,
		YearTo:         config.Pool.YearTo,
		IncludeRelated: config.Pool.IncludeRelated,
		UseCache:       config.Pool.UseCache,
	}, nil
}

// buildPool assembles the shuffled pool, streaming build progress to the
// terminal.
func (r *Runner) buildPool(ctx context.Context, cache game.TrackCacher, spec services.SourceSpec, opts game.PoolOpts) (*game.SongPool, error) {
	r.writePlain("Building song pool from %s...\n\n", spec)

	progressCh := make(chan game.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case game.ExpandArtists:
				r.writePlain("   %s\n", update.Message)
			case game.PoolReady:
				// The banner below covers this.
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	builder := game.NewBuilder(r.catalog, cache, r.logger)
	pool, err := builder.Build(ctx, progressCh, spec, opts)
	close(progressCh)
	<-done

	if err != nil {
		if errors.Is(err, shared.ErrInsufficientPool) {
			return nil, fmt.Errorf("%w: try a broader source or relax the filters in %s", err, r.configPath)
		}
		return nil, err
	}

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Pool ready: %d tracks from %s", pool.Len(), spec))
	return pool, nil
}

// ensureActiveDevice verifies a playback device is active, offering retries
// so the user can open Spotify somewhere first.
func (r *Runner) ensureActiveDevice(ctx context.Context) error {
	for {
		device, err := r.catalog.ActiveDevice(ctx)
		if err == nil {
			r.writePlain("Playing through %s (%s)\n", device.Name, device.Type)
			return nil
		}
		if !errors.Is(err, shared.ErrNoActiveDevice) {
			return err
		}

		r.writePlainln("%s", ui.Warn("⚠ No active Spotify device found."))
		r.writePlain("Start playback on any device (phone, desktop, web player), then retry.\n")
		if !r.confirm("Retry? [Y/n] ") {
			return err
		}
	}
}

// runSession plays rounds until the pool empties or the table stops.
func (r *Runner) runSession(ctx context.Context, session *game.Session) error {
	for {
		r.writePlainln("♪ Round %d", session.Rounds()+1)

		outcome, err := session.RunRound(ctx)
		switch {
		case errors.Is(err, shared.ErrEndOfGame):
			r.writePlain("The pool is empty.\n")
			return nil
		case errors.Is(err, shared.ErrRoundSuspended):
			outcome, err = r.resumeSuspended(ctx, session)
			if err != nil {
				return err
			}
			if outcome == nil {
				return nil
			}
		case err != nil:
			return err
		}

		r.printOutcome(outcome)
		r.printScoreboard(session)

		if session.Remaining() == 0 {
			r.writePlain("That was the last track.\n")
			return nil
		}
		if !r.confirm("Keep playing? [Y/n] ") {
			return nil
		}
	}
}

// resumeSuspended waits for the user to restore a playback device and
// finishes the parked round. A nil outcome with nil error means the user
// gave up on the round.
func (r *Runner) resumeSuspended(ctx context.Context, session *game.Session) (*game.Outcome, error) {
	for {
		r.writePlainln("%s", ui.Warn("⚠ Playback lost its device mid-round."))
		r.writePlain("Start playback on any device, then resume. The round continues where it stopped.\n")
		if !r.confirm("Resume the round? [Y/n] ") {
			return nil, nil
		}

		outcome, err := session.Resume(ctx)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, shared.ErrRoundSuspended) {
			return nil, err
		}
	}
}

// printOutcome announces the round result and reveals the track.
func (r *Runner) printOutcome(outcome *game.Outcome) {
	if outcome.Winner != "" {
		r.writePlain("\n%s\n", ui.Ok(fmt.Sprintf("✓ %s named it on step %d: +%d points", outcome.Winner, outcome.StepsUsed, outcome.Points)))
		if outcome.YearPoints > 0 {
			r.writePlain("  Year bonus: +%d\n", outcome.YearPoints)
		}
		if outcome.AlbumPoints > 0 {
			r.writePlain("  Album bonus: +%d\n", outcome.AlbumPoints)
		}
	} else {
		r.writePlain("\n%s\n", ui.Err("✗ Nobody named it."))
	}

	track := outcome.Track
	r.writePlain("It was %s by %s", track.Title, track.Artist)
	if track.Year > 0 {
		r.writePlain(" (%d)", track.Year)
	}
	r.writePlain("\n")
}

func (r *Runner) printScoreboard(session *game.Session) {
	table, err := formatter.ScoreboardTable(session.Scoreboard())
	if err != nil {
		r.logger.Warnf("failed to render scoreboard %v", err)
		return
	}
	r.writePlain("\n%s", table)
}

// finalReport prints the end-of-game summary, as JSON with --json.
func (r *Runner) finalReport(cmd *cli.Command, session *game.Session, steps int) error {
	standings := session.Scoreboard()

	if cmd.Bool("json") {
		report := gameReport{Rounds: session.Rounds()}
		for _, s := range standings {
			report.Standings = append(report.Standings, standingRow{
				Rank:   s.Rank,
				Player: s.Player,
				Score:  s.Score,
				Won:    s.Won,
			})
		}
		for _, p := range session.Players() {
			report.Players = append(report.Players, playerRow{
				Name:         p.Name,
				Score:        p.Score,
				RoundsWon:    p.Stats.RoundsWon,
				Guesses:      p.Stats.Guesses,
				Passes:       p.Stats.Passes,
				YearBonuses:  p.Stats.YearBonuses,
				AlbumBonuses: p.Stats.AlbumBonuses,
				BonusPoints:  p.Stats.BonusPoints,
			})
		}
		return r.writeJSON(report, true)
	}

	report, err := formatter.FinalReport(session.Rounds(), standings, session.Players(), steps)
	if err != nil {
		return err
	}
	return r.writePlain("\n%s", report)
}

// gameReport is the machine-readable end-of-game summary.
type gameReport struct {
	Rounds    int           `json:"rounds"`
	Standings []standingRow `json:"standings"`
	Players   []playerRow   `json:"players"`
}

type standingRow struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Score  int    `json:"score"`
	Won    int    `json:"won"`
}

type playerRow struct {
	Name         string `json:"name"`
	Score        int    `json:"score"`
	RoundsWon    int    `json:"rounds_won"`
	Guesses      int    `json:"guesses"`
	Passes       int    `json:"passes"`
	YearBonuses  int    `json:"year_bonuses"`
	AlbumBonuses int    `json:"album_bonuses"`
	BonusPoints  int    `json:"bonus_points"`
}

// prompter puts the round's questions to players over the runner's terminal
// streams. It shares the runner's scanner so buffered input is not lost
// between the game loop and the outer prompts.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) read() (string, error) {
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Guess asks player to name the track after the step's snippet played.
func (p *prompter) Guess(player string, step, steps int, snippet time.Duration) (string, error) {
	fmt.Fprintf(p.out, "[%d/%d %s] %s, name the track (r=replay, enter=pass): ", step, steps, snippet, player)
	return p.read()
}

// AskYear asks the winner for the release year. Empty input declines;
// non-numeric answers reprompt.
func (p *prompter) AskYear(player string) (int, bool, error) {
	for {
		fmt.Fprintf(p.out, "%s, bonus: release year? (enter skips) ", player)
		answer, err := p.read()
		if err != nil {
			return 0, false, err
		}
		if answer == "" {
			return 0, false, nil
		}
		year, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintf(p.out, "%s\n", ui.Warn("Enter a year like 1994 or leave empty."))
			continue
		}
		return year, true, nil
	}
}

// AskAlbum asks the winner to name the album. Empty input declines.
func (p *prompter) AskAlbum(player string) (string, error) {
	fmt.Fprintf(p.out, "%s, bonus: album name? (enter skips) ", player)
	return p.read()
}
