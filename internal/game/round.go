package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
)

// RoundState identifies where a round stands in its lifecycle.
type RoundState int

const (
	StateAwaitingGuess RoundState = iota
	StateCorrect
	StateExhausted
	StateSuspended
)

// String returns the state name for logging and display.
func (s RoundState) String() string {
	switch s {
	case StateAwaitingGuess:
		return "awaiting_guess"
	case StateCorrect:
		return "correct"
	case StateExhausted:
		return "exhausted"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Prompter collects answers from players at the table. Implementations
// block until the player responds.
type Prompter interface {
	// Guess asks a player to name the track after hearing a snippet.
	// Empty input, "p", and "pass" forfeit the turn; replay commands
	// ("r", "replay") repeat the snippet without costing it.
	Guess(player string, step, steps int, snippet time.Duration) (string, error)

	// AskYear asks the round winner for the release year. The bool is
	// false when the player declines to answer.
	AskYear(player string) (int, bool, error)

	// AskAlbum asks the round winner to name the album. An empty string
	// declines.
	AskAlbum(player string) (string, error)
}

// ScoreRules controls the base award and the optional bonus questions put
// to the round winner.
type ScoreRules struct {
	YearBonus      int // Award for the exact release year
	YearCloseBonus int // Award for a year within YearTolerance
	YearTolerance  int
	AlbumBonus     int // Award for naming the album
}

// YearPoints returns the bonus for a year guess against the actual release
// year.
func (s ScoreRules) YearPoints(guess, actual int) int {
	if guess == actual {
		return s.YearBonus
	}
	diff := guess - actual
	if diff < 0 {
		diff = -diff
	}
	if s.YearCloseBonus > 0 && s.YearTolerance > 0 && diff <= s.YearTolerance {
		return s.YearCloseBonus
	}
	return 0
}

// Points returns the base award for a win after stepsUsed of maxSteps
// escalation steps. Guessing on the shortest snippet pays the most; the
// floor is one point.
func Points(stepsUsed, maxSteps int) int {
	points := maxSteps - stepsUsed + 1
	if points < 1 {
		points = 1
	}
	return points
}

// GuessRecord captures one player's answer at one escalation step.
type GuessRecord struct {
	Player  string
	Step    int    // 1-based escalation step
	Guess   string // Raw input, empty means pass
	Correct bool
}

// Outcome summarizes a finished round.
type Outcome struct {
	Track       models.Track
	State       RoundState    // StateCorrect or StateExhausted
	Winner      string        // Empty when the track went unguessed
	StepsUsed   int           // Escalation steps whose snippet actually played
	Points      int           // Base points awarded to the winner
	YearPoints  int           // Release-year bonus awarded
	AlbumPoints int           // Album-name bonus awarded
	BonusPoints int           // Sum of the bonuses
	Guesses     []GuessRecord // Every answer in table order
	Replays     int           // Snippet repeats requested
}

// RoundConfig carries the table setup shared by every round of a session.
type RoundConfig struct {
	Catalog  services.Catalog
	Prompter Prompter
	Logger   *log.Logger
	Players  []string // Guess order, starting with the round's first player
	Ladder   []time.Duration
	Rules    ScoreRules
	Reveal   bool // Play the full track once the round resolves
}

// Round runs the guessing loop for one hidden track: play a snippet from
// the start of the track, collect one guess from every player, escalate to
// the next snippet length when the whole table misses, and score the first
// correct answer. Losing the playback device suspends the round with its
// step and turn intact instead of ending it.
type Round struct {
	catalog    services.Catalog
	prompter   Prompter
	logger     *log.Logger
	track      models.Track
	players    []string
	ladder     []time.Duration
	rules      ScoreRules
	revealFull bool

	state   RoundState
	stepIdx int  // Index into ladder for the current snippet length
	turnIdx int  // Index into players for the next guesser
	played  bool // Whether the current step's snippet has been played
	outcome Outcome
}

// NewRound prepares a round for a single track.
func NewRound(cfg RoundConfig, track models.Track) *Round {
	return &Round{
		catalog:    cfg.Catalog,
		prompter:   cfg.Prompter,
		logger:     cfg.Logger,
		track:      track,
		players:    cfg.Players,
		ladder:     cfg.Ladder,
		rules:      cfg.Rules,
		revealFull: cfg.Reveal,
		state:      StateAwaitingGuess,
		outcome:    Outcome{Track: track, State: StateAwaitingGuess},
	}
}

// State returns the round's current lifecycle state.
func (r *Round) State() RoundState { return r.state }

// Track returns the hidden track. Callers display it only after the round
// resolves.
func (r *Round) Track() models.Track { return r.track }

// Play drives the round to a terminal state and returns its outcome. On a
// lost playback device it returns an error wrapping
// shared.ErrRoundSuspended and keeps the step and turn for Resume. Any
// other playback or prompt failure ends the round without a result; the
// track does not come back.
func (r *Round) Play(ctx context.Context) (*Outcome, error) {
	if r.state == StateCorrect || r.state == StateExhausted {
		return &r.outcome, nil
	}
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if r.prompter == nil {
		return nil, fmt.Errorf("%w: prompter not initialized", shared.ErrServiceUnavailable)
	}
	if len(r.players) == 0 {
		return nil, fmt.Errorf("%w: no players at the table", shared.ErrInvalidArgument)
	}
	if len(r.ladder) == 0 {
		return nil, fmt.Errorf("%w: empty snippet ladder", shared.ErrInvalidArgument)
	}
	r.state = StateAwaitingGuess

	for r.stepIdx < len(r.ladder) {
		snippet := r.ladder[r.stepIdx]

		// One playback command per escalation step; replays are extra
		// and tracked separately.
		if !r.played {
			if err := r.issuePlay(ctx, snippet); err != nil {
				return nil, err
			}
			r.played = true
			r.outcome.StepsUsed = r.stepIdx + 1
		}

		for r.turnIdx < len(r.players) {
			player := r.players[r.turnIdx]
			raw, err := r.prompter.Guess(player, r.stepIdx+1, len(r.ladder), snippet)
			if err != nil {
				return nil, fmt.Errorf("failed to read guess: %w", err)
			}

			guess := strings.TrimSpace(raw)
			if isReplayCommand(guess) {
				r.outcome.Replays++
				if err := r.issuePlay(ctx, snippet); err != nil {
					return nil, err
				}
				continue
			}
			if isPassCommand(guess) {
				guess = ""
			}

			correct := guess != "" && Matches(guess, r.track)
			r.outcome.Guesses = append(r.outcome.Guesses, GuessRecord{
				Player:  player,
				Step:    r.stepIdx + 1,
				Guess:   guess,
				Correct: correct,
			})
			if correct {
				return r.finishCorrect(ctx, player)
			}
			r.turnIdx++
		}

		r.turnIdx = 0
		r.stepIdx++
		r.played = false
	}

	return r.finishExhausted(ctx)
}

// Resume continues a suspended round from the step and turn where playback
// lost its device.
func (r *Round) Resume(ctx context.Context) (*Outcome, error) {
	if r.state != StateSuspended {
		return nil, fmt.Errorf("round is not suspended (state %s)", r.state)
	}
	r.state = StateAwaitingGuess
	return r.Play(ctx)
}

// issuePlay sends one playback command for the current track, translating
// a missing device into a suspension so the session can resume the round
// later.
func (r *Round) issuePlay(ctx context.Context, snippet time.Duration) error {
	err := r.catalog.Play(ctx, r.track.ID, snippet)
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrNoActiveDevice) {
		r.state = StateSuspended
		return fmt.Errorf("%w: %v", shared.ErrRoundSuspended, err)
	}
	return fmt.Errorf("playback failed: %w", err)
}

func (r *Round) finishCorrect(ctx context.Context, player string) (*Outcome, error) {
	r.state = StateCorrect
	r.outcome.State = StateCorrect
	r.outcome.Winner = player
	r.outcome.Points = Points(r.outcome.StepsUsed, len(r.ladder))
	r.askBonuses(player)
	r.revealTrack(ctx)
	return &r.outcome, nil
}

func (r *Round) finishExhausted(ctx context.Context) (*Outcome, error) {
	r.state = StateExhausted
	r.outcome.State = StateExhausted
	r.revealTrack(ctx)
	return &r.outcome, nil
}

// askBonuses puts the optional year and album questions to the winner.
// Bonus questions are skipped when the rules award nothing for them or the
// catalog never supplied the data to check against.
func (r *Round) askBonuses(player string) {
	if r.rules.YearBonus > 0 && r.track.Year > 0 {
		year, answered, err := r.prompter.AskYear(player)
		if err != nil {
			r.logger.Warn("failed to read year guess", "player", player, "error", err)
		} else if answered {
			r.outcome.YearPoints = r.rules.YearPoints(year, r.track.Year)
		}
	}

	if r.rules.AlbumBonus > 0 && r.track.Album != "" {
		album, err := r.prompter.AskAlbum(player)
		if err != nil {
			r.logger.Warn("failed to read album guess", "player", player, "error", err)
		} else if albumMatches(album, r.track.Album) {
			r.outcome.AlbumPoints = r.rules.AlbumBonus
		}
	}

	r.outcome.BonusPoints = r.outcome.YearPoints + r.outcome.AlbumPoints
}

// revealTrack plays the answer in full once the round resolves. Failures
// only log; the result stands either way.
func (r *Round) revealTrack(ctx context.Context) {
	if !r.revealFull {
		return
	}
	if err := r.catalog.PlayFull(ctx, r.track.ID); err != nil {
		r.logger.Warn("failed to play reveal", "track", r.track.Title, "error", err)
	}
}

func isReplayCommand(guess string) bool {
	switch strings.ToLower(guess) {
	case "r", "replay":
		return true
	}
	return false
}

func isPassCommand(guess string) bool {
	switch strings.ToLower(guess) {
	case "p", "pass":
		return true
	}
	return false
}

func albumMatches(guess, album string) bool {
	g, a := Normalize(guess), Normalize(album)
	if g == "" || a == "" {
		return false
	}
	return strings.Contains(a, g) || strings.Contains(g, a)
}
