package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
)

// Player holds one participant's identity and running score.
type Player struct {
	Name  string
	Score int
	Stats Stats
	join  int // seat order, breaks scoreboard ties
}

// Stats aggregates one player's results across a session.
type Stats struct {
	RoundsWon    int
	Guesses      int         // Answers offered, passes excluded
	Passes       int
	StepWins     map[int]int // Wins keyed by the 1-based step they landed on
	YearBonuses  int         // Rounds where the year question paid out
	AlbumBonuses int         // Rounds where the album question paid out
	BonusPoints  int
}

// Standing is one row of the scoreboard. Tied scores share a rank.
type Standing struct {
	Rank   int
	Player string
	Score  int
	Won    int
}

// SessionConfig carries the table setup for a full game.
type SessionConfig struct {
	Players []string
	Ladder  []time.Duration // Snippet lengths in escalation order
	Rules   ScoreRules
	Rotate  bool // Rotate the starting player each round
	Reveal  bool // Play the full track after each round resolves
}

// Session drives rounds against a pool until it empties or the table
// quits. A round that loses its playback device parks here as suspended
// and blocks further rounds until Resume finishes it.
type Session struct {
	catalog   services.Catalog
	prompter  Prompter
	logger    *log.Logger
	pool      *SongPool
	players   []*Player
	ladder    []time.Duration
	rules     ScoreRules
	rotate    bool
	reveal    bool
	rounds    int    // Completed rounds
	suspended *Round // Round waiting on a playback device
}

// NewSession sets up a game over the given pool.
func NewSession(catalog services.Catalog, prompter Prompter, logger *log.Logger, pool *SongPool, cfg SessionConfig) (*Session, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: song pool not initialized", shared.ErrServiceUnavailable)
	}
	if len(cfg.Players) == 0 {
		return nil, fmt.Errorf("%w: at least one player required", shared.ErrInvalidArgument)
	}
	if len(cfg.Ladder) == 0 {
		return nil, fmt.Errorf("%w: empty snippet ladder", shared.ErrInvalidArgument)
	}

	seen := make(map[string]bool, len(cfg.Players))
	players := make([]*Player, 0, len(cfg.Players))
	for i, name := range cfg.Players {
		if name == "" {
			return nil, fmt.Errorf("%w: player name cannot be empty", shared.ErrInvalidArgument)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate player name %q", shared.ErrInvalidArgument, name)
		}
		seen[name] = true
		players = append(players, &Player{
			Name:  name,
			Stats: Stats{StepWins: make(map[int]int)},
			join:  i,
		})
	}

	return &Session{
		catalog:  catalog,
		prompter: prompter,
		logger:   logger,
		pool:     pool,
		players:  players,
		ladder:   cfg.Ladder,
		rules:    cfg.Rules,
		rotate:   cfg.Rotate,
		reveal:   cfg.Reveal,
	}, nil
}

// RunRound pops the next track and plays one full round. The track leaves
// the pool permanently even when nobody names it. Returns
// shared.ErrEndOfGame once the pool is empty, and an error wrapping
// shared.ErrRoundSuspended when playback loses its device mid-round; the
// suspended round keeps its state for Resume.
func (s *Session) RunRound(ctx context.Context) (*Outcome, error) {
	if s.suspended != nil {
		return nil, fmt.Errorf("%w: resume the suspended round first", shared.ErrRoundSuspended)
	}

	track, ok := s.pool.Next()
	if !ok {
		return nil, shared.ErrEndOfGame
	}

	s.logger.Debug("starting round",
		"round", s.rounds+1,
		"track", track.ID,
		"remaining", s.pool.Len(),
	)

	round := NewRound(RoundConfig{
		Catalog:  s.catalog,
		Prompter: s.prompter,
		Logger:   s.logger,
		Players:  s.turnOrder(),
		Ladder:   s.ladder,
		Rules:    s.rules,
		Reveal:   s.reveal,
	}, track)

	outcome, err := round.Play(ctx)
	return s.settle(round, outcome, err)
}

// Resume continues the suspended round once a playback device is back.
func (s *Session) Resume(ctx context.Context) (*Outcome, error) {
	if s.suspended == nil {
		return nil, errors.New("no suspended round to resume")
	}

	round := s.suspended
	s.suspended = nil
	outcome, err := round.Resume(ctx)
	return s.settle(round, outcome, err)
}

// settle records a finished round, or re-parks it when it suspended again.
func (s *Session) settle(round *Round, outcome *Outcome, err error) (*Outcome, error) {
	if err != nil {
		if errors.Is(err, shared.ErrRoundSuspended) {
			s.suspended = round
		}
		return nil, err
	}

	s.rounds++
	s.applyOutcome(outcome)
	return outcome, nil
}

// applyOutcome folds a round result into player stats and, as the final
// step, the winner's score.
func (s *Session) applyOutcome(outcome *Outcome) {
	for _, guess := range outcome.Guesses {
		player := s.player(guess.Player)
		if player == nil {
			continue
		}
		if guess.Guess == "" {
			player.Stats.Passes++
		} else {
			player.Stats.Guesses++
		}
	}

	if outcome.Winner == "" {
		return
	}
	winner := s.player(outcome.Winner)
	if winner == nil {
		return
	}
	winner.Stats.RoundsWon++
	winner.Stats.StepWins[outcome.StepsUsed]++
	if outcome.YearPoints > 0 {
		winner.Stats.YearBonuses++
	}
	if outcome.AlbumPoints > 0 {
		winner.Stats.AlbumBonuses++
	}
	winner.Stats.BonusPoints += outcome.BonusPoints
	winner.Score += outcome.Points + outcome.BonusPoints
}

// turnOrder returns player names in guess order for the next round. The
// starting seat advances by one each completed round when rotation is on.
func (s *Session) turnOrder() []string {
	start := 0
	if s.rotate {
		start = s.rounds % len(s.players)
	}

	order := make([]string, 0, len(s.players))
	for i := range s.players {
		order = append(order, s.players[(start+i)%len(s.players)].Name)
	}
	return order
}

func (s *Session) player(name string) *Player {
	for _, p := range s.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Scoreboard returns standings sorted by score descending. Ties keep seat
// order and share a rank.
func (s *Session) Scoreboard() []Standing {
	ranked := make([]*Player, len(s.players))
	copy(ranked, s.players)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].join < ranked[j].join
	})

	standings := make([]Standing, len(ranked))
	for i, player := range ranked {
		rank := i + 1
		if i > 0 && player.Score == ranked[i-1].Score {
			rank = standings[i-1].Rank
		}
		standings[i] = Standing{
			Rank:   rank,
			Player: player.Name,
			Score:  player.Score,
			Won:    player.Stats.RoundsWon,
		}
	}
	return standings
}

// Players returns the table in seat order.
func (s *Session) Players() []*Player { return s.players }

// Rounds returns the number of completed rounds.
func (s *Session) Rounds() int { return s.rounds }

// Remaining returns the number of tracks left in the pool.
func (s *Session) Remaining() int { return s.pool.Len() }

// Suspended reports whether a round is parked waiting for a playback
// device.
func (s *Session) Suspended() bool { return s.suspended != nil }
