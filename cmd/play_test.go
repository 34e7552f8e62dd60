package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/blindspot/internal/game"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
	tu "github.com/desertthunder/blindspot/internal/testing"
)

func newTestPrompter(input string) (*prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &prompter{in: bufio.NewScanner(strings.NewReader(input)), out: out}, out
}

func TestPrompter(t *testing.T) {
	t.Run("Guess writes the step prompt and returns the answer", func(t *testing.T) {
		p, out := newTestPrompter("purple haze\n")

		guess, err := p.Guess("Ana", 2, 3, 5*time.Second)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if guess != "purple haze" {
			t.Errorf("expected trimmed guess, got %q", guess)
		}

		want := "[2/3 5s] Ana, name the track (r=replay, enter=pass): "
		if out.String() != want {
			t.Errorf("expected prompt %q, got %q", want, out.String())
		}
	})

	t.Run("Guess returns EOF when input ends", func(t *testing.T) {
		p, _ := newTestPrompter("")

		if _, err := p.Guess("Ana", 1, 3, time.Second); !errors.Is(err, io.EOF) {
			t.Errorf("expected io.EOF, got %v", err)
		}
	})

	t.Run("AskYear accepts a numeric answer", func(t *testing.T) {
		p, out := newTestPrompter("1994\n")

		year, answered, err := p.AskYear("Ana")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !answered || year != 1994 {
			t.Errorf("expected (1994, true), got (%d, %v)", year, answered)
		}
		if !strings.Contains(out.String(), "Ana, bonus: release year?") {
			t.Errorf("expected year prompt, got %q", out.String())
		}
	})

	t.Run("AskYear reprompts on non-numeric input", func(t *testing.T) {
		p, out := newTestPrompter("soon\n1999\n")

		year, answered, err := p.AskYear("Ana")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !answered || year != 1999 {
			t.Errorf("expected (1999, true), got (%d, %v)", year, answered)
		}
		if got := strings.Count(out.String(), "bonus: release year?"); got != 2 {
			t.Errorf("expected 2 prompts, got %d", got)
		}
		if !strings.Contains(out.String(), "Enter a year like 1994") {
			t.Errorf("expected a hint after bad input, got %q", out.String())
		}
	})

	t.Run("AskYear empty input declines", func(t *testing.T) {
		p, _ := newTestPrompter("\n")

		year, answered, err := p.AskYear("Ana")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if answered || year != 0 {
			t.Errorf("expected a declined answer, got (%d, %v)", year, answered)
		}
	})

	t.Run("AskAlbum returns the trimmed answer", func(t *testing.T) {
		p, out := newTestPrompter("  Nevermind \n")

		album, err := p.AskAlbum("Ben")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if album != "Nevermind" {
			t.Errorf("expected 'Nevermind', got %q", album)
		}
		if !strings.Contains(out.String(), "Ben, bonus: album name?") {
			t.Errorf("expected album prompt, got %q", out.String())
		}
	})
}

func TestSplitPlayers(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"single name", "ana", []string{"ana"}},
		{"comma separated", "ana,ben,cleo", []string{"ana", "ben", "cleo"}},
		{"trims whitespace", " ana , ben ", []string{"ana", "ben"}},
		{"drops empties", "ana,,ben,", []string{"ana", "ben"}},
		{"drops duplicates", "ana,ben,ana", []string{"ana", "ben"}},
		{"empty input", "", nil},
		{"only separators", " , , ", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitPlayers(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("splitPlayers(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestPoolOpts(t *testing.T) {
	t.Run("maps game and pool settings", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Game.MinPoolSize = 12
		config.Game.MinDuration = "45s"
		config.Pool.MaxPerArtist = 3
		config.Pool.MinPopularity = 20
		config.Pool.YearFrom = 1990
		config.Pool.YearTo = 1999
		config.Pool.IncludeRelated = true
		config.Pool.UseCache = true

		opts, err := poolOpts(config)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := game.PoolOpts{
			MinPoolSize:    12,
			MinDuration:    45 * time.Second,
			MaxPerArtist:   3,
			MinPopularity:  20,
			YearFrom:       1990,
			YearTo:         1999,
			IncludeRelated: true,
			UseCache:       true,
		}
		if opts != want {
			t.Errorf("poolOpts = %+v, want %+v", opts, want)
		}
	})

	t.Run("rejects an unparseable minimum duration", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Game.MinDuration = "soon"

		_, err := poolOpts(config)
		if err == nil {
			t.Fatal("expected error for bad duration")
		}
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestPromptSource(t *testing.T) {
	prompt := func(input string) (services.SourceSpec, error) {
		runner := NewRunner(RunnerOpts{
			Output: &bytes.Buffer{},
			Input:  strings.NewReader(input),
			Logger: shared.NewLogger(io.Discard),
		})
		return runner.promptSource(context.Background(), false)
	}

	t.Run("artist by shorthand", func(t *testing.T) {
		spec, err := prompt("a\nPixies\n")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := services.SourceSpec{Kind: services.SourceArtist, Query: "Pixies"}
		if spec != want {
			t.Errorf("expected %v, got %v", want, spec)
		}
	})

	t.Run("genre by full word", func(t *testing.T) {
		spec, err := prompt("genre\nsynthpop\n")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := services.SourceSpec{Kind: services.SourceGenre, Query: "synthpop"}
		if spec != want {
			t.Errorf("expected %v, got %v", want, spec)
		}
	})

	t.Run("playlist ignores case", func(t *testing.T) {
		spec, err := prompt("P\nRoad Trip\n")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := services.SourceSpec{Kind: services.SourcePlaylist, Query: "Road Trip"}
		if spec != want {
			t.Errorf("expected %v, got %v", want, spec)
		}
	})

	t.Run("rejects an unknown kind", func(t *testing.T) {
		_, err := prompt("x\n")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects an empty query", func(t *testing.T) {
		_, err := prompt("a\n\n")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err == nil || !strings.Contains(err.Error(), "source query cannot be empty") {
			t.Errorf("expected empty query error, got %v", err)
		}
	})
}

func TestPrintOutcome(t *testing.T) {
	render := func(outcome *game.Outcome) string {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(io.Discard)})
		runner.printOutcome(outcome)
		return output.String()
	}

	t.Run("announces the winner with bonuses", func(t *testing.T) {
		got := render(&game.Outcome{
			Track:       models.Track{Title: "Debaser", Artist: "Pixies", Year: 1989},
			Winner:      "Ana",
			StepsUsed:   2,
			Points:      2,
			YearPoints:  5,
			AlbumPoints: 3,
		})

		for _, want := range []string{
			"✓ Ana named it on step 2: +2 points",
			"Year bonus: +5",
			"Album bonus: +3",
			"It was Debaser by Pixies (1989)",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q, got %q", want, got)
			}
		}
	})

	t.Run("skips zero bonuses", func(t *testing.T) {
		got := render(&game.Outcome{
			Track:     models.Track{Title: "Debaser", Artist: "Pixies", Year: 1989},
			Winner:    "Ana",
			StepsUsed: 1,
			Points:    3,
		})

		if strings.Contains(got, "Year bonus") || strings.Contains(got, "Album bonus") {
			t.Errorf("expected no bonus lines, got %q", got)
		}
	})

	t.Run("announces a miss and still reveals the track", func(t *testing.T) {
		got := render(&game.Outcome{
			Track: models.Track{Title: "Gigantic", Artist: "Pixies"},
		})

		if !strings.Contains(got, "✗ Nobody named it.") {
			t.Errorf("expected miss line, got %q", got)
		}
		if !strings.Contains(got, "It was Gigantic by Pixies\n") {
			t.Errorf("expected reveal without a year, got %q", got)
		}
		if strings.Contains(got, "(") {
			t.Errorf("expected no year parenthetical, got %q", got)
		}
	})
}

// sessionFixture wires a runner and a session over the given tracks, with the
// prompter sharing the runner's input the way Play does.
func sessionFixture(t *testing.T, catalog *tu.MockCatalog, tracks []models.Track, ladder []time.Duration, input string) (*Runner, *game.Session, *bytes.Buffer) {
	t.Helper()

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Catalog: catalog,
		Output:  output,
		Input:   strings.NewReader(input),
		Logger:  shared.NewLogger(io.Discard),
	})

	pool := game.NewSongPool(services.SourceSpec{Kind: services.SourceArtist, Query: "Pixies"}, tracks)
	session, err := game.NewSession(catalog, &prompter{in: runner.input, out: runner.output}, runner.logger, pool, game.SessionConfig{
		Players: []string{"Ana"},
		Ladder:  ladder,
	})
	if err != nil {
		t.Fatalf("failed to set up session: %v", err)
	}
	return runner, session, output
}

func TestRunSession(t *testing.T) {
	t.Run("plays the last track to a win and stops", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		tracks := []models.Track{{ID: "t1", Title: "Debaser", Artist: "Pixies", Year: 1989}}
		runner, session, output := sessionFixture(t, catalog, tracks, []time.Duration{time.Second}, "Debaser\n")

		if err := runner.runSession(context.Background(), session); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for _, want := range []string{
			"♪ Round 1",
			"✓ Ana named it on step 1: +1 points",
			"That was the last track.",
		} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected output to contain %q, got %q", want, output.String())
			}
		}

		if len(catalog.PlayCalls) != 1 {
			t.Fatalf("expected 1 playback call, got %d", len(catalog.PlayCalls))
		}
		if catalog.PlayCalls[0].TrackID != "t1" || catalog.PlayCalls[0].Snippet != time.Second {
			t.Errorf("unexpected playback call %+v", catalog.PlayCalls[0])
		}
		if session.Rounds() != 1 {
			t.Errorf("expected 1 completed round, got %d", session.Rounds())
		}
		if score := session.Players()[0].Score; score != 1 {
			t.Errorf("expected score 1, got %d", score)
		}
	})

	t.Run("walks the ladder when nobody names it", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		tracks := []models.Track{{ID: "t1", Title: "Debaser", Artist: "Pixies"}}
		ladder := []time.Duration{time.Second, 3 * time.Second}
		runner, session, output := sessionFixture(t, catalog, tracks, ladder, "\n\n")

		if err := runner.runSession(context.Background(), session); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), "✗ Nobody named it.") {
			t.Errorf("expected miss line, got %q", output.String())
		}
		if len(catalog.PlayCalls) != 2 {
			t.Errorf("expected a playback per step, got %d", len(catalog.PlayCalls))
		}
		if passes := session.Players()[0].Stats.Passes; passes != 2 {
			t.Errorf("expected 2 passes recorded, got %d", passes)
		}
	})

	t.Run("keeps playing between rounds on confirmation", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		tracks := []models.Track{
			{ID: "t1", Title: "First Song", Artist: "Pixies"},
			{ID: "t2", Title: "Second Song", Artist: "Pixies"},
		}
		runner, session, output := sessionFixture(t, catalog, tracks, []time.Duration{time.Second},
			"First Song\ny\nSecond Song\n")

		if err := runner.runSession(context.Background(), session); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), "♪ Round 2") {
			t.Errorf("expected a second round, got %q", output.String())
		}
		if session.Rounds() != 2 {
			t.Errorf("expected 2 completed rounds, got %d", session.Rounds())
		}
	})

	t.Run("stops when the table declines another round", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		tracks := []models.Track{
			{ID: "t1", Title: "First Song", Artist: "Pixies"},
			{ID: "t2", Title: "Second Song", Artist: "Pixies"},
		}
		runner, session, _ := sessionFixture(t, catalog, tracks, []time.Duration{time.Second},
			"First Song\nn\n")

		if err := runner.runSession(context.Background(), session); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if session.Rounds() != 1 {
			t.Errorf("expected 1 completed round, got %d", session.Rounds())
		}
		if session.Remaining() != 1 {
			t.Errorf("expected 1 track left in the pool, got %d", session.Remaining())
		}
	})
}

func TestRunSessionSuspension(t *testing.T) {
	t.Run("resumes the round once a device is back", func(t *testing.T) {
		calls := 0
		catalog := &tu.MockCatalog{
			PlayFunc: func(ctx context.Context, trackID string, d time.Duration) error {
				calls++
				if calls == 1 {
					return fmt.Errorf("%w: nothing is playing", shared.ErrNoActiveDevice)
				}
				return nil
			},
		}
		tracks := []models.Track{{ID: "t1", Title: "Debaser", Artist: "Pixies"}}
		runner, session, output := sessionFixture(t, catalog, tracks, []time.Duration{time.Second},
			"y\nDebaser\n")

		if err := runner.runSession(context.Background(), session); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), "Playback lost its device mid-round.") {
			t.Errorf("expected suspension notice, got %q", output.String())
		}
		if !strings.Contains(output.String(), "✓ Ana named it on step 1") {
			t.Errorf("expected the resumed round to finish, got %q", output.String())
		}
		if len(catalog.PlayCalls) != 2 {
			t.Errorf("expected the snippet to be reissued, got %d calls", len(catalog.PlayCalls))
		}
		if session.Suspended() {
			t.Error("expected no suspended round after resume")
		}
	})

	t.Run("giving up on the suspended round ends the session", func(t *testing.T) {
		catalog := &tu.MockCatalog{
			PlayFunc: func(ctx context.Context, trackID string, d time.Duration) error {
				return shared.ErrNoActiveDevice
			},
		}
		tracks := []models.Track{{ID: "t1", Title: "Debaser", Artist: "Pixies"}}
		runner, session, _ := sessionFixture(t, catalog, tracks, []time.Duration{time.Second}, "n\n")

		if err := runner.runSession(context.Background(), session); err != nil {
			t.Fatalf("expected no error when the user gives up, got %v", err)
		}

		if !session.Suspended() {
			t.Error("expected the round to stay parked")
		}
		if session.Rounds() != 0 {
			t.Errorf("expected no completed rounds, got %d", session.Rounds())
		}
	})
}

func TestEnsureActiveDevice(t *testing.T) {
	t.Run("reports the active device", func(t *testing.T) {
		catalog := &tu.MockCatalog{
			ActiveDeviceFunc: func(ctx context.Context) (*models.Device, error) {
				return &models.Device{Name: "Kitchen", Type: "Speaker", Active: true}, nil
			},
		}
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Catalog: catalog, Output: output, Logger: shared.NewLogger(io.Discard)})

		if err := runner.ensureActiveDevice(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "Playing through Kitchen (Speaker)\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("retries after the user opens a device", func(t *testing.T) {
		calls := 0
		catalog := &tu.MockCatalog{
			ActiveDeviceFunc: func(ctx context.Context) (*models.Device, error) {
				calls++
				if calls == 1 {
					return nil, fmt.Errorf("%w: open Spotify somewhere", shared.ErrNoActiveDevice)
				}
				return &models.Device{Name: "Kitchen", Type: "Speaker", Active: true}, nil
			},
		}
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Catalog: catalog,
			Output:  output,
			Input:   strings.NewReader("y\n"),
			Logger:  shared.NewLogger(io.Discard),
		})

		if err := runner.ensureActiveDevice(context.Background()); err != nil {
			t.Fatalf("expected no error after retry, got %v", err)
		}
		if !strings.Contains(output.String(), "No active Spotify device found.") {
			t.Errorf("expected the no-device warning, got %q", output.String())
		}
		if !strings.Contains(output.String(), "Playing through Kitchen (Speaker)") {
			t.Errorf("expected the retry to succeed, got %q", output.String())
		}
	})

	t.Run("returns the error when the user declines to retry", func(t *testing.T) {
		catalog := &tu.MockCatalog{
			ActiveDeviceFunc: func(ctx context.Context) (*models.Device, error) {
				return nil, shared.ErrNoActiveDevice
			},
		}
		runner := NewRunner(RunnerOpts{
			Catalog: catalog,
			Output:  &bytes.Buffer{},
			Input:   strings.NewReader("n\n"),
			Logger:  shared.NewLogger(io.Discard),
		})

		err := runner.ensureActiveDevice(context.Background())
		if !errors.Is(err, shared.ErrNoActiveDevice) {
			t.Errorf("expected ErrNoActiveDevice, got %v", err)
		}
	})

	t.Run("propagates other catalog failures", func(t *testing.T) {
		catalog := &tu.MockCatalog{
			ActiveDeviceFunc: func(ctx context.Context) (*models.Device, error) {
				return nil, errors.New("rate limited")
			},
		}
		runner := NewRunner(RunnerOpts{Catalog: catalog, Output: &bytes.Buffer{}, Logger: shared.NewLogger(io.Discard)})

		err := runner.ensureActiveDevice(context.Background())
		if err == nil || !strings.Contains(err.Error(), "rate limited") {
			t.Errorf("expected the catalog error, got %v", err)
		}
	})
}
