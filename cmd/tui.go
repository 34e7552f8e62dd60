package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/desertthunder/blindspot/internal/ui"
)

// runPicker runs a full-screen picker and reports the chosen name. The bool
// is false when the user quit without selecting.
func (r *Runner) runPicker(model *ui.Model) (string, bool, error) {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, logFile, err := shared.NewFileLogger(filepath.Join(os.TempDir(), "blindspot-picker.log"))
	if err != nil {
		return "", false, fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()

	prev := r.logger
	r.logger = fileLogger
	defer func() { r.logger = prev }()

	p := tea.NewProgram(model)
	final, err := p.Run()
	if err != nil {
		return "", false, fmt.Errorf("error running picker: %w", err)
	}

	picker, ok := final.(*ui.Model)
	if !ok {
		return "", false, fmt.Errorf("unexpected picker model %T", final)
	}
	if err := picker.Err(); err != nil {
		return "", false, err
	}

	choice, selected := picker.Selection()
	return choice, selected, nil
}

// pickArtist opens the artist picker seeded with query, listing the matched
// artist and its related artists.
func (r *Runner) pickArtist(ctx context.Context, query string) (string, bool, error) {
	return r.runPicker(ui.NewArtistPicker(ctx, r.catalog, query))
}

// pickPlaylist opens the playlist picker over the user's library.
func (r *Runner) pickPlaylist(ctx context.Context) (string, bool, error) {
	return r.runPicker(ui.NewPlaylistPicker(ctx, r.catalog))
}
