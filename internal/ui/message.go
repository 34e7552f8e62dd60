package ui

import (
	"github.com/desertthunder/blindspot/internal/models"
)

// itemsFetchedMsg carries the catalog fetch result into the Update loop.
// Exactly one of artists or playlists is set, matching the picker's mode.
type itemsFetchedMsg struct {
	artists   []models.Artist
	playlists []models.Playlist
	err       error
}
