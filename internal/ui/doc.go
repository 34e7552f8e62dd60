// Package ui implements the interactive source picker using bubbletea's Elm architecture.
//
// The picker presents a [bubbles/list] of artists or playlists fetched from
// the catalog and returns the selection to the caller:
//   - [NewArtistPicker] : Search an artist and browse related artists
//   - [NewPlaylistPicker] : Browse the user's playlists
//
// The [Model] implements bubbletea's standard Init/Update/View pattern; the
// catalog fetch runs as a tea.Cmd issued from Init so the program stays
// responsive while loading. After the program exits, [Model.Selection]
// reports what the user picked, or nothing when they backed out.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with
// contextual help displayed via charmbracelet/bubbles/help. The package also
// exports the lipgloss palette helpers (Title, Ok, Err, Warn, Help) used by
// the CLI for game output so the whole program shares one look.
package ui
