package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/services"
)

// pickerMode selects what the picker lists and fetches.
type pickerMode int

const (
	pickArtist pickerMode = iota
	pickPlaylist
)

// Model is the source picker's bubbletea model. Construct it with
// [NewArtistPicker] or [NewPlaylistPicker], run it under tea.NewProgram,
// then read the choice with [Model.Selection].
type Model struct {
	ctx     context.Context
	catalog services.Catalog
	mode    pickerMode
	query   string // seed artist name, artist mode only

	list   list.Model
	help   help.Model
	keys   keyMap
	width  int
	height int
	loaded bool
	choice string
	done   bool
	err    error
}

// NewArtistPicker lists the best match for query plus its related artists.
func NewArtistPicker(ctx context.Context, catalog services.Catalog, query string) *Model {
	return &Model{
		ctx:     ctx,
		catalog: catalog,
		mode:    pickArtist,
		query:   query,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// NewPlaylistPicker lists the user's playlists.
func NewPlaylistPicker(ctx context.Context, catalog services.Catalog) *Model {
	return &Model{
		ctx:     ctx,
		catalog: catalog,
		mode:    pickPlaylist,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Selection returns the picked name. The bool is false when the user backed
// out or the fetch failed.
func (m *Model) Selection() (string, bool) {
	return m.choice, m.done && m.choice != ""
}

// Err returns the fetch error that ended the picker, if any.
func (m *Model) Err() error { return m.err }

// Init kicks off the catalog fetch.
func (m *Model) Init() tea.Cmd {
	return m.fetchItems()
}

// fetchItems loads the list contents from the catalog. A failed
// related-artist expansion still shows the seed artist.
func (m *Model) fetchItems() tea.Cmd {
	return func() tea.Msg {
		switch m.mode {
		case pickPlaylist:
			playlists, err := m.catalog.GetPlaylists(m.ctx)
			return itemsFetchedMsg{playlists: playlists, err: err}
		default:
			artist, err := m.catalog.SearchArtist(m.ctx, m.query)
			if err != nil {
				return itemsFetchedMsg{err: err}
			}
			artists := []models.Artist{*artist}
			if related, err := m.catalog.RelatedArtists(m.ctx, artist.ID); err == nil {
				artists = append(artists, related...)
			}
			return itemsFetchedMsg{artists: artists}
		}
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.loaded {
			m.list.SetSize(msg.Width-4, msg.Height-6)
		}
		return m, nil

	case itemsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.list = m.buildList(msg)
		m.loaded = true
		return m, nil

	case tea.KeyMsg:
		// While the filter input is active every key belongs to the list.
		if m.loaded && m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if !m.loaded || m.list.FilterState() == list.Unfiltered {
				return m, tea.Quit
			}
		case "enter":
			if m.loaded {
				if item := m.list.SelectedItem(); item != nil {
					m.choice = itemName(item)
					m.done = true
					return m, tea.Quit
				}
			}
		}
	}

	if !m.loaded {
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the picker.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if !m.loaded {
		return styles.help.Render("Loading from Spotify...")
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n\n%s", m.list.View(), helpView)
}

func (m *Model) buildList(msg itemsFetchedMsg) list.Model {
	var items []list.Item
	var title string

	switch m.mode {
	case pickPlaylist:
		items = make([]list.Item, len(msg.playlists))
		for i, pl := range msg.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		title = "Your Playlists"
	default:
		items = make([]list.Item, len(msg.artists))
		for i, artist := range msg.artists {
			note := ""
			if i > 0 {
				note = "related"
			}
			items[i] = artistItem{artist: artist, note: note}
		}
		title = fmt.Sprintf("Artists matching %q", m.query)
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	if m.width > 0 {
		l.SetSize(m.width-4, m.height-6)
	}
	return l
}

func itemName(item list.Item) string {
	switch it := item.(type) {
	case artistItem:
		return it.artist.Name
	case playlistItem:
		return it.playlist.Name
	default:
		return ""
	}
}
