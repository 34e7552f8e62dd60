// package formatter renders catalog listings, game results, and cache contents as aligned text tables, JSON, and CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/desertthunder/blindspot/internal/game"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/shared"
)

// newTable wraps buf in a tabwriter using two-space column gaps.
func newTable(buf *bytes.Buffer) *tabwriter.Writer {
	return tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
}

// TracksTable renders tracks with title, artist, album, year, and length columns
func TracksTable(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintln(w, "#\tTITLE\tARTIST\tALBUM\tYEAR\tLENGTH")
	for i, track := range tracks {
		year := ""
		if track.Year > 0 {
			year = strconv.Itoa(track.Year)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, track.Title, track.Artist, track.Album, year, shared.FormatDuration(track.Duration()))
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render tracks table: %w", err)
	}
	return buf.Bytes(), nil
}

// CachedTracksTable renders cache rows with the source spec that fetched each track
func CachedTracksTable(tracks []*models.CachedTrack) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintln(w, "#\tTITLE\tARTIST\tYEAR\tSOURCE")
	for i, track := range tracks {
		year := ""
		if track.Year() > 0 {
			year = strconv.Itoa(track.Year())
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, track.Title(), track.Artist(), year, track.Source())
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render cache table: %w", err)
	}
	return buf.Bytes(), nil
}

// ArtistsTable renders artists with their catalog genres
func ArtistsTable(artists []models.Artist) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintln(w, "#\tNAME\tGENRES")
	for i, artist := range artists {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, artist.Name, strings.Join(artist.Genres, ", "))
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render artists table: %w", err)
	}
	return buf.Bytes(), nil
}

// PlaylistsTable renders playlists with owner, track count, and visibility
func PlaylistsTable(playlists []models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintln(w, "#\tNAME\tOWNER\tTRACKS\tVISIBILITY")
	for i, playlist := range playlists {
		visibility := "private"
		if playlist.Public {
			visibility = "public"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", i+1, playlist.Name, playlist.Owner, playlist.TrackCount, visibility)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render playlists table: %w", err)
	}
	return buf.Bytes(), nil
}

// DevicesTable renders playback devices, flagging the active one
func DevicesTable(devices []models.Device) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintln(w, "NAME\tTYPE\tVOLUME\tACTIVE")
	for _, device := range devices {
		active := ""
		if device.Active {
			active = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\n", device.Name, device.Type, device.VolumePct, active)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render devices table: %w", err)
	}
	return buf.Bytes(), nil
}

// ScoreboardTable renders session standings in rank order
func ScoreboardTable(standings []game.Standing) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintln(w, "RANK\tPLAYER\tSCORE\tWON")
	for _, standing := range standings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", standing.Rank, standing.Player, standing.Score, standing.Won)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render scoreboard: %w", err)
	}
	return buf.Bytes(), nil
}

// StatsTable renders per-player session stats with one win column per
// escalation step.
func StatsTable(players []*game.Player, steps int) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprint(w, "PLAYER\tWON")
	for s := 1; s <= steps; s++ {
		fmt.Fprintf(w, "\tSTEP %d", s)
	}
	fmt.Fprintln(w, "\tYEAR\tALBUM\tPASSES\tBONUS")

	for _, player := range players {
		fmt.Fprintf(w, "%s\t%d", player.Name, player.Stats.RoundsWon)
		for s := 1; s <= steps; s++ {
			fmt.Fprintf(w, "\t%d", player.Stats.StepWins[s])
		}
		fmt.Fprintf(w, "\t%d\t%d\t%d\t%d\n",
			player.Stats.YearBonuses, player.Stats.AlbumBonuses, player.Stats.Passes, player.Stats.BonusPoints)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render stats table: %w", err)
	}
	return buf.Bytes(), nil
}

// SourceCountsTable renders cached-track counts grouped by source spec, sorted by source
func SourceCountsTable(counts map[string]int) ([]byte, error) {
	sources := make([]string, 0, len(counts))
	for source := range counts {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintln(w, "SOURCE\tTRACKS")
	total := 0
	for _, source := range sources {
		fmt.Fprintf(w, "%s\t%d\n", source, counts[source])
		total += counts[source]
	}
	fmt.Fprintf(w, "TOTAL\t%d\n", total)

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render source counts: %w", err)
	}
	return buf.Bytes(), nil
}

// PoolSummary renders a built pool's source and size
func PoolSummary(pool *game.SongPool) ([]byte, error) {
	var buf bytes.Buffer
	w := newTable(&buf)

	fmt.Fprintf(w, "SOURCE\t%s\n", pool.Source())
	fmt.Fprintf(w, "TRACKS\t%d\n", pool.Size())
	fmt.Fprintf(w, "REMAINING\t%d\n", pool.Len())

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render pool summary: %w", err)
	}
	return buf.Bytes(), nil
}

// FinalReport composes the end-of-game summary: rounds played, winners,
// standings, and per-player stats.
func FinalReport(rounds int, standings []game.Standing, players []*game.Player, steps int) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Game over after %d rounds.\n", rounds))

	var winners []string
	for _, standing := range standings {
		if standing.Rank == 1 && standing.Score > 0 {
			winners = append(winners, standing.Player)
		}
	}
	if len(winners) > 0 {
		buf.WriteString(fmt.Sprintf("Winner: %s\n", strings.Join(winners, ", ")))
	}
	buf.WriteString("\n")

	board, err := ScoreboardTable(standings)
	if err != nil {
		return nil, err
	}
	buf.Write(board)
	buf.WriteString("\n")

	stats, err := StatsTable(players, steps)
	if err != nil {
		return nil, err
	}
	buf.Write(stats)

	return buf.Bytes(), nil
}

// ToJSON generates an indented JSON representation of any listing for the
// --json output mode.
func ToJSON(v any) ([]byte, error) {
	return shared.MarshalJSON(v, true)
}

// ExportTracksCSV converts tracks to CSV with columns: ID, Title, Artist, Album, Year, DurationMS
func ExportTracksCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Year", "DurationMS"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Year),
			strconv.Itoa(track.DurationMS),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteTracksCSV exports a track listing to {base}_tracks.csv.
//
// Defaults to a filename derived from the source spec (non-alphanumerics
// become underscores).
func WriteTracksCSV(tracks []models.Track, source, baseFilepath string) (string, error) {
	if baseFilepath == "" {
		baseFilepath = filenameBase(source)
	}

	csvData, err := ExportTracksCSV(tracks)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return tracksFile, nil
}

// filenameBase maps a source spec like "artist:Daft Punk" to a filesystem
// friendly base name.
func filenameBase(source string) string {
	if source == "" {
		return "tracks"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		default:
			return '_'
		}
	}, source)
}
