package game

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/desertthunder/blindspot/internal/models"
)

// baseTitleMarkers separate the core title from edition noise such as
// "(Remastered 2011)", "- Live at Wembley", or "[Deluxe Edition]".
var baseTitleMarkers = []string{" (", " - ", " ["}

// foldAccents maps accented Latin letters to their ASCII base form, so
// "Églantine" compares as "Eglantine".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Normalize prepares a string for matching: accents fold to ASCII, letters
// lowercase, apostrophes vanish (so "don't" equals "dont"), and every other
// non-alphanumeric run becomes a single space with the ends trimmed.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range strings.ToLower(foldAccents(s)) {
		switch {
		case r == '\'' || r == '’':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// BaseTitle returns the normalized title with any edition suffix removed.
func BaseTitle(title string) string {
	base := title
	for _, marker := range baseTitleMarkers {
		if i := strings.Index(base, marker); i >= 0 {
			base = base[:i]
		}
	}
	return Normalize(base)
}

// Matches reports whether a guess names the track. Both sides are
// normalized and a substring hit in either direction counts, so "bohemian"
// takes "Bohemian Rhapsody" and a guess padded with extra words still
// lands. The full title, the base title, and the artist are all accepted.
func Matches(guess string, track models.Track) bool {
	g := Normalize(guess)
	if g == "" {
		return false
	}

	targets := []string{Normalize(track.Title), BaseTitle(track.Title), Normalize(track.Artist)}
	for _, target := range targets {
		if target == "" {
			continue
		}
		if strings.Contains(target, g) || strings.Contains(g, target) {
			return true
		}
	}
	return false
}

// SameSong reports whether two catalog entries are the same recording, e.g.
// an album cut and its compilation reissue under different IDs.
func SameSong(a, b models.Track) bool {
	if BaseTitle(a.Title) == "" {
		return false
	}
	return BaseTitle(a.Title) == BaseTitle(b.Title) && Normalize(a.Artist) == Normalize(b.Artist)
}
