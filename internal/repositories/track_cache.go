package repositories

import (
	"fmt"
	"strings"

	"github.com/desertthunder/blindspot/internal/models"
)

// CacheAdapter implements game.TrackCacher using TrackRepository.
//
// It converts catalog DTOs into cached rows on the way in and back on the
// way out, with deduplication via the (service, service_id) constraint so
// repeated builds against the same source stay idempotent.
type CacheAdapter struct {
	repo    *TrackRepository
	service string
}

// NewCacheAdapter creates a CacheAdapter tagging rows with the catalog
// service name (e.g. "spotify").
func NewCacheAdapter(repo *TrackRepository, service string) *CacheAdapter {
	return &CacheAdapter{repo: repo, service: service}
}

// CacheTracks writes tracks fetched for source through to the cache. Rows
// already present for this service are skipped. Returns the number of rows
// actually inserted; only actual failures (not constraint violations)
// produce an error.
func (c *CacheAdapter) CacheTracks(source string, tracks []models.Track) (int, error) {
	cached := 0
	for _, track := range tracks {
		existing, err := c.repo.GetByServiceID(c.service, track.ID)
		if err == nil && existing != nil {
			continue
		}

		cachedTrack := models.NewCachedTrack(0, c.service, track.ID, source, track)
		if err := c.repo.Create(cachedTrack); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				continue
			}
			return cached, fmt.Errorf("failed to cache track: %w", err)
		}
		cached++
	}
	return cached, nil
}

// CachedTracks returns the catalog DTOs previously cached for source, in
// insertion order.
func (c *CacheAdapter) CachedTracks(source string) ([]models.Track, error) {
	rows, err := c.repo.List(map[string]any{"service": c.service, "source": source})
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, row.Track())
	}
	return tracks, nil
}
