package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
)

const (
	// defaultFetchAttempts bounds how often a transient catalog outage is
	// retried before the build gives up.
	defaultFetchAttempts = 3
	// defaultBackoff is the wait before the first retry; it doubles on
	// each subsequent attempt.
	defaultBackoff = 500 * time.Millisecond
	// relatedTrackTarget stops the related-artist expansion once the
	// candidate list is this many times the requested minimum.
	relatedTrackTarget = 3
)

// TrackCacher persists fetched tracks so later games can rebuild a pool
// without hitting the catalog. Implemented by repositories.CacheAdapter.
type TrackCacher interface {
	CacheTracks(source string, tracks []models.Track) (int, error)
	CachedTracks(source string) ([]models.Track, error)
}

// PoolOpts controls which candidate tracks survive into the pool.
type PoolOpts struct {
	MinPoolSize    int           // Hard minimum; the build fails below this
	MinDuration    time.Duration // Drop tracks shorter than this (0 disables)
	MaxPerArtist   int           // Cap per primary artist (0 disables)
	MinPopularity  int           // Drop tracks below this popularity (0 disables)
	YearFrom       int           // Inclusive release year lower bound (0 disables)
	YearTo         int           // Inclusive release year upper bound (0 disables)
	IncludeRelated bool          // Expand artist sources with related artists
	UseCache       bool          // Read from and write to the local track cache
}

// Builder assembles shuffled song pools from a catalog source.
type Builder struct {
	catalog  services.Catalog
	cache    TrackCacher
	logger   *log.Logger
	rng      *rand.Rand
	attempts int
	backoff  time.Duration
}

// NewBuilder creates a pool builder. The cache may be nil, in which case
// pools are always fetched fresh.
func NewBuilder(catalog services.Catalog, cache TrackCacher, logger *log.Logger) *Builder {
	return &Builder{
		catalog:  catalog,
		cache:    cache,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		attempts: defaultFetchAttempts,
		backoff:  defaultBackoff,
	}
}

// Build assembles a pool for the given source: fetch candidates (retrying
// transient catalog outages with exponential backoff), drop duplicates and
// tracks that fail the filters, shuffle the survivors, and write new tracks
// through to the cache. Progress updates are sent to the channel if it's
// not nil. Fails with shared.ErrInsufficientPool when fewer than
// opts.MinPoolSize tracks survive.
func (b *Builder) Build(ctx context.Context, progress chan<- ProgressUpdate, spec services.SourceSpec, opts PoolOpts) (*SongPool, error) {
	if b.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.MinPoolSize <= 0 {
		opts.MinPoolSize = 1
	}

	candidates, fromCache, err := b.gatherCandidates(ctx, progress, spec, opts)
	if err != nil {
		return nil, err
	}

	kept := filterTracks(dedupeTracks(candidates), opts)
	sendProgress(progress, filterTracksUpdate(len(kept), len(candidates)))

	if len(kept) < opts.MinPoolSize {
		return nil, fmt.Errorf("%w: %d playable tracks from %s, need at least %d",
			shared.ErrInsufficientPool, len(kept), spec, opts.MinPoolSize)
	}

	sendProgress(progress, shufflePoolUpdate(len(kept)))
	b.rng.Shuffle(len(kept), func(i, j int) {
		kept[i], kept[j] = kept[j], kept[i]
	})

	if b.cache != nil && opts.UseCache && !fromCache {
		cached, err := b.cache.CacheTracks(spec.String(), kept)
		if err != nil {
			b.logger.Warn("failed to cache pool tracks", "source", spec.String(), "error", err)
		} else if cached > 0 {
			sendProgress(progress, cachePoolUpdate(cached))
		}
	}

	sendProgress(progress, poolReadyUpdate(len(kept)))
	return NewSongPool(spec, kept), nil
}

// gatherCandidates returns raw candidates for the source, preferring the
// local cache when enabled and falling back to the catalog. The bool
// reports whether the candidates came from the cache.
func (b *Builder) gatherCandidates(ctx context.Context, progress chan<- ProgressUpdate, spec services.SourceSpec, opts PoolOpts) ([]models.Track, bool, error) {
	if b.cache != nil && opts.UseCache {
		cached, err := b.cache.CachedTracks(spec.String())
		if err != nil {
			b.logger.Warn("failed to read track cache", "source", spec.String(), "error", err)
		} else if len(filterTracks(dedupeTracks(cached), opts)) >= opts.MinPoolSize {
			b.logger.Debug("seeding pool from cache", "source", spec.String(), "tracks", len(cached))
			return cached, true, nil
		}
	}

	candidates, err := b.fetchCandidates(ctx, progress, spec, opts)
	return candidates, false, err
}

// fetchCandidates pulls raw candidates for the source from the catalog.
func (b *Builder) fetchCandidates(ctx context.Context, progress chan<- ProgressUpdate, spec services.SourceSpec, opts PoolOpts) ([]models.Track, error) {
	sendProgress(progress, searchSourceUpdate(spec))

	switch spec.Kind {
	case services.SourceArtist:
		return b.fetchArtistCandidates(ctx, progress, spec.Query, opts)
	case services.SourceGenre:
		return b.fetchGenreCandidates(ctx, progress, spec.Query, opts)
	case services.SourcePlaylist:
		return b.fetchPlaylistCandidates(ctx, progress, spec.Query)
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", shared.ErrInvalidArgument, spec.Kind)
	}
}

func (b *Builder) fetchArtistCandidates(ctx context.Context, progress chan<- ProgressUpdate, query string, opts PoolOpts) ([]models.Track, error) {
	var artist *models.Artist
	err := b.withRetry(ctx, func() error {
		var err error
		artist, err = b.catalog.SearchArtist(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	sendProgress(progress, fetchTracksUpdate(artist.Name))
	var candidates []models.Track
	err = b.withRetry(ctx, func() error {
		var err error
		candidates, err = b.catalog.ArtistTracks(ctx, artist.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !opts.IncludeRelated {
		return candidates, nil
	}

	related, err := b.catalog.RelatedArtists(ctx, artist.ID)
	if err != nil {
		// The seed artist's tracks are already in hand, so a failed
		// expansion narrows the pool instead of killing the build.
		b.logger.Warn("failed to fetch related artists", "artist", artist.Name, "error", err)
		return candidates, nil
	}

	for i, rel := range related {
		if len(candidates) >= opts.MinPoolSize*relatedTrackTarget {
			break
		}
		sendProgress(progress, expandArtistsUpdate(i+1, len(related), rel.Name))

		tracks, err := b.catalog.ArtistTracks(ctx, rel.ID)
		if err != nil {
			if errors.Is(err, shared.ErrEmptyResult) {
				continue
			}
			b.logger.Warn("failed to fetch related artist tracks", "artist", rel.Name, "error", err)
			continue
		}
		candidates = append(candidates, tracks...)
	}
	return candidates, nil
}

func (b *Builder) fetchGenreCandidates(ctx context.Context, progress chan<- ProgressUpdate, genre string, opts PoolOpts) ([]models.Track, error) {
	// Over-fetch so dedup and filtering still leave enough to play with.
	limit := opts.MinPoolSize * 5
	if limit < 50 {
		limit = 50
	}

	sendProgress(progress, fetchTracksUpdate(fmt.Sprintf("genre %q", genre)))
	var candidates []models.Track
	err := b.withRetry(ctx, func() error {
		var err error
		candidates, err = b.catalog.GenreTracks(ctx, genre, limit)
		return err
	})
	return candidates, err
}

func (b *Builder) fetchPlaylistCandidates(ctx context.Context, progress chan<- ProgressUpdate, query string) ([]models.Track, error) {
	var playlist *models.Playlist
	err := b.withRetry(ctx, func() error {
		var err error
		playlist, err = b.catalog.SearchPlaylist(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	sendProgress(progress, fetchTracksUpdate(playlist.Name))
	var candidates []models.Track
	err = b.withRetry(ctx, func() error {
		var err error
		candidates, err = b.catalog.PlaylistTracks(ctx, playlist.ID)
		return err
	})
	return candidates, err
}

// withRetry runs fn, retrying transient catalog outages with exponential
// backoff. Empty results, auth failures, and every other error surface
// immediately without a retry.
func (b *Builder) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrCatalogUnavailable) || attempt == b.attempts {
			return err
		}

		delay := b.backoff << (attempt - 1)
		b.logger.Warn("catalog unavailable, retrying", "attempt", attempt, "backoff", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// dedupeTracks removes duplicate candidates, first occurrence wins. Exact
// ID duplicates and the same recording under different catalog entries
// both count as duplicates. Candidates without an ID or title are dropped.
func dedupeTracks(tracks []models.Track) []models.Track {
	type songKey struct{ title, artist string }
	seenID := make(map[string]bool, len(tracks))
	seenSong := make(map[songKey]bool, len(tracks))

	var unique []models.Track
	for _, track := range tracks {
		if track.ID == "" || track.Title == "" {
			continue
		}
		if seenID[track.ID] {
			continue
		}
		key := songKey{BaseTitle(track.Title), Normalize(track.Artist)}
		if seenSong[key] {
			continue
		}
		seenID[track.ID] = true
		seenSong[key] = true
		unique = append(unique, track)
	}
	return unique
}

// filterTracks applies the pool filters in order. Year bounds exclude
// tracks with an unknown release year.
func filterTracks(tracks []models.Track, opts PoolOpts) []models.Track {
	perArtist := make(map[string]int)
	var kept []models.Track
	for _, track := range tracks {
		if opts.MinDuration > 0 && track.Duration() < opts.MinDuration {
			continue
		}
		if opts.MinPopularity > 0 && track.Popularity < opts.MinPopularity {
			continue
		}
		if opts.YearFrom > 0 && (track.Year == 0 || track.Year < opts.YearFrom) {
			continue
		}
		if opts.YearTo > 0 && (track.Year == 0 || track.Year > opts.YearTo) {
			continue
		}
		if opts.MaxPerArtist > 0 {
			key := track.ArtistID
			if key == "" {
				key = Normalize(track.Artist)
			}
			if perArtist[key] >= opts.MaxPerArtist {
				continue
			}
			perArtist[key]++
		}
		kept = append(kept, track)
	}
	return kept
}

// SongPool is an ordered queue of unique tracks for one game. Tracks leave
// the pool permanently as rounds consume them.
type SongPool struct {
	source services.SourceSpec
	tracks []models.Track
	drawn  int
}

// NewSongPool wraps an already shuffled track list in a pool.
func NewSongPool(source services.SourceSpec, tracks []models.Track) *SongPool {
	return &SongPool{source: source, tracks: tracks}
}

// Next pops the next track off the front of the pool. The second return is
// false once the pool is empty.
func (p *SongPool) Next() (models.Track, bool) {
	if len(p.tracks) == 0 {
		return models.Track{}, false
	}
	track := p.tracks[0]
	p.tracks = p.tracks[1:]
	p.drawn++
	return track, true
}

// Len returns the number of tracks still waiting to be played.
func (p *SongPool) Len() int { return len(p.tracks) }

// Size returns the number of tracks the pool started with.
func (p *SongPool) Size() int { return p.drawn + len(p.tracks) }

// Source returns the source the pool was built from.
func (p *SongPool) Source() services.SourceSpec { return p.source }
