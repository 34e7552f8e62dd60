package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blindspot/internal/game"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
)

// SourceWarmResult represents the result of warming a single source.
type SourceWarmResult struct {
	Source  services.SourceSpec // Source the pool was built from
	Tracks  int                 // Tracks that survived the filters
	Success bool
	Error   error // Build failure (nil on success)
}

// WarmResult contains all data from a full cache warm.
type WarmResult struct {
	TotalSources  int                // Distinct sources requested
	WarmedSources int                // Sources whose pool built and cached
	FailedSources int                // Sources whose build failed
	Results       []SourceWarmResult // Per-source results in completion order
}

// WarmOpts contains configuration for a cache warm.
type WarmOpts struct {
	Pool       game.PoolOpts // Build filters; the cache is always written through
	NumWorkers int           // Concurrent builds (default 3, capped at 5)
}

// CacheWarmer builds song pools for several sources concurrently and writes
// them through to the track cache.
type CacheWarmer struct {
	catalog services.Catalog
	cache   game.TrackCacher
	logger  *log.Logger
}

// NewCacheWarmer creates a warmer over the given catalog and cache.
func NewCacheWarmer(catalog services.Catalog, cache game.TrackCacher, logger *log.Logger) *CacheWarmer {
	return &CacheWarmer{catalog: catalog, cache: cache, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (w *CacheWarmer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run warms the cache for the given sources on a worker pool. Individual
// build failures land in the result rather than aborting the rest; the error
// return covers setup problems and context cancellation only.
func (w *CacheWarmer) Run(ctx context.Context, progress chan<- ProgressUpdate, sources []services.SourceSpec, opts WarmOpts) (*WarmResult, error) {
	if w.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if w.cache == nil {
		return nil, fmt.Errorf("%w: track cache not initialized", shared.ErrServiceUnavailable)
	}

	sources = dedupeSources(sources)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources to warm", shared.ErrMissingArgument)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 5 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > len(sources) {
		opts.NumWorkers = len(sources)
	}
	// Warming that skips the cache would be a plain build.
	opts.Pool.UseCache = true

	// Builds run in parallel but the cache sits on a single sqlite file, so
	// cache access serializes here instead of racing the driver.
	cache := &lockedCacher{inner: w.cache}

	result := &WarmResult{
		TotalSources: len(sources),
		Results:      make([]SourceWarmResult, 0, len(sources)),
	}

	jobs := make(chan services.SourceSpec, len(sources))
	results := make(chan SourceWarmResult, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go w.warmWorker(ctx, &wg, jobs, results, cache, opts.Pool)
	}

	w.sendProgress(progress, queueSourcesUpdate(len(sources)))
	for i, spec := range sources {
		w.sendProgress(progress, warmSourceUpdate(i+1, len(sources), spec))
		jobs <- spec
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.WarmedSources++
			w.sendProgress(progress, sourceWarmedUpdate(completed, len(sources), res.Source, res.Tracks))
		} else {
			result.FailedSources++
			w.sendProgress(progress, sourceFailedUpdate(completed, len(sources), res.Source, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// warmWorker is a worker goroutine that builds pools from the jobs channel.
// Each worker owns a builder; builders carry per-instance shuffle state and
// are not safe to share.
func (w *CacheWarmer) warmWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan services.SourceSpec, results chan<- SourceWarmResult, cache game.TrackCacher, pool game.PoolOpts) {
	defer wg.Done()

	builder := game.NewBuilder(w.catalog, cache, w.logger)
	for spec := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- w.warmSource(ctx, builder, spec, pool)
	}
}

// warmSource builds and caches the pool for a single source.
func (w *CacheWarmer) warmSource(ctx context.Context, builder *game.Builder, spec services.SourceSpec, pool game.PoolOpts) SourceWarmResult {
	result := SourceWarmResult{Source: spec}

	built, err := builder.Build(ctx, nil, spec, pool)
	if err != nil {
		w.logger.Warn("failed to warm source", "source", spec.String(), "error", err)
		result.Error = err
		return result
	}

	result.Tracks = built.Len()
	result.Success = true
	return result
}

// dedupeSources drops repeated sources, first occurrence wins.
func dedupeSources(sources []services.SourceSpec) []services.SourceSpec {
	seen := make(map[string]bool, len(sources))
	var unique []services.SourceSpec
	for _, spec := range sources {
		key := spec.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, spec)
	}
	return unique
}

// lockedCacher serializes access to a TrackCacher shared across workers.
type lockedCacher struct {
	mu    sync.Mutex
	inner game.TrackCacher
}

func (c *lockedCacher) CacheTracks(source string, tracks []models.Track) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.CacheTracks(source, tracks)
}

func (c *lockedCacher) CachedTracks(source string) ([]models.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.CachedTracks(source)
}
