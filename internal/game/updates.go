package game

import (
	"fmt"

	"github.com/desertthunder/blindspot/internal/services"
)

// ProgressUpdate represents a progress event during pool construction.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Build phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pool build phase enumeration
type Phase int

const (
	SearchSource Phase = iota
	FetchTracks
	ExpandArtists
	FilterTracks
	ShufflePool
	CachePool
	PoolReady
)

// String returns the phase name for logging and display.
func (p Phase) String() string {
	switch p {
	case SearchSource:
		return "search_source"
	case FetchTracks:
		return "fetch_tracks"
	case ExpandArtists:
		return "expand_artists"
	case FilterTracks:
		return "filter_tracks"
	case ShufflePool:
		return "shuffle_pool"
	case CachePool:
		return "cache_pool"
	case PoolReady:
		return "pool_ready"
	default:
		return "unknown"
	}
}

func searchSourceUpdate(spec services.SourceSpec) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving %s %q...", spec.Kind, spec.Query),
	}
}

func fetchTracksUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching tracks from %s...", name),
	}
}

func expandArtistsUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExpandArtists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding tracks by %s...", step, total, name),
	}
}

func filterTracksUpdate(kept, fetched int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ Kept %d of %d candidates", kept, fetched),
		Data:    kept,
	}
}

func shufflePoolUpdate(size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ShufflePool,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Shuffling %d tracks...", size),
	}
}

func cachePoolUpdate(cached int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CachePool,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ Cached %d new tracks", cached),
	}
}

func poolReadyUpdate(size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PoolReady,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ Pool ready with %d tracks", size),
		Data:    size,
	}
}

// sendProgress sends a progress update to the channel if it's not nil.
// Uses non-blocking send to avoid hanging the build when nothing reads
// the channel.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
