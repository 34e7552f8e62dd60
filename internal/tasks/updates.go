package tasks

import (
	"fmt"

	"github.com/desertthunder/blindspot/internal/services"
)

// ProgressUpdate represents a progress event during a long-running job.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Job phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Job phase enumeration
type Phase int

const (
	QueueSources Phase = iota
	WarmSource
	SourceWarmed
	SourceFailed
)

func (p Phase) String() string {
	switch p {
	case QueueSources:
		return "queue_sources"
	case WarmSource:
		return "warm_source"
	case SourceWarmed:
		return "source_warmed"
	case SourceFailed:
		return "source_failed"
	default:
		return ""
	}
}

func queueSourcesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   QueueSources,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Warming %d sources...", total),
		Data:    total,
	}
}

func warmSourceUpdate(step, total int, spec services.SourceSpec) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Building pool from %s...", step, total, spec),
	}
}

func sourceWarmedUpdate(step, total int, spec services.SourceSpec, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SourceWarmed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, spec, tracks),
		Data:    tracks,
	}
}

func sourceFailedUpdate(step, total int, spec services.SourceSpec, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SourceFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, spec, err),
	}
}
