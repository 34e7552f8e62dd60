package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/blindspot/internal/formatter"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/repositories"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/desertthunder/blindspot/internal/tasks"
	"github.com/desertthunder/blindspot/internal/ui"
	"github.com/urfave/cli/v3"
)

// cachedRow flattens a cached track for JSON output.
type cachedRow struct {
	models.Track
	Source string
}

// CacheList shows the locally cached tracks, filtered by the source spec
// that fetched them. --csv and --output export the listing to a file
// instead.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.ensureRepo(cmd)
	if err != nil {
		return err
	}

	source := cmd.String("source")
	criteria := map[string]any{}
	if source != "" {
		criteria["source"] = source
	}

	tracks, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list cached tracks: %w", err)
	}
	if len(tracks) == 0 {
		return r.writePlain("Cache is empty.\n")
	}

	if cmd.Bool("csv") || cmd.String("output") != "" {
		dtos := make([]models.Track, 0, len(tracks))
		for _, t := range tracks {
			dtos = append(dtos, t.Track())
		}
		path, err := formatter.WriteTracksCSV(dtos, source, cmd.String("output"))
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %d tracks to %s\n", len(dtos), path)
	}

	if cmd.Bool("json") {
		rows := make([]cachedRow, 0, len(tracks))
		for _, t := range tracks {
			rows = append(rows, cachedRow{Track: t.Track(), Source: t.Source()})
		}
		return r.writeJSON(rows, true)
	}

	table, err := formatter.CachedTracksTable(tracks)
	if err != nil {
		return err
	}
	return r.writePlain("%s", table)
}

// CacheCount reports how many tracks are cached, broken down by source.
func (r *Runner) CacheCount(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.ensureRepo(cmd)
	if err != nil {
		return err
	}

	total, err := repo.Count()
	if err != nil {
		return fmt.Errorf("failed to count cached tracks: %w", err)
	}
	counts, err := repo.CountBySource()
	if err != nil {
		return fmt.Errorf("failed to count cached tracks by source: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"total": total, "sources": counts}, true)
	}

	r.writePlain("%d tracks cached\n", total)
	if len(counts) == 0 {
		return nil
	}
	table, err := formatter.SourceCountsTable(counts)
	if err != nil {
		return err
	}
	return r.writePlain("\n%s", table)
}

// warmReport summarizes a cache warm for JSON output.
type warmReport struct {
	Total   int       `json:"total"`
	Warmed  int       `json:"warmed"`
	Failed  int       `json:"failed"`
	Sources []warmRow `json:"sources"`
}

type warmRow struct {
	Source string `json:"source"`
	Tracks int    `json:"tracks"`
	Warmed bool   `json:"warmed"`
	Error  string `json:"error,omitempty"`
}

// CacheWarm builds and caches pools for several sources in one pass, so game
// nights start from a warm cache.
func (r *Runner) CacheWarm(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringSlice("source")
	if len(raw) == 0 {
		return fmt.Errorf("%w: pass at least one --source (e.g. --source \"artist:Daft Punk\")", shared.ErrMissingArgument)
	}

	specs := make([]services.SourceSpec, 0, len(raw))
	for _, item := range raw {
		spec, err := services.ParseSourceSpec(item)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	config := r.ensureConfig(cmd)
	if err := r.ensureCatalog(ctx, cmd); err != nil {
		return err
	}
	repo, err := r.ensureRepo(cmd)
	if err != nil {
		return err
	}
	cache := repositories.NewCacheAdapter(repo, strings.ToLower(r.catalog.Name()))

	pool, err := poolOpts(config)
	if err != nil {
		return err
	}
	opts := tasks.WarmOpts{Pool: pool, NumWorkers: int(cmd.Int("workers"))}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("%s\n", update.Message)
		}
	}()

	warmer := tasks.NewCacheWarmer(r.catalog, cache, r.logger)
	var result *tasks.WarmResult
	err = r.withReauth(ctx, func() error {
		var runErr error
		result, runErr = warmer.Run(ctx, progressCh, specs, opts)
		if runErr != nil {
			return runErr
		}
		// An expired token fails every build the same way. Surface it so
		// the reauthorized retry can pick up where the cache left off.
		for _, res := range result.Results {
			if errors.Is(res.Error, shared.ErrTokenExpired) {
				return res.Error
			}
		}
		return nil
	})
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		report := warmReport{
			Total:  result.TotalSources,
			Warmed: result.WarmedSources,
			Failed: result.FailedSources,
		}
		for _, res := range result.Results {
			row := warmRow{Source: res.Source.String(), Tracks: res.Tracks, Warmed: res.Success}
			if res.Error != nil {
				row.Error = res.Error.Error()
			}
			report.Sources = append(report.Sources, row)
		}
		return r.writeJSON(report, true)
	}

	r.writePlain("\n")
	if result.FailedSources > 0 {
		return r.writePlain("%s\n", ui.Warn(fmt.Sprintf("⚠ Warmed %d of %d sources (%d failed)",
			result.WarmedSources, result.TotalSources, result.FailedSources)))
	}
	return r.writePlain("%s\n", ui.Ok(fmt.Sprintf("✓ Warmed %d sources", result.WarmedSources)))
}

// CacheClear deletes every cached track after confirmation.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.ensureRepo(cmd)
	if err != nil {
		return err
	}

	if !r.confirm("Clear the whole track cache? [Y/n] ") {
		return r.writePlain("Cancelled.\n")
	}

	cleared, err := repo.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return r.writePlain("✓ Cleared %d cached tracks\n", cleared)
}
